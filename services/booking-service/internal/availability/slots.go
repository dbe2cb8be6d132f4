package availability

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
)

const (
	openMinute         = OpeningHour * 60
	weekdayCloseMinute = 18 * 60
	saturdayClose      = 14 * 60
	// Weekday grids get an extra appointment starting at closing time.
	extendedMinute = 18 * 60
)

// DefaultLeadTime is the minimum gap between now and a bookable same-day slot.
const DefaultLeadTime = 15 * time.Minute

// CandidateSlot is a start time offered for one date and duration.
type CandidateSlot struct {
	Time      string `json:"time"` // HH:MM
	Available bool   `json:"available"`
}

// GenerateSlots builds the raw grid for date: 09:00 up to 18:00 (14:00 on
// Saturdays), stepping by the duration, or by 30 minutes for sub-hour
// sessions. Weekdays also get the extended 18:00 slot (plus 18:30 for
// sub-hour sessions). Templates and bookings are applied later.
func GenerateSlots(date time.Time, durationMinutes int) []CandidateSlot {
	if durationMinutes <= 0 {
		return nil
	}
	closeMinute := weekdayCloseMinute
	saturday := date.Weekday() == time.Saturday
	if saturday {
		closeMinute = saturdayClose
	}
	step := durationMinutes
	if step < 60 {
		step = 30
	}

	var slots []CandidateSlot
	for m := openMinute; m < closeMinute; m += step {
		slots = append(slots, CandidateSlot{Time: formatMinute(m), Available: true})
	}
	if !saturday {
		slots = append(slots, CandidateSlot{Time: formatMinute(extendedMinute), Available: true})
		if durationMinutes < 60 {
			slots = append(slots, CandidateSlot{Time: formatMinute(extendedMinute + 30), Available: true})
		}
	}
	return slots
}

// ApplyTemplate keeps the slots whose starting hour is open on day.
func ApplyTemplate(slots []CandidateSlot, day DayAvailability) []CandidateSlot {
	out := make([]CandidateSlot, 0, len(slots))
	for _, s := range slots {
		hhmm, err := ParseHHMM(s.Time)
		if err != nil {
			continue
		}
		if day.IsOpenAt(hhmm / 100) {
			out = append(out, s)
		}
	}
	return out
}

// ApplyLeadTime drops same-day slots starting before now+lead. Other dates
// pass through untouched.
func ApplyLeadTime(slots []CandidateSlot, date, now time.Time, lead time.Duration) []CandidateSlot {
	loc := date.Location()
	if !model.SameDay(date, now.In(loc)) {
		return append([]CandidateSlot(nil), slots...)
	}
	cutoff := now.Add(lead)
	out := make([]CandidateSlot, 0, len(slots))
	for _, s := range slots {
		hhmm, err := ParseHHMM(s.Time)
		if err != nil {
			continue
		}
		start := time.Date(date.Year(), date.Month(), date.Day(), hhmm/100, hhmm%100, 0, 0, loc)
		if start.Before(cutoff) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
