package availability

import (
	"fmt"
	"strconv"
	"strings"
)

// BusyInterval is a committed reservation on the queried date.
type BusyInterval struct {
	StartTime       string `json:"start_time"` // HH:MM or HH:MM:SS
	DurationMinutes int    `json:"duration_minutes"`
}

// ParseHHMM turns "HH:MM" or "HH:MM:SS" into the integer HHMM (e.g. 930 for 09:30).
// Seconds are ignored.
func ParseHHMM(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*100 + m, nil
}

// AddMinutesHHMM adds minutes to an HHMM value, carrying at 60 minutes.
// 1045 + 30 is 1115, not 1075.
func AddMinutesHHMM(hhmm, minutes int) int {
	h := hhmm / 100
	m := hhmm%100 + minutes
	h += m / 60
	m %= 60
	return h*100 + m
}

// ApplyBusyIntervals marks a slot unavailable when [start, start+duration)
// overlaps any busy interval. Both sides are half-open, so back-to-back
// sessions do not conflict. Busy entries that cannot be parsed are returned
// in skipped and ignored.
func ApplyBusyIntervals(slots []CandidateSlot, busy []BusyInterval, durationMinutes int) (out []CandidateSlot, skipped []BusyInterval) {
	type span struct{ start, end int }
	spans := make([]span, 0, len(busy))
	for _, b := range busy {
		start, err := ParseHHMM(b.StartTime)
		if err != nil || b.DurationMinutes <= 0 {
			skipped = append(skipped, b)
			continue
		}
		spans = append(spans, span{start: start, end: AddMinutesHHMM(start, b.DurationMinutes)})
	}

	out = make([]CandidateSlot, 0, len(slots))
	for _, s := range slots {
		slotStart, err := ParseHHMM(s.Time)
		if err != nil {
			continue
		}
		slotEnd := AddMinutesHHMM(slotStart, durationMinutes)
		for _, b := range spans {
			if slotStart < b.end && slotEnd > b.start {
				s.Available = false
				break
			}
		}
		out = append(out, s)
	}
	return out, skipped
}
