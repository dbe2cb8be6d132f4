package availability

import (
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
)

// DefaultHorizonDays is how far ahead clients may book.
const DefaultHorizonDays = 30

// HolidayChecker is satisfied by holiday.Calendar.
type HolidayChecker interface {
	IsHoliday(date time.Time) bool
}

// EnumerateDates lists the bookable dates from today through
// today+horizonDays-1. Sundays, holidays and days the template leaves without
// an open hour are skipped.
func EnumerateDates(horizonDays int, today time.Time, t Template, holidays HolidayChecker) []time.Time {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	start := model.Midnight(today, today.Location())

	var out []time.Time
	for i := 0; i < horizonDays; i++ {
		if d := start.AddDate(0, 0, i); openDate(d, t, holidays) {
			out = append(out, d)
		}
	}
	return out
}

// openDate applies the per-day rules shared by EnumerateDates and
// Engine.Slots. Holidays close a day whatever the template says.
func openDate(d time.Time, t Template, holidays HolidayChecker) bool {
	if d.Weekday() == time.Sunday {
		return false
	}
	if holidays != nil && holidays.IsHoliday(d) {
		return false
	}
	return ResolveDate(t, d).Bookable()
}

// withinHorizon reports whether d falls in [today, today+horizonDays).
func withinHorizon(d, today time.Time, horizonDays int) bool {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	start := model.Midnight(today, d.Location())
	return !d.Before(start) && d.Before(start.AddDate(0, 0, horizonDays))
}
