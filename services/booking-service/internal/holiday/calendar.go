// Package holiday answers whether a civil date is a public holiday in the
// operating jurisdiction (Colombia), plus any extra dates configured at startup.
package holiday

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

type civilDate struct {
	y int
	m time.Month
	d int
}

func civil(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

// Calendar is safe for concurrent use. The zero value knows no holidays;
// use Colombia for the national calendar.
type Calendar struct {
	national bool
	extra    map[civilDate]struct{}

	mu    sync.Mutex
	years map[int]map[civilDate]struct{}
}

// New returns a calendar holding only the given dates.
func New(dates ...time.Time) *Calendar {
	c := &Calendar{extra: make(map[civilDate]struct{}, len(dates))}
	for _, d := range dates {
		c.extra[civil(d)] = struct{}{}
	}
	return c
}

// Colombia returns the national calendar extended with extra dates.
func Colombia(extra ...time.Time) *Calendar {
	c := New(extra...)
	c.national = true
	return c
}

// IsHoliday compares the civil date of d in d's own location.
func (c *Calendar) IsHoliday(d time.Time) bool {
	if c == nil {
		return false
	}
	key := civil(d)
	if _, ok := c.extra[key]; ok {
		return true
	}
	if !c.national {
		return false
	}
	_, ok := c.yearSet(key.y)[key]
	return ok
}

// Holidays lists the calendar's holidays in year, sorted.
func (c *Calendar) Holidays(year int) []time.Time {
	var out []time.Time
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() == year; d = d.AddDate(0, 0, 1) {
		if c.IsHoliday(d) {
			out = append(out, d)
		}
	}
	return out
}

func (c *Calendar) yearSet(year int) map[civilDate]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.years[year]; ok {
		return set
	}
	if c.years == nil {
		c.years = make(map[int]map[civilDate]struct{})
	}
	set := make(map[civilDate]struct{})
	for _, d := range colombianHolidays(year) {
		set[civil(d)] = struct{}{}
	}
	c.years[year] = set
	return set
}

// Parse reads a comma separated list of YYYY-MM-DD dates. Blank entries are ignored.
func Parse(list string) ([]time.Time, error) {
	var out []time.Time
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", raw, err)
		}
		out = append(out, d)
	}
	return out, nil
}
