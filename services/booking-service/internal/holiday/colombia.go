package holiday

import "time"

// Holidays that fall on their calendar date regardless of weekday.
var fixedHolidays = []struct {
	m time.Month
	d int
}{
	{time.January, 1},
	{time.May, 1},
	{time.July, 20},
	{time.August, 7},
	{time.December, 8},
	{time.December, 25},
}

// Holidays observed on the following Monday when they fall on another day
// (Ley 51 de 1983).
var mondayHolidays = []struct {
	m time.Month
	d int
}{
	{time.January, 6},
	{time.March, 19},
	{time.June, 29},
	{time.August, 15},
	{time.October, 12},
	{time.November, 1},
	{time.November, 11},
}

func colombianHolidays(year int) []time.Time {
	out := make([]time.Time, 0, 18)
	for _, h := range fixedHolidays {
		out = append(out, time.Date(year, h.m, h.d, 0, 0, 0, 0, time.UTC))
	}
	for _, h := range mondayHolidays {
		out = append(out, nextMonday(time.Date(year, h.m, h.d, 0, 0, 0, 0, time.UTC)))
	}

	easter := easterSunday(year)
	out = append(out,
		easter.AddDate(0, 0, -3),             // Jueves Santo
		easter.AddDate(0, 0, -2),             // Viernes Santo
		nextMonday(easter.AddDate(0, 0, 39)), // Ascensión
		nextMonday(easter.AddDate(0, 0, 60)), // Corpus Christi
		nextMonday(easter.AddDate(0, 0, 68)), // Sagrado Corazón
	)
	return out
}

func nextMonday(d time.Time) time.Time {
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
