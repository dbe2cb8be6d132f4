package availability

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// OpeningHour is the hour index 0 of every template day.
const OpeningHour = 9

var ErrTemplateParse = errors.New("malformed availability template")

// Template maps a day name to hourly open flags: Template["lunes"][i] means the
// provider takes sessions during [9+i, 10+i) on Mondays.
type Template map[string][]bool

type DayKind int

const (
	Closed DayKind = iota
	LegacyOpen
	OpenHours
)

func (k DayKind) String() string {
	switch k {
	case Closed:
		return "closed"
	case LegacyOpen:
		return "legacy_open"
	case OpenHours:
		return "open_hours"
	default:
		return fmt.Sprintf("DayKind(%d)", int(k))
	}
}

// DayAvailability is the resolved template for one day. Hours is only set
// for OpenHours.
type DayAvailability struct {
	Kind  DayKind
	Hours []bool
}

// Bookable is false for Closed days and for OpenHours with no open hour.
func (d DayAvailability) Bookable() bool {
	switch d.Kind {
	case LegacyOpen:
		return true
	case OpenHours:
		for _, open := range d.Hours {
			if open {
				return true
			}
		}
	}
	return false
}

// IsOpenAt reports whether the hour starting at hour (24h clock) is open.
func (d DayAvailability) IsOpenAt(hour int) bool {
	switch d.Kind {
	case LegacyOpen:
		return true
	case OpenHours:
		idx := hour - OpeningHour
		return idx >= 0 && idx < len(d.Hours) && d.Hours[idx]
	default:
		return false
	}
}

var dayNames = [...]string{
	time.Sunday:    "domingo",
	time.Monday:    "lunes",
	time.Tuesday:   "martes",
	time.Wednesday: "miércoles",
	time.Thursday:  "jueves",
	time.Friday:    "viernes",
	time.Saturday:  "sábado",
}

// DayName returns the template key the provider dashboard writes for wd.
func DayName(wd time.Weekday) string {
	return dayNames[wd]
}

// ResolveDay applies the three template rules:
//   - no template at all: every day but Sunday is LegacyOpen;
//   - a template without the day: Closed;
//   - otherwise OpenHours with the stored flags.
//
// Day names match ignoring case and diacritics.
func ResolveDay(t Template, day string) DayAvailability {
	want := normalizeDayName(day)
	if len(t) == 0 {
		if want == normalizeDayName(DayName(time.Sunday)) {
			return DayAvailability{Kind: Closed}
		}
		return DayAvailability{Kind: LegacyOpen}
	}

	// Sorted so duplicate keys that normalize equal resolve the same way every time.
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if normalizeDayName(k) == want {
			hours := make([]bool, len(t[k]))
			copy(hours, t[k])
			return DayAvailability{Kind: OpenHours, Hours: hours}
		}
	}
	return DayAvailability{Kind: Closed}
}

func ResolveDate(t Template, date time.Time) DayAvailability {
	return ResolveDay(t, DayName(date.Weekday()))
}

// ParseTemplate decodes the stored template. Besides the structured object it
// accepts the legacy encodings still found in older profiles: SQL NULL / empty
// text, a JSON null, and the object double-encoded as a JSON string.
func ParseTemplate(raw []byte) (Template, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == `""` {
		return Template{}, nil
	}
	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
		}
		return ParseTemplate([]byte(inner))
	}
	var t Template
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	if t == nil {
		t = Template{}
	}
	return t, nil
}

func normalizeDayName(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}
