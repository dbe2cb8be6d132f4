package availability

import (
	"errors"
	"testing"
	"time"
)

func TestResolveDay_EmptyTemplateIsLegacy(t *testing.T) {
	for _, day := range []string{"lunes", "martes", "miércoles", "jueves", "viernes", "sábado"} {
		if got := ResolveDay(Template{}, day); got.Kind != LegacyOpen {
			t.Fatalf("%s: expected legacy_open, got %s", day, got.Kind)
		}
	}
	if got := ResolveDay(nil, "domingo"); got.Kind != Closed {
		t.Fatalf("expected sunday closed, got %s", got.Kind)
	}
}

func TestResolveDay_MissingDayIsClosed(t *testing.T) {
	tmpl := Template{"lunes": {true, true, false}}
	if got := ResolveDay(tmpl, "martes"); got.Kind != Closed {
		t.Fatalf("expected closed, got %s", got.Kind)
	}
	got := ResolveDay(tmpl, "lunes")
	if got.Kind != OpenHours || len(got.Hours) != 3 || !got.Hours[0] || got.Hours[2] {
		t.Fatalf("unexpected lunes resolution: %+v", got)
	}
}

func TestResolveDay_IgnoresCaseAndDiacritics(t *testing.T) {
	tmpl := Template{"Miercoles": {true}, "SABADO": {false, true}}
	if got := ResolveDay(tmpl, "miércoles"); got.Kind != OpenHours {
		t.Fatalf("expected miercoles to match miércoles, got %s", got.Kind)
	}
	if got := ResolveDate(tmpl, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)); got.Kind != OpenHours || !got.IsOpenAt(10) {
		t.Fatalf("expected saturday open at 10, got %+v", got)
	}
}

func TestResolveDay_CopiesHours(t *testing.T) {
	tmpl := Template{"lunes": {true}}
	got := ResolveDay(tmpl, "lunes")
	got.Hours[0] = false
	if !tmpl["lunes"][0] {
		t.Fatalf("resolution must not alias the template")
	}
}

func TestDayAvailability_Bookable(t *testing.T) {
	cases := []struct {
		day  DayAvailability
		want bool
	}{
		{DayAvailability{Kind: Closed}, false},
		{DayAvailability{Kind: LegacyOpen}, true},
		{DayAvailability{Kind: OpenHours, Hours: []bool{false, false}}, false},
		{DayAvailability{Kind: OpenHours}, false},
		{DayAvailability{Kind: OpenHours, Hours: []bool{false, true}}, true},
	}
	for i, c := range cases {
		if got := c.day.Bookable(); got != c.want {
			t.Fatalf("case %d: expected %v, got %v", i, c.want, got)
		}
	}
}

func TestIsOpenAt_OutOfRange(t *testing.T) {
	d := DayAvailability{Kind: OpenHours, Hours: []bool{true, true}}
	if d.IsOpenAt(8) || d.IsOpenAt(11) {
		t.Fatalf("hours outside the flags must be closed")
	}
	if !d.IsOpenAt(9) || !d.IsOpenAt(10) {
		t.Fatalf("expected 09 and 10 open")
	}
}

func TestParseTemplate_LegacyEncodings(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", `""`, "{}"} {
		tmpl, err := ParseTemplate([]byte(raw))
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", raw, err)
		}
		if len(tmpl) != 0 {
			t.Fatalf("%q: expected empty template, got %v", raw, tmpl)
		}
	}

	tmpl, err := ParseTemplate([]byte(`"{\"lunes\":[true,false]}"`))
	if err != nil {
		t.Fatalf("double encoded: %v", err)
	}
	if len(tmpl["lunes"]) != 2 || !tmpl["lunes"][0] {
		t.Fatalf("double encoded: got %v", tmpl)
	}
}

func TestParseTemplate_Malformed(t *testing.T) {
	for _, raw := range []string{"{", "[1,2]", `{"lunes":"yes"}`, `"not json"`} {
		if _, err := ParseTemplate([]byte(raw)); !errors.Is(err, ErrTemplateParse) {
			t.Fatalf("%q: expected ErrTemplateParse, got %v", raw, err)
		}
	}
}
