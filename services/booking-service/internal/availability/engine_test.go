package availability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
)

type fakeProfiles map[string]Profile

func (f fakeProfiles) Profile(_ context.Context, id string) (Profile, error) {
	p, ok := f[id]
	if !ok {
		return Profile{}, ErrProviderNotFound
	}
	return p, nil
}

type fakeBusy struct {
	intervals []BusyInterval
	err       error
	calls     int
}

func (f *fakeBusy) BusyIntervals(_ context.Context, _ string, _ time.Time) ([]BusyInterval, error) {
	f.calls++
	return f.intervals, f.err
}

func testEngine(profiles ProfileSource, busy BusySource) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(profiles, busy, holidaySet{}, logger, Config{Location: time.UTC})
}

func TestEngineSlots_Pipeline(t *testing.T) {
	profiles := fakeProfiles{"p1": {ProviderID: "p1", HourlyRate: 40000}}
	busy := &fakeBusy{intervals: []BusyInterval{{StartTime: "10:30:00", DurationMinutes: 90}}}
	engine := testEngine(profiles, busy)

	res, err := engine.Slots(context.Background(), SlotQuery{
		ProviderID:      "p1",
		Date:            time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DurationMinutes: 90,
		Now:             time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if res.Degraded {
		t.Fatalf("unexpected degraded result")
	}
	if res.Day.Kind != LegacyOpen {
		t.Fatalf("expected legacy_open, got %s", res.Day.Kind)
	}
	if res.Fee.LawyerFee != 60000 || res.Fee.ServiceFee != 6000 || res.Fee.Total != 66000 {
		t.Fatalf("unexpected fee: %+v", res.Fee)
	}
	for _, s := range res.Slots {
		blocked := s.Time == "10:30"
		if s.Available == blocked {
			t.Fatalf("slot %s: expected available=%v", s.Time, !blocked)
		}
	}
}

func TestEngineSlots_Idempotent(t *testing.T) {
	profiles := fakeProfiles{"p1": {ProviderID: "p1", HourlyRate: 40000, RawTemplate: []byte(`{"lunes":[true,true,false,true,true,true,true,true,true,true]}`)}}
	busy := &fakeBusy{intervals: []BusyInterval{{StartTime: "14:00", DurationMinutes: 60}}}
	engine := testEngine(profiles, busy)

	q := SlotQuery{
		ProviderID:      "p1",
		Date:            time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Now:             time.Date(2026, 3, 2, 11, 50, 0, 0, time.UTC),
	}
	first, err := engine.Slots(context.Background(), q)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	second, err := engine.Slots(context.Background(), q)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results\nfirst:  %+v\nsecond: %+v", first, second)
	}
	// 11:00 block is closed, 12:00 is within the lead time.
	if first.Slots[0].Time != "12:30" {
		t.Fatalf("expected first slot 12:30, got %s", first.Slots[0].Time)
	}
}

func TestEngineSlots_PartialTemplateClosesMissingDays(t *testing.T) {
	profiles := fakeProfiles{"p1": {ProviderID: "p1", HourlyRate: 1000, RawTemplate: []byte(`{"lunes":[true,true,true,true,true,true,true,true,true]}`)}}
	busy := &fakeBusy{}
	engine := testEngine(profiles, busy)

	res, err := engine.Slots(context.Background(), SlotQuery{
		ProviderID:      "p1",
		Date:            time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), // martes
		DurationMinutes: 60,
		Now:             time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if res.Day.Kind != Closed || len(res.Slots) != 0 {
		t.Fatalf("expected closed day with no slots, got %s with %d slots", res.Day.Kind, len(res.Slots))
	}
	if busy.calls != 0 {
		t.Fatalf("busy source should not be queried for a closed day")
	}
}

func TestEngineSlots_DegradedWhenBusySourceFails(t *testing.T) {
	profiles := fakeProfiles{"p1": {ProviderID: "p1", HourlyRate: 1000}}
	busy := &fakeBusy{err: errors.New("connection refused")}
	engine := testEngine(profiles, busy)

	res, err := engine.Slots(context.Background(), SlotQuery{
		ProviderID:      "p1",
		Date:            time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Now:             time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("expected fail-open, got %v", err)
	}
	if !res.Degraded || !errors.Is(res.Warning, ErrBusyQuery) {
		t.Fatalf("expected degraded result with ErrBusyQuery, got %+v", res)
	}
	if len(res.Slots) != 10 {
		t.Fatalf("expected the full grid, got %d", len(res.Slots))
	}
	for _, s := range res.Slots {
		if !s.Available {
			t.Fatalf("degraded slots are not conflict-marked, %s was", s.Time)
		}
	}
}

func TestEngineSlots_MalformedTemplateFallsBackToLegacy(t *testing.T) {
	profiles := fakeProfiles{"p1": {ProviderID: "p1", HourlyRate: 1000, RawTemplate: []byte(`{"lunes":`)}}
	engine := testEngine(profiles, &fakeBusy{})

	res, err := engine.Slots(context.Background(), SlotQuery{
		ProviderID:      "p1",
		Date:            time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Now:             time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if res.Day.Kind != LegacyOpen || len(res.Slots) == 0 {
		t.Fatalf("expected legacy schedule, got %s with %d slots", res.Day.Kind, len(res.Slots))
	}
}

func TestEngineSlots_Errors(t *testing.T) {
	engine := testEngine(fakeProfiles{"p1": {ProviderID: "p1"}}, &fakeBusy{})
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := engine.Slots(context.Background(), SlotQuery{ProviderID: "p1", Date: date, DurationMinutes: 45})
	if !errors.Is(err, model.ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	_, err = engine.Slots(context.Background(), SlotQuery{ProviderID: "missing", Date: date, DurationMinutes: 60})
	if !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestEngineSlots_DateRulesCloseDay(t *testing.T) {
	profiles := fakeProfiles{"p1": {ProviderID: "p1", HourlyRate: 1000, RawTemplate: []byte(`{"martes":[true,true],"domingo":[true,true,true]}`)}}
	busy := &fakeBusy{}
	engine := NewEngine(profiles, busy, holidaySet{"2026-03-10": true}, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Location: time.UTC})
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"holiday on an open tuesday": time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		"sunday listed in template":  time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		"before today":               time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC),
		"at the horizon":             time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for name, date := range cases {
		res, err := engine.Slots(context.Background(), SlotQuery{ProviderID: "p1", Date: date, DurationMinutes: 60, Now: now})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Day.Kind != Closed || len(res.Slots) != 0 {
			t.Fatalf("%s: expected closed day, got %s with %d slots", name, res.Day.Kind, len(res.Slots))
		}
	}
	if busy.calls != 0 {
		t.Fatalf("busy source should not be queried for closed days")
	}

	res, err := engine.Slots(context.Background(), SlotQuery{ProviderID: "p1", Date: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), DurationMinutes: 60, Now: now})
	if err != nil {
		t.Fatalf("last day in horizon: %v", err)
	}
	if len(res.Slots) != 2 {
		t.Fatalf("expected the two open hours on the last tuesday, got %+v", res.Slots)
	}
}

func TestEngineOffered(t *testing.T) {
	profiles := fakeProfiles{"p1": {ProviderID: "p1", HourlyRate: 1000, RawTemplate: []byte(`{"lunes":[true,true,true],"martes":[true]}`)}}
	busy := &fakeBusy{intervals: []BusyInterval{{StartTime: "10:00", DurationMinutes: 60}}}
	engine := NewEngine(profiles, busy, holidaySet{"2026-03-09": true}, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Location: time.UTC})
	now := time.Date(2026, 3, 2, 9, 50, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	q := func(date time.Time, duration int) SlotQuery {
		return SlotQuery{ProviderID: "p1", Date: date, DurationMinutes: duration, Now: now}
	}
	// Booked but on the grid: overlaps are left to the store.
	if err := engine.Offered(context.Background(), q(monday, 60), "11:00:00"); err != nil {
		t.Fatalf("11:00 should be offered: %v", err)
	}
	rejected := []struct {
		name  string
		query SlotQuery
		time  string
	}{
		{"inside lead time", q(monday, 30), "10:00"},
		{"closed hour", q(monday, 60), "12:00"},
		{"off grid", q(monday, 30), "10:45"},
		{"before opening", q(monday, 60), "03:17"},
		{"unparseable", q(monday, 60), "ten"},
		{"holiday", q(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), 60), "09:00"},
		{"closed day", q(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 60), "09:00"},
	}
	for _, tc := range rejected {
		if err := engine.Offered(context.Background(), tc.query, tc.time); !errors.Is(err, model.ErrSlotNotOffered) {
			t.Fatalf("%s: expected ErrSlotNotOffered, got %v", tc.name, err)
		}
	}
	if busy.calls != 0 {
		t.Fatalf("offered check must not consult bookings")
	}
	if err := engine.Offered(context.Background(), SlotQuery{ProviderID: "ghost", Date: monday, DurationMinutes: 60, Now: now}, "11:00"); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestEngineDates(t *testing.T) {
	profiles := fakeProfiles{"p1": {ProviderID: "p1", RawTemplate: []byte(`{"lunes":[true],"miércoles":[false,false]}`)}}
	engine := NewEngine(profiles, &fakeBusy{}, holidaySet{"2026-03-09": true}, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{HorizonDays: 14, Location: time.UTC})

	dates, err := engine.Dates(context.Background(), "p1", time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if len(dates) != 1 || dates[0].Format(model.DateLayout) != "2026-03-02" {
		t.Fatalf("expected only 2026-03-02, got %v", dates)
	}
}

func TestEngineFee(t *testing.T) {
	engine := testEngine(fakeProfiles{"p1": {ProviderID: "p1", HourlyRate: 40000}}, &fakeBusy{})
	fee, err := engine.Fee(context.Background(), "p1", 30)
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee.LawyerFee != 20000 || fee.ServiceFee != 2000 || fee.Total != 22000 {
		t.Fatalf("unexpected fee: %+v", fee)
	}
}
