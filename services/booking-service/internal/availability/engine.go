package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/pricing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	// ErrBusyQuery marks a result whose slots were not checked against bookings.
	ErrBusyQuery = errors.New("busy interval query failed")
)

var tracer = otel.Tracer("github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability")

// Profile is the read-only part of a provider profile the engine needs.
// RawTemplate is the stored template as-is; see ParseTemplate.
type Profile struct {
	ProviderID  string
	HourlyRate  int64
	RawTemplate []byte
}

type ProfileSource interface {
	Profile(ctx context.Context, providerID string) (Profile, error)
}

type BusySource interface {
	BusyIntervals(ctx context.Context, providerID string, date time.Time) ([]BusyInterval, error)
}

type Config struct {
	HorizonDays   int
	LeadTime      time.Duration
	SourceTimeout time.Duration
	Location      *time.Location
}

// Engine computes bookable dates and slots. It keeps no per-provider state:
// every call fetches the profile and busy intervals it needs.
type Engine struct {
	profiles ProfileSource
	busy     BusySource
	holidays HolidayChecker
	logger   *slog.Logger
	cfg      Config
}

func NewEngine(profiles ProfileSource, busy BusySource, holidays HolidayChecker, logger *slog.Logger, cfg Config) *Engine {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = DefaultLeadTime
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 3 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Engine{profiles: profiles, busy: busy, holidays: holidays, logger: logger, cfg: cfg}
}

func (e *Engine) Location() *time.Location { return e.cfg.Location }

type SlotQuery struct {
	ProviderID      string
	Date            time.Time
	DurationMinutes int
	Now             time.Time
}

type SlotResult struct {
	ProviderID      string
	Date            time.Time
	DurationMinutes int
	Day             DayAvailability
	Slots           []CandidateSlot
	Fee             pricing.Fee
	// Degraded is set when busy intervals could not be loaded and the slots
	// were not checked against existing bookings. Warning holds the cause.
	Degraded bool
	Warning  error
}

// Slots runs generate, template, conflicts and lead time for one date.
func (e *Engine) Slots(ctx context.Context, q SlotQuery) (SlotResult, error) {
	if err := model.ValidateDuration(q.DurationMinutes); err != nil {
		return SlotResult{}, err
	}
	date := model.Midnight(q.Date, e.cfg.Location)

	ctx, span := tracer.Start(ctx, "availability.Slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", q.ProviderID),
		attribute.String("date", date.Format(model.DateLayout)),
		attribute.Int("duration_minutes", q.DurationMinutes),
	)

	profile, tmpl, err := e.loadProfile(ctx, q.ProviderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile lookup failed")
		return SlotResult{}, err
	}
	fee, err := pricing.ComputeFee(profile.HourlyRate, q.DurationMinutes)
	if err != nil {
		return SlotResult{}, err
	}

	day := e.resolveDay(tmpl, date, q.Now)
	res := SlotResult{
		ProviderID:      q.ProviderID,
		Date:            date,
		DurationMinutes: q.DurationMinutes,
		Day:             day,
		Fee:             fee,
	}

	slots := ApplyTemplate(GenerateSlots(date, q.DurationMinutes), day)
	if len(slots) > 0 {
		busy, err := e.fetchBusy(ctx, q.ProviderID, date)
		if err != nil {
			e.logger.Warn("busy interval query failed; serving unverified slots",
				"provider_id", q.ProviderID,
				"date", date.Format(model.DateLayout),
				"err", err,
			)
			res.Degraded = true
			res.Warning = fmt.Errorf("%w: %v", ErrBusyQuery, err)
		} else {
			var skipped []BusyInterval
			slots, skipped = ApplyBusyIntervals(slots, busy, q.DurationMinutes)
			for _, b := range skipped {
				e.logger.Warn("ignoring unparseable busy interval",
					"provider_id", q.ProviderID,
					"start_time", b.StartTime,
					"duration_minutes", b.DurationMinutes,
				)
			}
		}
	}
	res.Slots = ApplyLeadTime(slots, date, q.Now, e.cfg.LeadTime)
	span.SetAttributes(attribute.Int("slots", len(res.Slots)), attribute.Bool("degraded", res.Degraded))
	return res, nil
}

// Offered checks that startTime is on the grid Slots would serve for q:
// the date rules, the template and the lead time all apply. Existing
// bookings are not consulted; overlaps are rejected when the hold is written.
func (e *Engine) Offered(ctx context.Context, q SlotQuery, startTime string) error {
	if err := model.ValidateDuration(q.DurationMinutes); err != nil {
		return err
	}
	date := model.Midnight(q.Date, e.cfg.Location)
	hhmm, err := ParseHHMM(startTime)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrSlotNotOffered, err)
	}
	want := formatMinute(hhmm/100*60 + hhmm%100)

	_, tmpl, err := e.loadProfile(ctx, q.ProviderID)
	if err != nil {
		return err
	}
	day := e.resolveDay(tmpl, date, q.Now)
	slots := ApplyLeadTime(ApplyTemplate(GenerateSlots(date, q.DurationMinutes), day), date, q.Now, e.cfg.LeadTime)
	for _, s := range slots {
		if s.Time == want {
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", model.ErrSlotNotOffered, want, date.Format(model.DateLayout))
}

// resolveDay is ResolveDate with the calendar rules on top: Sundays,
// holidays and dates outside [today, today+horizon) are Closed.
func (e *Engine) resolveDay(tmpl Template, date, now time.Time) DayAvailability {
	today := model.Midnight(now, e.cfg.Location)
	if !withinHorizon(date, today, e.cfg.HorizonDays) || !openDate(date, tmpl, e.holidays) {
		return DayAvailability{Kind: Closed}
	}
	return ResolveDate(tmpl, date)
}

// Dates lists the bookable dates for the provider starting on now's civil date.
func (e *Engine) Dates(ctx context.Context, providerID string, now time.Time) ([]time.Time, error) {
	ctx, span := tracer.Start(ctx, "availability.Dates")
	defer span.End()
	span.SetAttributes(attribute.String("provider_id", providerID))

	_, tmpl, err := e.loadProfile(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile lookup failed")
		return nil, err
	}
	return EnumerateDates(e.cfg.HorizonDays, model.Midnight(now, e.cfg.Location), tmpl, e.holidays), nil
}

// Fee prices a session for the provider.
func (e *Engine) Fee(ctx context.Context, providerID string, durationMinutes int) (pricing.Fee, error) {
	if err := model.ValidateDuration(durationMinutes); err != nil {
		return pricing.Fee{}, err
	}
	profile, _, err := e.loadProfile(ctx, providerID)
	if err != nil {
		return pricing.Fee{}, err
	}
	return pricing.ComputeFee(profile.HourlyRate, durationMinutes)
}

// loadProfile fetches the profile and parses its template. A malformed
// template is logged and treated as absent, which opens the legacy schedule.
func (e *Engine) loadProfile(ctx context.Context, providerID string) (Profile, Template, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SourceTimeout)
	defer cancel()

	profile, err := e.profiles.Profile(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return Profile{}, nil, err
		}
		return Profile{}, nil, fmt.Errorf("load provider profile: %w", err)
	}
	tmpl, err := ParseTemplate(profile.RawTemplate)
	if err != nil {
		e.logger.Warn("availability template unreadable; using legacy schedule",
			"provider_id", providerID,
			"err", err,
		)
		tmpl = Template{}
	}
	return profile, tmpl, nil
}

func (e *Engine) fetchBusy(ctx context.Context, providerID string, date time.Time) ([]BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SourceTimeout)
	defer cancel()
	return e.busy.BusyIntervals(ctx, providerID, date)
}
