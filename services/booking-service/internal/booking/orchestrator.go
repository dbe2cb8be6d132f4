package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/pricing"
)

// SlotFinder is satisfied by *availability.Engine.
type SlotFinder interface {
	Slots(ctx context.Context, q availability.SlotQuery) (availability.SlotResult, error)
	Fee(ctx context.Context, providerID string, durationMinutes int) (pricing.Fee, error)
	Location() *time.Location
}

// Creator commits a selection as a provisional hold and returns where to pay.
type Creator interface {
	Create(ctx context.Context, req model.BookingRequest) (model.Confirmation, error)
}

// Reservations reports on and cancels holds created for sessions.
type Reservations interface {
	Get(ctx context.Context, id string) (model.Reservation, error)
	Cancel(ctx context.Context, id, requesterID string) (model.Reservation, error)
}

type Orchestrator struct {
	slots        SlotFinder
	creator      Creator
	reservations Reservations
	store        Store
	locker       Locker
	logger       *slog.Logger
	lockTTL      time.Duration
	now          func() time.Time
}

func NewOrchestrator(slots SlotFinder, creator Creator, reservations Reservations, store Store, locker Locker, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		slots:        slots,
		creator:      creator,
		reservations: reservations,
		store:        store,
		locker:       locker,
		logger:       logger,
		lockTTL:      30 * time.Second,
		now:          time.Now,
	}
}

// Start opens a selection for a provider and duration. The fee is priced up
// front so an unknown provider or invalid duration fails here.
func (o *Orchestrator) Start(ctx context.Context, providerID, requesterID string, durationMinutes int) (*Session, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" || strings.TrimSpace(requesterID) == "" {
		return nil, ErrMissingParty
	}
	fee, err := o.slots.Fee(ctx, providerID, durationMinutes)
	if err != nil {
		return nil, err
	}
	now := o.now()
	s := &Session{
		ID:              uuid.NewString(),
		ProviderID:      providerID,
		RequesterID:     requesterID,
		DurationMinutes: durationMinutes,
		State:           StateSelecting,
		Fee:             fee,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (o *Orchestrator) SelectDate(ctx context.Context, id, requesterID string, date time.Time) (*Session, error) {
	return o.mutate(ctx, id, requesterID, func(s *Session) error {
		if s.State != StateSelecting {
			return s.transitionError("select a date")
		}
		res, err := o.slots.Slots(ctx, availability.SlotQuery{
			ProviderID:      s.ProviderID,
			Date:            date,
			DurationMinutes: s.DurationMinutes,
			Now:             o.now(),
		})
		if err != nil {
			return err
		}
		return s.SelectDate(res)
	})
}

func (o *Orchestrator) SelectTime(ctx context.Context, id, requesterID, t string) (*Session, error) {
	return o.mutate(ctx, id, requesterID, func(s *Session) error {
		return s.SelectTime(t)
	})
}

// Confirm submits the selection. On failure the session is back in
// selecting with the time cleared and the slots refreshed.
func (o *Orchestrator) Confirm(ctx context.Context, id, requesterID string) (*Session, error) {
	var confirmErr error
	s, err := o.mutate(ctx, id, requesterID, func(s *Session) error {
		date, err := model.ParseDate(s.Date, o.slots.Location())
		if err != nil && s.Date != "" {
			return err
		}
		if err := s.BeginConfirm(); err != nil {
			return err
		}
		if err := o.store.Save(ctx, s); err != nil {
			return err
		}

		conf, err := o.commit(ctx, s, date)
		if err == nil {
			return s.CompleteConfirm(conf)
		}

		confirmErr = err
		if !errors.Is(err, model.ErrSlotNoLongerAvailable) && !errors.Is(err, model.ErrSlotNotOffered) {
			confirmErr = fmt.Errorf("%w: %w", ErrBookingCreation, err)
		}
		o.logger.Warn("booking confirmation failed",
			"session_id", s.ID,
			"provider_id", s.ProviderID,
			"date", s.Date,
			"time", s.Time,
			"err", err,
		)
		if err := s.FailConfirm(confirmErr); err != nil {
			return err
		}
		if res, err := o.slots.Slots(ctx, availability.SlotQuery{
			ProviderID:      s.ProviderID,
			Date:            date,
			DurationMinutes: s.DurationMinutes,
			Now:             o.now(),
		}); err == nil {
			_ = s.SelectDate(res)
			s.LastError = confirmErr.Error()
		}
		return nil
	})
	if err != nil {
		return s, err
	}
	return s, confirmErr
}

// commit prices the session from the provider's current rate and places the
// hold. The creator checks the time against the live grid again.
func (o *Orchestrator) commit(ctx context.Context, s *Session, date time.Time) (model.Confirmation, error) {
	fee, err := o.slots.Fee(ctx, s.ProviderID, s.DurationMinutes)
	if err != nil {
		return model.Confirmation{}, fmt.Errorf("price session: %w", err)
	}
	s.Fee = fee
	return o.creator.Create(ctx, model.BookingRequest{
		ProviderID:      s.ProviderID,
		RequesterID:     s.RequesterID,
		Date:            date,
		Time:            s.Time,
		DurationMinutes: s.DurationMinutes,
		Total:           fee.Total,
	})
}

// Get returns the session, first settling a redirected session whose hold
// has been paid, has lapsed, or was cancelled.
func (o *Orchestrator) Get(ctx context.Context, id, requesterID string) (*Session, error) {
	s, err := o.load(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	if s.State != StateRedirected {
		return s, nil
	}
	return o.mutate(ctx, id, requesterID, func(s *Session) error {
		if s.State != StateRedirected {
			return nil
		}
		r, err := o.reservations.Get(ctx, s.ReservationID)
		if err != nil {
			return err
		}
		switch r.Status {
		case model.StatusConfirmed:
			return s.MarkPaid()
		case model.StatusExpired:
			return s.MarkExpired()
		case model.StatusCancelled:
			return s.Cancel()
		}
		return nil
	})
}

// Cancel abandons the session, releasing its hold if one was placed.
func (o *Orchestrator) Cancel(ctx context.Context, id, requesterID string) (*Session, error) {
	return o.mutate(ctx, id, requesterID, func(s *Session) error {
		if s.State == StateRedirected && s.ReservationID != "" {
			r, err := o.reservations.Cancel(ctx, s.ReservationID, s.RequesterID)
			switch {
			case errors.Is(err, model.ErrInvalidStatus):
				// Paid or lapsed in the meantime; report that instead.
				current, getErr := o.reservations.Get(ctx, s.ReservationID)
				if getErr != nil {
					return getErr
				}
				if current.Status == model.StatusConfirmed {
					_ = s.MarkPaid()
					return fmt.Errorf("%w: session already paid", ErrInvalidTransition)
				}
				return s.MarkExpired()
			case err != nil:
				return err
			}
			o.logger.Info("hold cancelled", "session_id", s.ID, "reservation_id", r.ID)
		}
		return s.Cancel()
	})
}

func (o *Orchestrator) load(ctx context.Context, id, requesterID string) (*Session, error) {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Sessions of other requesters are indistinguishable from missing ones.
	if s.RequesterID != requesterID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// mutate runs fn on the session under the session lock and saves the result,
// including when fn fails after changing state.
func (o *Orchestrator) mutate(ctx context.Context, id, requesterID string, fn func(*Session) error) (*Session, error) {
	token, ok, err := o.locker.TryLock(ctx, id, o.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionBusy
	}
	defer func() {
		if err := o.locker.Unlock(context.WithoutCancel(ctx), id, token); err != nil {
			o.logger.Warn("session unlock failed", "session_id", id, "err", err)
		}
	}()

	s, err := o.load(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	before := *s
	fnErr := fn(s)
	if fnErr != nil && s.State == before.State && s.Time == before.Time && s.Date == before.Date {
		return s, fnErr
	}
	s.UpdatedAt = o.now()
	if err := o.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, fnErr
}
