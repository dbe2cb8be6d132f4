// Package reservations commits booking requests as provisional holds, starts
// payment for them, and settles them when payment completes or lapses.
package reservations

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
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/payments"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrInvalidRequest     = errors.New("invalid booking request")
	ErrPaymentUnavailable = errors.New("payment provider unavailable")
)

// DefaultHoldTTL bounds how long an unpaid hold blocks the provider's calendar.
const DefaultHoldTTL = 30 * time.Minute

var tracer = otel.Tracer("github.com/md-rashed-zaman/lexbook/services/booking-service/internal/reservations")

// Store persists reservations. Implementations must reject, with
// model.ErrSlotNoLongerAvailable, a hold that overlaps a confirmed reservation
// or a pending hold that has not expired, and must do so atomically.
type Store interface {
	CreateHold(ctx context.Context, r model.Reservation) (model.Reservation, error)
	AttachPayment(ctx context.Context, id, sessionID, url string) error
	Get(ctx context.Context, id string) (model.Reservation, error)
	GetByPaymentSession(ctx context.Context, sessionID string) (model.Reservation, error)
	Confirm(ctx context.Context, id string) (model.Reservation, error)
	Release(ctx context.Context, id, status string) (model.Reservation, error)
	RecordEvent(ctx context.Context, evt outbox.Event) error
}

type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (payments.Checkout, error)
	ExpireCheckout(ctx context.Context, sessionID string) error
}

// SlotVerifier is satisfied by availability.Engine. It answers
// model.ErrSlotNotOffered for a start time the provider does not offer.
type SlotVerifier interface {
	Offered(ctx context.Context, q availability.SlotQuery, startTime string) error
}

type Config struct {
	HoldTTL  time.Duration
	Location *time.Location
	// Slots, when set, gates every hold on the provider's offered grid.
	Slots SlotVerifier
}

type Service struct {
	store    Store
	payments PaymentGateway
	slots    SlotVerifier
	logger   *slog.Logger
	holdTTL  time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewService(store Store, gateway PaymentGateway, logger *slog.Logger, cfg Config) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		store:    store,
		payments: gateway,
		slots:    cfg.Slots,
		logger:   logger,
		holdTTL:  cfg.HoldTTL,
		loc:      cfg.Location,
		now:      time.Now,
	}
}

// Create places a provisional hold for req and starts its checkout. Of two
// concurrent requests for overlapping windows exactly one succeeds; the other
// gets model.ErrSlotNoLongerAvailable.
func (s *Service) Create(ctx context.Context, req model.BookingRequest) (model.Confirmation, error) {
	ctx, span := tracer.Start(ctx, "reservations.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", req.ProviderID),
		attribute.String("time", req.Time),
		attribute.Int("duration_minutes", req.DurationMinutes),
	)

	hold, err := s.newHold(req)
	if err != nil {
		return model.Confirmation{}, err
	}
	if s.slots != nil {
		q := availability.SlotQuery{
			ProviderID:      hold.ProviderID,
			Date:            hold.Date,
			DurationMinutes: hold.DurationMinutes,
			Now:             hold.CreatedAt,
		}
		if err := s.slots.Offered(ctx, q, hold.StartTime); err != nil {
			return model.Confirmation{}, err
		}
	}

	hold, err = s.store.CreateHold(ctx, hold)
	if err != nil {
		if errors.Is(err, model.ErrSlotNoLongerAvailable) {
			s.logger.Info("hold rejected: window taken",
				"provider_id", req.ProviderID,
				"date", req.Date.Format(model.DateLayout),
				"time", req.Time,
			)
			return model.Confirmation{}, err
		}
		return model.Confirmation{}, fmt.Errorf("create hold: %w", err)
	}

	checkout, err := s.payments.CreateCheckout(ctx, payments.CheckoutRequest{
		ReservationID: hold.ID,
		RequesterID:   hold.RequesterID,
		Description:   fmt.Sprintf("Consulta de %d minutos, %s %s", hold.DurationMinutes, hold.Date.Format(model.DateLayout), hold.StartTime),
		Amount:        hold.Total,
		ExpiresAt:     *hold.ExpiresAt,
	})
	if err != nil {
		s.logger.Error("checkout create failed; releasing hold", "reservation_id", hold.ID, "err", err)
		if _, relErr := s.store.Release(ctx, hold.ID, model.StatusCancelled); relErr != nil {
			s.logger.Error("hold release failed", "reservation_id", hold.ID, "err", relErr)
		}
		return model.Confirmation{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
	if err := s.store.AttachPayment(ctx, hold.ID, checkout.SessionID, checkout.URL); err != nil {
		s.logger.Error("attach payment session failed; releasing hold", "reservation_id", hold.ID, "err", err)
		if _, relErr := s.store.Release(ctx, hold.ID, model.StatusCancelled); relErr != nil {
			s.logger.Error("hold release failed", "reservation_id", hold.ID, "err", relErr)
		}
		if expErr := s.payments.ExpireCheckout(ctx, checkout.SessionID); expErr != nil {
			s.logger.Error("checkout expire failed", "reservation_id", hold.ID, "payment_session", checkout.SessionID, "err", expErr)
		}
		return model.Confirmation{}, fmt.Errorf("attach payment session: %w", err)
	}

	s.logger.Info("hold created",
		"reservation_id", hold.ID,
		"provider_id", hold.ProviderID,
		"date", hold.Date.Format(model.DateLayout),
		"time", hold.StartTime,
		"expires_at", hold.ExpiresAt.UTC().Format(time.RFC3339),
	)
	return model.Confirmation{
		ReservationID: hold.ID,
		RedirectURL:   checkout.URL,
		ExpiresAt:     *hold.ExpiresAt,
	}, nil
}

func (s *Service) newHold(req model.BookingRequest) (model.Reservation, error) {
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.RequesterID = strings.TrimSpace(req.RequesterID)
	if req.ProviderID == "" || req.RequesterID == "" {
		return model.Reservation{}, fmt.Errorf("%w: provider_id and requester_id are required", ErrInvalidRequest)
	}
	if err := model.ValidateDuration(req.DurationMinutes); err != nil {
		return model.Reservation{}, err
	}
	if req.Date.IsZero() {
		return model.Reservation{}, fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if req.Total <= 0 {
		return model.Reservation{}, fmt.Errorf("%w: total must be positive", ErrInvalidRequest)
	}

	now := s.now()
	expires := now.Add(s.holdTTL)
	r := model.Reservation{
		ID:              uuid.NewString(),
		ProviderID:      req.ProviderID,
		RequesterID:     req.RequesterID,
		Date:            model.Midnight(req.Date, s.loc),
		StartTime:       req.Time,
		DurationMinutes: req.DurationMinutes,
		Total:           req.Total,
		Status:          model.StatusPendingPayment,
		ExpiresAt:       &expires,
		CreatedAt:       now,
	}
	start, _, err := r.Window()
	if err != nil {
		return model.Reservation{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !start.After(now) {
		return model.Reservation{}, fmt.Errorf("%w: session start %s is in the past", ErrInvalidRequest, start.Format(time.RFC3339))
	}
	r.StartTime = start.Format("15:04")
	return r, nil
}

// ConfirmPayment settles the hold behind a completed checkout. A payment that
// arrives after its hold lapsed still confirms when the window is free;
// otherwise the payment is recorded as orphaned for refund.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID string) (model.Reservation, error) {
	r, err := s.store.GetByPaymentSession(ctx, sessionID)
	if err != nil {
		return model.Reservation{}, err
	}
	confirmed, err := s.store.Confirm(ctx, r.ID)
	if err == nil {
		s.logger.Info("reservation confirmed", "reservation_id", r.ID, "provider_id", r.ProviderID)
		return confirmed, nil
	}
	if errors.Is(err, model.ErrSlotNoLongerAvailable) || errors.Is(err, model.ErrInvalidStatus) {
		s.logger.Warn("payment completed for a hold that cannot be confirmed",
			"reservation_id", r.ID,
			"payment_session", sessionID,
			"status", r.Status,
			"err", err,
		)
		evt, evtErr := outbox.ReservationEvent(outbox.TypePaymentOrphaned, r, s.now())
		if evtErr == nil {
			evtErr = s.store.RecordEvent(ctx, evt)
		}
		if evtErr != nil {
			return model.Reservation{}, fmt.Errorf("record orphaned payment: %w", evtErr)
		}
	}
	return model.Reservation{}, err
}

// ExpirePayment releases the hold behind a checkout that lapsed unpaid.
func (s *Service) ExpirePayment(ctx context.Context, sessionID string) (model.Reservation, error) {
	r, err := s.store.GetByPaymentSession(ctx, sessionID)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.Status != model.StatusPendingPayment {
		return r, nil
	}
	return s.store.Release(ctx, r.ID, model.StatusExpired)
}

// Cancel releases a pending hold owned by requesterID and closes its checkout.
func (s *Service) Cancel(ctx context.Context, id, requesterID string) (model.Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if requesterID != "" && r.RequesterID != requesterID {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	released, err := s.store.Release(ctx, id, model.StatusCancelled)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.PaymentSession != "" {
		if err := s.payments.ExpireCheckout(ctx, r.PaymentSession); err != nil {
			s.logger.Warn("checkout expire failed", "reservation_id", id, "payment_session", r.PaymentSession, "err", err)
		}
	}
	return released, nil
}

// Get returns the reservation with lapsed holds reported as expired.
func (s *Service) Get(ctx context.Context, id string) (model.Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if r.Status == model.StatusPendingPayment && !r.Blocks(s.now()) {
		r.Status = model.StatusExpired
	}
	return r, nil
}
