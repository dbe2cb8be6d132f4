// Package booking drives one requester through picking a date and time,
// confirming, and paying for a session with a provider.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/pricing"
)

var (
	ErrInvalidTransition = errors.New("invalid booking state transition")
	ErrSlotNotOffered    = model.ErrSlotNotOffered
	ErrSessionNotFound   = errors.New("booking session not found")
	ErrBookingCreation   = errors.New("booking could not be created")
	ErrMissingParty      = errors.New("provider and requester are required")
)

type State string

const (
	StateSelecting  State = "selecting"
	StateConfirming State = "confirming"
	StateRedirected State = "redirected"
	StatePaid       State = "paid"
	StateExpired    State = "expired"
	StateCancelled  State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StatePaid || s == StateExpired || s == StateCancelled
}

// Session is the persisted selection state. Slots is the list shown for
// Date; a time can only be chosen from it.
type Session struct {
	ID              string                       `json:"id"`
	ProviderID      string                       `json:"provider_id"`
	RequesterID     string                       `json:"requester_id"`
	DurationMinutes int                          `json:"duration_minutes"`
	State           State                        `json:"state"`
	Date            string                       `json:"date,omitempty"`
	Time            string                       `json:"time,omitempty"`
	Slots           []availability.CandidateSlot `json:"slots,omitempty"`
	Degraded        bool                         `json:"degraded,omitempty"`
	Fee             pricing.Fee                  `json:"fee"`
	ReservationID   string                       `json:"reservation_id,omitempty"`
	RedirectURL     string                       `json:"redirect_url,omitempty"`
	HoldExpiresAt   *time.Time                   `json:"hold_expires_at,omitempty"`
	LastError       string                       `json:"last_error,omitempty"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

func (s *Session) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.State)
}

// SelectDate stores the freshly computed slots for a date and clears any
// previously chosen time.
func (s *Session) SelectDate(res availability.SlotResult) error {
	if s.State != StateSelecting {
		return s.transitionError("select a date")
	}
	s.Date = res.Date.Format(model.DateLayout)
	s.Time = ""
	s.Slots = res.Slots
	s.Degraded = res.Degraded
	s.Fee = res.Fee
	s.LastError = ""
	return nil
}

func (s *Session) SelectTime(t string) error {
	if s.State != StateSelecting {
		return s.transitionError("select a time")
	}
	if s.Date == "" {
		return fmt.Errorf("%w: select a date first", ErrInvalidTransition)
	}
	for _, slot := range s.Slots {
		if slot.Time == t && slot.Available {
			s.Time = t
			s.LastError = ""
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrSlotNotOffered, t, s.Date)
}

// BeginConfirm locks the selection while the hold is being placed.
func (s *Session) BeginConfirm() error {
	if s.State != StateSelecting {
		return s.transitionError("confirm")
	}
	if s.Date == "" || s.Time == "" {
		return fmt.Errorf("%w: date and time must be selected before confirming", ErrInvalidTransition)
	}
	s.State = StateConfirming
	return nil
}

func (s *Session) CompleteConfirm(c model.Confirmation) error {
	if s.State != StateConfirming {
		return s.transitionError("complete confirmation")
	}
	expires := c.ExpiresAt
	s.State = StateRedirected
	s.ReservationID = c.ReservationID
	s.RedirectURL = c.RedirectURL
	s.HoldExpiresAt = &expires
	s.LastError = ""
	return nil
}

// FailConfirm returns to selection with the time cleared so the requester
// picks again from refreshed slots.
func (s *Session) FailConfirm(cause error) error {
	if s.State != StateConfirming {
		return s.transitionError("fail confirmation")
	}
	s.State = StateSelecting
	s.Time = ""
	if cause != nil {
		s.LastError = cause.Error()
	}
	return nil
}

func (s *Session) MarkPaid() error {
	if s.State != StateRedirected {
		return s.transitionError("mark paid")
	}
	s.State = StatePaid
	s.HoldExpiresAt = nil
	return nil
}

func (s *Session) MarkExpired() error {
	if s.State != StateRedirected {
		return s.transitionError("mark expired")
	}
	s.State = StateExpired
	return nil
}

func (s *Session) Cancel() error {
	if s.State.Terminal() {
		return s.transitionError("cancel")
	}
	s.State = StateCancelled
	return nil
}
