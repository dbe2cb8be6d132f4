package model

import (
	"errors"
	"fmt"
	"time"
)

// Reservation statuses. Only pending_payment (until ExpiresAt) and confirmed
// occupy the provider's calendar.
const (
	StatusPendingPayment = "pending_payment"
	StatusConfirmed      = "confirmed"
	StatusExpired        = "expired"
	StatusCancelled      = "cancelled"
)

var (
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrInvalidStatus         = errors.New("reservation is not in a state that allows this change")
	ErrSlotNotOffered        = errors.New("time is not an available slot for the selected date")
)

// Reservation is a committed (or provisionally held) block of a provider's day.
type Reservation struct {
	ID              string
	ProviderID      string
	RequesterID     string
	Date            time.Time // civil date, midnight in the operating location
	StartTime       string    // HH:MM
	DurationMinutes int
	Total           int64
	Status          string
	ExpiresAt       *time.Time
	PaymentSession  string
	PaymentURL      string
	CreatedAt       time.Time
}

// Blocks reports whether the reservation occupies its window at instant now.
func (r Reservation) Blocks(now time.Time) bool {
	switch r.Status {
	case StatusConfirmed:
		return true
	case StatusPendingPayment:
		return r.ExpiresAt == nil || now.Before(*r.ExpiresAt)
	default:
		return false
	}
}

// Window returns the absolute [start, end) of the session. StartTime is
// read on Date's civil day in Date's location.
func (r Reservation) Window() (time.Time, time.Time, error) {
	clock, err := time.Parse("15:04", r.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q: %w", r.StartTime, err)
	}
	start := time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), clock.Hour(), clock.Minute(), 0, 0, r.Date.Location())
	return start, start.Add(time.Duration(r.DurationMinutes) * time.Minute), nil
}

// BookingRequest is what the selection flow submits for commit.
type BookingRequest struct {
	ProviderID      string
	RequesterID     string
	Date            time.Time
	Time            string
	DurationMinutes int
	Total           int64
}

// Confirmation is returned once a provisional hold exists and payment can start.
type Confirmation struct {
	ReservationID string
	RedirectURL   string
	ExpiresAt     time.Time
}
