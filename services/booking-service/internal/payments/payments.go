// Package payments starts checkouts for provisional holds and turns provider
// webhooks into completion/expiry notifications.
package payments

import (
	"errors"
	"time"
)

var (
	ErrNotConfigured    = errors.New("payment provider not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type CheckoutRequest struct {
	ReservationID string
	RequesterID   string
	Description   string
	Amount        int64 // whole currency units
	ExpiresAt     time.Time
}

type Checkout struct {
	SessionID string
	URL       string
}

type EventKind int

const (
	EventIgnored EventKind = iota
	EventCompleted
	EventExpired
)

// Event is a verified webhook reduced to what the reservation flow acts on.
type Event struct {
	ID            string
	Kind          EventKind
	Type          string
	SessionID     string
	ReservationID string
}
