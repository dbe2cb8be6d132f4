package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
)

// Topic names. The Kafka topic equals the event type.
const (
	TypeHoldCreated     = "booking.hold.created.v1"
	TypeHoldExpired     = "booking.hold.expired.v1"
	TypeHoldCancelled   = "booking.hold.cancelled.v1"
	TypeConfirmed       = "booking.confirmed.v1"
	TypePaymentOrphaned = "booking.payment.orphaned.v1"
)

const aggregateReservation = "reservation"

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type reservationPayload struct {
	ReservationID   string     `json:"reservation_id"`
	ProviderID      string     `json:"provider_id"`
	RequesterID     string     `json:"requester_id"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Total           int64      `json:"total"`
	Status          string     `json:"status"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	PaymentSession  string     `json:"payment_session,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

// ReservationEvent snapshots r into an event keyed by the reservation id, so
// all events of one reservation land on the same partition.
func ReservationEvent(eventType string, r model.Reservation, occurredAt time.Time) (Event, error) {
	payload, err := json.Marshal(reservationPayload{
		ReservationID:   r.ID,
		ProviderID:      r.ProviderID,
		RequesterID:     r.RequesterID,
		Date:            r.Date.Format(model.DateLayout),
		StartTime:       r.StartTime,
		DurationMinutes: r.DurationMinutes,
		Total:           r.Total,
		Status:          r.Status,
		ExpiresAt:       r.ExpiresAt,
		PaymentSession:  r.PaymentSession,
		OccurredAt:      occurredAt.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateReservation,
		AggregateID:   r.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
