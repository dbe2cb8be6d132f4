package reservations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/outbox"
)

// MemoryStore keeps reservations in process. A single mutex serializes the
// overlap check with the insert, which is what the exclusion constraint does
// in Postgres.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*model.Reservation
	events []outbox.Event
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*model.Reservation), now: time.Now}
}

func (m *MemoryStore) CreateHold(_ context.Context, r model.Reservation) (model.Reservation, error) {
	start, end, err := r.Window()
	if err != nil {
		return model.Reservation{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.expireLocked(now, r.ProviderID)
	if m.overlapsLocked(r.ProviderID, "", start, end, now) {
		return model.Reservation{}, model.ErrSlotNoLongerAvailable
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	stored := r
	m.byID[r.ID] = &stored
	m.recordLocked(outbox.TypeHoldCreated, stored, now)
	return stored, nil
}

func (m *MemoryStore) AttachPayment(_ context.Context, id, sessionID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return model.ErrReservationNotFound
	}
	r.PaymentSession = sessionID
	r.PaymentURL = url
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	return *r, nil
}

func (m *MemoryStore) GetByPaymentSession(_ context.Context, sessionID string) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byID {
		if sessionID != "" && r.PaymentSession == sessionID {
			return *r, nil
		}
	}
	return model.Reservation{}, model.ErrReservationNotFound
}

func (m *MemoryStore) Confirm(_ context.Context, id string) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	now := m.now()
	switch r.Status {
	case model.StatusConfirmed:
		return *r, nil
	case model.StatusCancelled:
		return model.Reservation{}, model.ErrInvalidStatus
	case model.StatusExpired:
		start, end, err := r.Window()
		if err != nil {
			return model.Reservation{}, err
		}
		if m.overlapsLocked(r.ProviderID, r.ID, start, end, now) {
			return model.Reservation{}, model.ErrSlotNoLongerAvailable
		}
	}
	r.Status = model.StatusConfirmed
	r.ExpiresAt = nil
	m.recordLocked(outbox.TypeConfirmed, *r, now)
	return *r, nil
}

func (m *MemoryStore) Release(_ context.Context, id, status string) (model.Reservation, error) {
	if !releasable(status) {
		return model.Reservation{}, model.ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return model.Reservation{}, model.ErrReservationNotFound
	}
	if r.Status == status {
		return *r, nil
	}
	if r.Status != model.StatusPendingPayment {
		return model.Reservation{}, model.ErrInvalidStatus
	}
	r.Status = status
	m.recordLocked(releaseEventType(status), *r, m.now())
	return *r, nil
}

func (m *MemoryStore) RecordEvent(_ context.Context, evt outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

// ExpireDue flips up to limit lapsed holds to expired, oldest first.
func (m *MemoryStore) ExpireDue(_ context.Context, limit int) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	var due []*model.Reservation
	for _, r := range m.byID {
		if r.Status == model.StatusPendingPayment && !r.Blocks(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(*due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]model.Reservation, 0, len(due))
	for _, r := range due {
		r.Status = model.StatusExpired
		m.recordLocked(outbox.TypeHoldExpired, *r, now)
		out = append(out, *r)
	}
	return out, nil
}

// BusyIntervals lists the windows blocking the provider's calendar on date.
func (m *MemoryStore) BusyIntervals(_ context.Context, providerID string, date time.Time) ([]availability.BusyInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	var out []availability.BusyInterval
	for _, r := range m.byID {
		if r.ProviderID != providerID || !model.SameDay(r.Date, date) || !r.Blocks(now) {
			continue
		}
		out = append(out, availability.BusyInterval{StartTime: r.StartTime, DurationMinutes: r.DurationMinutes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

// Events returns the outbox events recorded so far.
func (m *MemoryStore) Events() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbox.Event(nil), m.events...)
}

func (m *MemoryStore) expireLocked(now time.Time, providerID string) {
	for _, r := range m.byID {
		if r.ProviderID == providerID && r.Status == model.StatusPendingPayment && !r.Blocks(now) {
			r.Status = model.StatusExpired
			m.recordLocked(outbox.TypeHoldExpired, *r, now)
		}
	}
}

func (m *MemoryStore) overlapsLocked(providerID, exceptID string, start, end, now time.Time) bool {
	for _, other := range m.byID {
		if other.ID == exceptID || other.ProviderID != providerID || !other.Blocks(now) {
			continue
		}
		otherStart, otherEnd, err := other.Window()
		if err != nil {
			continue
		}
		if start.Before(otherEnd) && end.After(otherStart) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) recordLocked(eventType string, r model.Reservation, now time.Time) {
	evt, err := outbox.ReservationEvent(eventType, r, now)
	if err != nil {
		return
	}
	m.events = append(m.events, evt)
}

func releasable(status string) bool {
	return status == model.StatusExpired || status == model.StatusCancelled
}

func releaseEventType(status string) string {
	if status == model.StatusCancelled {
		return outbox.TypeHoldCancelled
	}
	return outbox.TypeHoldExpired
}
