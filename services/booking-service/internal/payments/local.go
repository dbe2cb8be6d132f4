package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// LocalGateway stands in for Stripe in development. Sessions are completed
// or expired by posting {"type": "...", "session_id": "..."} to the local
// webhook route.
type LocalGateway struct {
	baseURL string

	mu       sync.Mutex
	sessions map[string]string // session id -> reservation id
	expired  map[string]bool
}

func NewLocalGateway(baseURL string) *LocalGateway {
	return &LocalGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: make(map[string]string),
		expired:  make(map[string]bool),
	}
}

func (g *LocalGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (Checkout, error) {
	id := "local_" + uuid.NewString()
	g.mu.Lock()
	g.sessions[id] = req.ReservationID
	g.mu.Unlock()
	return Checkout{
		SessionID: id,
		URL:       fmt.Sprintf("%s/checkout/%s?reservation_id=%s", g.baseURL, id, req.ReservationID),
	}, nil
}

func (g *LocalGateway) ExpireCheckout(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[sessionID]; !ok {
		return fmt.Errorf("unknown checkout session %q", sessionID)
	}
	g.expired[sessionID] = true
	return nil
}

type localWebhook struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ParseWebhook accepts unsigned local events for sessions this gateway created.
func (g *LocalGateway) ParseWebhook(body []byte, _ string) (Event, error) {
	var in localWebhook
	if err := json.Unmarshal(body, &in); err != nil {
		return Event{}, fmt.Errorf("invalid local webhook: %w", err)
	}
	g.mu.Lock()
	reservationID, ok := g.sessions[in.SessionID]
	expired := g.expired[in.SessionID]
	g.mu.Unlock()
	if !ok {
		return Event{}, fmt.Errorf("%w: unknown session %q", ErrInvalidSignature, in.SessionID)
	}

	out := Event{ID: "local_evt_" + uuid.NewString(), Type: in.Type, SessionID: in.SessionID, ReservationID: reservationID}
	switch in.Type {
	case "checkout.session.completed":
		if !expired {
			out.Kind = EventCompleted
		}
	case "checkout.session.expired":
		out.Kind = EventExpired
	}
	return out, nil
}
