package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Stripe only accepts checkout expirations between 30 minutes and 24 hours out.
const (
	minCheckoutTTL = 31 * time.Minute
	maxCheckoutTTL = 24 * time.Hour
)

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	WebhookTolerance time.Duration
	Currency         string
	SuccessURL       string
	CancelURL        string
}

type StripeGateway struct {
	sessions checkoutsession.Client
	cfg      StripeConfig
	now      func() time.Time
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY missing", ErrNotConfigured)
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, fmt.Errorf("%w: checkout success and cancel urls are required", ErrNotConfigured)
	}
	if cfg.Currency == "" {
		cfg.Currency = "cop"
	}
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = webhook.DefaultTolerance
	}
	return &StripeGateway{
		sessions: checkoutsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey},
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withReservation(g.cfg.SuccessURL, req.ReservationID)),
		CancelURL:         stripe.String(withReservation(g.cfg.CancelURL, req.ReservationID)),
		ClientReferenceID: stripe.String(req.ReservationID),
		ExpiresAt:         stripe.Int64(g.checkoutExpiry(req.ExpiresAt).Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.cfg.Currency),
					UnitAmount: stripe.Int64(req.Amount * 100),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"reservation_id": req.ReservationID,
			"requester_id":   req.RequesterID,
		},
	}
	params.Context = ctx
	// A retried create for the same hold returns the same session.
	params.IdempotencyKey = stripe.String("hold:" + req.ReservationID)

	sess, err := g.sessions.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("stripe checkout session create: %w", err)
	}
	return Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

// ExpireCheckout closes an open session so a released hold can no longer be paid.
func (g *StripeGateway) ExpireCheckout(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.sessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("stripe checkout session expire: %w", err)
	}
	return nil
}

func (g *StripeGateway) ParseWebhook(body []byte, signature string) (Event, error) {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return Event{}, fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET missing", ErrNotConfigured)
	}
	evt, err := webhook.ConstructEventWithOptions(body, signature, g.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.cfg.WebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{ID: evt.ID, Type: string(evt.Type)}
	switch evt.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		out.Kind = EventCompleted
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		out.Kind = EventExpired
	default:
		return out, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		return Event{}, fmt.Errorf("invalid checkout session payload: %w", err)
	}
	// Completed sessions paid with delayed methods settle later.
	if evt.Type == "checkout.session.completed" && session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		out.Kind = EventIgnored
	}
	out.SessionID = session.ID
	out.ReservationID = session.Metadata["reservation_id"]
	if out.ReservationID == "" {
		out.ReservationID = session.ClientReferenceID
	}
	return out, nil
}

func (g *StripeGateway) checkoutExpiry(holdExpiry time.Time) time.Time {
	now := g.now()
	if earliest := now.Add(minCheckoutTTL); holdExpiry.Before(earliest) {
		return earliest
	}
	if latest := now.Add(maxCheckoutTTL); holdExpiry.After(latest) {
		return latest
	}
	return holdExpiry
}

func withReservation(base, reservationID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "reservation_id=" + reservationID + "&session_id={CHECKOUT_SESSION_ID}"
}
