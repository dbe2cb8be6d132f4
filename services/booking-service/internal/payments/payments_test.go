package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

func signedEvent(t *testing.T, secret string, evt map[string]any) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return body, signed.Header
}

func checkoutEvent(eventType, sessionID, paymentStatus string) map[string]any {
	return map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"created":     time.Now().Unix(),
		"type":        eventType,
		"api_version": "2024-06-20",
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"object":         "checkout.session",
				"payment_status": paymentStatus,
				"metadata":       map[string]any{"reservation_id": "r1"},
			},
		},
	}
}

func testStripeGateway(t *testing.T) *StripeGateway {
	t.Helper()
	g, err := NewStripeGateway(StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "https://lexbook.test/booking/success",
		CancelURL:     "https://lexbook.test/booking/cancel",
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	return g
}

func TestStripeParseWebhook_Completed(t *testing.T) {
	g := testStripeGateway(t)
	body, sig := signedEvent(t, "whsec_test", checkoutEvent("checkout.session.completed", "cs_test_1", "paid"))

	evt, err := g.ParseWebhook(body, sig)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if evt.Kind != EventCompleted || evt.SessionID != "cs_test_1" || evt.ReservationID != "r1" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestStripeParseWebhook_UnpaidCompletionIgnored(t *testing.T) {
	g := testStripeGateway(t)
	body, sig := signedEvent(t, "whsec_test", checkoutEvent("checkout.session.completed", "cs_test_1", "unpaid"))

	evt, err := g.ParseWebhook(body, sig)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if evt.Kind != EventIgnored {
		t.Fatalf("expected unpaid completion to be ignored, got %+v", evt)
	}
}

func TestStripeParseWebhook_Expired(t *testing.T) {
	g := testStripeGateway(t)
	body, sig := signedEvent(t, "whsec_test", checkoutEvent("checkout.session.expired", "cs_test_2", "unpaid"))

	evt, err := g.ParseWebhook(body, sig)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if evt.Kind != EventExpired || evt.SessionID != "cs_test_2" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestStripeParseWebhook_BadSignature(t *testing.T) {
	g := testStripeGateway(t)
	body, sig := signedEvent(t, "whsec_other", checkoutEvent("checkout.session.completed", "cs_test_1", "paid"))

	if _, err := g.ParseWebhook(body, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	if _, err := NewStripeGateway(StripeConfig{SuccessURL: "a", CancelURL: "b"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCheckoutExpiryClamp(t *testing.T) {
	g := testStripeGateway(t)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	if got := g.checkoutExpiry(now.Add(10 * time.Minute)); !got.Equal(now.Add(minCheckoutTTL)) {
		t.Fatalf("expected minimum expiry, got %s", got)
	}
	if got := g.checkoutExpiry(now.Add(45 * time.Minute)); !got.Equal(now.Add(45 * time.Minute)) {
		t.Fatalf("expected hold expiry, got %s", got)
	}
	if got := g.checkoutExpiry(now.Add(48 * time.Hour)); !got.Equal(now.Add(maxCheckoutTTL)) {
		t.Fatalf("expected maximum expiry, got %s", got)
	}
}

func TestWithReservation(t *testing.T) {
	got := withReservation("https://x.test/ok?lang=es", "r1")
	if !strings.HasPrefix(got, "https://x.test/ok?lang=es&reservation_id=r1") {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestLocalGateway(t *testing.T) {
	g := NewLocalGateway("http://localhost:8083/")
	co, err := g.CreateCheckout(context.Background(), CheckoutRequest{ReservationID: "r1", Amount: 1000})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !strings.HasPrefix(co.URL, "http://localhost:8083/checkout/") {
		t.Fatalf("unexpected url %s", co.URL)
	}

	evt, err := g.ParseWebhook([]byte(`{"type":"checkout.session.completed","session_id":"`+co.SessionID+`"}`), "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if evt.Kind != EventCompleted || evt.ReservationID != "r1" {
		t.Fatalf("unexpected event: %+v", evt)
	}

	if err := g.ExpireCheckout(context.Background(), co.SessionID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	evt, _ = g.ParseWebhook([]byte(`{"type":"checkout.session.completed","session_id":"`+co.SessionID+`"}`), "")
	if evt.Kind != EventIgnored {
		t.Fatalf("expired local session must not complete")
	}

	if _, err := g.ParseWebhook([]byte(`{"type":"checkout.session.completed","session_id":"nope"}`), ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for unknown session, got %v", err)
	}
}
