// Command stripe-webhook-sim posts a signed checkout event to the booking
// service, standing in for Stripe when testing hold settlement locally.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/lexbook/libs/config"
	"github.com/stripe/stripe-go/v79/webhook"
)

const webhookPath = "/api/v1/payments/stripe/webhook"

func main() {
	var (
		baseURL       = flag.String("base-url", config.String("BASE_URL", "http://localhost:8083"), "booking service base url")
		evtType       = flag.String("type", config.String("STRIPE_EVENT_TYPE", "checkout.session.completed"), "checkout event type")
		sessionID     = flag.String("session-id", config.String("CHECKOUT_SESSION_ID", ""), "checkout session id stored on the hold")
		reservationID = flag.String("reservation-id", config.String("RESERVATION_ID", ""), "reservation_id metadata")
		paymentStatus = flag.String("payment-status", config.String("PAYMENT_STATUS", "paid"), "checkout session payment_status")
		secret        = flag.String("secret", config.String("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
		local         = flag.Bool("local", config.Bool("LOCAL_GATEWAY", false), "send the unsigned event the local gateway accepts")
	)
	flag.Parse()

	if strings.TrimSpace(*sessionID) == "" {
		fatal("CHECKOUT_SESSION_ID is required")
	}

	now := time.Now().UTC()
	var (
		payload   []byte
		signature string
		err       error
	)
	if *local {
		payload, err = json.Marshal(map[string]string{"type": *evtType, "session_id": *sessionID})
	} else {
		if strings.TrimSpace(*secret) == "" {
			fatal("STRIPE_WEBHOOK_SECRET is required unless -local is set")
		}
		payload, err = buildEventJSON(fmt.Sprintf("evt_test_%d", now.UnixNano()), *evtType, now, *sessionID, *reservationID, *paymentStatus)
		if err == nil {
			signature = webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
				Payload:   payload,
				Secret:    *secret,
				Timestamp: now,
				Scheme:    "v1",
			}).Header
		}
	}
	if err != nil {
		fatal(err.Error())
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+webhookPath, bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	fmt.Printf("status=%d %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildEventJSON(eventID, eventType string, t time.Time, sessionID, reservationID, paymentStatus string) ([]byte, error) {
	switch eventType {
	case "checkout.session.completed",
		"checkout.session.expired",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed":
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
	if eventType == "checkout.session.expired" {
		paymentStatus = "unpaid"
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": "2024-06-20",
		"data": map[string]any{
			"object": map[string]any{
				"id":                  sessionID,
				"object":              "checkout.session",
				"mode":                "payment",
				"payment_status":      paymentStatus,
				"client_reference_id": reservationID,
				"metadata": map[string]any{
					"reservation_id": reservationID,
				},
			},
		},
	})
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
