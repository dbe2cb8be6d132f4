package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/payments"
)

// WebhookParser verifies a provider callback; satisfied by the payment gateways.
type WebhookParser interface {
	ParseWebhook(body []byte, signature string) (payments.Event, error)
}

// PaymentSettler is satisfied by *reservations.Service.
type PaymentSettler interface {
	ConfirmPayment(ctx context.Context, sessionID string) (model.Reservation, error)
	ExpirePayment(ctx context.Context, sessionID string) (model.Reservation, error)
}

type WebhookHandler struct {
	parser  WebhookParser
	settler PaymentSettler
	logger  *slog.Logger
}

func NewWebhookHandler(parser WebhookParser, settler PaymentSettler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{parser: parser, settler: settler, logger: logger}
}

const maxWebhookBody = 65536

// Handle settles holds from checkout events. Outcomes that retrying cannot
// change are acknowledged with 200; storage failures answer 500 so the
// provider redelivers.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	evt, err := h.parser.ParseWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			h.logger.Error("webhook received but payments are not configured", "err", err)
			http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
			return
		}
		h.logger.Warn("webhook rejected", "err", err)
		http.Error(w, "invalid webhook", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch evt.Kind {
	case payments.EventCompleted:
		res, err := h.settler.ConfirmPayment(ctx, evt.SessionID)
		if err != nil && !h.settled(err) {
			h.logger.Error("payment confirmation failed", "event_id", evt.ID, "session_id", evt.SessionID, "err", err)
			http.Error(w, "confirmation failed", http.StatusInternalServerError)
			return
		}
		if err != nil {
			h.logger.Warn("payment not applied", "event_id", evt.ID, "session_id", evt.SessionID, "reservation_id", evt.ReservationID, "err", err)
		} else {
			h.logger.Info("payment applied", "event_id", evt.ID, "reservation_id", res.ID)
		}
	case payments.EventExpired:
		res, err := h.settler.ExpirePayment(ctx, evt.SessionID)
		if err != nil && !h.settled(err) {
			h.logger.Error("checkout expiry failed", "event_id", evt.ID, "session_id", evt.SessionID, "err", err)
			http.Error(w, "expiry failed", http.StatusInternalServerError)
			return
		}
		if err == nil {
			h.logger.Info("checkout expired", "event_id", evt.ID, "reservation_id", res.ID, "status", res.Status)
		}
	default:
		h.logger.Debug("webhook ignored", "event_id", evt.ID, "type", evt.Type)
	}
	w.WriteHeader(http.StatusOK)
}

// settled reports errors that redelivery would only repeat.
func (h *WebhookHandler) settled(err error) bool {
	return errors.Is(err, model.ErrReservationNotFound) ||
		errors.Is(err, model.ErrSlotNoLongerAvailable) ||
		errors.Is(err, model.ErrInvalidStatus)
}
