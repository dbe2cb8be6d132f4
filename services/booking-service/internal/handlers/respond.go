// Package handlers exposes availability, the booking session flow, direct
// booking creation and payment webhooks over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/reservations"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidDuration),
		errors.Is(err, reservations.ErrInvalidRequest),
		errors.Is(err, booking.ErrSlotNotOffered),
		errors.Is(err, booking.ErrMissingParty):
		return http.StatusBadRequest
	case errors.Is(err, availability.ErrProviderNotFound),
		errors.Is(err, booking.ErrSessionNotFound),
		errors.Is(err, model.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrSlotNoLongerAvailable),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, booking.ErrBookingCreation),
		errors.Is(err, reservations.ErrPaymentUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status err maps to. Internal failures are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
		if status == http.StatusInternalServerError {
			http.Error(w, "internal error", status)
			return
		}
	}
	http.Error(w, err.Error(), status)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
