package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/pricing"
)

// FeeQuoter prices a session; satisfied by *availability.Engine.
type FeeQuoter interface {
	Fee(ctx context.Context, providerID string, durationMinutes int) (pricing.Fee, error)
}

// Reservations is satisfied by *reservations.Service.
type Reservations interface {
	Create(ctx context.Context, req model.BookingRequest) (model.Confirmation, error)
	Get(ctx context.Context, id string) (model.Reservation, error)
	Cancel(ctx context.Context, id, requesterID string) (model.Reservation, error)
}

// BookingHandler creates holds directly, without a selection session. The
// total is always priced here from the provider's rate.
type BookingHandler struct {
	fees         FeeQuoter
	reservations Reservations
	loc          *time.Location
	logger       *slog.Logger
}

func NewBookingHandler(fees FeeQuoter, reservations Reservations, loc *time.Location, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{fees: fees, reservations: reservations, loc: loc, logger: logger}
}

type createBookingRequest struct {
	ProviderID      string `json:"provider_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type createBookingResponse struct {
	ReservationID string      `json:"reservation_id"`
	RedirectURL   string      `json:"redirect_url"`
	ExpiresAt     string      `json:"expires_at"`
	Fee           pricing.Fee `json:"fee"`
}

type reservationResponse struct {
	ReservationID   string `json:"reservation_id"`
	ProviderID      string `json:"provider_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Total           int64  `json:"total"`
	Status          string `json:"status"`
	ExpiresAt       string `json:"expires_at,omitempty"`
	PaymentURL      string `json:"payment_url,omitempty"`
}

// Collection serves POST (create) and GET ?id= on /api/v1/bookings.
func (h *BookingHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.get(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterID(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.Time = strings.TrimSpace(req.Time)
	if req.ProviderID == "" || req.Date == "" || req.Time == "" {
		http.Error(w, "provider_id, date and time are required", http.StatusBadRequest)
		return
	}
	date, err := model.ParseDate(strings.TrimSpace(req.Date), h.loc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	fee, err := h.fees.Fee(ctx, req.ProviderID, req.DurationMinutes)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	conf, err := h.reservations.Create(ctx, model.BookingRequest{
		ProviderID:      req.ProviderID,
		RequesterID:     requester,
		Date:            date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Total:           fee.Total,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createBookingResponse{
		ReservationID: conf.ReservationID,
		RedirectURL:   conf.RedirectURL,
		ExpiresAt:     conf.ExpiresAt.UTC().Format(time.RFC3339),
		Fee:           fee,
	})
}

func (h *BookingHandler) get(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterID(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	res, err := h.reservations.Get(r.Context(), id)
	if err == nil && res.RequesterID != requester {
		err = model.ErrReservationNotFound
	}
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

type cancelBookingRequest struct {
	ReservationID string `json:"reservation_id"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	requester, ok := requesterID(w, r)
	if !ok {
		return
	}
	var req cancelBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ReservationID) == "" {
		http.Error(w, "reservation_id is required", http.StatusBadRequest)
		return
	}
	res, err := h.reservations.Cancel(r.Context(), strings.TrimSpace(req.ReservationID), requester)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

func toReservationResponse(res model.Reservation) reservationResponse {
	out := reservationResponse{
		ReservationID:   res.ID,
		ProviderID:      res.ProviderID,
		Date:            res.Date.Format(model.DateLayout),
		Time:            res.StartTime,
		DurationMinutes: res.DurationMinutes,
		Total:           res.Total,
		Status:          res.Status,
	}
	if res.Status == model.StatusPendingPayment {
		out.PaymentURL = res.PaymentURL
		if res.ExpiresAt != nil {
			out.ExpiresAt = res.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	return out
}
