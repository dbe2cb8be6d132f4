package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/pricing"
)

// AvailabilityEngine is satisfied by *availability.Engine.
type AvailabilityEngine interface {
	Slots(ctx context.Context, q availability.SlotQuery) (availability.SlotResult, error)
	Dates(ctx context.Context, providerID string, now time.Time) ([]time.Time, error)
	Fee(ctx context.Context, providerID string, durationMinutes int) (pricing.Fee, error)
	Location() *time.Location
}

type AvailabilityHandler struct {
	engine AvailabilityEngine
	logger *slog.Logger
	now    func() time.Time
}

func NewAvailabilityHandler(engine AvailabilityEngine, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, logger: logger, now: time.Now}
}

type datesResponse struct {
	ProviderID string   `json:"provider_id"`
	Dates      []string `json:"dates"`
}

type slotsResponse struct {
	ProviderID      string                       `json:"provider_id"`
	Date            string                       `json:"date"`
	DurationMinutes int                          `json:"duration_minutes"`
	Day             string                       `json:"day"`
	Slots           []availability.CandidateSlot `json:"slots"`
	Fee             pricing.Fee                  `json:"fee"`
	Degraded        bool                         `json:"degraded"`
	Warning         string                       `json:"warning,omitempty"`
}

type feeResponse struct {
	ProviderID      string `json:"provider_id"`
	DurationMinutes int    `json:"duration_minutes"`
	pricing.Fee
}

func (h *AvailabilityHandler) Dates(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id is required", http.StatusBadRequest)
		return
	}
	dates, err := h.engine.Dates(r.Context(), providerID, h.now())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	resp := datesResponse{ProviderID: providerID, Dates: make([]string, 0, len(dates))}
	for _, d := range dates {
		resp.Dates = append(resp.Dates, d.Format(model.DateLayout))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("provider_id"))
	if providerID == "" || q.Get("date") == "" {
		http.Error(w, "provider_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := model.ParseDate(q.Get("date"), h.engine.Location())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	duration, ok := durationParam(w, q.Get("duration_minutes"))
	if !ok {
		return
	}

	res, err := h.engine.Slots(r.Context(), availability.SlotQuery{
		ProviderID:      providerID,
		Date:            date,
		DurationMinutes: duration,
		Now:             h.now(),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	resp := slotsResponse{
		ProviderID:      res.ProviderID,
		Date:            res.Date.Format(model.DateLayout),
		DurationMinutes: res.DurationMinutes,
		Day:             res.Day.Kind.String(),
		Slots:           res.Slots,
		Fee:             res.Fee,
		Degraded:        res.Degraded,
	}
	if resp.Slots == nil {
		resp.Slots = []availability.CandidateSlot{}
	}
	if res.Warning != nil {
		resp.Warning = res.Warning.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) Fee(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("provider_id"))
	if providerID == "" {
		http.Error(w, "provider_id is required", http.StatusBadRequest)
		return
	}
	duration, ok := durationParam(w, q.Get("duration_minutes"))
	if !ok {
		return
	}
	fee, err := h.engine.Fee(r.Context(), providerID, duration)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feeResponse{ProviderID: providerID, DurationMinutes: duration, Fee: fee})
}

func durationParam(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		http.Error(w, "duration_minutes is required", http.StatusBadRequest)
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "duration_minutes must be an integer", http.StatusBadRequest)
		return 0, false
	}
	if err := model.ValidateDuration(n); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return n, true
}
