package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/lexbook/libs/httpx"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
)

// SessionFlow is satisfied by *booking.Orchestrator.
type SessionFlow interface {
	Start(ctx context.Context, providerID, requesterID string, durationMinutes int) (*booking.Session, error)
	SelectDate(ctx context.Context, id, requesterID string, date time.Time) (*booking.Session, error)
	SelectTime(ctx context.Context, id, requesterID, t string) (*booking.Session, error)
	Confirm(ctx context.Context, id, requesterID string) (*booking.Session, error)
	Get(ctx context.Context, id, requesterID string) (*booking.Session, error)
	Cancel(ctx context.Context, id, requesterID string) (*booking.Session, error)
}

type SessionHandler struct {
	flow   SessionFlow
	loc    *time.Location
	logger *slog.Logger
}

func NewSessionHandler(flow SessionFlow, loc *time.Location, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{flow: flow, loc: loc, logger: logger}
}

type startSessionRequest struct {
	ProviderID      string `json:"provider_id"`
	DurationMinutes int    `json:"duration_minutes"`
}

type sessionStepRequest struct {
	SessionID string `json:"session_id"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
}

// Collection serves POST (start) and GET ?id= on /api/v1/sessions.
func (h *SessionHandler) Collection(w http.ResponseWriter, r *http.Request) {
	requester, ok := requesterID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req startSessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		s, err := h.flow.Start(r.Context(), req.ProviderID, requester, req.DurationMinutes)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	case http.MethodGet:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		s, err := h.flow.Get(r.Context(), id, requester)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(ctx context.Context, req sessionStepRequest, requester string) (*booking.Session, error) {
		date, err := model.ParseDate(strings.TrimSpace(req.Date), h.loc)
		if err != nil {
			return nil, badRequest{err}
		}
		return h.flow.SelectDate(ctx, req.SessionID, requester, date)
	})
}

func (h *SessionHandler) SelectTime(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(ctx context.Context, req sessionStepRequest, requester string) (*booking.Session, error) {
		return h.flow.SelectTime(ctx, req.SessionID, requester, strings.TrimSpace(req.Time))
	})
}

// Confirm answers with the session even when the hold could not be placed,
// so the client can show the refreshed slots next to the error.
func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(ctx context.Context, req sessionStepRequest, requester string) (*booking.Session, error) {
		return h.flow.Confirm(ctx, req.SessionID, requester)
	})
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, func(ctx context.Context, req sessionStepRequest, requester string) (*booking.Session, error) {
		return h.flow.Cancel(ctx, req.SessionID, requester)
	})
}

type stepFunc func(ctx context.Context, req sessionStepRequest, requester string) (*booking.Session, error)

type sessionErrorResponse struct {
	Error   string           `json:"error"`
	Session *booking.Session `json:"session"`
}

func (h *SessionHandler) step(w http.ResponseWriter, r *http.Request, fn stepFunc) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	requester, ok := requesterID(w, r)
	if !ok {
		return
	}
	var req sessionStepRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	s, err := fn(r.Context(), req, requester)
	if err != nil {
		if br, ok := err.(badRequest); ok {
			http.Error(w, br.Error(), http.StatusBadRequest)
			return
		}
		if s != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				h.logger.Error("session step failed", "session_id", s.ID, "status", status, "err", err)
			}
			writeJSON(w, status, sessionErrorResponse{Error: err.Error(), Session: s})
			return
		}
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type badRequest struct{ error }

func requesterID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := httpx.UserID(r)
	if id == "" {
		http.Error(w, "missing "+httpx.UserIDHeader+" header", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}
