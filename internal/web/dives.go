package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"auv-ng/internal/divelog"
)

type divesResponse struct {
	NowUTC   string            `json:"now_utc"`
	Totals   divelog.Totals    `json:"totals"`
	Sessions []divelog.Session `json:"sessions"`
}

type diveEventsResponse struct {
	SessionID string          `json:"session_id"`
	Events    []divelog.Event `json:"events"`
}

func (h *handlers) handleDives(w http.ResponseWriter, r *http.Request) {
	if h.opts.Dives == nil {
		http.Error(w, "dive log disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 500 {
			http.Error(w, "limit must be an integer in [1,500]", http.StatusBadRequest)
			return
		}
		limit = v
	}

	sessions, err := h.opts.Dives.RecentSessions(r.Context(), limit)
	if err != nil {
		http.Error(w, "dive log query failed", http.StatusInternalServerError)
		return
	}
	totals, err := h.opts.Dives.Aggregate(r.Context())
	if err != nil {
		http.Error(w, "dive log query failed", http.StatusInternalServerError)
		return
	}

	if sessions == nil {
		sessions = []divelog.Session{}
	}
	writeJSON(w, http.StatusOK, divesResponse{
		NowUTC:   time.Now().UTC().Format(time.RFC3339Nano),
		Totals:   totals,
		Sessions: sessions,
	})
}

func (h *handlers) handleDiveEvents(w http.ResponseWriter, r *http.Request) {
	if h.opts.Dives == nil {
		http.Error(w, "dive log disabled", http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	events, err := h.opts.Dives.SessionEvents(r.Context(), id)
	if err != nil {
		http.Error(w, "dive log query failed", http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []divelog.Event{}
	}
	writeJSON(w, http.StatusOK, diveEventsResponse{SessionID: id, Events: events})
}
