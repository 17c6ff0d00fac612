// Package web serves locally published artifacts for previewing.
package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"nextmeeting/internal/publish"
	"nextmeeting/internal/store"
)

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	store  store.Store
	siteID string
}

// New creates a Handler serving one site's objects from s.
func New(s store.Store, siteID string) *Handler {
	return &Handler{
		store:  s,
		siteID: siteID,
	}
}

// RegisterRoutes registers all HTTP routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.noCache(h.handleIndex))
	mux.HandleFunc("/schedule/{view}", h.noCache(h.handleSchedule))
	mux.HandleFunc("/calendar.ics", h.noCache(h.handleCalendar))
	mux.HandleFunc("/health", h.handleHealth)
}

func (h *Handler) noCache(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next(w, r)
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, ok := h.get(w, r, publish.PageKey(h.siteID))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	view, ok := strings.CutSuffix(r.PathValue("view"), ".json")
	if !ok || view == "" {
		http.NotFound(w, r)
		return
	}
	data, ok := h.get(w, r, publish.ScheduleKey(h.siteID, view))
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(data)
		return
	}
	schedule, err := publish.DecodeView(data)
	if err != nil {
		log.Printf("ERROR: decoding %s: %v", view, err)
		http.Error(w, "corrupt schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, schedule)
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	data, ok := h.get(w, r, publish.CalendarKey(h.siteID))
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Write(data)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, key string) ([]byte, bool) {
	data, err := h.store.Get(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		log.Printf("ERROR: reading %s: %v", key, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
