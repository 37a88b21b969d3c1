// Package http exposes running sessions over a small JSON API with a
// server-sent event stream of document views.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry resolves session ids. session.Manager implements it.
type Registry interface {
	Get(id string) (ports.Controller, error)
	Sessions() []string
}

// Server holds the handlers.
type Server struct {
	Registry Registry
	Version  string
	metrics  http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
}

// WithVersion is reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// NewHandler creates the HTTP handler for reg.
func NewHandler(reg Registry, opts ...Option) http.Handler {
	s := &Server{
		Registry: reg,
		Version:  "dev",
		metrics:  promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Method(http.MethodGet, "/metrics", s.metrics)
	r.Get("/sessions", s.ListSessions)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(s.withController)
		r.Get("/document", s.GetDocument)
		r.Get("/events", s.SubscribeEvents)
		r.Post("/rerun", s.Rerun)
		r.Post("/stop", s.Stop)
		r.Post("/clear-cache", s.ClearCache)
		r.Post("/upload", s.CloudUpload)
		r.Post("/settings", s.SaveSettings)
		r.Post("/widgets/{widget}", s.SetWidgetValue)
		r.Delete("/dialog", s.CloseDialog)
		r.Post("/login", s.ResolveLogin)
		r.Delete("/login", s.RejectLogin)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (s *Server) withController(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := s.Registry.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, c)))
	})
}

func controller(r *http.Request) ports.Controller {
	return r.Context().Value(ctxKey{}).(ports.Controller)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotConnected),
		errors.Is(err, domain.ErrSharingDisabled),
		errors.Is(err, domain.ErrNoPendingLogin):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("Request failed", "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

// reply answers a control request: 204 on success.
func reply(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"app": "vitrine-http", "version": s.Version})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.Registry.Sessions()})
}

// GetDocument handles GET /sessions/{id}/document.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	view, err := controller(r).View(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Rerun handles POST /sessions/{id}/rerun[?always=true].
func (s *Server) Rerun(w http.ResponseWriter, r *http.Request) {
	always := false
	if v := r.URL.Query().Get("always"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid always parameter"})
			return
		}
		always = b
	}
	reply(w, controller(r).Rerun(r.Context(), always))
}

// Stop handles POST /sessions/{id}/stop.
func (s *Server) Stop(w http.ResponseWriter, r *http.Request) {
	reply(w, controller(r).Stop(r.Context()))
}

// ClearCache handles POST /sessions/{id}/clear-cache.
func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	reply(w, controller(r).ClearCache(r.Context()))
}

// CloudUpload handles POST /sessions/{id}/upload.
func (s *Server) CloudUpload(w http.ResponseWriter, r *http.Request) {
	reply(w, controller(r).CloudUpload(r.Context()))
}

// SaveSettings handles POST /sessions/{id}/settings.
func (s *Server) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var body domain.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("SaveSettings: Invalid request body", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	reply(w, controller(r).SaveSettings(r.Context(), body))
}

type widgetValue struct {
	Value any `json:"value"`
}

// SetWidgetValue handles POST /sessions/{id}/widgets/{widget}.
func (s *Server) SetWidgetValue(w http.ResponseWriter, r *http.Request) {
	var body widgetValue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Warn("SetWidgetValue: Invalid request body", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	reply(w, controller(r).SetWidgetValue(r.Context(), chi.URLParam(r, "widget"), body.Value))
}

// CloseDialog handles DELETE /sessions/{id}/dialog.
func (s *Server) CloseDialog(w http.ResponseWriter, r *http.Request) {
	reply(w, controller(r).CloseDialog(r.Context()))
}

// ResolveLogin handles POST /sessions/{id}/login.
func (s *Server) ResolveLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a token is required"})
		return
	}
	reply(w, controller(r).ResolveLogin(creds))
}

// RejectLogin handles DELETE /sessions/{id}/login[?reason=...].
func (s *Server) RejectLogin(w http.ResponseWriter, r *http.Request) {
	var reason error
	if v := r.URL.Query().Get("reason"); v != "" {
		reason = errors.New(v)
	}
	reply(w, controller(r).RejectLogin(reason))
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
// Every change of the session produces one "view" event.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		slog.Error("SubscribeEvents: Streaming not supported")
		return
	}

	views, err := controller(r).Subscribe(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			data, err := json.Marshal(view)
			if err != nil {
				slog.Error("SSE: Failed to encode view", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: view\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
