package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/ledger-cache/pkg/cache"
	"github.com/Sternrassler/ledger-cache/pkg/ledger"
	"github.com/Sternrassler/ledger-cache/pkg/logging"
	"github.com/Sternrassler/ledger-cache/pkg/metrics"
	"github.com/Sternrassler/ledger-cache/pkg/query"
)

// Pinger reports whether the expiring store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the query service over HTTP.
type Server struct {
	Router *chi.Mux

	svc    *query.Service
	store  Pinger
	logger zerolog.Logger
}

// NewServer builds the router for svc. store backs the readiness probe.
func NewServer(svc *query.Service, store Pinger) *Server {
	r := chi.NewRouter()
	s := &Server{
		Router: r,
		svc:    svc,
		store:  store,
		logger: logging.NewLogger("http"),
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("Request served")
	}))
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{}))

	r.Get("/assets/{id}", s.handleQuery)
	r.Post("/transactions", s.handleSubmit)

	r.Route("/cache", func(cr chi.Router) {
		cr.Get("/mode", s.handleGetMode)
		cr.Put("/mode", s.handleSetMode)
		cr.Get("/stats", s.handleStats)
		cr.Post("/stats/reset", s.handleResetStats)
		cr.Post("/flush", s.handleFlush)
		cr.Delete("/{id}", s.handleInvalidate)
	})

	r.Post("/precache/warm", s.handleWarm)

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.svc.Query(r.Context(), id, r.URL.Query().Get("consumer"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type submitRequest struct {
	AssetID string   `json:"assetId"`
	Name    string   `json:"name"`
	Args    []string `json:"args"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "transaction name is required"})
		return
	}

	result, err := s.svc.Submit(r.Context(), req.AssetID, req.Name, req.Args...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"result": result})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Invalidate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type modeBody struct {
	Mode cache.Mode `json:"mode"`
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modeBody{Mode: s.svc.Mode()})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	mode, err := s.svc.SetMode(string(req.Mode))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, struct {
			Error string     `json:"error"`
			Mode  cache.Mode `json:"mode"`
		}{Error: err.Error(), Mode: mode})
		return
	}
	writeJSON(w, http.StatusOK, modeBody{Mode: mode})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	s.svc.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Flush(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type warmRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ids are required"})
		return
	}

	report, err := s.svc.Warm(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps service errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var lerr *ledger.LedgerError
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cache.ErrInvalidMode):
		status = http.StatusBadRequest
	case errors.As(err, &lerr), errors.Is(err, ledger.ErrRetryExhausted):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
