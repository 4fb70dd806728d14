// Package api provides the HTTP REST API server for phosdash.
//
// It exposes endpoints for the canonical price series, derived metrics,
// the production table, producer rankings, publication bulletins,
// source health, and the combined dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/phoslab/phosdash/internal/config"
	"github.com/phoslab/phosdash/internal/datasource"
	"github.com/phoslab/phosdash/internal/provider"
	"github.com/phoslab/phosdash/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	agg    *datasource.Aggregator
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, agg *datasource.Aggregator) *Server {
	srv := &Server{cfg: cfg, agg: agg}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-done
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health (also available at /health)
		r.Get("/health", s.handleHealth)

		// Source reachability
		r.Get("/status", s.handleStatus)

		// Prices
		r.Get("/prices", s.handlePrices)
		r.Get("/prices/metrics", s.handleMetrics)

		// Production
		r.Get("/production", s.handleProduction)
		r.Get("/production/top", s.handleTopProducers)

		// Bulletins
		r.Get("/bulletins", s.handleBulletins)

		// Dashboard
		r.Get("/dashboard", s.handleDashboard)
	})

	return r
}

// ============================================================
// Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SourceStatus reports one upstream source's reachability.
type SourceStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Reachable   bool   `json:"reachable"`
	Error       string `json:"error,omitempty"`
}

// TopProducersResponse pairs a producers ranking with the year it covers.
type TopProducersResponse struct {
	Year      int                        `json:"year"`
	Producers []models.CountryProduction `json:"producers"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	sources := s.agg.Sources()
	statuses := make([]SourceStatus, 0, len(sources))
	for _, p := range sources {
		st := SourceStatus{Name: p.Name(), Description: p.Describe(), Reachable: true}
		if err := p.Ping(ctx); err != nil {
			st.Reachable = false
			st.Error = err.Error()
		}
		statuses = append(statuses, st)
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    statuses,
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	series, err := s.agg.PriceSeries(r.Context())
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    series,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.agg.Metrics(r.Context())
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    m,
	})
}

func (s *Server) handleProduction(w http.ResponseWriter, r *http.Request) {
	records, err := s.agg.ProductionTable(r.Context())
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    records,
	})
}

func (s *Server) handleTopProducers(w http.ResponseWriter, r *http.Request) {
	year := 0
	if raw := r.URL.Query().Get("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid year; use a four-digit year")
			return
		}
		year = v
	}
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "invalid n; use a positive integer")
			return
		}
		n = v
	}

	top, rankedYear, err := s.agg.TopProducers(r.Context(), year, n)
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: TopProducersResponse{
			Year:      rankedYear,
			Producers: top,
		},
	})
}

func (s *Server) handleBulletins(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit; use a positive integer")
			return
		}
		limit = v
	}

	items, err := s.agg.Bulletins(r.Context(), limit)
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    items,
	})
}

// handleDashboard always answers 200: per-dataset failures surface as
// warnings inside the envelope, not as transport errors.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d := s.agg.Dashboard(r.Context())
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    d,
	})
}

// ============================================================
// Helpers
// ============================================================

// writeDatasetError maps dataset-level failures to status codes: a
// context deadline becomes 504, unavailability and schema drift become
// 502 (the body names the kind), anything else 500.
func writeDatasetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case provider.IsUnavailable(err), provider.IsSchemaDrift(err):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
