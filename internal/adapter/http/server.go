package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/cycle-hire-etl/internal/pipeline"
)

// ReadinessChecker reports whether the job has completed a run.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// RunReporter exposes the most recent run summary.
type RunReporter interface {
	LastRun() (pipeline.Result, bool)
}

// Server exposes health, readiness, last-run, and metrics HTTP endpoints
// while the job runs.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /runs/last, and /metrics routes.
func NewServer(addr string, ready ReadinessChecker, runs RunReporter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /runs/last", handleLastRun(runs))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type joinSummary struct {
	Site          string `json:"site"`
	Policy        string `json:"policy"`
	Rows          int    `json:"rows"`
	Unmatched     int    `json:"unmatched"`
	Dropped       int    `json:"dropped"`
	DuplicateKeys int    `json:"duplicate_keys"`
}

type runSummary struct {
	RunID            string        `json:"run_id"`
	Outcome          string        `json:"outcome"`
	Error            string        `json:"error,omitempty"`
	TripsRead        int           `json:"trips_read"`
	StationsRead     int           `json:"stations_read"`
	WeatherRead      int           `json:"weather_read"`
	TripsWritten     int           `json:"trips_written"`
	DailyWritten     int           `json:"daily_written"`
	Joins            []joinSummary `json:"joins"`
	StationConflicts int           `json:"station_conflicts"`
	StationsResolved int           `json:"stations_backfilled"`
	DurationSeconds  float64       `json:"duration_seconds"`
}

func handleLastRun(runs RunReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		r, ok := runs.LastRun()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run has finished yet"})
			return
		}
		writeJSON(w, http.StatusOK, summarize(r))
	}
}

func summarize(r pipeline.Result) runSummary {
	s := runSummary{
		RunID:            r.RunID,
		Outcome:          "success",
		Error:            r.Error,
		TripsRead:        r.TripsRead,
		StationsRead:     r.StationsRead,
		WeatherRead:      r.WeatherRead,
		TripsWritten:     r.TripsWritten,
		DailyWritten:     r.DailyWritten,
		Joins:            make([]joinSummary, len(r.Joins)),
		StationConflicts: len(r.Conflicts),
		StationsResolved: r.Backfill.Resolved,
		DurationSeconds:  r.Duration.Seconds(),
	}
	if r.Error != "" {
		s.Outcome = "error"
	}
	for i, j := range r.Joins {
		s.Joins[i] = joinSummary{
			Site:          j.Site,
			Policy:        string(j.Policy),
			Rows:          j.Rows,
			Unmatched:     j.Unmatched,
			Dropped:       j.Dropped,
			DuplicateKeys: j.DuplicateKeys,
		}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
