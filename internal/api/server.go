// Package api exposes the sweep's operational HTTP surface: health probes,
// Prometheus metrics and the latest run summary.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/transitlab/transit-sweep/internal/metrics"
	"github.com/transitlab/transit-sweep/internal/sweep"
)

// RunStatus is the JSON shape served for the most recent sweep run.
type RunStatus struct {
	RunID      string       `json:"run_id"`
	State      string       `json:"state"` // running | succeeded | failed
	Pairs      int          `json:"pairs"`
	Failed     int          `json:"failed"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Outcomes   []PairStatus `json:"outcomes,omitempty"`
}

// PairStatus summarizes one pair pipeline for the status endpoint.
type PairStatus struct {
	Dataset       string `json:"dataset"`
	Period        string `json:"period"`
	RoutesFetched int    `json:"routes_fetched"`
	RoutesFailed  int    `json:"routes_failed"`
	CSVPath       string `json:"csv_path,omitempty"`
	Error         string `json:"error,omitempty"`
}

// StatusStore holds the latest run's status for the ops endpoint. It is safe
// for concurrent use.
type StatusStore struct {
	mu     sync.RWMutex
	status *RunStatus
}

var _ sweep.RunObserver = (*StatusStore)(nil)

// NewStatusStore returns an empty store.
func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

// RunStarted marks a run as in flight.
func (s *StatusStore) RunStarted(runID string, pairs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &RunStatus{
		RunID:     runID,
		State:     "running",
		Pairs:     pairs,
		StartedAt: time.Now(),
	}
}

// RunFinished records the completed run's report.
func (s *StatusStore) RunFinished(report sweep.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	status := &RunStatus{
		RunID:      report.RunID,
		State:      "succeeded",
		Pairs:      len(report.Outcomes),
		Failed:     report.Failed,
		FinishedAt: &now,
	}
	if s.status != nil && s.status.RunID == report.RunID {
		status.StartedAt = s.status.StartedAt
	}
	if report.Failed > 0 {
		status.State = "failed"
	}
	for _, outcome := range report.Outcomes {
		ps := PairStatus{
			Dataset:       string(outcome.Pair.Type),
			Period:        string(outcome.Pair.Period),
			RoutesFetched: outcome.Fetched.Succeeded,
			RoutesFailed:  outcome.Fetched.Failed,
		}
		if outcome.ParseErr == nil {
			ps.CSVPath = outcome.CSVPath
		}
		if outcome.Failed() {
			ps.Error = outcomeError(outcome)
		}
		status.Outcomes = append(status.Outcomes, ps)
	}
	s.status = status
}

// Latest returns the most recent status, or nil when no run has started.
func (s *StatusStore) Latest() *RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func outcomeError(outcome sweep.PairOutcome) string {
	switch {
	case outcome.FetchErr != nil && outcome.ParseErr != nil:
		return outcome.FetchErr.Error() + "; " + outcome.ParseErr.Error()
	case outcome.FetchErr != nil:
		return outcome.FetchErr.Error()
	case outcome.ParseErr != nil:
		return outcome.ParseErr.Error()
	}
	return ""
}

// Server carries the ops router.
type Server struct {
	router chi.Router
	store  *StatusStore
	logger *zap.Logger
}

// NewServer constructs the ops server with middleware and routes.
func NewServer(store *StatusStore, logger *zap.Logger) *Server {
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/v1/runs/latest", s.latestRun)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	status := s.store.Latest()
	if status == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("Request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic recovered", zap.Any("panic", rec))
				s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
