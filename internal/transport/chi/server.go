// Package chi serves the operational HTTP surface: health, Prometheus metrics and run stats.
// It accepts no queries.
package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/metrics"
	healthuc "github.com/kailas-cloud/commentlens/internal/usecase/health"
)

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// StatsProvider reports process-level counters. Implementations must be safe
// to call while a pipeline run is in progress.
type StatsProvider interface {
	Stats(ctx context.Context) Stats
}

// Stats is the /stats payload.
type Stats struct {
	Cache   CacheStats   `json:"cache"`
	Limiter LimiterStats `json:"rate_limiter"`
	Budget  BudgetStats  `json:"budget"`
	LastRun *RunStats    `json:"last_run,omitempty"`
}

// CacheStats describes the embedding cache as of the last checkpoint.
type CacheStats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// LimiterStats describes the current rate limit window.
type LimiterStats struct {
	Requests        int     `json:"requests"`
	Tokens          int     `json:"tokens"`
	MaxRequests     int     `json:"max_requests"`
	MaxTokens       int     `json:"max_tokens"`
	WindowRemaining float64 `json:"window_remaining_sec"`
}

// BudgetStats reports remaining provider tokens; -1 means unlimited.
type BudgetStats struct {
	DailyRemaining   int64 `json:"daily_remaining"`
	MonthlyRemaining int64 `json:"monthly_remaining"`
}

// RunStats summarizes the most recent pipeline run.
type RunStats struct {
	RunID                 string    `json:"run_id"`
	FinishedAt            time.Time `json:"finished_at"`
	Groups                int       `json:"groups"`
	Searches              int       `json:"searches"`
	FailedSearches        int       `json:"failed_searches"`
	TotalOrphaned         int       `json:"total_orphaned"`
	RecoveredByPattern    int       `json:"recovered_by_pattern"`
	RecoveredBySimilarity int       `json:"recovered_by_similarity"`
	Unassigned            int       `json:"unassigned"`
	RecoveryRate          float64   `json:"recovery_rate"`
	EncoderTokens         int       `json:"encoder_tokens"`
	CompleterTokens       int       `json:"completer_tokens"`
	ElapsedSec            float64   `json:"elapsed_sec"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server handles ops endpoints.
type Server struct {
	health HealthChecker
	stats  StatsProvider
	logger *zap.Logger
}

// NewServer creates an ops server. stats can be nil, in which case /stats is not mounted.
func NewServer(health HealthChecker, stats StatsProvider, logger *zap.Logger) *Server {
	return &Server{health: health, stats: stats, logger: logger}
}

// Router builds the chi router with recovery, request ids, auth and metrics middleware.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())
	if s.stats != nil {
		r.Get("/stats", s.Stats)
	}
	return r
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Stats(r.Context()))
}
