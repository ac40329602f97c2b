package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/config"
	"github.com/kailas-cloud/commentlens/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/commentlens/internal/transport/chi"
	embeddinguc "github.com/kailas-cloud/commentlens/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/commentlens/internal/usecase/health"
	"github.com/kailas-cloud/commentlens/internal/usecase/pipeline"
	"github.com/kailas-cloud/commentlens/internal/usecase/ratelimit"
)

// opsStats backs /stats. The limiter and the budget lock internally and are read live;
// the cache is single-writer, so its counters are published after each checkpoint.
type opsStats struct {
	limiter *ratelimit.Limiter
	budget  *embeddinguc.BudgetTracker
	cache   atomic.Pointer[chiTransport.CacheStats]
	lastRun atomic.Pointer[chiTransport.RunStats]
}

func newOpsStats(limiter *ratelimit.Limiter, budget *embeddinguc.BudgetTracker) *opsStats {
	return &opsStats{limiter: limiter, budget: budget}
}

// Stats implements chiTransport.StatsProvider.
func (s *opsStats) Stats(_ context.Context) chiTransport.Stats {
	out := chiTransport.Stats{
		Budget: chiTransport.BudgetStats{DailyRemaining: -1, MonthlyRemaining: -1},
	}
	if s.limiter != nil {
		ls := s.limiter.Stats()
		out.Limiter = chiTransport.LimiterStats{
			Requests:        ls.Requests,
			Tokens:          ls.Tokens,
			MaxRequests:     ls.MaxRequests,
			MaxTokens:       ls.MaxTokens,
			WindowRemaining: ls.WindowRemaining.Seconds(),
		}
	}
	if s.budget != nil {
		out.Budget = chiTransport.BudgetStats{
			DailyRemaining:   s.budget.RemainingDaily(),
			MonthlyRemaining: s.budget.RemainingMonthly(),
		}
	}
	if c := s.cache.Load(); c != nil {
		out.Cache = *c
	}
	out.LastRun = s.lastRun.Load()
	return out
}

func (s *opsStats) publishCache(st embcache.Stats) {
	s.cache.Store(&chiTransport.CacheStats{Entries: st.Entries, Hits: st.Hits, Misses: st.Misses})
}

func (s *opsStats) publishRun(rep *pipeline.Report, finished time.Time) {
	failed := 0
	for _, g := range rep.Groups {
		failed += g.Failed
	}
	s.lastRun.Store(&chiTransport.RunStats{
		RunID:                 rep.RunID,
		FinishedAt:            finished.UTC(),
		Groups:                len(rep.Groups),
		Searches:              rep.Searches(),
		FailedSearches:        failed,
		TotalOrphaned:         rep.Stats.TotalOrphaned,
		RecoveredByPattern:    rep.Stats.RecoveredByPattern,
		RecoveredBySimilarity: rep.Stats.RecoveredBySimilarity,
		Unassigned:            rep.Stats.Unassigned,
		RecoveryRate:          rep.Stats.RecoveryRate(),
		EncoderTokens:         rep.Usage.EncoderTokens,
		CompleterTokens:       rep.Usage.CompleterTokens,
		ElapsedSec:            rep.Elapsed.Seconds(),
	})
}

// startOps serves /health, /metrics and /stats on cfg.Ops.Addr. The returned func
// shuts the listener down gracefully; it is a no-op when no address is configured.
func startOps(cfg *config.Config, svc *services, stats *opsStats, logger *zap.Logger) func() {
	if cfg.Ops.Addr == "" {
		return func() {}
	}

	health := healthuc.New(svc.pinger, svc.encoder, logger)
	server := chiTransport.NewServer(health, stats, logger)
	srv := &http.Server{
		Addr:         cfg.Ops.Addr,
		Handler:      server.Router(cfg.Ops.APIKeys),
		ReadTimeout:  time.Duration(cfg.Ops.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Ops.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Ops listener started", zap.String("addr", cfg.Ops.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ops listener failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Ops.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Ops listener forced to shutdown", zap.Error(err))
		}
		logger.Info("Ops listener stopped")
	}
}
