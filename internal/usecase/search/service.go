// Package search runs two-stage retrieval over one group: cosine candidate
// generation and filtering, then batched model reranking and local insights.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
	"github.com/kailas-cloud/commentlens/internal/domain/search/result"
	"github.com/kailas-cloud/commentlens/internal/domain/vector"
	"github.com/kailas-cloud/commentlens/internal/logger"
	"github.com/kailas-cloud/commentlens/internal/metrics"
)

// Rerank defaults.
const (
	DefaultRerankBatchSize = 20
	DefaultRerankMaxTokens = 500
	DefaultTemperature     = 0.1
	DefaultContentTruncate = 300
)

// Config tunes the rerank stage. Zero values select the defaults.
type Config struct {
	RerankBatchSize int
	RerankMaxTokens int
	Temperature     float32
	ContentTruncate int
	Model           string
}

func (c *Config) applyDefaults() {
	if c.RerankBatchSize <= 0 {
		c.RerankBatchSize = DefaultRerankBatchSize
	}
	if c.RerankMaxTokens <= 0 {
		c.RerankMaxTokens = DefaultRerankMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.ContentTruncate <= 0 {
		c.ContentTruncate = DefaultContentTruncate
	}
}

// Service executes search requests against a group's items.
type Service struct {
	embed     Embedder
	completer domain.TextCompleter
	limiter   Limiter
	cfg       Config
	logger    *zap.Logger
}

// New creates a search service.
func New(embed Embedder, completer domain.TextCompleter, limiter Limiter, cfg Config, logger *zap.Logger) (*Service, error) {
	if embed == nil || completer == nil || limiter == nil {
		return nil, fmt.Errorf("%w: search requires an embedder, a completer and a limiter", domain.ErrInvalidConfig)
	}
	cfg.applyDefaults()
	return &Service{
		embed:     embed,
		completer: completer,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Execute runs req against g. A failed rerank batch degrades to neutral scores;
// only query vectorization failures and cancellation are returned as errors.
func (s *Service) Execute(ctx context.Context, g *group.Group, req request.Request) (*result.Result, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	log := logger.FromContextOr(ctx, s.logger).With(
		zap.String("group_id", g.ID()),
		zap.String("search", req.Name()),
	)

	qv, err := s.embed.EmbedOne(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	// The query lookup counts as one call whether or not the cache served it.
	externalCalls := 1

	pool := s.semanticFilter(g.Items(), qv, req.CandidatePool(), log)
	stage1 := len(pool)
	pool = applyFilters(pool, req)

	log.Debug("Candidate pool built",
		zap.Int("group_items", g.Len()),
		zap.Int("stage1", stage1),
		zap.Int("filtered", len(pool)),
	)

	if len(pool) == 0 {
		return result.Empty(req, time.Since(start), externalCalls), nil
	}

	rr, err := s.rerank(ctx, req, pool, log)
	if err != nil {
		return nil, err
	}
	externalCalls += rr.issued

	ranked := rankByScore(pool, rr.scores)
	if len(ranked) > req.TopK() {
		ranked = ranked[:req.TopK()]
	}

	items := make([]*item.Item, len(ranked))
	scores := make([]float64, len(ranked))
	for i, c := range ranked {
		items[i] = c.item
		scores[i] = c.score
	}

	insights := extractInsights(items, req)

	res, err := result.New(req, items, scores, insights, time.Since(start), externalCalls, rr.degraded)
	if err != nil {
		return nil, fmt.Errorf("build result: %w", err)
	}

	log.Info("Search completed",
		zap.Int("results", res.Len()),
		zap.Int("external_calls", externalCalls),
		zap.Int("degraded_batches", rr.degraded),
		zap.Duration("elapsed", res.Elapsed()),
	)
	return res, nil
}

// semanticFilter scores every vectorized item against qv and keeps the best n.
func (s *Service) semanticFilter(items []*item.Item, qv vector.Vector, n int, log *zap.Logger) []candidate {
	pool := make([]candidate, 0, len(items))
	var missing, mismatched int
	for _, it := range items {
		if !it.HasVector() {
			missing++
			continue
		}
		sim, err := vector.CosineSimilarity(qv, it.Vector())
		if err != nil {
			if errors.Is(err, domain.ErrVectorDimMismatch) {
				mismatched++
				continue
			}
			log.Warn("Similarity failed", zap.String("item_id", it.ID()), zap.Error(err))
			continue
		}
		pool = append(pool, candidate{item: it, score: sim})
	}

	if missing > 0 || mismatched > 0 {
		log.Warn("Items excluded from semantic filter",
			zap.Int("without_vector", missing),
			zap.Int("dimension_mismatch", mismatched),
		)
	}

	sortStable(pool)
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

func applyFilters(pool []candidate, req request.Request) []candidate {
	filters := req.Filters()
	if filters.IsEmpty() {
		return pool
	}
	kept := pool[:0]
	for _, c := range pool {
		if filters.Match(c.item.Content()) {
			kept = append(kept, c)
		}
	}
	return kept
}
