// Package reassign recovers orphaned items whose parent reference did not resolve.
package reassign

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/recovery"
	"github.com/kailas-cloud/commentlens/internal/domain/vector"
	"github.com/kailas-cloud/commentlens/internal/logger"
	"github.com/kailas-cloud/commentlens/internal/metrics"
	"github.com/kailas-cloud/commentlens/internal/usecase/embedding"
)

const (
	// DefaultSimilarityThreshold is the minimum mean cosine for a semantic assignment.
	DefaultSimilarityThreshold = 0.7
	// DefaultWorkers is the size of the similarity scoring pool.
	DefaultWorkers = 4

	topParentIDs = 10
)

// Embedder fills missing item vectors.
type Embedder interface {
	EmbedMany(ctx context.Context, items []*item.Item, forceRefresh bool) (embedding.Report, error)
}

// Config tunes the reassigner.
type Config struct {
	SimilarityThreshold   float64
	CreateUnassignedGroup bool
	UseCentroids          bool
	Workers               int
	Strategies            []Strategy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:   DefaultSimilarityThreshold,
		CreateUnassignedGroup: true,
		Workers:               DefaultWorkers,
	}
}

// Outcome is the result of one reassignment run.
// Groups holds the input groups in order, followed by the synthetic bucket when one was filled.
// Remaining lists orphans left unowned because the bucket is disabled.
type Outcome struct {
	Groups    []*group.Group
	Remaining []*item.Item
	Stats     recovery.Stats
}

// Service runs the three recovery passes.
type Service struct {
	embedder Embedder
	cfg      Config
	logger   *zap.Logger
}

// New creates a reassigner. A nil embedder disables the similarity pass.
func New(embedder Embedder, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v outside [0,1]: %w", cfg.SimilarityThreshold, domain.ErrInvalidConfig)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}
	if cfg.UseCentroids {
		logger.Warn("Centroid similarity enabled; groups are compared by mean vector instead of per member")
	}
	return &Service{embedder: embedder, cfg: cfg, logger: logger}, nil
}

// Reassign resolves every orphan to exactly one terminal state: a pattern match,
// a semantic match, or the residual bucket.
//
// Groups and orphans are mutated in place as each pass resolves items. When ctx is
// done before the first pass nothing is touched. An error after that point leaves
// the orphans resolved so far inside their groups with provenance set, while the
// rest stay orphaned; the returned Outcome is then empty and callers should discard
// the groups rather than retry on them.
func (s *Service) Reassign(ctx context.Context, groups []*group.Group, orphans []*item.Item) (Outcome, error) {
	log := logger.FromContextOr(ctx, s.logger)
	if err := validateOrphans(orphans); err != nil {
		return Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err //nolint:wrapcheck // caller checks ctx errors
	}

	stats := recovery.NewStats(len(orphans))
	out := Outcome{Groups: slices.Clone(groups)}
	if len(orphans) == 0 {
		log.Info("No orphaned items")
		return Outcome{Groups: out.Groups, Stats: stats}, nil
	}
	log.Info("Reassigning orphaned items",
		zap.Int("orphans", len(orphans)),
		zap.Int("groups", len(groups)),
	)
	logParentHistogram(log, orphans)

	remaining, err := s.patternPass(orphans, groups, &stats)
	if err != nil {
		return Outcome{}, err
	}
	log.Info("Pattern pass done",
		zap.Int("recovered", stats.RecoveredByPattern),
		zap.Int("remaining", len(remaining)),
	)
	if err := ctx.Err(); err != nil {
		return Outcome{}, err //nolint:wrapcheck // caller checks ctx errors
	}

	remaining, err = s.similarityPass(ctx, remaining, groups, &stats, log)
	if err != nil {
		return Outcome{}, err
	}

	bucket, err := s.residualPass(remaining, groups, &stats)
	if err != nil {
		return Outcome{}, err
	}
	if bucket != nil && !slices.Contains(out.Groups, bucket) {
		out.Groups = append(out.Groups, bucket)
	}
	if bucket == nil {
		out.Remaining = remaining
	}
	out.Stats = stats

	log.Info("Reassignment complete",
		zap.Int("total", stats.TotalOrphaned),
		zap.Int("pattern", stats.RecoveredByPattern),
		zap.Int("similarity", stats.RecoveredBySimilarity),
		zap.Int("unassigned", stats.Unassigned),
		zap.Float64("recovery_rate", stats.RecoveryRate()),
		zap.Bool("similarity_degraded", stats.SimilarityDegraded),
	)
	return out, nil
}

func validateOrphans(orphans []*item.Item) error {
	for _, o := range orphans {
		if o.GroupID() != "" {
			return fmt.Errorf("orphan %s: %w", o.ID(), domain.ErrAlreadyOwned)
		}
		if _, ok := o.Provenance(); ok {
			return fmt.Errorf("orphan %s: %w", o.ID(), domain.ErrProvenanceSet)
		}
	}
	return nil
}

func (s *Service) patternPass(orphans []*item.Item, groups []*group.Group, stats *recovery.Stats) ([]*item.Item, error) {
	remaining := make([]*item.Item, 0, len(orphans))
	for _, o := range orphans {
		g, method := matchPattern(s.cfg.Strategies, o.ParentID(), groups)
		if g == nil {
			remaining = append(remaining, o)
			continue
		}
		if err := resolve(g, o, item.NewProvenance(method), stats); err != nil {
			return nil, err
		}
	}
	return remaining, nil
}

// target is an immutable view of one group's vectors taken before scoring.
type target struct {
	g       *group.Group
	vectors []vector.Vector
}

type match struct {
	g     *group.Group
	score float64
}

func (s *Service) similarityPass(
	ctx context.Context,
	orphans []*item.Item,
	groups []*group.Group,
	stats *recovery.Stats,
	log *zap.Logger,
) ([]*item.Item, error) {
	if len(orphans) == 0 {
		return orphans, nil
	}
	if s.embedder == nil {
		log.Warn("No embedder configured, skipping similarity pass")
		stats.SimilarityDegraded = true
		return orphans, nil
	}

	if err := s.embedMissing(ctx, orphans, groups, log); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Error("Embedding for similarity pass failed, skipping", zap.Error(err))
		stats.SimilarityDegraded = true
		return orphans, nil
	}

	targets, err := s.snapshot(groups)
	if err != nil {
		return nil, err
	}
	log.Info("Scoring orphans by similarity",
		zap.Int("orphans", len(orphans)),
		zap.Int("targets", len(targets)),
		zap.Float64("threshold", s.cfg.SimilarityThreshold),
	)

	results, err := s.score(ctx, orphans, targets)
	if err != nil {
		return nil, err
	}

	remaining := make([]*item.Item, 0, len(orphans))
	for i, o := range orphans {
		m := results[i]
		if m.g == nil || m.score < s.cfg.SimilarityThreshold {
			remaining = append(remaining, o)
			continue
		}
		if err := resolve(m.g, o, item.NewSemanticProvenance(m.score), stats); err != nil {
			return nil, err
		}
		log.Debug("Orphan matched by similarity",
			zap.String("item_id", o.ID()),
			zap.String("group_id", m.g.ID()),
			zap.Float64("score", m.score),
		)
	}
	return remaining, nil
}

func (s *Service) embedMissing(ctx context.Context, orphans []*item.Item, groups []*group.Group, log *zap.Logger) error {
	var missing []*item.Item
	for _, o := range orphans {
		if !o.HasVector() {
			missing = append(missing, o)
		}
	}
	for _, g := range groups {
		if g.Synthetic() {
			continue
		}
		for _, it := range g.Items() {
			if !it.HasVector() {
				missing = append(missing, it)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	rep, err := s.embedder.EmbedMany(ctx, missing, false)
	if err != nil {
		return fmt.Errorf("embed for similarity: %w", err)
	}
	log.Info("Embedded items for similarity pass",
		zap.Int("cached", rep.Cached),
		zap.Int("encoded", rep.Encoded),
		zap.Int("failed", rep.Failed),
	)
	return nil
}

func (s *Service) snapshot(groups []*group.Group) ([]target, error) {
	targets := make([]target, 0, len(groups))
	for _, g := range groups {
		if g.Synthetic() {
			continue
		}
		vecs := g.Vectors()
		if len(vecs) == 0 {
			continue
		}
		if s.cfg.UseCentroids {
			c, err := vector.Centroid(vecs)
			if err != nil {
				return nil, fmt.Errorf("centroid of group %s: %w", g.ID(), err)
			}
			vecs = []vector.Vector{c}
		}
		targets = append(targets, target{g: g, vectors: vecs})
	}
	return targets, nil
}

// score fans per-orphan scoring out over the worker pool. Workers only read the
// target snapshot and write their own result slot.
func (s *Service) score(ctx context.Context, orphans []*item.Item, targets []target) ([]match, error) {
	results := make([]match, len(orphans))
	if len(targets) == 0 {
		return results, nil
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create scoring pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, o := range orphans {
		if !o.HasVector() {
			continue
		}
		v := o.Vector()
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[i] = bestTarget(v, targets)
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit scoring task: %w", submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // caller checks ctx errors
	}
	return results, nil
}

// bestTarget returns the highest scoring group. Only a strictly greater score
// replaces the current best, so ties keep the earlier group.
func bestTarget(v vector.Vector, targets []target) match {
	var best match
	for _, t := range targets {
		sim, err := vector.MeanCosine(v, t.vectors)
		if err != nil {
			continue
		}
		if sim > best.score {
			best = match{g: t.g, score: sim}
		}
	}
	return best
}

func (s *Service) residualPass(remaining []*item.Item, groups []*group.Group, stats *recovery.Stats) (*group.Group, error) {
	if len(remaining) == 0 {
		return nil, nil
	}
	if !s.cfg.CreateUnassignedGroup {
		for range remaining {
			record(stats, item.MethodUnassigned)
		}
		return nil, nil
	}

	bucket := findBucket(groups)
	if bucket == nil {
		bucket = group.NewUnassigned()
	}
	for _, o := range remaining {
		if err := resolve(bucket, o, item.NewProvenance(item.MethodUnassigned), stats); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

func findBucket(groups []*group.Group) *group.Group {
	for _, g := range groups {
		if g.Synthetic() && g.ID() == group.UnassignedID {
			return g
		}
	}
	return nil
}

func resolve(g *group.Group, o *item.Item, p item.Provenance, stats *recovery.Stats) error {
	if err := g.Add(o); err != nil {
		return fmt.Errorf("reassign %s: %w", o.ID(), err)
	}
	if err := o.MarkResolved(p); err != nil {
		return fmt.Errorf("reassign %s: %w", o.ID(), err)
	}
	record(stats, p.Method())
	return nil
}

func record(stats *recovery.Stats, m item.Method) {
	stats.Record(m)
	metrics.ReassignedTotal.WithLabelValues(string(m)).Inc()
}

func logParentHistogram(log *zap.Logger, orphans []*item.Item) {
	counts := make(map[string]int)
	for _, o := range orphans {
		counts[o.ParentID()]++
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(ids) > topParentIDs {
		ids = ids[:topParentIDs]
	}
	top := make([]string, len(ids))
	for i, id := range ids {
		top[i] = id + "=" + strconv.Itoa(counts[id])
	}
	log.Info("Orphan parent references",
		zap.Int("distinct", len(counts)),
		zap.Strings("top", top),
	)
}
