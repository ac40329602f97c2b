// Package pipeline drives one full run: orphan recovery, embedding, then searches per group.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/recovery"
	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
	"github.com/kailas-cloud/commentlens/internal/domain/search/result"
	"github.com/kailas-cloud/commentlens/internal/logger"
	"github.com/kailas-cloud/commentlens/internal/repository/dataset"
	"github.com/kailas-cloud/commentlens/internal/usecase/embedding"
)

// Config tunes a run.
type Config struct {
	SkipUnassignedInSearch bool
	ForceRefresh           bool
	// StaticSpecs run against every group before its dataset specs.
	StaticSpecs []request.Request
}

// GroupReport is the outcome for one group.
type GroupReport struct {
	Group     *group.Group
	Embedding embedding.Report
	Results   []*result.Result
	Failed    int
	Skipped   bool
}

// Report is the outcome of one run.
type Report struct {
	RunID      string
	Groups     []GroupReport
	Reassigned bool
	Stats      recovery.Stats
	Usage      domain.UsageSnapshot
	Elapsed    time.Duration
}

// Searches returns the number of successful search executions.
func (r *Report) Searches() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Results)
	}
	return n
}

// Runner executes pipeline runs.
type Runner struct {
	reassigner reassigner
	embedder   embedder
	searcher   searcher
	cfg        Config
	logger     *zap.Logger
	newID      func() string
}

// New creates a Runner. A nil reassigner disables orphan recovery.
func New(r reassigner, e embedder, s searcher, cfg Config, logger *zap.Logger) (*Runner, error) {
	if e == nil || s == nil {
		return nil, fmt.Errorf("embedder and searcher are required: %w", domain.ErrInvalidConfig)
	}
	return &Runner{
		reassigner: r,
		embedder:   e,
		searcher:   s,
		cfg:        cfg,
		logger:     logger,
		newID:      uuid.NewString,
	}, nil
}

// Run processes a dataset. Groups are handled one at a time; cancellation is
// honored between steps. The embedding cache is checkpointed on every exit path.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset) (*Report, error) {
	start := time.Now()
	runID := r.newID()
	ctx, log := logger.ContextWithRun(ctx, r.logger, runID)
	ctx, usage := domain.NewContextWithUsage(ctx)

	log.Info("Pipeline run started",
		zap.Int("groups", len(ds.Groups)),
		zap.Int("orphans", len(ds.Orphans)),
		zap.Int("static_specs", len(r.cfg.StaticSpecs)),
	)
	defer func() {
		if err := r.embedder.Checkpoint(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Embedding cache checkpoint failed", zap.Error(err))
		}
	}()

	rep := &Report{RunID: runID}
	groups := ds.Groups
	if r.reassigner != nil {
		out, err := r.reassigner.Reassign(ctx, ds.Groups, ds.Orphans)
		if err != nil {
			return nil, fmt.Errorf("reassign orphans: %w", err)
		}
		groups = out.Groups
		rep.Reassigned = true
		rep.Stats = out.Stats
	} else if len(ds.Orphans) > 0 {
		log.Info("Reassignment disabled, orphans left out of the run", zap.Int("orphans", len(ds.Orphans)))
	}

	rep.Groups = make([]GroupReport, len(groups))
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // caller checks ctx errors
		}
		er, err := r.embedder.EmbedMany(ctx, g.Items(), r.cfg.ForceRefresh)
		if err != nil {
			return nil, fmt.Errorf("embed group %s: %w", g.ID(), err)
		}
		rep.Groups[i] = GroupReport{Group: g, Embedding: er}
		log.Info("Group embedded",
			zap.String("group_id", g.ID()),
			zap.Int("items", g.Len()),
			zap.Int("cached", er.Cached),
			zap.Int("encoded", er.Encoded),
			zap.Int("failed", er.Failed),
		)
	}

	for i := range rep.Groups {
		gr := &rep.Groups[i]
		if gr.Group.Synthetic() && r.cfg.SkipUnassignedInSearch {
			gr.Skipped = true
			log.Info("Skipping synthetic group in search", zap.String("group_id", gr.Group.ID()))
			continue
		}
		if err := r.searchGroup(ctx, gr, ds.Specs(gr.Group.ID()), log); err != nil {
			return nil, err
		}
	}

	rep.Usage = usage.Snapshot()
	rep.Elapsed = time.Since(start)
	log.Info("Pipeline run finished",
		zap.Int("searches", rep.Searches()),
		zap.Int("encoder_tokens", rep.Usage.EncoderTokens),
		zap.Int("completer_tokens", rep.Usage.CompleterTokens),
		zap.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}

func (r *Runner) searchGroup(ctx context.Context, gr *GroupReport, dynamic []request.Request, log *zap.Logger) error {
	g := gr.Group
	if n := g.ReassignedCount(); n > 0 {
		log.Info("Group includes reassigned items",
			zap.String("group_id", g.ID()),
			zap.Int("reassigned", n),
		)
	}

	specs := make([]request.Request, 0, len(r.cfg.StaticSpecs)+len(dynamic))
	specs = append(specs, r.cfg.StaticSpecs...)
	specs = append(specs, dynamic...)
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // caller checks ctx errors
		}
		res, err := r.searcher.Execute(ctx, g, spec)
		if err != nil {
			if isFatal(ctx, err) {
				return fmt.Errorf("search group %s: %w", g.ID(), err)
			}
			gr.Failed++
			log.Warn("Search failed",
				zap.String("group_id", g.ID()),
				zap.String("spec", spec.Name()),
				zap.String("query", spec.Query()),
				zap.Error(err),
			)
			continue
		}
		gr.Results = append(gr.Results, res)
	}
	return nil
}

func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrInvalidCredentials)
}
