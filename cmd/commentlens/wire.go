package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/config"
	"github.com/kailas-cloud/commentlens/internal/db"
	dbRedis "github.com/kailas-cloud/commentlens/internal/db/redis"
	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/metrics"
	budgetrepo "github.com/kailas-cloud/commentlens/internal/repository/budget"
	"github.com/kailas-cloud/commentlens/internal/repository/embcache"
	badgersnap "github.com/kailas-cloud/commentlens/internal/repository/snapshot/badger"
	filesnap "github.com/kailas-cloud/commentlens/internal/repository/snapshot/file"
	redissnap "github.com/kailas-cloud/commentlens/internal/repository/snapshot/redis"
	langchainTransport "github.com/kailas-cloud/commentlens/internal/transport/langchain"
	openaiTransport "github.com/kailas-cloud/commentlens/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/commentlens/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/commentlens/internal/usecase/health"
	"github.com/kailas-cloud/commentlens/internal/usecase/pipeline"
	"github.com/kailas-cloud/commentlens/internal/usecase/ratelimit"
	reassignuc "github.com/kailas-cloud/commentlens/internal/usecase/reassign"
	searchuc "github.com/kailas-cloud/commentlens/internal/usecase/search"
)

type snapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Remove(ctx context.Context) error
}

// storage is the embedding cache with its snapshot backend.
type storage struct {
	cache  *embcache.Cache
	pinger healthuc.StorePinger
	kv     db.Store // only set for the redis driver
	close  func()
}

// openStorage opens the snapshot store selected by cfg.Cache.Driver and loads the cache from it.
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	st := &storage{close: func() {}}

	var snap snapshotStore
	switch cfg.Cache.Driver {
	case config.CacheFile:
		fs, err := filesnap.New(cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("file snapshot store: %w", err)
		}
		snap, st.pinger = fs, fs
	case config.CacheBadger:
		bs, err := badgersnap.Open(cfg.Cache.Dir, cfg.Cache.Key, logger)
		if err != nil {
			return nil, fmt.Errorf("badger snapshot store: %w", err)
		}
		snap, st.pinger = bs, bs
		st.close = func() {
			if err := bs.Close(); err != nil {
				logger.Warn("Failed to close badger store", zap.Error(err))
			}
		}
	case config.CacheRedis:
		kv, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := kv.WaitForReady(ctx, timeout); err != nil {
			kv.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Cache.Addrs))
		snap, st.pinger, st.kv = redissnap.New(kv, cfg.Cache.Key), kv, kv
		st.close = kv.Close
	default:
		return nil, fmt.Errorf("%w: unknown cache driver %q", domain.ErrInvalidConfig, cfg.Cache.Driver)
	}

	st.cache = embcache.New(snap, metrics.EmbeddingCacheTotal, logger)
	st.cache.Load(ctx)
	logger.Info("Embedding cache ready",
		zap.String("driver", cfg.Cache.Driver),
		zap.Int("entries", st.cache.Len()),
	)
	return st, nil
}

// services is the full object graph behind the run, reassign and search commands.
type services struct {
	*storage
	limiter  *ratelimit.Limiter
	budget   *embeddinguc.BudgetTracker
	encoder  *embeddinguc.InstrumentedEncoder
	embedder *embeddinguc.Embedder
	search   *searchuc.Service
	reassign *reassignuc.Service // nil when reassignment is disabled
}

func buildServices(ctx context.Context, cfg *config.Config, st *storage, logger *zap.Logger) (*services, error) {
	svc := &services{storage: st}

	limiter, err := ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.TokensPerMinute,
		ratelimit.WithWindow(cfg.RateLimit.Window()),
		ratelimit.WithMargin(cfg.RateLimit.Margin()),
		ratelimit.WithMaxWait(cfg.RateLimit.MaxWait()),
		ratelimit.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	svc.limiter = limiter

	// Single BudgetTracker shared by the encoder and the completer.
	budgetCfg := cfg.Provider.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == string(embeddinguc.BudgetActionReject) {
			action = embeddinguc.BudgetActionReject
		}
		svc.budget = embeddinguc.NewBudgetTracker(
			cfg.Provider.Driver, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		if st.kv != nil {
			svc.budget.WithStore(ctx, budgetrepo.New(st.kv, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
		}
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetChecker embeddinguc.BudgetChecker
	if svc.budget != nil {
		budgetChecker = svc.budget
	}

	encoder, completer, err := buildProvider(&cfg.Provider, cfg.Embedding.BatchSize, logger)
	if err != nil {
		return nil, err
	}
	svc.encoder = embeddinguc.NewInstrumentedEncoder(
		encoder, cfg.Provider.Driver, cfg.Provider.EmbeddingModel, budgetChecker, logger,
	)
	instrumentedCompleter := embeddinguc.NewInstrumentedCompleter(
		completer, cfg.Provider.Driver, cfg.Provider.CompletionModel, budgetChecker, logger,
	)

	svc.embedder, err = embeddinguc.New(svc.encoder, st.cache, limiter, cfg.Embedding.BatchSize, logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	// Query vectors carry the instruction prefix, so they get their own
	// process-lifetime cache instead of sharing item vectors' hashes.
	queryEmbedder := svc.embedder
	if cfg.Provider.QueryInstruction != "" {
		queryEmbedder, err = embeddinguc.New(
			domain.NewInstructionEncoder(svc.encoder, cfg.Provider.QueryInstruction),
			embcache.New(nil, metrics.EmbeddingCacheTotal, logger),
			limiter, cfg.Embedding.BatchSize, logger,
		)
		if err != nil {
			return nil, fmt.Errorf("query embedder: %w", err)
		}
	}

	svc.search, err = searchuc.New(queryEmbedder, instrumentedCompleter, limiter, searchuc.Config{
		RerankBatchSize: cfg.Search.RerankBatchSize,
		RerankMaxTokens: cfg.Search.RerankMaxTokens,
		Temperature:     cfg.Search.Temperature,
		ContentTruncate: cfg.Search.ContentTruncate,
		Model:           cfg.Provider.CompletionModel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("search service: %w", err)
	}

	if cfg.Reassign.IsEnabled() {
		svc.reassign, err = reassignuc.New(svc.embedder, reassignuc.Config{
			SimilarityThreshold:   cfg.Reassign.Threshold(),
			CreateUnassignedGroup: cfg.Reassign.Bucket(),
			UseCentroids:          cfg.Reassign.UseCentroids,
			Workers:               cfg.Reassign.Workers,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("reassign service: %w", err)
		}
	}

	logger.Info("Services wired",
		zap.String("provider", cfg.Provider.Driver),
		zap.String("embedding_model", cfg.Provider.EmbeddingModel),
		zap.String("completion_model", cfg.Provider.CompletionModel),
		zap.Bool("reassign", svc.reassign != nil),
	)
	return svc, nil
}

// newRunner builds a pipeline runner over the wired services.
func (svc *services) newRunner(cfg *config.Config, force bool, logger *zap.Logger) (*pipeline.Runner, error) {
	static, err := cfg.StaticRequests()
	if err != nil {
		return nil, fmt.Errorf("static specs: %w", err)
	}
	runCfg := pipeline.Config{
		SkipUnassignedInSearch: cfg.Pipeline.SkipUnassignedInSearch,
		ForceRefresh:           force,
		StaticSpecs:            static,
	}

	// Same nil-interface rule as the budget checker.
	var runner *pipeline.Runner
	if svc.reassign != nil {
		runner, err = pipeline.New(svc.reassign, svc.embedder, svc.search, runCfg, logger)
	} else {
		runner, err = pipeline.New(nil, svc.embedder, svc.search, runCfg, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline runner: %w", err)
	}
	return runner, nil
}

// buildProvider creates the raw encoder and completer for cfg.Driver.
func buildProvider(
	cfg *config.ProviderConfig, batchSize int, logger *zap.Logger,
) (domain.TextEncoder, domain.TextCompleter, error) {
	switch cfg.Driver {
	case config.ProviderOpenAI:
		oc := &openaiTransport.Config{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			EmbeddingModel:  cfg.EmbeddingModel,
			CompletionModel: cfg.CompletionModel,
			Dimensions:      cfg.Dimensions,
			Provider:        cfg.Driver,
			Logger:          logger,
			MaxAttempts:     cfg.MaxAttempts,
		}
		return openaiTransport.NewEncoder(oc), openaiTransport.NewCompleter(oc), nil
	case config.ProviderLangchain:
		lc := &langchainTransport.Config{
			Token:           cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			EmbeddingModel:  cfg.EmbeddingModel,
			CompletionModel: cfg.CompletionModel,
			BatchSize:       batchSize,
			Logger:          logger,
			MaxAttempts:     cfg.MaxAttempts,
		}
		enc, err := langchainTransport.NewEncoder(lc)
		if err != nil {
			return nil, nil, fmt.Errorf("langchain encoder: %w", err)
		}
		comp, err := langchainTransport.NewCompleter(lc)
		if err != nil {
			return nil, nil, fmt.Errorf("langchain completer: %w", err)
		}
		return enc, comp, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown provider driver %q", domain.ErrInvalidConfig, cfg.Driver)
	}
}
