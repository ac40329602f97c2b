package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/metrics"
)

// InstrumentedEncoder wraps a TextEncoder with budget enforcement, run usage and logging.
// Transport metrics (requests, duration, tokens) are recorded in the transport packages.
type InstrumentedEncoder struct {
	inner    domain.TextEncoder
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedEncoder wraps an encoder. budget may be nil.
func NewInstrumentedEncoder(
	inner domain.TextEncoder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEncoder {
	return &InstrumentedEncoder{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Encode checks the budget, delegates, and records usage.
func (p *InstrumentedEncoder) Encode(ctx context.Context, texts []string) (domain.EncodeResult, error) {
	if len(texts) == 0 {
		return domain.EncodeResult{}, nil
	}
	if err := checkBudget(ctx, p.budget); err != nil {
		p.logger.Error("Budget exceeded",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("batch_size", len(texts)),
			zap.Error(err),
		)
		return domain.EncodeResult{}, err
	}

	start := time.Now()
	res, err := p.inner.Encode(ctx, texts)
	duration := time.Since(start)
	if err != nil {
		p.logger.Error("Encode request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("batch_size", len(texts)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EncodeResult{}, fmt.Errorf("encode: %w", err)
	}

	recordBudget(p.budget, p.provider, res.TotalTokens)
	domain.UsageFromContext(ctx).AddEncoder(res.TotalTokens)

	p.logger.Debug("Encode request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// HealthCheck delegates to the inner encoder when it supports health checks.
func (p *InstrumentedEncoder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}

// InstrumentedCompleter is the completer counterpart of InstrumentedEncoder.
type InstrumentedCompleter struct {
	inner    domain.TextCompleter
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedCompleter wraps a completer. budget may be nil.
func NewInstrumentedCompleter(
	inner domain.TextCompleter, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedCompleter {
	return &InstrumentedCompleter{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Complete checks the budget, delegates, and records usage.
func (p *InstrumentedCompleter) Complete(
	ctx context.Context, req domain.CompletionRequest,
) (domain.CompletionResult, error) {
	if err := checkBudget(ctx, p.budget); err != nil {
		p.logger.Error("Budget exceeded",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Error(err),
		)
		return domain.CompletionResult{}, err
	}

	start := time.Now()
	res, err := p.inner.Complete(ctx, req)
	duration := time.Since(start)
	if err != nil {
		p.logger.Error("Completion request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}

	recordBudget(p.budget, p.provider, res.TotalTokens)
	domain.UsageFromContext(ctx).AddCompleter(res.TotalTokens)

	p.logger.Debug("Completion request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
	)
	return res, nil
}

func checkBudget(ctx context.Context, b BudgetChecker) error {
	if b == nil {
		return nil
	}
	if err := b.Check(ctx); err != nil {
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func recordBudget(b BudgetChecker, provider string, tokens int) {
	if b == nil || tokens <= 0 {
		return
	}
	b.Record(int64(tokens))
	remaining := metrics.BudgetTokensRemaining
	remaining.WithLabelValues(provider, "daily").Set(float64(b.RemainingDaily()))
	remaining.WithLabelValues(provider, "monthly").Set(float64(b.RemainingMonthly()))
}
