// Package langchain implements the text encoder and completer through langchaingo,
// for OpenAI-compatible hosts that the native transport does not cover.
package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/metrics"
	"github.com/kailas-cloud/commentlens/internal/transport/retry"
)

const provider = "langchain"

// Config holds the langchaingo client settings.
type Config struct {
	Token           string
	BaseURL         string
	EmbeddingModel  string
	CompletionModel string
	BatchSize       int
	Logger          *zap.Logger

	// Retry tuning; zero values select 3 attempts with 1s..4s backoff.
	MaxAttempts   int
	RetryMinDelay time.Duration
	RetryMaxDelay time.Duration
}

func (c *Config) retryPolicy(kind string) retry.Policy {
	return retry.New(retry.Config{
		MaxAttempts: c.MaxAttempts,
		MinDelay:    c.RetryMinDelay,
		MaxDelay:    c.RetryMaxDelay,
		Provider:    provider,
		Kind:        kind,
		Logger:      c.Logger,
		Retryable:   isRetryable,
	})
}

func (c *Config) token() string {
	// Local OpenAI-compatible hosts usually accept any token.
	if c.Token == "" {
		return "none"
	}
	return c.Token
}

// Encoder is a domain.TextEncoder backed by a langchaingo embedder.
type Encoder struct {
	embedder embeddings.Embedder
	model    string
	retry    retry.Policy
	logger   *zap.Logger
}

// NewEncoder creates an encoder over an OpenAI-compatible embeddings host.
func NewEncoder(cfg *Config) (*Encoder, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.token()),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain client: %w", err)
	}

	embOpts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		embOpts = append(embOpts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, embOpts...)
	if err != nil {
		return nil, fmt.Errorf("langchain embedder: %w", err)
	}

	return &Encoder{
		embedder: embedder,
		model:    cfg.EmbeddingModel,
		retry:    cfg.retryPolicy("encode"),
		logger:   cfg.Logger,
	}, nil
}

// Encode implements domain.TextEncoder. langchaingo does not report usage,
// so token counts are estimated from text length.
func (e *Encoder) Encode(ctx context.Context, texts []string) (domain.EncodeResult, error) {
	if len(texts) == 0 {
		return domain.EncodeResult{}, nil
	}

	start := time.Now()
	var vectors [][]float32
	err := e.retry.Do(ctx, func() error {
		var callErr error
		vectors, callErr = e.embedder.EmbedDocuments(ctx, texts)
		return callErr //nolint:wrapcheck // classified below
	})
	duration := time.Since(start)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(provider, e.model, "encode", "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(provider, e.model, errorType(err)).Inc()
		return domain.EncodeResult{}, classifyError("langchain embed", err, domain.ErrEncoderFailure)
	}
	if len(vectors) != len(texts) {
		metrics.ProviderRequestsTotal.WithLabelValues(provider, e.model, "encode", "error").Inc()
		return domain.EncodeResult{}, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(texts), len(vectors), domain.ErrEncoderFailure)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(provider, e.model, "encode", "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(provider, e.model, "encode").Observe(duration.Seconds())

	chars := 0
	for _, t := range texts {
		chars += len([]rune(t))
	}
	tokens := domain.EstimateTokens(chars)

	e.logger.Debug("Langchain embeddings generated",
		zap.Int("count", len(texts)),
		zap.Duration("duration", duration),
	)
	return domain.EncodeResult{Vectors: vectors, PromptTokens: tokens, TotalTokens: tokens}, nil
}
