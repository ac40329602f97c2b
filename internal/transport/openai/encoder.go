package openai

import (
	"context"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/metrics"
	"github.com/kailas-cloud/commentlens/internal/transport/retry"
)

const kindEncode = "encode"

// Encoder is a domain.TextEncoder over the embeddings endpoint.
type Encoder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	retry      retry.Policy
	logger     *zap.Logger
}

// NewEncoder creates an OpenAI-compatible encoder.
func NewEncoder(cfg *Config) *Encoder {
	return &Encoder{
		client:     newClient(cfg),
		model:      openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   providerName(cfg),
		retry:      newRetryPolicy(cfg, kindEncode),
		logger:     cfg.Logger,
	}
}

// Encode implements domain.TextEncoder. Vectors come back in input order.
func (e *Encoder) Encode(ctx context.Context, texts []string) (domain.EncodeResult, error) {
	if len(texts) == 0 {
		return domain.EncodeResult{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	model := string(e.model)
	start := time.Now()

	var resp openai.EmbeddingResponse
	err := e.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = e.client.CreateEmbeddings(ctx, req)
		return callErr //nolint:wrapcheck // classified below
	})

	duration := time.Since(start)

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(e.provider, model, kindEncode, "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(e.provider, model, errorType(err)).Inc()
		return domain.EncodeResult{}, parseAPIError(err, domain.ErrEncoderFailure)
	}

	if len(resp.Data) != len(texts) {
		metrics.ProviderRequestsTotal.WithLabelValues(e.provider, model, kindEncode, "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(e.provider, model, "count_mismatch").Inc()
		return domain.EncodeResult{}, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(texts), len(resp.Data), domain.ErrEncoderFailure)
	}

	// The API may return items out of order.
	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	metrics.ProviderRequestsTotal.WithLabelValues(e.provider, model, kindEncode, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(e.provider, model, kindEncode).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.ProviderTokensTotal.WithLabelValues(e.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.ProviderTokensTotal.WithLabelValues(e.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return domain.EncodeResult{
		Vectors:      vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Encoder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
