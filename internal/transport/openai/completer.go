package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/metrics"
	"github.com/kailas-cloud/commentlens/internal/transport/retry"
)

const kindComplete = "complete"

// Completer is a domain.TextCompleter over the chat completions endpoint.
type Completer struct {
	client   *openai.Client
	model    string
	user     string
	provider string
	retry    retry.Policy
	logger   *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completer.
func NewCompleter(cfg *Config) *Completer {
	return &Completer{
		client:   newClient(cfg),
		model:    cfg.CompletionModel,
		user:     cfg.User,
		provider: providerName(cfg),
		retry:    newRetryPolicy(cfg, kindComplete),
		logger:   cfg.Logger,
	}
}

// Complete implements domain.TextCompleter.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		User:        c.user,
	}
	if req.Format == domain.FormatJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()

	var resp openai.ChatCompletionResponse
	err := c.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, chatReq)
		return callErr //nolint:wrapcheck // classified below
	})

	duration := time.Since(start)

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(c.provider, model, kindComplete, "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(c.provider, model, errorType(err)).Inc()
		return domain.CompletionResult{}, parseAPIError(err, domain.ErrCompleterFailure)
	}
	if len(resp.Choices) == 0 {
		metrics.ProviderRequestsTotal.WithLabelValues(c.provider, model, kindComplete, "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(c.provider, model, "empty_response").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty completion response: %w", domain.ErrCompleterFailure)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(c.provider, model, kindComplete, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(c.provider, model, kindComplete).Observe(duration.Seconds())
	metrics.ProviderTokensTotal.WithLabelValues(c.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.ProviderTokensTotal.WithLabelValues(c.provider, model, "completion").Add(float64(resp.Usage.CompletionTokens))

	c.logger.Debug("Completion received",
		zap.String("model", model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Duration("duration", duration),
	)

	return domain.CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
