package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/metrics"
	"github.com/kailas-cloud/commentlens/internal/transport/retry"
)

// Completer is a domain.TextCompleter backed by a langchaingo chat model.
type Completer struct {
	model  llms.Model
	name   string
	retry  retry.Policy
	logger *zap.Logger
}

// NewCompleter creates a completer over an OpenAI-compatible chat host.
func NewCompleter(cfg *Config) (*Completer, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.token()),
		openai.WithModel(cfg.CompletionModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain client: %w", err)
	}
	return &Completer{
		model:  client,
		name:   cfg.CompletionModel,
		retry:  cfg.retryPolicy("complete"),
		logger: cfg.Logger,
	}, nil
}

var roles = map[domain.Role]llms.ChatMessageType{
	domain.RoleSystem:    llms.ChatMessageTypeSystem,
	domain.RoleUser:      llms.ChatMessageTypeHuman,
	domain.RoleAssistant: llms.ChatMessageTypeAI,
}

// Complete implements domain.TextCompleter.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		role, ok := roles[m.Role]
		if !ok {
			role = llms.ChatMessageTypeHuman
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(float64(req.Temperature))}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Format == domain.FormatJSON {
		opts = append(opts, llms.WithJSONMode())
	}

	start := time.Now()
	var resp *llms.ContentResponse
	err := c.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.model.GenerateContent(ctx, content, opts...)
		return callErr //nolint:wrapcheck // classified below
	})
	duration := time.Since(start)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(provider, c.name, "complete", "error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues(provider, c.name, errorType(err)).Inc()
		return domain.CompletionResult{}, classifyError("langchain generate", err, domain.ErrCompleterFailure)
	}
	if len(resp.Choices) == 0 {
		metrics.ProviderRequestsTotal.WithLabelValues(provider, c.name, "complete", "error").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty completion response: %w", domain.ErrCompleterFailure)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(provider, c.name, "complete", "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(provider, c.name, "complete").Observe(duration.Seconds())

	choice := resp.Choices[0]
	res := domain.CompletionResult{
		Text:             choice.Content,
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
		TotalTokens:      intInfo(choice.GenerationInfo, "TotalTokens"),
	}

	c.logger.Debug("Langchain completion received",
		zap.String("stop_reason", choice.StopReason),
		zap.Duration("duration", duration),
	)
	return res, nil
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
