// Package openai implements the text encoder and completer over an OpenAI-compatible API.
package openai

import (
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds the provider settings shared by Encoder and Completer.
type Config struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	CompletionModel string
	Dimensions      int
	User            string
	Provider        string
	Logger          *zap.Logger

	// Retry tuning; zero values select 3 attempts with 1s..4s backoff.
	MaxAttempts   int
	RetryMinDelay time.Duration
	RetryMaxDelay time.Duration
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func providerName(cfg *Config) string {
	if cfg.Provider == "" {
		return "openai"
	}
	return cfg.Provider
}
