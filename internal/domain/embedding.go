package domain

import (
	"context"
	"fmt"
)

// TextEncoder is the shared text vectorization contract between layers.
// Encode returns one vector per input text, in input order.
type TextEncoder interface {
	Encode(ctx context.Context, texts []string) (EncodeResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EncodeResult carries vectors and token usage through the decorator chain.
type EncodeResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// InstructionEncoder is a domain decorator that prepends instruction text before encoding.
type InstructionEncoder struct {
	inner       TextEncoder
	instruction string
}

// NewInstructionEncoder creates a decorator that prepends instruction text.
func NewInstructionEncoder(inner TextEncoder, instruction string) *InstructionEncoder {
	return &InstructionEncoder{inner: inner, instruction: instruction}
}

// Encode prepends the instruction to each text and delegates to the inner encoder.
func (e *InstructionEncoder) Encode(ctx context.Context, texts []string) (EncodeResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.instruction + t
	}

	res, err := e.inner.Encode(ctx, prefixed)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("instruction encode: %w", err)
	}
	return res, nil
}

// HealthCheck delegates to the inner encoder when it supports health checks.
func (e *InstructionEncoder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}
