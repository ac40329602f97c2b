package domain

import (
	"context"
	"sync"
)

type usageKey struct{}

// Usage collects provider token usage for a single pipeline run.
// The runner puts a pointer into the context; instrumented providers add to it.
type Usage struct {
	mu              sync.Mutex
	encoderTokens   int
	completerTokens int
	encoderCalls    int
	completerCalls  int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEncoder records one encoder call and its tokens.
func (u *Usage) AddEncoder(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.encoderCalls++
	u.encoderTokens += tokens
	u.mu.Unlock()
}

// AddCompleter records one completer call and its tokens.
func (u *Usage) AddCompleter(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.completerCalls++
	u.completerTokens += tokens
	u.mu.Unlock()
}

// UsageSnapshot is a point-in-time copy of Usage.
type UsageSnapshot struct {
	EncoderCalls    int
	EncoderTokens   int
	CompleterCalls  int
	CompleterTokens int
}

// Snapshot returns the current counters.
func (u *Usage) Snapshot() UsageSnapshot {
	if u == nil {
		return UsageSnapshot{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return UsageSnapshot{
		EncoderCalls:    u.encoderCalls,
		EncoderTokens:   u.encoderTokens,
		CompleterCalls:  u.completerCalls,
		CompleterTokens: u.completerTokens,
	}
}
