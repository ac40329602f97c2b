// Package ratelimit governs outbound provider calls with a dual sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/metrics"
)

// Defaults match a typical provider tier.
const (
	DefaultRequestsPerMinute = 60
	DefaultTokensPerMinute   = 150000
	DefaultWindow            = time.Minute
	DefaultMargin            = 100 * time.Millisecond
)

// Limiter caps requests and token cost per rolling window.
// All counter access and the reset check happen under mu; mu is released while waiting.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	maxTokens   int
	window      time.Duration
	margin      time.Duration
	maxWait     time.Duration // 0 = wait as long as needed
	requests    int
	tokens      int
	windowStart time.Time
	logger      *zap.Logger
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithWindow overrides the window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

// WithMargin overrides the safety margin added to every wait.
func WithMargin(d time.Duration) Option {
	return func(l *Limiter) { l.margin = d }
}

// WithMaxWait bounds the total time one Acquire may wait before failing with domain.ErrRateLimited.
func WithMaxWait(d time.Duration) Option {
	return func(l *Limiter) { l.maxWait = d }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a limiter admitting maxRequests calls and maxTokens cost units per window.
func New(maxRequests, maxTokens int, opts ...Option) (*Limiter, error) {
	if maxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be positive, got %d: %w", maxRequests, domain.ErrInvalidConfig)
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d: %w", maxTokens, domain.ErrInvalidConfig)
	}

	l := &Limiter{
		maxRequests: maxRequests,
		maxTokens:   maxTokens,
		window:      DefaultWindow,
		margin:      DefaultMargin,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	if l.window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s: %w", l.window, domain.ErrInvalidConfig)
	}
	if l.margin < 0 || l.maxWait < 0 {
		return nil, fmt.Errorf("margin and max wait must not be negative: %w", domain.ErrInvalidConfig)
	}
	l.windowStart = time.Now()
	return l, nil
}

// Acquire blocks until one request costing cost units fits in the window, then records it.
// It fails only on a negative cost, context cancellation, or an exceeded max wait.
func (l *Limiter) Acquire(ctx context.Context, cost int) error {
	if cost < 0 {
		return fmt.Errorf("acquire cost must not be negative, got %d: %w", cost, domain.ErrInvalidConfig)
	}

	start := time.Now()
	waited := false

	l.mu.Lock()
	for {
		l.resetIfNeeded()
		if l.hasCapacity(cost) {
			l.requests++
			l.tokens += cost
			l.mu.Unlock()
			if waited {
				metrics.RateLimitWaitSeconds.Observe(time.Since(start).Seconds())
			}
			return nil
		}

		wait := l.window - time.Since(l.windowStart) + l.margin
		requests, tokens := l.requests, l.tokens
		l.mu.Unlock()

		if l.maxWait > 0 && time.Since(start)+wait > l.maxWait {
			return fmt.Errorf("acquire cost %d: wait %s exceeds %s: %w",
				cost, wait.Round(time.Millisecond), l.maxWait, domain.ErrRateLimited)
		}

		if !waited {
			waited = true
			metrics.RateLimitWaitsTotal.Inc()
			l.logger.Info("Rate limit reached, waiting",
				zap.Duration("wait", wait),
				zap.Int("requests", requests),
				zap.Int("tokens", tokens),
				zap.Int("cost", cost),
			)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("acquire cost %d: %w: %w", cost, domain.ErrRateLimitWait, ctx.Err())
		case <-timer.C:
		}

		l.mu.Lock()
	}
}

// Stats is a snapshot of the current window.
type Stats struct {
	Requests        int
	Tokens          int
	MaxRequests     int
	MaxTokens       int
	WindowRemaining time.Duration
}

// Stats returns the current window counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetIfNeeded()
	return Stats{
		Requests:        l.requests,
		Tokens:          l.tokens,
		MaxRequests:     l.maxRequests,
		MaxTokens:       l.maxTokens,
		WindowRemaining: l.window - time.Since(l.windowStart),
	}
}

// hasCapacity reports whether cost fits. A cost above maxTokens is admitted
// alone into an empty window so it cannot wait forever.
func (l *Limiter) hasCapacity(cost int) bool {
	if l.requests >= l.maxRequests {
		return false
	}
	if l.tokens+cost > l.maxTokens {
		return l.requests == 0 && l.tokens == 0
	}
	return true
}

// resetIfNeeded zeroes counters when the window has been open for its full length.
func (l *Limiter) resetIfNeeded() {
	if time.Since(l.windowStart) >= l.window {
		l.requests = 0
		l.tokens = 0
		l.windowStart = time.Now()
	}
}
