// Package retry runs provider calls under a bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/commentlens/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultMinDelay    = time.Second
	DefaultMaxDelay    = 4 * time.Second
)

// Config tunes a Policy. Zero values select the defaults.
type Config struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Provider    string
	Kind        string
	Logger      *zap.Logger

	// Retryable classifies a call error; nil retries nothing.
	Retryable func(error) bool
}

// Policy re-runs transient failures with doubling delays capped at MaxDelay.
type Policy struct {
	attempts  int
	minDelay  time.Duration
	maxDelay  time.Duration
	provider  string
	kind      string
	logger    *zap.Logger
	retryable func(error) bool
}

// New creates a policy from cfg.
func New(cfg Config) Policy {
	p := Policy{
		attempts:  cfg.MaxAttempts,
		minDelay:  cfg.MinDelay,
		maxDelay:  cfg.MaxDelay,
		provider:  cfg.Provider,
		kind:      cfg.Kind,
		logger:    cfg.Logger,
		retryable: cfg.Retryable,
	}
	if p.attempts <= 0 {
		p.attempts = DefaultMaxAttempts
	}
	if p.minDelay <= 0 {
		p.minDelay = DefaultMinDelay
	}
	if p.maxDelay < p.minDelay {
		p.maxDelay = max(DefaultMaxDelay, p.minDelay)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.retryable == nil {
		p.retryable = func(error) bool { return false }
	}
	return p
}

// Attempts returns the total number of calls Do makes at most.
func (p Policy) Attempts() int { return p.attempts }

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.minDelay
	b.MaxInterval = p.maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts-1)), ctx) //nolint:gosec // attempts > 0
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The last error from fn is returned unchanged.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var last error
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		last = fn()
		if last != nil && !p.retryable(last) {
			return backoff.Permanent(last)
		}
		return last
	}, p.backOff(ctx), func(err error, delay time.Duration) {
		metrics.ProviderRetriesTotal.WithLabelValues(p.provider, p.kind).Inc()
		p.logger.Warn("Provider call failed, retrying",
			zap.String("provider", p.provider),
			zap.String("kind", p.kind),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	})
	if err != nil && last != nil {
		return last
	}
	return err
}
