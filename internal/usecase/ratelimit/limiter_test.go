package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

const testWindow = 150 * time.Millisecond

func newTestLimiter(t *testing.T, requests, tokens int, opts ...Option) *Limiter {
	t.Helper()
	opts = append([]Option{WithWindow(testWindow), WithMargin(5 * time.Millisecond)}, opts...)
	l, err := New(requests, tokens, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		requests int
		tokens   int
		opts     []Option
	}{
		{"zero requests", 0, 10, nil},
		{"zero tokens", 10, 0, nil},
		{"zero window", 10, 10, []Option{WithWindow(0)}},
		{"negative margin", 10, 10, []Option{WithMargin(-time.Second)}},
		{"negative max wait", 10, 10, []Option{WithMaxWait(-time.Second)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.requests, tc.tokens, tc.opts...); !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestAcquire_NegativeCost(t *testing.T) {
	l := newTestLimiter(t, 5, 100)
	if err := l.Acquire(context.Background(), -1); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestAcquire_WithinCapacityDoesNotWait(t *testing.T) {
	l := newTestLimiter(t, 5, 1000)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(context.Background(), 1); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > testWindow/2 {
		t.Errorf("5 acquires took %s, expected no wait", elapsed)
	}

	s := l.Stats()
	if s.Requests != 5 || s.Tokens != 5 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAcquire_RequestCapBlocksUntilReset(t *testing.T) {
	l := newTestLimiter(t, 3, 1000)

	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background(), 1); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	start := time.Now()
	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("fourth acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < testWindow/2 {
		t.Errorf("fourth acquire returned after %s, expected to wait for reset", elapsed)
	}

	// Post-reset counters reflect only post-reset activity.
	if s := l.Stats(); s.Requests != 1 || s.Tokens != 1 {
		t.Errorf("post-reset stats = %+v", s)
	}
}

func TestAcquire_TokenCapBlocks(t *testing.T) {
	l := newTestLimiter(t, 100, 100)

	if err := l.Acquire(context.Background(), 60); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	start := time.Now()
	if err := l.Acquire(context.Background(), 60); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < testWindow/2 {
		t.Errorf("token-capped acquire returned after %s", elapsed)
	}
}

func TestAcquire_OversizeCostAdmittedInEmptyWindow(t *testing.T) {
	l := newTestLimiter(t, 10, 100)

	start := time.Now()
	if err := l.Acquire(context.Background(), 500); err != nil {
		t.Fatalf("oversize acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed > testWindow/2 {
		t.Errorf("oversize acquire in empty window waited %s", elapsed)
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	l := newTestLimiter(t, 1, 100, WithWindow(time.Minute))

	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx, 1)
	if !errors.Is(err, domain.ErrRateLimitWait) {
		t.Fatalf("expected ErrRateLimitWait, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped DeadlineExceeded, got %v", err)
	}
	if s := l.Stats(); s.Requests != 1 {
		t.Errorf("cancelled acquire must not be counted, stats = %+v", s)
	}
}

func TestAcquire_MaxWaitExceeded(t *testing.T) {
	l := newTestLimiter(t, 1, 100, WithWindow(time.Minute), WithMaxWait(50*time.Millisecond))

	if err := l.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	start := time.Now()
	err := l.Acquire(context.Background(), 1)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("max wait failure took %s", elapsed)
	}
}

func TestAcquire_ConcurrentCallers(t *testing.T) {
	l := newTestLimiter(t, 4, 1000)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	start := time.Now()
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Acquire(context.Background(), 10)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent acquire: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < testWindow/2 {
		t.Errorf("8 acquires with cap 4 finished in %s, expected one window wait", elapsed)
	}
	if s := l.Stats(); s.Requests > 4 || s.Tokens > 40 {
		t.Errorf("window over capacity: %+v", s)
	}
}
