package embedding

import (
	"context"

	"github.com/kailas-cloud/commentlens/internal/domain/vector"
)

// cache is the consumer interface for the embedding cache (ISP).
type cache interface {
	Get(hash string) (vector.Vector, bool)
	Set(hash string, v vector.Vector)
	Save(ctx context.Context) error
}

// limiter admits external calls under the shared rate window.
type limiter interface {
	Acquire(ctx context.Context, cost int) error
}

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}
