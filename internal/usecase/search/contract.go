package search

import (
	"context"

	"github.com/kailas-cloud/commentlens/internal/domain/vector"
)

// Embedder vectorizes the query text.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) (vector.Vector, error)
}

// Limiter admits rerank calls under the shared rate window.
type Limiter interface {
	Acquire(ctx context.Context, cost int) error
}
