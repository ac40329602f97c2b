package pipeline

import (
	"context"

	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
	"github.com/kailas-cloud/commentlens/internal/domain/search/result"
	"github.com/kailas-cloud/commentlens/internal/usecase/embedding"
	"github.com/kailas-cloud/commentlens/internal/usecase/reassign"
)

type reassigner interface {
	Reassign(ctx context.Context, groups []*group.Group, orphans []*item.Item) (reassign.Outcome, error)
}

type embedder interface {
	EmbedMany(ctx context.Context, items []*item.Item, forceRefresh bool) (embedding.Report, error)
	Checkpoint(ctx context.Context) error
}

type searcher interface {
	Execute(ctx context.Context, g *group.Group, req request.Request) (*result.Result, error)
}
