package search

import (
	"sort"

	"github.com/kailas-cloud/commentlens/internal/domain/item"
)

// candidate is an item with its current relevance score.
type candidate struct {
	item  *item.Item
	score float64
}

// sortStable orders candidates by score descending; ties keep their input order.
func sortStable(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].score > cs[j].score
	})
}

// rankByScore pairs the pool with rerank scores (parallel slices) and sorts the copy.
func rankByScore(pool []candidate, scores []float64) []candidate {
	ranked := make([]candidate, len(pool))
	for i, c := range pool {
		ranked[i] = candidate{item: c.item, score: scores[i]}
	}
	sortStable(ranked)
	return ranked
}
