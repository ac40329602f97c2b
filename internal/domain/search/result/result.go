package result

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
)

// Insights are heuristics derived locally from the top results.
// Zero values mean the field was not requested or had no signal.
type Insights struct {
	AvgSentiment     *float64
	Topics           []string
	Suggestions      []string
	QuestionCategory string
}

// Result is the outcome of one search execution. Items and scores are parallel,
// scores lie in [0,1] and never increase along the slice.
type Result struct {
	req             request.Request
	items           []*item.Item
	scores          []float64
	insights        Insights
	elapsed         time.Duration
	externalCalls   int
	degradedBatches int
}

// New validates and creates a search result.
func New(
	req request.Request, items []*item.Item, scores []float64,
	insights Insights, elapsed time.Duration, externalCalls, degradedBatches int,
) (*Result, error) {
	if len(items) != len(scores) {
		return nil, fmt.Errorf("result has %d items but %d scores", len(items), len(scores))
	}
	for i, s := range scores {
		if s < 0 || s > 1 {
			return nil, fmt.Errorf("score %d out of range: %f", i, s)
		}
		if i > 0 && s > scores[i-1] {
			return nil, fmt.Errorf("scores not ordered at %d: %f > %f", i, s, scores[i-1])
		}
	}
	return &Result{
		req:             req,
		items:           items,
		scores:          scores,
		insights:        insights,
		elapsed:         elapsed,
		externalCalls:   externalCalls,
		degradedBatches: degradedBatches,
	}, nil
}

// Empty creates a result with no matches.
func Empty(req request.Request, elapsed time.Duration, externalCalls int) *Result {
	return &Result{req: req, elapsed: elapsed, externalCalls: externalCalls}
}

// Request returns the executed search request.
func (r *Result) Request() request.Request { return r.req }

// Items returns matched items, best first.
func (r *Result) Items() []*item.Item { return r.items }

// Scores returns relevance scores parallel to Items.
func (r *Result) Scores() []float64 { return r.scores }

// Len returns the number of matches.
func (r *Result) Len() int { return len(r.items) }

// Insights returns the derived insights.
func (r *Result) Insights() Insights { return r.insights }

// Elapsed returns wall-clock execution time.
func (r *Result) Elapsed() time.Duration { return r.elapsed }

// ExternalCalls returns one for the query lookup, counted even when the cache served it,
// plus one per rerank batch issued.
func (r *Result) ExternalCalls() int { return r.externalCalls }

// DegradedBatches returns how many rerank batches fell back to neutral scores.
func (r *Result) DegradedBatches() int { return r.degradedBatches }

// Top returns at most n best items.
func (r *Result) Top(n int) []*item.Item {
	if n > len(r.items) {
		n = len(r.items)
	}
	if n < 0 {
		n = 0
	}
	return r.items[:n]
}
