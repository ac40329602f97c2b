package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and recovery Prometheus metrics.
var (
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	RateLimitWaitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Acquire calls that had to wait for window capacity",
		},
	)

	RateLimitWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for rate limit capacity",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)

	RerankBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_batches_total",
			Help:      "Rerank batches by outcome",
		},
		[]string{"outcome"}, // "scored" / "degraded"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ReassignedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reassigned_items_total",
			Help:      "Orphaned items by terminal reassignment method",
		},
		[]string{"method"},
	)
)

var registered bool

// RegisterMetrics registers all Prometheus metrics. Must be called once from main.
func RegisterMetrics() {
	if registered {
		return
	}
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderTokensTotal,
		ProviderErrorsTotal,
		ProviderRetriesTotal,
		BudgetTokensRemaining,
		EmbeddingCacheTotal,
		RateLimitWaitsTotal,
		RateLimitWaitSeconds,
		RerankBatchesTotal,
		SearchDuration,
		ReassignedTotal,
		httpRequestDuration,
		httpRequestsTotal,
	)
	registered = true
}
