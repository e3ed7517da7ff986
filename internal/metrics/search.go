package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Name:      "search_requests_total",
			Help:      "Total number of search requests by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: text/browse/image; outcome: ok/cache_hit/empty/error
	)

	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumina",
			Name:      "search_stage_duration_seconds",
			Help:      "Duration of individual search pipeline stages",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage"}, // cache_get, embed, index, rerank, cache_set
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Name:      "search_cache_total",
			Help:      "Response cache lookups and writes by result",
		},
		[]string{"result"}, // hit / miss / error / write_error
	)

	RerankFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Name:      "rerank_fallbacks_total",
			Help:      "Searches served in vector order because reranking failed",
		},
	)

	IndexCorruptPayloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Name:      "index_corrupt_payloads_total",
			Help:      "Index hits dropped because their stored payload did not decode",
		},
		[]string{"backend"}, // ft / pgvector
	)

	InferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Name:      "inference_requests_total",
			Help:      "Calls to the inference service by operation and status",
		},
		[]string{"operation", "status"},
	)

	InferenceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumina",
			Name:      "inference_request_duration_seconds",
			Help:      "Inference service call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search and inference metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchStageDuration)
	prometheus.MustRegister(SearchCacheTotal)
	prometheus.MustRegister(RerankFallbacksTotal)
	prometheus.MustRegister(IndexCorruptPayloadsTotal)
	prometheus.MustRegister(InferenceRequestsTotal)
	prometheus.MustRegister(InferenceRequestDuration)
	searchMetricsRegistered = true
}
