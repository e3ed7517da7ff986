package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding provider metrics. input is "text" or "image"; both land in the
// same vector space, so they share one set of series.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding provider calls by input kind and outcome",
		},
		[]string{"provider", "model", "input", "outcome"}, // outcome: ok or an EmbeddingCall reason
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumina",
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Successful embedding provider call latency",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"provider", "input"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Tokens billed by the embedding provider",
		},
		[]string{"provider", "model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Query embedding cache lookups by result",
		},
		[]string{"result"}, // hit / miss / stale / error
	)
)

// Failure reasons for EmbeddingCall.Fail.
const (
	ReasonAPIError     = "api_error"
	ReasonEmpty        = "empty_response"
	ReasonDimMismatch  = "dimension_mismatch"
	ReasonTransportErr = "transport_error"
)

// EmbeddingCall times one provider call.
type EmbeddingCall struct {
	provider, model, input string
	start                  time.Time
}

// StartEmbedding begins timing a provider call.
func StartEmbedding(provider, model, input string) EmbeddingCall {
	return EmbeddingCall{provider: provider, model: model, input: input, start: time.Now()}
}

// Succeed records a completed call and the tokens it was billed for.
func (c EmbeddingCall) Succeed(tokens int) {
	EmbeddingRequestsTotal.WithLabelValues(c.provider, c.model, c.input, "ok").Inc()
	EmbeddingRequestDuration.WithLabelValues(c.provider, c.input).Observe(time.Since(c.start).Seconds())
	if tokens > 0 {
		EmbeddingTokensTotal.WithLabelValues(c.provider, c.model).Add(float64(tokens))
	}
}

// Fail records a failed call under reason.
func (c EmbeddingCall) Fail(reason string) {
	EmbeddingRequestsTotal.WithLabelValues(c.provider, c.model, c.input, reason).Inc()
}

var registerEmbedding sync.Once

// RegisterEmbeddingMetrics registers the embedding collectors with the default registry.
func RegisterEmbeddingMetrics() {
	registerEmbedding.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingCacheTotal,
		)
	})
}
