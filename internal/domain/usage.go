package domain

import "context"

type requestUsageKey struct{}

// RequestUsage collects collaborator usage for a single HTTP request.
// The handler places a pointer into the context, services record into it,
// and the handler reports it in response headers.
type RequestUsage struct {
	EmbeddingTokens int
	Embedded        bool // true if the embedder was called, even on a cache hit with 0 tokens
	RerankPairs     int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// AddTokens records consumed embedding tokens.
func (u *RequestUsage) AddTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Embedded = true
	}
}

// AddRerankPairs records scored (query, candidate) pairs.
func (u *RequestUsage) AddRerankPairs(n int) {
	if u != nil {
		u.RerankPairs += n
	}
}
