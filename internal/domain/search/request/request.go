package request

import (
	"strings"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 1024
	DefaultTopK    = 5
	MaxTopK        = 100
)

// Request is a validated, normalized search query.
type Request struct {
	text    string
	filters filter.Expression
	topK    int
	rerank  bool
}

// New validates search parameters and normalizes the query text.
// Text may be empty: a query with filters only browses the catalog,
// a query with neither yields no results.
func New(text string, params filter.Params, topK int, rerank bool) (Request, error) {
	if len(text) > MaxQueryLength {
		return Request{}, domain.NewInvalidInput("query", "too long")
	}
	if topK <= 0 {
		return Request{}, domain.NewInvalidInput("top_k", "must be positive")
	}
	if topK > MaxTopK {
		return Request{}, domain.NewInvalidInput("top_k", "exceeds maximum")
	}
	if params.MinPrice != nil && *params.MinPrice < 0 {
		return Request{}, domain.NewInvalidInput("min_price", "must not be negative")
	}
	if params.MaxPrice != nil && *params.MaxPrice < 0 {
		return Request{}, domain.NewInvalidInput("max_price", "must not be negative")
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return Request{}, domain.NewInvalidInput("min_price", "greater than max_price")
	}

	return Request{
		text:    NormalizeText(text),
		filters: filter.Build(params),
		topK:    topK,
		rerank:  rerank,
	}, nil
}

// NormalizeText trims, collapses internal whitespace and lowercases.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Text returns the normalized query text.
func (r *Request) Text() string { return r.text }

// HasText reports whether the query carries text to embed.
func (r *Request) HasText() bool { return r.text != "" }

// Filters returns the built filter expression.
func (r *Request) Filters() filter.Expression { return r.filters }

// TopK returns the number of results to return.
func (r *Request) TopK() int { return r.topK }

// Rerank reports whether reranking was requested.
func (r *Request) Rerank() bool { return r.rerank }

// IsEmpty reports whether the query has neither text nor filters.
func (r *Request) IsEmpty() bool { return r.text == "" && r.filters.IsEmpty() }
