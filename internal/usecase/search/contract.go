package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
	"github.com/kailas-cloud/lumina/internal/domain/search/result"
)

// Index is the recall stage: vector and filter-only retrieval.
type Index interface {
	Search(ctx context.Context, vector []float32, expr filter.Expression, limit int) ([]result.Candidate, error)
	Browse(ctx context.Context, expr filter.Expression, limit int) ([]result.Candidate, error)
}

// Cache stores final result lists by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]result.Ranked, bool, error)
	Set(ctx context.Context, key string, value []result.Ranked, ttl time.Duration) error
}

// Reranker is the precision stage.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []result.Candidate, topK int) ([]result.Ranked, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ImageEmbedder vectorizes a query image.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error)
}
