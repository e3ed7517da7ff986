package catalog

import (
	"context"

	"github.com/kailas-cloud/lumina/internal/domain"
	domcat "github.com/kailas-cloud/lumina/internal/domain/catalog"
)

// Index is the write side of the vector index.
type Index interface {
	Upsert(ctx context.Context, item domcat.Item) (string, error)
	Get(ctx context.Context, id string) (domcat.Item, error)
	Delete(ctx context.Context, id string) error
}

// Embedder vectorizes item text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ImageEmbedder vectorizes item images.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image []byte) (domain.EmbeddingResult, error)
}
