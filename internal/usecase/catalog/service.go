package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kailas-cloud/lumina/internal/domain"
	domcat "github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
)

// Ingest limits.
const (
	DefaultWorkers  = 4
	DefaultMaxBatch = 100
)

// Input is one item to store. The vector comes from Vector, else Image, else Text
// (Text defaults to payload.title).
type Input struct {
	ID      string
	Text    string
	Vector  []float32
	Image   []byte
	Payload map[string]any
}

// Result is the per-item outcome of a batch upsert.
type Result struct {
	ID  string
	Err error
}

// Service handles catalog writes.
type Service struct {
	index    Index
	embed    Embedder
	images   ImageEmbedder
	schema   domcat.Schema
	pool     *ants.Pool
	maxBatch int
}

// New creates a catalog service backed by a worker pool of the given size.
func New(index Index, embed Embedder, schema domcat.Schema, workers int) (*Service, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create ingest pool: %w", err)
	}
	return &Service{index: index, embed: embed, schema: schema, pool: pool, maxBatch: DefaultMaxBatch}, nil
}

// WithImageEmbedder enables image-sourced vectors.
func (s *Service) WithImageEmbedder(e ImageEmbedder) *Service {
	s.images = e
	return s
}

// WithMaxBatch configures the maximum batch size.
func (s *Service) WithMaxBatch(n int) *Service {
	if n > 0 {
		s.maxBatch = n
	}
	return s
}

// Release stops the worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

// Upsert validates the payload, resolves the vector and stores the item.
// Writes never touch the search cache; stale responses expire by TTL.
func (s *Service) Upsert(ctx context.Context, in Input) (string, error) {
	if in.Payload == nil {
		in.Payload = map[string]any{}
	}
	if err := s.schema.ValidatePayload(in.Payload); err != nil {
		return "", err //nolint:wrapcheck // domain error
	}

	vec, err := s.resolveVector(ctx, in)
	if err != nil {
		return "", err
	}
	if len(vec) != s.schema.VectorDim() {
		return "", fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(vec), s.schema.VectorDim())
	}

	id, err := s.index.Upsert(ctx, domcat.NewItem(in.ID, vec, in.Payload))
	if err != nil {
		return "", fmt.Errorf("upsert item: %w", err)
	}
	return id, nil
}

// UpsertBatch stores items concurrently on the worker pool.
// Results are positional; one item failing does not affect the others.
func (s *Service) UpsertBatch(ctx context.Context, items []Input) ([]Result, error) {
	if len(items) > s.maxBatch {
		return nil, domain.NewInvalidInput("items", fmt.Sprintf("batch size exceeds %d", s.maxBatch))
	}

	results := make([]Result, len(items))
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			id, err := s.Upsert(ctx, items[i])
			if id == "" {
				id = items[i].ID
			}
			results[i] = Result{ID: id, Err: err}
		})
		if err != nil {
			wg.Done()
			results[i] = Result{ID: items[i].ID, Err: fmt.Errorf("submit: %w", err)}
		}
	}
	wg.Wait()

	return results, nil
}

// Get returns an item by id.
func (s *Service) Get(ctx context.Context, id string) (domcat.Item, error) {
	item, err := s.index.Get(ctx, id)
	if err != nil {
		return domcat.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Delete removes an item by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *Service) resolveVector(ctx context.Context, in Input) ([]float32, error) {
	if len(in.Vector) > 0 {
		return in.Vector, nil
	}

	if len(in.Image) > 0 {
		if s.images == nil {
			return nil, domain.NewInvalidInput("image", "image embedding is not configured")
		}
		res, err := s.images.EmbedImage(ctx, in.Image)
		if err != nil {
			return nil, embedErr("embed image", err)
		}
		return res.Embedding, nil
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		text = domcat.StringField(in.Payload, field.Title)
	}
	if text == "" {
		return nil, domain.NewInvalidInput("text", "one of vector, image, text or payload.title is required")
	}
	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, embedErr("embed text", err)
	}
	return res.Embedding, nil
}

func embedErr(op string, err error) error {
	if errors.Is(err, domain.ErrEmbeddingProviderError) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrEmbeddingProviderError, err)
}
