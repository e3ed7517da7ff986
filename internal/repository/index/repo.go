package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/db"
	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
	"github.com/kailas-cloud/lumina/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/lumina/internal/logger"
	"github.com/kailas-cloud/lumina/internal/metrics"
)

// store is the consumer interface for the FT vector index (ISP).
//
//nolint:interfacebloat // index repo needs hash + index management + search operations
type store interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SupportsFilterOnlySearch(ctx context.Context) bool
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo is the Valkey/Redis FT implementation of the vector index client.
type Repo struct {
	store  store
	schema catalog.Schema
	hnsw   HNSWConfig
}

// New creates an FT index repository for the catalog schema.
func New(s store, schema catalog.Schema) *Repo {
	return &Repo{store: s, schema: schema, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// EnsureCollection creates the FT index when missing. An existing index is success.
func (r *Repo) EnsureCollection(ctx context.Context) error {
	def, err := buildIndex(r.schema, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return mapErr("create index", err)
	}
	return nil
}

// Search returns at most limit candidates nearest to vector that satisfy the filter,
// ordered by similarity desc, ties by id asc.
func (r *Repo) Search(
	ctx context.Context, vector []float32, expr filter.Expression, limit int,
) ([]result.Candidate, error) {
	if len(vector) != r.schema.VectorDim() {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(vector), r.schema.VectorDim())
	}
	if limit <= 0 {
		return nil, nil
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(r.schema.Collection()),
		VectorField:  vectorField,
		Filters:      expr,
		Vector:       vector,
		K:            limit,
		ReturnFields: []string{idField, payloadField},
	})
	if err != nil {
		return nil, mapErr("knn search", err)
	}

	return r.toCandidates(ctx, res, limit), nil
}

// Browse returns at most limit items satisfying the filter, ordered by id, with zero scores.
func (r *Repo) Browse(ctx context.Context, expr filter.Expression, limit int) ([]result.Candidate, error) {
	if !r.store.SupportsFilterOnlySearch(ctx) {
		return nil, domain.ErrFilterOnlyNotSupported
	}
	if limit <= 0 {
		return nil, nil
	}

	res, err := r.store.SearchFilter(ctx, &db.FilterQuery{
		IndexName:    indexName(r.schema.Collection()),
		Filters:      expr,
		SortBy:       idField,
		Limit:        limit,
		ReturnFields: []string{idField, payloadField},
	})
	if err != nil {
		return nil, mapErr("filter search", err)
	}

	return r.toCandidates(ctx, res, limit), nil
}

// Upsert stores an item and returns its id. An empty id gets a fresh UUID,
// so repeated calls without an id create distinct points.
func (r *Repo) Upsert(ctx context.Context, item catalog.Item) (string, error) {
	if len(item.Vector()) != r.schema.VectorDim() {
		return "", fmt.Errorf("%w: got %d, want %d",
			domain.ErrVectorDimMismatch, len(item.Vector()), r.schema.VectorDim())
	}
	id := item.ID()
	if id == "" {
		id = uuid.NewString()
		item = item.WithID(id)
	}

	fields, err := buildHashFields(item, r.schema)
	if err != nil {
		return "", err
	}

	key := itemKey(r.schema.Collection(), id)
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return "", mapErr("hset "+key, err)
	}
	return id, nil
}

// Get returns an item by id.
func (r *Repo) Get(ctx context.Context, id string) (catalog.Item, error) {
	key := itemKey(r.schema.Collection(), id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return catalog.Item{}, domain.ErrNotFound
		}
		return catalog.Item{}, mapErr("hgetall "+key, err)
	}
	return parseHashFields(id, m)
}

// Delete removes an item by id.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := itemKey(r.schema.Collection(), id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return mapErr("exists "+key, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return mapErr("del "+key, err)
	}
	return nil
}

// HealthCheck pings the backing store.
func (r *Repo) HealthCheck(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

func (r *Repo) toCandidates(ctx context.Context, res *db.SearchResult, limit int) []result.Candidate {
	if res == nil || len(res.Entries) == 0 {
		return nil
	}
	prefix := collectionPrefix(r.schema.Collection())
	out := make([]result.Candidate, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := e.Fields[idField]
		if id == "" {
			id = strings.TrimPrefix(e.Key, prefix)
		}
		var payload map[string]any
		if raw := e.Fields[payloadField]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				metrics.IndexCorruptPayloadsTotal.WithLabelValues("ft").Inc()
				logpkg.FromContext(ctx).Warn("dropping hit with corrupt payload",
					zap.String("id", id), zap.Error(err))
				continue
			}
		}
		out = append(out, result.NewCandidate(id, e.Score, payload))
	}
	result.SortCandidates(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// mapErr translates store errors into domain errors.
// Context errors pass through wrapped so callers can tell timeouts from outages.
func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrCollectionMissing)
	case errors.Is(err, db.ErrUnsupported):
		return fmt.Errorf("%s: %w", op, domain.ErrFilterOnlyNotSupported)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
	}
}

func indexName(collection string) string {
	return domain.KeyPrefix + collection
}

func collectionPrefix(collection string) string {
	return domain.KeyPrefix + collection + ":"
}

func itemKey(collection, id string) string {
	return collectionPrefix(collection) + id
}
