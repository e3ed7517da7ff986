package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/search/request"
	"github.com/kailas-cloud/lumina/internal/domain/search/result"
	"github.com/kailas-cloud/lumina/internal/logger"
	"github.com/kailas-cloud/lumina/internal/metrics"
)

// DefaultOverfetch multiplies top_k into the recall-stage limit.
const DefaultOverfetch = 4

// RerankPolicy decides what happens when the precision stage fails.
type RerankPolicy string

const (
	// PolicyFallback serves vector order, marks the response degraded and skips the cache write.
	PolicyFallback RerankPolicy = "fallback"
	// PolicyFail fails the request with domain.ErrRerankUnavailable.
	PolicyFail RerankPolicy = "fail"
)

// Config tunes the pipeline.
type Config struct {
	Overfetch    int
	Timeout      time.Duration
	CacheTTL     time.Duration
	RerankPolicy RerankPolicy
}

// Meta describes how a response was produced.
type Meta struct {
	CacheHit bool
	Reranked bool
	Degraded bool
}

// Service is the hybrid search orchestrator.
type Service struct {
	index    Index
	embed    Embedder
	images   ImageEmbedder
	cache    Cache
	reranker Reranker
	schema   *catalog.Schema
	cfg      Config
	logger   *zap.Logger
}

// New creates the orchestrator. cache and reranker may be nil to disable those stages.
func New(index Index, embed Embedder, cache Cache, reranker Reranker, cfg Config, logger *zap.Logger) *Service {
	if cfg.Overfetch <= 0 {
		cfg.Overfetch = DefaultOverfetch
	}
	if cfg.RerankPolicy == "" {
		cfg.RerankPolicy = PolicyFallback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, embed: embed, cache: cache, reranker: reranker, cfg: cfg, logger: logger}
}

// WithImageEmbedder enables image search.
func (s *Service) WithImageEmbedder(e ImageEmbedder) *Service {
	s.images = e
	return s
}

// WithSchema rejects filters on fields the catalog schema does not declare filterable.
func (s *Service) WithSchema(schema catalog.Schema) *Service {
	s.schema = &schema
	return s
}

// RecallLimit returns the recall-stage limit for topK; never smaller than topK.
func (s *Service) RecallLimit(topK int) int {
	return max(topK, topK*s.cfg.Overfetch)
}

// Search runs cache check, recall, optional rerank and cache write.
// A request with neither text nor filters returns an empty list without touching any collaborator.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Ranked, Meta, error) {
	kind := "text"
	if !req.HasText() {
		kind = "browse"
	}
	if req.IsEmpty() {
		metrics.SearchRequestsTotal.WithLabelValues(kind, "empty").Inc()
		return []result.Ranked{}, Meta{}, nil
	}

	if err := s.validate(req); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, Meta{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rerank := req.Rerank() && req.HasText() && s.reranker != nil
	key := CacheKey(req, rerank)

	if cached, ok := s.cacheGet(ctx, key); ok {
		metrics.SearchRequestsTotal.WithLabelValues(kind, "cache_hit").Inc()
		return cached, Meta{CacheHit: true, Reranked: rerank}, nil
	}

	results, meta, err := s.run(ctx, req, rerank)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, Meta{}, err
	}

	if !meta.Degraded {
		s.cacheSet(ctx, key, results)
	}
	metrics.SearchRequestsTotal.WithLabelValues(kind, "ok").Inc()
	return results, meta, nil
}

func (s *Service) run(ctx context.Context, req *request.Request, rerank bool) ([]result.Ranked, Meta, error) {
	if !req.HasText() {
		start := time.Now()
		cs, err := s.index.Browse(ctx, req.Filters(), req.TopK())
		observe("index", start)
		if err != nil {
			return nil, Meta{}, classify(ctx, "browse", err)
		}
		return result.VectorOnly(cs, req.TopK()), Meta{}, nil
	}

	start := time.Now()
	emb, err := s.embed.Embed(ctx, req.Text())
	observe("embed", start)
	if err != nil {
		return nil, Meta{}, classify(ctx, "embed query", embedErr(err))
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	start = time.Now()
	cs, err := s.index.Search(ctx, emb.Embedding, req.Filters(), s.RecallLimit(req.TopK()))
	observe("index", start)
	if err != nil {
		return nil, Meta{}, classify(ctx, "vector search", err)
	}

	if !rerank {
		return result.VectorOnly(cs, req.TopK()), Meta{}, nil
	}

	start = time.Now()
	ranked, err := s.reranker.Rerank(ctx, req.Text(), cs, req.TopK())
	observe("rerank", start)
	domain.UsageFromContext(ctx).AddRerankPairs(len(cs))
	if err == nil {
		return ranked, Meta{Reranked: true}, nil
	}
	if ctx.Err() != nil || s.cfg.RerankPolicy == PolicyFail {
		return nil, Meta{}, classify(ctx, "rerank", err)
	}

	metrics.RerankFallbacksTotal.Inc()
	logger.FromContext(ctx).Warn("Rerank failed, serving vector order", zap.Error(err))
	return result.VectorOnly(cs, req.TopK()), Meta{Degraded: true}, nil
}

// SearchByImage embeds an image and returns the nearest items under the request filters.
// Image results are ranked by vector score only and never cached.
func (s *Service) SearchByImage(
	ctx context.Context, image []byte, req *request.Request,
) ([]result.Ranked, error) {
	if s.images == nil {
		return nil, fmt.Errorf("%w: image search is not configured", domain.ErrEmbeddingProviderError)
	}
	if len(image) == 0 {
		return nil, domain.NewInvalidInput("file", "empty image")
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	emb, err := s.images.EmbedImage(ctx, image)
	observe("embed", start)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("image", "error").Inc()
		return nil, classify(ctx, "embed image", embedErr(err))
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	start = time.Now()
	cs, err := s.index.Search(ctx, emb.Embedding, req.Filters(), req.TopK())
	observe("index", start)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("image", "error").Inc()
		return nil, classify(ctx, "vector search", err)
	}

	metrics.SearchRequestsTotal.WithLabelValues("image", "ok").Inc()
	return result.VectorOnly(cs, req.TopK()), nil
}

func (s *Service) validate(req *request.Request) error {
	if s.schema == nil {
		return nil
	}
	return s.schema.ValidateFilter(req.Filters()) //nolint:wrapcheck // already a domain error
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// cacheGet treats every cache failure as a miss.
func (s *Service) cacheGet(ctx context.Context, key string) ([]result.Ranked, bool) {
	if s.cache == nil {
		return nil, false
	}
	start := time.Now()
	v, ok, err := s.cache.Get(ctx, key)
	observe("cache_get", start)
	switch {
	case err != nil:
		metrics.SearchCacheTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Warn("Search cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case !ok:
		metrics.SearchCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	default:
		metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
		return v, true
	}
}

// cacheSet is best effort: a failed write never fails the request.
func (s *Service) cacheSet(ctx context.Context, key string, v []result.Ranked) {
	if s.cache == nil || ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := s.cache.Set(ctx, key, v, s.cfg.CacheTTL)
	observe("cache_set", start)
	if err != nil {
		metrics.SearchCacheTotal.WithLabelValues("write_error").Inc()
		logger.FromContext(ctx).Warn("Search cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func observe(stage string, start time.Time) {
	metrics.SearchStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func embedErr(err error) error {
	if errors.Is(err, domain.ErrEmbeddingProviderError) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
}

// classify maps an expired request budget to domain.ErrTimeout and wraps
// everything else with the stage name. Caller cancellation passes through.
func classify(ctx context.Context, stage string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", stage, domain.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
