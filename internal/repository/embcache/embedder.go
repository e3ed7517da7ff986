package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/db"
	"github.com/kailas-cloud/lumina/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// Results recorded on the cache counter.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale" // cached vector of another dimension
	resultError = "error"
)

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config keys the cache. Model and Dimensions both take part in the key so
// a model or index change never serves vectors from another space.
type Config struct {
	Model      string
	Dimensions int // 0 accepts any length
	TTL        time.Duration
}

// CachedEmbedder memoizes query text embeddings in Valkey/Redis as raw
// little-endian float32 blobs.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	cfg        Config
	namespace  string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New wraps inner. cacheTotal takes a single "result" label and may be nil.
func New(
	inner domain.Embedder,
	s store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		cfg:        cfg,
		namespace:  cfg.Model + "/" + strconv.Itoa(cfg.Dimensions),
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed serves a cached vector (zero tokens billed) or calls the provider and
// stores the result. Cache failures only cost a provider call.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	vec, result := c.lookup(ctx, key)
	c.record(result)
	if result == resultHit {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	if c.fits(res.Embedding) {
		c.put(ctx, key, res.Embedding)
	}
	return res, nil
}

// HealthCheck delegates to the provider.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, string) {
	data, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, resultMiss
	case err != nil:
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, resultError
	}

	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("Corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, resultError
	}
	if !c.fits(vec) {
		return nil, resultStale
	}
	return vec, resultHit
}

// put writes best-effort; the request proceeds whatever happens.
func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, encodeVector(vec), c.cfg.TTL); err != nil {
		c.record(resultError)
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) fits(vec []float32) bool {
	if len(vec) == 0 {
		return false
	}
	return c.cfg.Dimensions == 0 || len(vec) == c.cfg.Dimensions
}

func (c *CachedEmbedder) record(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.namespace))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("cached embedding has %d bytes", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
