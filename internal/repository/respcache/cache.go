package respcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/lumina/internal/db"
	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/search/result"
)

// DefaultTTL is the lifetime of a cached response when none is configured.
const DefaultTTL = time.Hour

var defaultPrefix = domain.KeyPrefix + "search_cache:"

// store is the consumer interface for the response cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Cache stores ranked result lists by opaque key.
// Entries carry their own expiry and are dropped lazily on read;
// the backend TTL is set as well so abandoned keys do not accumulate.
type Cache struct {
	store  store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrefix overrides the key namespace.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a response cache. A non-positive ttl means DefaultTTL.
func New(s store, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{store: s, prefix: defaultPrefix, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the configured default lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached value for key. A miss or an expired entry returns ok=false.
// Backend and decoding failures are wrapped with domain.ErrCacheFailure.
// Expired and undecodable entries are evicted on read.
func (c *Cache) Get(ctx context.Context, key string) ([]result.Ranked, bool, error) {
	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get: %w", domain.ErrCacheFailure, err)
	}

	var e entryDTO
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, c.evict(ctx, key, fmt.Errorf("%w: decode entry: %w", domain.ErrCacheFailure, err))
	}
	if e.Key != key {
		return nil, false, c.evict(ctx, key, fmt.Errorf("%w: entry key mismatch", domain.ErrCacheFailure))
	}
	if !c.now().Before(time.Unix(0, e.ExpiresAt)) {
		return nil, false, c.Invalidate(ctx, key)
	}
	return e.toResults(), true, nil
}

func (c *Cache) evict(ctx context.Context, key string, cause error) error {
	return errors.Join(cause, c.Invalidate(ctx, key))
}

// Set stores value under key for ttl. A non-positive ttl means the configured default.
func (c *Cache) Set(ctx context.Context, key string, value []result.Ranked, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(newEntryDTO(key, value, c.now().Add(ttl)))
	if err != nil {
		return fmt.Errorf("%w: encode entry: %w", domain.ErrCacheFailure, err)
	}
	if err := c.store.SetWithTTL(ctx, c.prefix+key, data, ttl); err != nil {
		return fmt.Errorf("%w: set: %w", domain.ErrCacheFailure, err)
	}
	return nil
}

// Invalidate removes one entry. Removing a missing key is not an error.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Del(ctx, c.prefix+key); err != nil {
		return fmt.Errorf("%w: del: %w", domain.ErrCacheFailure, err)
	}
	return nil
}

// Purge removes every entry in the namespace and returns how many keys were deleted.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, c.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("%w: scan: %w", domain.ErrCacheFailure, err)
	}
	for i, k := range keys {
		if err := c.store.Del(ctx, k); err != nil {
			return i, fmt.Errorf("%w: del %s: %w", domain.ErrCacheFailure, k, err)
		}
	}
	return len(keys), nil
}
