// Package redis is the rueidis-backed db.Store for Redis 8+ (query engine)
// and Valkey (valkey-search).
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/lumina/internal/db"
)

var _ db.Store = (*Store)(nil)

// Flavor selects the server dialect.
type Flavor string

const (
	// FlavorRedis runs both KNN and predicate-only FT.SEARCH.
	FlavorRedis Flavor = "redis"
	// FlavorValkey only runs KNN queries.
	FlavorValkey Flavor = "valkey"
)

const (
	readyPollMin = 50 * time.Millisecond
	readyPollMax = time.Second
)

// Config holds connection parameters.
type Config struct {
	Addrs       []string
	Username    string
	Password    string
	DB          int
	Flavor      Flavor        // default FlavorRedis
	DialTimeout time.Duration // 0 keeps the rueidis default
}

// Store is a db.Store over a single rueidis client.
type Store struct {
	client rueidis.Client
	flavor Flavor
}

// NewStore validates cfg and connects.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("addrs is required")
	}
	switch cfg.Flavor {
	case "":
		cfg.Flavor = FlavorRedis
	case FlavorRedis, FlavorValkey:
	default:
		return nil, fmt.Errorf("unknown flavor %q", cfg.Flavor)
	}

	opt := rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		// decodeSearchReply reads the RESP2 array layout of FT.SEARCH.
		AlwaysRESP2: true,
	}
	if cfg.DialTimeout > 0 {
		opt.Dialer.Timeout = cfg.DialTimeout
	}

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", strings.Join(cfg.Addrs, ","), err)
	}
	return &Store{client: client, flavor: cfg.Flavor}, nil
}

// Flavor returns the server dialect.
func (s *Store) Flavor() Flavor { return s.flavor }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// WaitForReady pings until the server answers, backing off between attempts,
// and gives up after timeout.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := readyPollMin
	for {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %s: %w", timeout, err)
		case <-time.After(wait):
		}
		wait = min(2*wait, readyPollMax)
	}
}

// Close releases the client.
func (s *Store) Close() { s.client.Close() }

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder { return s.client.B() }

// serverErrorMatches reports whether err is a server error reply whose text
// contains any of the fragments, ignoring case.
func serverErrorMatches(err error, fragments ...string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(re.Error())
	for _, f := range fragments {
		if strings.Contains(msg, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
