// Package cache decorates a PriceStore with a Redis cache of range queries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"event-feature-lab/internal/domain"
	"event-feature-lab/internal/observability"
	"event-feature-lab/internal/storage"
)

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = 24 * time.Hour

// DefaultPrefix namespaces every key written by the cache.
const DefaultPrefix = "efl:"

// Options configures PriceStore.
type Options struct {
	TTL    time.Duration
	Prefix string
	Logger zerolog.Logger
}

// PriceStore caches Query results per (ticker, start, end) in Redis.
// Redis failures degrade to the underlying store; they never fail a read.
type PriceStore struct {
	inner  storage.PriceStore
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

var (
	_ storage.PriceStore   = (*PriceStore)(nil)
	_ storage.PriceCounter = (*PriceStore)(nil)
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

// New wraps inner with a Redis cache.
func New(inner storage.PriceStore, client redis.Cmdable, opts Options) *PriceStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &PriceStore{
		inner:  inner,
		client: client,
		ttl:    opts.TTL,
		prefix: opts.Prefix,
		log:    opts.Logger,
	}
}

// Query serves [start, end) from the cache, filling it from the inner store on a miss.
func (s *PriceStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]*domain.PriceObservation, error) {
	ticker = strings.ToUpper(ticker)
	key := s.queryKey(ticker, start, end)

	if cached, ok := s.get(ctx, key); ok {
		observability.RecordCacheLookup(true)
		return cached, nil
	}
	observability.RecordCacheLookup(false)

	obs, err := s.inner.Query(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	s.set(ctx, ticker, key, obs)
	return obs, nil
}

// Upsert writes through and drops every cached range of the affected tickers.
func (s *PriceStore) Upsert(ctx context.Context, obs []*domain.PriceObservation, overwrite bool) (int, error) {
	n, err := s.inner.Upsert(ctx, obs, overwrite)
	if err != nil || n == 0 {
		return n, err
	}

	seen := make(map[string]struct{})
	for _, o := range obs {
		t := strings.ToUpper(o.Ticker)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if err := s.Invalidate(ctx, t); err != nil {
			s.log.Warn().Err(err).Str("ticker", t).Msg("cache invalidation failed")
		}
	}
	return n, nil
}

// CountInRange delegates to the inner store.
func (s *PriceStore) CountInRange(ctx context.Context, ticker string, start, end time.Time) (int, error) {
	if counter, ok := s.inner.(storage.PriceCounter); ok {
		return counter.CountInRange(ctx, ticker, start, end)
	}
	obs, err := s.Query(ctx, ticker, start, end)
	if err != nil {
		return 0, err
	}
	return len(obs), nil
}

// Invalidate removes every cached range for ticker.
func (s *PriceStore) Invalidate(ctx context.Context, ticker string) error {
	idx := s.indexKey(strings.ToUpper(ticker))
	keys, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}
	if err := s.client.Del(ctx, append(keys, idx)...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *PriceStore) get(ctx context.Context, key string) ([]*domain.PriceObservation, bool) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}

	var obs []*domain.PriceObservation
	if err := json.Unmarshal(val, &obs); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt")
		return nil, false
	}
	return obs, true
}

func (s *PriceStore) set(ctx context.Context, ticker, key string, obs []*domain.PriceObservation) {
	if obs == nil {
		obs = []*domain.PriceObservation{}
	}
	val, err := json.Marshal(obs)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := s.client.Set(ctx, key, val, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return
	}
	if err := s.client.SAdd(ctx, s.indexKey(ticker), key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache index write failed")
	}
}

func (s *PriceStore) queryKey(ticker string, start, end time.Time) string {
	return fmt.Sprintf("%sprices:%s:%d:%d", s.prefix, ticker, start.UnixMilli(), end.UnixMilli())
}

func (s *PriceStore) indexKey(ticker string) string {
	return s.prefix + "prices-idx:" + ticker
}
