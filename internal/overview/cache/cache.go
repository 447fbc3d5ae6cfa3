// Package cache stores computed overview views in Redis. Concurrent misses
// for the same key are collapsed with singleflight so a view is computed once
// per expiry. Predictions never go through this cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	pkgredis "github.com/hrdatainsights/salary-platform/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "overview:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ViewCache caches serialized overview views.
type ViewCache struct {
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. A nil store disables caching: every call
// computes, but concurrent identical calls are still collapsed. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *ViewCache {
	return &ViewCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "overview-cache"),
	}
}

// Key identifies a view and its parameters.
type Key struct {
	View   string
	Params map[string][]string
}

func (c *ViewCache) get(ctx context.Context, key string) (json.RawMessage, bool) {
	if c.store == nil {
		return nil, false
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	if !json.Valid([]byte(data)) {
		c.logger.Error("cache entry is not valid JSON", "key", key)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "key", key)
	return json.RawMessage(data), true
}

func (c *ViewCache) set(ctx context.Context, key string, data json.RawMessage) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, []byte(data), c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached view for k, or computes, stores and
// returns it. The boolean reports whether the value came from the cache.
// Cache failures degrade to computing; only compute errors are returned.
func (c *ViewCache) GetOrCompute(
	ctx context.Context,
	k Key,
	computeFn func() (any, error),
) (json.RawMessage, bool, error) {
	key := buildKey(k)
	if data, ok := c.get(ctx, key); ok {
		return data, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.get(ctx, key); ok {
			return data, nil
		}
		v, err := computeFn()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding view %s: %w", k.View, err)
		}
		c.set(ctx, key, data)
		return json.RawMessage(data), nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(json.RawMessage), false, nil
}

// Invalidate drops every cached view and returns how many were removed.
func (c *ViewCache) Invalidate(ctx context.Context) (int64, error) {
	if c.store == nil {
		return 0, nil
	}
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating overview cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports hits and misses since start.
type Stats struct {
	Enabled bool    `json:"enabled"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (c *ViewCache) Stats() Stats {
	s := Stats{Enabled: c.store != nil, Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *ViewCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ViewCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the view name with its parameters. Parameter names and
// values are sorted so equivalent requests share a key.
func buildKey(k Key) string {
	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := []string{strings.ToLower(k.View)}
	for _, name := range names {
		values := make([]string, len(k.Params[name]))
		copy(values, k.Params[name])
		sort.Strings(values)
		parts = append(parts, name+"="+strings.Join(values, ","))
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
