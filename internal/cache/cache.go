// Package cache memoizes expensive upstream results for a bounded time.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/civic-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies to every key unless a caller passes its own.
const DefaultTTL = 5 * time.Minute

// Stats describes the cache for the health endpoint.
type Stats struct {
	Keys  int   `json:"keys"`
	TTLMs int64 `json:"ttlMs"`
}

// Cache is an in-memory key/value store with per-entry expiry. Entries are
// replaced on refresh and evicted lazily when a lookup finds them expired.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	clock    clockwork.Clock
	ttl      time.Duration
	coalesce bool
	flight   singleflight.Group
	metrics  *observability.Metrics
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source used for expiry.
func WithClock(c clockwork.Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(cache *Cache) {
		if d > 0 {
			cache.ttl = d
		}
	}
}

// WithCoalescing controls whether concurrent misses for one key share a single
// producer call. It is on by default.
func WithCoalescing(on bool) Option {
	return func(cache *Cache) { cache.coalesce = on }
}

// WithMetrics records hit/miss counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(cache *Cache) { cache.metrics = m }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]entry),
		clock:    clockwork.NewRealClock(),
		ttl:      DefaultTTL,
		coalesce: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key if it has not expired.
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.peek(key)
	c.recordLookup(ok)
	return v, ok
}

// peek is Get without recording a lookup.
func (c *Cache) peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key until now+ttl, replacing any previous entry. A
// non-positive ttl uses the cache default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: value, expiresAt: c.clock.Now().Add(ttl)}
}

// TTL returns the default time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Stats reports the number of stored keys (expired ones included until they
// are next looked up) and the default TTL.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{Keys: len(c.entries), TTLMs: c.ttl.Milliseconds()}
}

func (c *Cache) recordLookup(hit bool) {
	if c.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.metrics.CacheLookups.WithLabelValues(result).Inc()
}

// Wrap returns the cached value for key, or calls produce on a miss and stores
// its result. Producer errors are returned and nothing is stored. Each call
// records one lookup; a stored value of another type counts as a miss.
//
// With coalescing enabled only one producer runs per key at a time; other
// callers wait for its result. The shared producer runs detached from any
// single caller's cancellation, while each caller still stops waiting when its
// own context ends.
func Wrap[V any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce func(context.Context) (V, error)) (V, error) {
	v, ok := lookup[V](c, key)
	c.recordLookup(ok)
	if ok {
		return v, nil
	}
	if !c.coalesce {
		return fill(ctx, c, key, ttl, produce)
	}

	ch := c.flight.DoChan(key, func() (any, error) {
		if v, ok := lookup[V](c, key); ok {
			return v, nil
		}
		return fill(context.WithoutCancel(ctx), c, key, ttl, produce)
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

func lookup[V any](c *Cache, key string) (V, bool) {
	raw, ok := c.peek(key)
	if !ok {
		var zero V
		return zero, false
	}
	v, ok := raw.(V)
	return v, ok
}

func fill[V any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce func(context.Context) (V, error)) (V, error) {
	v, err := produce(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}
