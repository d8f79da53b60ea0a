// Package cache is the public API of setcache: a fixed-capacity,
// key-indexed, approximate-LRU point-lookup cache built on a set-associative
// CLOCK core (internal/assoc), sharded here for concurrent use the same way
// an LSM-tree's block cache would be embedded in a wider storage engine.
//
// © 2025 setcache authors. MIT License.
package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Voskan/setcache/internal/assoc"
	"github.com/Voskan/setcache/internal/geometry"
)

// Cache is the sharded, concurrency-safe wrapper around N
// internal/assoc.Table instances. The core itself is single-threaded by
// design (spec.md section 5); Cache supplies the concurrency the core
// deliberately leaves out, exactly as Non-goals intend ("outer layers may
// add sharding/locking; the core must not").
type Cache[K comparable, V any] struct {
	shards  []*shard[K, V]
	hash    assoc.HashFn[K]
	metrics metricsSink
	loaders *loaderGroup[K, V]
	logger  *zap.Logger
}

// New builds a Cache with the given total capacity (slots, evenly divided
// across shards) and key/value collaborators. shards must be a power of two
// and evenly divide capacity so every shard gets an identical, independently
// valid geometry.Geometry.
func New[K comparable, V any](capacity uint64, shards uint8, hash assoc.HashFn[K], equal assoc.EqualFn[K], keyOf assoc.KeyOfFn[K, V], opts ...Option[K, V]) (*Cache[K, V], error) {
	cfg := defaultConfig[K, V](capacity, shards, hash, equal, keyOf)
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	c := &Cache[K, V]{
		shards:  make([]*shard[K, V], cfg.shards),
		hash:    cfg.hash,
		metrics: newMetricsSink(cfg.registry),
		loaders: newLoaderGroup[K, V](),
		logger:  cfg.logger,
	}

	perShard := cfg.capacity / uint64(cfg.shards)
	for i := range c.shards {
		s, err := newShard[K, V](cfg.layout, perShard, cfg.hash, cfg.equal, cfg.keyOf, cfg.ejectCb, cfg.logger)
		if err != nil {
			return nil, fmt.Errorf("cache: building shard %d: %w", i, err)
		}
		c.shards[i] = s
	}

	cfg.logger.Debug("setcache initialised",
		zap.Uint64("capacity", cfg.capacity),
		zap.Uint8("shards", cfg.shards),
		zap.Int("ways", cfg.layout.Ways),
	)

	return c, nil
}

// shardIndex picks the owning shard for key via the same hash used inside
// every Table, so a key's shard never changes for the Cache's lifetime.
func (c *Cache[K, V]) shardIndex(key K) uint8 {
	return uint8(c.hash(key) % uint64(len(c.shards)))
}

// Get looks up key. On hit, the matching slot's CLOCK reference counter is
// saturate-incremented (spec.md section 4.4.4).
func (c *Cache[K, V]) Get(key K) (V, bool) {
	idx := c.shardIndex(key)
	val, ok := c.shards[idx].get(key)
	if ok {
		c.metrics.incHit(idx)
	} else {
		c.metrics.incMiss(idx)
	}
	return val, ok
}

// Put upserts key -> value with no slot pinned during the eviction sweep, if
// one is needed.
func (c *Cache[K, V]) Put(key K, value V) {
	c.PutPinned(key, value, nil)
}

// PutPinned upserts key -> value; pinned, if non-nil, is consulted for every
// way considered during the CLOCK sweep and must report true for fewer than
// Ways keys in the key's set (spec.md section 4.4.6's pinning precondition).
func (c *Cache[K, V]) PutPinned(key K, value V, pinned assoc.PinFn[V]) {
	idx := c.shardIndex(key)
	s := c.shards[idx]
	if s.put(key, value, pinned) {
		c.metrics.incEvict(idx)
	}
	c.metrics.setOccupancy(idx, int64(s.len()))
}

// Remove deletes key if present; idempotent.
func (c *Cache[K, V]) Remove(key K) {
	idx := c.shardIndex(key)
	c.shards[idx].remove(key)
	c.metrics.setOccupancy(idx, int64(c.shards[idx].len()))
}

// GetOrLoad returns the cached value for key, or calls loader exactly once
// across all concurrently racing callers and caches the result on success
// (spec.md supplemented feature: singleflight-deduplicated load-through).
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, loader LoaderFunc[K, V]) (V, error) {
	if val, ok := c.Get(key); ok {
		return val, nil
	}

	val, err, _ := c.loaders.load(ctx, c.hash(key), key, loader)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Put(key, val)
	return val, nil
}

// GetOrLoadAsync is the non-blocking counterpart of GetOrLoad: it returns
// immediately with a channel that delivers the result once available.
func (c *Cache[K, V]) GetOrLoadAsync(ctx context.Context, key K, loader LoaderFunc[K, V]) <-chan LoadResult[V] {
	if val, ok := c.Get(key); ok {
		out := make(chan LoadResult[V], 1)
		out <- LoadResult[V]{Value: val}
		close(out)
		return out
	}

	raw := c.loaders.loadAsync(ctx, c.hash(key), key, loader)
	out := make(chan LoadResult[V], 1)
	go func() {
		res := <-raw
		if res.Err == nil {
			c.Put(key, res.Value)
		}
		out <- res
		close(out)
	}()
	return out
}

// Len returns the total live key count across all shards.
func (c *Cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.len()
	}
	return total
}

// Reset empties every shard without releasing arena memory.
func (c *Cache[K, V]) Reset() {
	for _, s := range c.shards {
		s.reset()
	}
}

// Stats is an aggregate, point-in-time snapshot of the cache's counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Len       int
}

// Stats aggregates every shard's counters.
func (c *Cache[K, V]) Stats() Stats {
	var s Stats
	for _, sh := range c.shards {
		h, m, e := sh.statsSnapshot()
		s.Hits += h
		s.Misses += m
		s.Evictions += e
		s.Len += sh.len()
	}
	return s
}

// Inspect dumps the raw per-set state of every shard, for
// cmd/setcache-inspect and tests. Not a production hot-path operation.
func (c *Cache[K, V]) Inspect() [][]assoc.SetSnapshot {
	out := make([][]assoc.SetSnapshot, len(c.shards))
	for i, s := range c.shards {
		out[i] = s.inspect()
	}
	return out
}

// Layout re-exports geometry.Layout so callers configuring WithLayout do not
// need to import the internal package directly.
type Layout = geometry.Layout

// DefaultLayout mirrors internal/geometry.DefaultLayout.
func DefaultLayout() Layout { return geometry.DefaultLayout() }
