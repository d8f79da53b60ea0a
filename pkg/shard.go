package cache

// shard.go contains the sharded segment of setcache. A Cache is split into N
// independent shards to minimise lock contention; each shard owns one
// internal/assoc.Table (itself single-threaded by design) behind a
// sync.RWMutex.
//
// The shard is *not* exposed from the public API: all exported types live in
// pkg/cache.go. Shards are created and managed by the top-level Cache
// object.
//
// © 2025 setcache authors. MIT License.

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Voskan/setcache/internal/assoc"
	"github.com/Voskan/setcache/internal/clock"
	"github.com/Voskan/setcache/internal/geometry"
)

// shard owns one set-associative Table plus the bookkeeping the public Cache
// needs on top of it: size accounting and metrics that the core
// intentionally leaves out (spec.md Non-goals exclude it from the core, but
// the ambient stack still wants it one layer up).
type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	table *assoc.Table[K, V]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	occupancy atomic.Int64

	ejectCb EjectCallback[K, V]
	logger  *zap.Logger
}

func newShard[K comparable, V any](layout geometry.Layout, capacity uint64, hash assoc.HashFn[K], equal assoc.EqualFn[K], keyOf assoc.KeyOfFn[K, V], ejectCb EjectCallback[K, V], logger *zap.Logger) (*shard[K, V], error) {
	table, err := assoc.New[K, V](layout, capacity, hash, equal, keyOf)
	if err != nil {
		return nil, err
	}
	return &shard[K, V]{
		table:   table,
		ejectCb: ejectCb,
		logger:  logger,
	}, nil
}

// get implements the public Cache.Get under the exclusive lock, since
// Table.Get saturate-increments the hit slot's reference counter.
func (s *shard[K, V]) get(key K) (V, bool) {
	s.mu.Lock() // Table.Get mutates the slot's reference counter; no RLock fast path here.
	ptr, ok := s.table.Get(key)
	if !ok {
		s.mu.Unlock()
		s.misses.Add(1)
		var zero V
		return zero, false
	}
	val := *ptr
	s.mu.Unlock()
	s.hits.Add(1)
	return val, true
}

// put upserts key -> val, pinning slots for which pinned reports true during
// the eviction sweep (nil pinned pins nothing). An existing key is first
// removed so the insert always goes through Table's put_no_clobber
// precondition cleanly, matching spec.md's stated "no key collision" caller
// contract (section 7) at the shard boundary instead of leaking it to users.
func (s *shard[K, V]) put(key K, val V, pinned assoc.PinFn[V]) (evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.table.Peek(key); ok {
		s.table.Remove(key)
		s.occupancy.Add(-1)
	}

	ptr, reason := s.table.PutNoClobberPinnedDetailed(key, pinned)
	if reason == clock.ReasonEvicted {
		if s.ejectCb != nil {
			old := *ptr
			s.ejectCb(s.table.KeyOf(old), old, EjectReasonCapacity)
		}
		s.evictions.Add(1)
		evicted = true
	} else {
		s.occupancy.Add(1)
	}
	*ptr = val
	return evicted
}

// remove deletes key if present; a no-op otherwise.
func (s *shard[K, V]) remove(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.table.Peek(key); ok {
		s.table.Remove(key)
		s.occupancy.Add(-1)
	}
}

// reset empties the shard without releasing its arenas.
func (s *shard[K, V]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Reset()
	s.occupancy.Store(0)
}

// len returns the shard's live key count.
func (s *shard[K, V]) len() int {
	return int(s.occupancy.Load())
}

// statsSnapshot returns atomic counters, useful for Prometheus scraping.
func (s *shard[K, V]) statsSnapshot() (hits, misses, evictions uint64) {
	return s.hits.Load(), s.misses.Load(), s.evictions.Load()
}

// inspect exposes the shard's debug snapshot for cmd/setcache-inspect.
func (s *shard[K, V]) inspect() []assoc.SetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Inspect()
}
