package cache

// config.go defines the internal configuration object and the set of
// functional options that can be passed to New[K,V]. A generic Option is
// used so that callbacks retain full type-safety with respect to the
// concrete value type V and key type K chosen by the user.
//
// Design notes
// ------------
// - All fields are initialised with sensible defaults in defaultConfig().
// - Options never allocate unless strictly necessary - they just capture
//   pointers to external objects (registry, logger, collaborators).
// - The struct is hidden from the public API: users can only influence
//   behaviour via Option[K,V].
//
// © 2025 setcache authors. MIT License.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Voskan/setcache/internal/assoc"
	"github.com/Voskan/setcache/internal/geometry"
)

// HashFn, EqualFn, KeyOfFn and PinFn name the key/value collaborator shapes
// New requires; they are defined once in internal/assoc and used directly
// here (and throughout pkg) rather than re-declared, since re-declaring them
// as distinct named types would make values of one not assignable to the
// other without an explicit conversion at every call site.

// EjectReason classifies why EjectCallback fired.
type EjectReason uint8

const (
	// EjectReasonCapacity means the slot was reclaimed by a CLOCK sweep to
	// make room for a new key (spec.md section 4.4.6).
	EjectReasonCapacity EjectReason = iota + 1
)

// EjectCallback is invoked synchronously, in the calling goroutine, whenever
// an insert displaces a previously-occupied slot. It must not block or
// re-enter the Cache it was registered on.
type EjectCallback[K comparable, V any] func(key K, val V, reason EjectReason)

// Option is the functional option passed to New. It is generic because some
// options (EjectCallback, key/value collaborators) refer to concrete K/V
// types.
type Option[K comparable, V any] func(*config[K, V])

// config bundles every knob that influences cache behaviour. All fields are
// immutable once the Cache is constructed.
type config[K comparable, V any] struct {
	layout   geometry.Layout
	capacity uint64
	shards   uint8

	hash  assoc.HashFn[K]
	equal assoc.EqualFn[K]
	keyOf assoc.KeyOfFn[K, V]

	registry *prometheus.Registry
	logger   *zap.Logger
	ejectCb  EjectCallback[K, V]
}

func defaultConfig[K comparable, V any](capacity uint64, shards uint8, hash assoc.HashFn[K], equal assoc.EqualFn[K], keyOf assoc.KeyOfFn[K, V]) *config[K, V] {
	return &config[K, V]{
		layout:   geometry.DefaultLayout(),
		capacity: capacity,
		shards:   shards,
		hash:     hash,
		equal:    equal,
		keyOf:    keyOf,
		logger:   zap.NewNop(),
	}
}

// WithLayout overrides the default set-associative geometry (16 ways, 8-bit
// tags, 2-bit counters, 64-byte cache lines). Every shard is built with the
// same layout.
func WithLayout[K comparable, V any](l geometry.Layout) Option[K, V] {
	return func(c *config[K, V]) { c.layout = l }
}

// WithMetrics enables Prometheus metrics collection for the cache instance.
// Passing nil disables metrics (the default).
func WithMetrics[K comparable, V any](reg *prometheus.Registry) Option[K, V] {
	return func(c *config[K, V]) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger. The cache never logs on the hot
// path; New logs one Debug line once every shard is built.
func WithLogger[K comparable, V any](l *zap.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEjectCallback registers a function invoked whenever an insert displaces
// a previously-occupied slot via a CLOCK sweep. The callback runs in the
// calling goroutine and must not block.
func WithEjectCallback[K comparable, V any](cb EjectCallback[K, V]) Option[K, V] {
	return func(c *config[K, V]) { c.ejectCb = cb }
}

// applyOptions copies user-supplied options into cfg and validates
// invariants.
func applyOptions[K comparable, V any](cfg *config[K, V], opts []Option[K, V]) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.capacity == 0 {
		return errInvalidCapacity
	}
	if cfg.shards == 0 || (cfg.shards&(cfg.shards-1)) != 0 {
		return errInvalidShards
	}
	if cfg.capacity%uint64(cfg.shards) != 0 {
		return errCapacityNotDivisible
	}
	return nil
}

var (
	errInvalidCapacity      = errors.New("capacity must be > 0")
	errInvalidShards        = errors.New("shards must be power-of-two and > 0")
	errCapacityNotDivisible = errors.New("capacity must be an exact multiple of shards")
)
