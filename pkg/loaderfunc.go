package cache

// loaderfunc.go defines LoaderFunc: the user-supplied callback that produces
// a value when Cache.GetOrLoad misses. It lives in its own file so it can be
// imported by multiple sibling files (cache.go, loader.go) without an import
// cycle.
//
// - The function must be pure with regard to the cache itself: it MUST NOT
//   call Cache.Put or re-enter the same Cache it serves, or the singleflight
//   dedup in loader.go will deadlock.
// - It should honour the provided context for cancellation and deadlines.
// - If the loader returns an error, the value is not stored in the cache and
//   the error is propagated to the caller of GetOrLoad.
//
// © 2025 setcache authors. MIT License.

import "context"

// LoaderFunc is invoked by GetOrLoad when a key is absent. The same
// LoaderFunc instance may be invoked concurrently for different keys; it
// must therefore be thread-safe.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)
