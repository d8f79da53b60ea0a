package cache

// loader.go implements the singleflight-based de-duplication layer behind
// Cache.GetOrLoad. The goal is to prevent a thundering herd when many
// goroutines request the same missing key at once: only one loader function
// executes, the rest share its result.
//
// x/sync/singleflight keys on a string, so this wraps it in a generic helper
// that derives the singleflight key from the shard's own hash of K (already
// computed inside the shard's Table on the subsequent Get/Put, so this pays
// no extra hashing scheme of its own).
//
// © 2025 setcache authors. MIT License.

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// LoadResult holds the outcome of an asynchronous load. Shared == true means
// this goroutine did not execute the loader itself; it received a result
// computed for another concurrent caller.
type LoadResult[V any] struct {
	Value  V
	Err    error
	Shared bool
}

type loaderGroup[K comparable, V any] struct {
	g singleflight.Group
}

func newLoaderGroup[K comparable, V any]() *loaderGroup[K, V] {
	return &loaderGroup[K, V]{}
}

// load executes fn exactly once for the given key hash across all
// goroutines racing on it. Every waiter receives the same Value/error.
func (lg *loaderGroup[K, V]) load(ctx context.Context, keyHash uint64, key K, fn LoaderFunc[K, V]) (val V, err error, shared bool) {
	k := strconv.FormatUint(keyHash, 16)
	res, err, shared := lg.g.Do(k, func() (any, error) {
		return fn(ctx, key)
	})
	if err != nil {
		return val, err, shared
	}
	if ctx.Err() != nil {
		return val, ctx.Err(), shared
	}
	return res.(V), nil, shared
}

// loadAsync is a convenience wrapper returning a typed channel delivering
// LoadResult, for callers that want to fan out many GetOrLoad calls without
// blocking on each.
func (lg *loaderGroup[K, V]) loadAsync(ctx context.Context, keyHash uint64, key K, fn LoaderFunc[K, V]) <-chan LoadResult[V] {
	out := make(chan LoadResult[V], 1)
	k := strconv.FormatUint(keyHash, 16)

	ch := lg.g.DoChan(k, func() (any, error) {
		// DoChan does not propagate ctx; the loader itself must honour it if
		// cancellation matters to its own IO.
		return fn(context.Background(), key)
	})

	go func() {
		select {
		case res := <-ch:
			if res.Err != nil {
				out <- LoadResult[V]{Err: res.Err, Shared: res.Shared}
			} else {
				out <- LoadResult[V]{Value: res.Val.(V), Shared: res.Shared}
			}
		case <-ctx.Done():
			// The caller gave up; we do not attempt to cancel the underlying
			// singleflight call since another waiter may still need it.
			var zero V
			out <- LoadResult[V]{Value: zero, Err: ctx.Err(), Shared: false}
		}
		close(out)
	}()
	return out
}
