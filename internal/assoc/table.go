// Package assoc implements the set-associative CLOCK cache core: the
// SetAssociativeCache described in spec.md section 4.4, generic over a
// key type K and a value type V, parameterized by geometry.Layout.
//
// The package is deliberately single-threaded (spec.md section 5: "no
// internal locking"); callers that share a Table across goroutines must
// serialize externally, exactly as pkg.Cache does one layer up.
package assoc

import (
	"fmt"
	"unsafe"

	"github.com/Voskan/setcache/internal/arena"
	"github.com/Voskan/setcache/internal/bitpack"
	"github.com/Voskan/setcache/internal/clock"
	"github.com/Voskan/setcache/internal/geometry"
	"github.com/Voskan/setcache/internal/simd"
)

// AssertChecks gates the verification-build preconditions spec.md section 7
// calls out as "fatal in verification builds, unspecified behavior
// otherwise": PutNoClobber{,Pinned} asserting the key is not already
// present. Tests turn this on; production callers pay for it only if they
// opt in, since it requires one extra associative search per insert.
var AssertChecks = false

// HashFn maps a key to a 64-bit digest with good avalanche (spec.md
// section 1, external collaborator).
type HashFn[K any] func(K) uint64

// EqualFn is the key-equality predicate collaborator.
type EqualFn[K any] func(a, b K) bool

// KeyOfFn extracts the key a stored value was inserted under (the "key
// extractor" collaborator).
type KeyOfFn[K any, V any] func(V) K

// PinFn reports whether a slot's current value must not be evicted by the
// insertion in progress. Receiving a *V (not a copy) lets callers pin by
// pointer identity instead of re-deriving it from the value (spec.md
// "Callback shape" design note).
type PinFn[V any] func(*V) bool

// Table is the set-associative CLOCK cache core.
type Table[K comparable, V any] struct {
	geo *geometry.Geometry

	tags   *bitpack.PackedIntArray
	counts *bitpack.PackedIntArray
	clocks *bitpack.PackedIntArray
	values []V
	// valuesRaw retains the over-sized backing buffer when Layout.ValueAlignment
	// forces manual over-alignment; nil otherwise. It exists purely to keep
	// the GC from reclaiming the buffer out from under `values`.
	valuesRaw []byte

	hash  HashFn[K]
	equal EqualFn[K]
	keyOf KeyOfFn[K, V]

	maxCount uint64
}

// New allocates and validates a Table for the given layout and total slot
// capacity. Configuration that violates any geometry invariant is rejected
// here, before any arena is allocated (spec.md section 7, "Configuration"
// row). Allocation failure (Go's allocator panicking under memory pressure)
// is recovered and surfaced as an error with no arena left attached to the
// returned Table, satisfying the "roll back partially-completed allocations"
// requirement through the only mechanism a GC-managed runtime needs: never
// publish the half-built object.
func New[K comparable, V any](layout geometry.Layout, capacity uint64, hash HashFn[K], equal EqualFn[K], keyOf KeyOfFn[K, V]) (t *Table[K, V], err error) {
	var zeroK K
	var zeroV V

	geo, err := geometry.New(layout, capacity, unsafe.Sizeof(zeroK), unsafe.Sizeof(zeroV), unsafe.Alignof(zeroV))
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = fmt.Errorf("assoc: allocation failed: %v", r)
		}
	}()

	plan := arena.NewRollbackPlan()

	tagWords, err := arena.Words(geo.TagsArenaBytes)
	if err != nil {
		return nil, err
	}
	tags, err := bitpack.NewPackedIntArray(uint8(geo.TagBits), geo.Capacity, tagWords)
	if err != nil {
		return nil, err
	}

	countWords, err := arena.Words(geo.CountsArenaBytes)
	if err != nil {
		return nil, err
	}
	counts, err := bitpack.NewPackedIntArray(uint8(geo.ClockBits), geo.Capacity, countWords)
	if err != nil {
		return nil, err
	}

	clockWords, err := arena.Words(geo.ClocksArenaBytes)
	if err != nil {
		return nil, err
	}
	clocks, err := bitpack.NewPackedIntArray(geo.ClockHandBits, geo.Sets, clockWords)
	if err != nil {
		return nil, err
	}

	values, raw, err := arena.Values[V](int(geo.Capacity), uintptr(geo.ValueAlignment))
	if err != nil {
		return nil, err
	}

	plan.Commit()

	return &Table[K, V]{
		geo:       geo,
		tags:      tags,
		counts:    counts,
		clocks:    clocks,
		values:    values,
		valuesRaw: raw,
		hash:      hash,
		equal:     equal,
		keyOf:     keyOf,
		maxCount:  uint64(1)<<uint(layout.ClockBits) - 1,
	}, nil
}

// Geometry exposes the derived, validated layout.
func (t *Table[K, V]) Geometry() *geometry.Geometry { return t.geo }

// KeyOf exposes the key-extractor collaborator, so an outer layer that only
// holds a *V (e.g. the value displaced by an eviction) can recover its key
// for an eject callback without threading the extractor through separately.
func (t *Table[K, V]) KeyOf(v V) K { return t.keyOf(v) }

// associate computes the set index, tag and slot offset for a key
// (spec.md section 4.4.1).
func (t *Table[K, V]) associate(key K) (setIndex, tag, offset uint64) {
	h := t.hash(key)
	setIndex = h & (t.geo.Sets - 1)
	tag = (h >> t.geo.LogSets) & t.geo.TagMask
	offset = setIndex * uint64(t.geo.Ways)
	return
}

// matchBitmask implements the vectorized tag-equality splat of spec.md
// section 4.4.2: every way is compared against tag in one step, including
// free slots (the caller corroborates with the counter).
func (t *Table[K, V]) matchBitmask(offset, tag uint64) uint32 {
	ways := t.geo.Ways
	var buf [16]uint32
	for w := 0; w < ways; w++ {
		buf[w] = uint32(t.tags.Get(offset + uint64(w)))
	}
	return simd.MatchAll(buf[:ways], uint32(tag))
}

// search implements spec.md section 4.4.3.
func (t *Table[K, V]) search(offset, tag uint64, key K) (way uint64, ok bool) {
	mask := t.matchBitmask(offset, tag)
	it := bitpack.NewBitMaskIterator(uint64(mask))
	for {
		w, has := it.Next()
		if !has {
			return 0, false
		}
		idx := offset + uint64(w)
		if t.counts.Get(idx) > 0 && t.equal(t.keyOf(t.values[idx]), key) {
			return uint64(w), true
		}
	}
}

// Get implements spec.md section 4.4.4: on hit, saturate-increments the
// slot's reference counter and returns a borrowed pointer into the values
// arena, valid until the next mutating call on this Table.
func (t *Table[K, V]) Get(key K) (*V, bool) {
	_, tag, offset := t.associate(key)
	way, ok := t.search(offset, tag, key)
	if !ok {
		return nil, false
	}
	idx := offset + way
	if c := t.counts.Get(idx); c < t.maxCount {
		t.counts.Set(idx, c+1)
	}
	return &t.values[idx], true
}

// Peek looks up key without the side effect Get has on hit (saturate-
// incrementing its reference counter). Used by callers that need to probe
// presence without disturbing CLOCK state, e.g. deciding whether an upsert
// is a fresh insert or a re-key of an existing slot.
func (t *Table[K, V]) Peek(key K) (*V, bool) {
	_, tag, offset := t.associate(key)
	way, ok := t.search(offset, tag, key)
	if !ok {
		return nil, false
	}
	return &t.values[offset+way], true
}

// Remove implements spec.md section 4.4.5: sets the slot's counter to 0 on
// hit, a no-op on miss. Idempotent.
func (t *Table[K, V]) Remove(key K) {
	_, tag, offset := t.associate(key)
	way, ok := t.search(offset, tag, key)
	if !ok {
		return
	}
	t.counts.Set(offset+way, 0)
}

// PutNoClobber implements spec.md section 4.4.6 with no entries pinned. The
// caller must guarantee key is not already present; see AssertChecks.
func (t *Table[K, V]) PutNoClobber(key K) *V {
	ptr, _ := t.putNoClobberPinned(key, nil)
	return ptr
}

// PutNoClobberPinned implements spec.md section 4.4.6: a CLOCK sweep that
// skips any way for which pinned reports true. The caller must guarantee
// fewer than Ways keys are pinned in the key's set; violating this is
// undefined (the sweep's safety bound is reached with no free slot and it
// panics, per spec.md section 7).
func (t *Table[K, V]) PutNoClobberPinned(key K, pinned PinFn[V]) *V {
	ptr, _ := t.putNoClobberPinned(key, pinned)
	return ptr
}

// PutNoClobberPinnedDetailed is PutNoClobberPinned plus the sweep's eviction
// reason, so an outer layer can fire an eject callback with the value that
// occupied the slot before it is overwritten (the returned *V still holds
// that old value; the caller is expected to read it before writing through
// the pointer).
func (t *Table[K, V]) PutNoClobberPinnedDetailed(key K, pinned PinFn[V]) (*V, clock.Reason) {
	return t.putNoClobberPinned(key, pinned)
}

func (t *Table[K, V]) putNoClobberPinned(key K, pinned PinFn[V]) (*V, clock.Reason) {
	setIndex, tag, offset := t.associate(key)

	if AssertChecks {
		if _, ok := t.search(offset, tag, key); ok {
			panic("assoc: put_no_clobber called with a key already present")
		}
	}

	hand := t.clocks.Get(setIndex)

	var skip func(way uint64) bool
	if pinned != nil {
		skip = func(way uint64) bool { return pinned(&t.values[offset+way]) }
	}

	res, err := clock.Sweep(t.counts, offset, hand, uint64(t.geo.Ways), t.maxCount, skip)
	if err != nil {
		panic(err)
	}

	t.clocks.Set(setIndex, (res.Way+1)%uint64(t.geo.Ways))
	t.tags.Set(offset+res.Way, tag)
	t.counts.Set(offset+res.Way, 1)
	return &t.values[offset+res.Way], res.Reason
}

// Reset empties the cache without freeing memory: tags, counts and clock
// hands are zeroed; value bytes are left unspecified and are re-keyed on the
// next insert (spec.md section 3, Cache lifecycle).
func (t *Table[K, V]) Reset() {
	t.tags.Zero()
	t.counts.Zero()
	t.clocks.Zero()
}
