// Package arena allocates the four contiguous storage blocks the
// set-associative cache owns (tags, values, counts, clock hands), each sized
// to a whole multiple of the configured CPU cache line, with an optional
// over-alignment for the values arena.
//
// This package replaces an earlier prototype built on Go's experimental
// goexperiment.arenas package: that approach traded one allocation for a
// single manual-release block, but it fought the geometry layer's need for
// four independently-typed, independently-sized, cache-line-padded arenas,
// and tied every build to an experimental GOEXPERIMENT flag. A plain,
// GC-managed allocation with explicit alignment bookkeeping is simpler and
// has no toolchain prerequisites; deinit becomes "drop the references and
// let the collector reclaim them".
package arena

import (
	"fmt"
	"unsafe"

	"github.com/Voskan/setcache/internal/unsafehelpers"
)

// Words allocates a zero-initialized []uint64 sized exactly to hold byteLen
// bytes. byteLen must already be a multiple of 8; the geometry layer
// guarantees this since every arena size is a cache-line multiple and cache
// lines are themselves multiples of 8 bytes.
func Words(byteLen uint64) ([]uint64, error) {
	if byteLen%8 != 0 {
		return nil, fmt.Errorf("arena: byte length %d is not a multiple of 8", byteLen)
	}
	return make([]uint64, byteLen/8), nil
}

// Values allocates a zero-initialized []V of length n. When align is 0 (use
// V's natural alignment) this is a plain make([]V, n); when align is set
// (the Layout.ValueAlignment override), the slice is carved out of an
// over-sized byte buffer so its backing address is a multiple of align.
//
// The second return value is the raw backing buffer; the caller must retain
// it for as long as the values slice is used when align != 0, since the
// values slice header alone does not keep the true allocation start alive
// once the alignment offset is non-zero.
func Values[V any](n int, align uintptr) (values []V, raw []byte, err error) {
	if n < 0 {
		return nil, nil, fmt.Errorf("arena: negative length %d", n)
	}
	if align == 0 {
		return make([]V, n), nil, nil
	}
	if !unsafehelpers.IsPowerOfTwo(align) {
		return nil, nil, fmt.Errorf("arena: alignment %d is not a power of two", align)
	}
	var zero V
	elemSize := unsafe.Sizeof(zero)
	raw = make([]byte, uintptr(n)*elemSize+align-1)
	values = unsafehelpers.AlignedSlice[V](raw, align, n)
	return values, raw, nil
}

// RollbackPlan tracks a multi-arena allocation sequence so that, per
// spec section 5 ("partial-allocation failure in init rolls back any
// successful allocations before propagating the failure"), a failure
// partway through leaves nothing reachable. Since every allocation here is
// GC-managed, "rollback" means "never attach the partially built arenas to
// the cache object" — the caller simply returns the error instead of
// assigning the fields, and the collector reclaims the rest.
type RollbackPlan struct {
	ok bool
}

// NewRollbackPlan starts tracking a multi-arena allocation sequence.
func NewRollbackPlan() *RollbackPlan { return &RollbackPlan{} }

// Commit marks the whole sequence as successful.
func (p *RollbackPlan) Commit() { p.ok = true }

// Committed reports whether Commit was called.
func (p *RollbackPlan) Committed() bool { return p.ok }
