package bitpack

import "math/bits"

// BitMaskIterator yields the set-bit positions of an integer bitmask in
// ascending order, consuming the mask as it goes. Zero-valued
// BitMaskIterator{} over an empty mask is immediately exhausted.
type BitMaskIterator struct {
	mask uint64
}

// NewBitMaskIterator constructs an iterator over the given mask. Width is
// bounded by the number of ways (at most 16 bits are ever meaningful here),
// but the iterator itself is width-agnostic.
func NewBitMaskIterator(mask uint64) BitMaskIterator {
	return BitMaskIterator{mask: mask}
}

// Next returns the index of the next set bit in ascending order, and false
// once the mask is exhausted.
func (it *BitMaskIterator) Next() (int, bool) {
	if it.mask == 0 {
		return 0, false
	}
	i := bits.TrailingZeros64(it.mask)
	it.mask &= it.mask - 1
	return i, true
}
