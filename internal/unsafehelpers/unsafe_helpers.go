// Package unsafehelpers centralises **all** unavoidable usage of the
// `unsafe` standard-library package so that the rest of the cache stays clean
// and easier to audit. Every helper is documented with clear pre-/post-
// conditions.
//
// DISCLAIMER: these helpers deliberately break the Go memory-safety model for
// the sake of zero-allocation conversions and manual over-alignment. Use ONLY
// inside this repository; they are not part of the public API and may change
// without notice. Misuse will lead to subtle data races or garbage-collector
// corruption.
//
// All functions are go:linkname-free, cgo-free and pure Go.
package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   1. Zero-copy string/[]byte conversions
   ------------------------------------------------------------------------- */

// BytesToString converts a mutable byte slice to an immutable string without
// allocating. The caller must guarantee that b is never modified for the
// lifetime of the resulting string.
//
// Typical use case here: hashing keys when K == []byte.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes re-interprets string data as a byte slice with no copy. The
// slice MUST remain read-only; writing to it mutates immutable string
// storage.
func StringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

/* -------------------------------------------------------------------------
   2. Generic pointer <-> slice helpers
   ------------------------------------------------------------------------- */

// PtrSlice converts an arbitrary *T pointer + element count into a []T
// without copying.
func PtrSlice[T any](ptr *T, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice(ptr, n)
}

// ByteSliceFrom returns a []byte view of raw memory starting at ptr with the
// given length. Caller must ensure the memory block is at least length
// bytes.
func ByteSliceFrom(ptr unsafe.Pointer, length uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), length)
}

// BytesOf returns a read-only byte view over an arbitrary scalar or struct
// value, used to feed non-string/[]byte keys into a byte-oriented hash
// function without reflection.
func BytesOf[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

/* -------------------------------------------------------------------------
   3. Alignment helpers
   ------------------------------------------------------------------------- */

// AlignUp rounds x up to the nearest multiple of align (which must be a power
// of two).
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}

// AlignedSlice carves an over-aligned []T view out of a larger backing byte
// buffer. buf must hold at least n*sizeof(T)+align-1 bytes; the returned
// slice's backing address is a multiple of align. The caller must keep buf
// alive (e.g. as a struct field) for as long as the returned slice is used.
func AlignedSlice[T any](buf []byte, align uintptr, n int) []T {
	if n == 0 {
		return nil
	}
	base := uintptr(unsafe.Pointer(&buf[0]))
	offset := AlignUp(base, align) - base
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[offset])), n)
}
