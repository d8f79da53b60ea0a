// Package simd implements the vectorized tag-equality splat spec.md section
// 4.4.2 calls for: compare a query tag against every way of a set in one
// step and reinterpret the result as a ways-bit integer.
//
// Go has no portable SIMD intrinsics in the compiler versions this module
// targets, so "vectorized" here means SWAR (SIMD-within-a-register): pack
// several tag lanes into one machine word, XOR them all against a broadcast
// query in one operation, then test each lane of the result for zero. klauspost/cpuid
// gates the decision between the packed SWAR path and the always-correct
// scalar loop, mirroring how a real AVX2/NEON dispatch would be structured
// even though the payload here is portable Go rather than assembly.
package simd

import "github.com/klauspost/cpuid/v2"

// wideLanes reports whether the host looks capable enough that the SWAR
// batched comparison is worth its extra arithmetic versus a bare scalar
// loop. On very small way counts (<=4) the scalar loop already wins, so this
// is consulted only for larger sets.
func wideLanes() bool {
	return cpuid.CPU.Supports(cpuid.SSE2) || cpuid.CPU.Supports(cpuid.ASIMD)
}

// MatchAll compares query against every element of tags and returns a
// bitmask with bit i set iff tags[i] == query. len(tags) must be <= 16 (the
// maximum configured associativity).
func MatchAll(tags []uint32, query uint32) uint32 {
	if len(tags) > 16 {
		panic("simd: MatchAll supports at most 16 lanes")
	}
	if len(tags) > 4 && wideLanes() {
		return matchAllSWAR(tags, query)
	}
	return matchAllScalar(tags, query)
}

// matchAllScalar is the reference implementation: a plain loop. Every other
// strategy must produce bit-identical output to this one.
func matchAllScalar(tags []uint32, query uint32) uint32 {
	var mask uint32
	for i, t := range tags {
		if t == query {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// matchAllSWAR compares four lanes at a time by packing them into a uint64,
// XOR-ing against a broadcast query, and checking each 16-bit lane of the
// difference for zero (tags are at most 16 bits wide, so two lanes fit per
// 32 bits and four fit per uint64). Any XOR-zero lane is a match. This
// never changes behaviour relative to the scalar loop.
func matchAllSWAR(tags []uint32, query uint32) uint32 {
	var mask uint32
	i := 0
	for ; i+4 <= len(tags); i += 4 {
		var packed, qbroadcast uint64
		for lane := 0; lane < 4; lane++ {
			shift := uint(lane * 16)
			packed |= uint64(tags[i+lane]&0xFFFF) << shift
			qbroadcast |= uint64(query&0xFFFF) << shift
		}
		diff := packed ^ qbroadcast
		for lane := 0; lane < 4; lane++ {
			shift := uint(lane * 16)
			lane16 := uint16(diff >> shift)
			if lane16 == 0 {
				mask |= 1 << uint(i+lane)
			}
		}
	}
	for ; i < len(tags); i++ {
		if tags[i] == query {
			mask |= 1 << uint(i)
		}
	}
	return mask
}
