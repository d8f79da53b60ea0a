package assoc

import (
	"testing"

	"github.com/Voskan/setcache/internal/geometry"
)

// entry is the test value type: its own key plus a payload, so keyOf can
// recover the key exactly as a real cache's stored record would.
type entry struct {
	Key uint64
	Val uint64
}

func identityHash(k uint64) uint64 { return k }
func uint64Equal(a, b uint64) bool { return a == b }
func entryKeyOf(e entry) uint64    { return e.Key }

// testLayout mirrors spec.md section 4.3's worked example (ways=16,
// tag_bits=8, clock_bits=2, cache_line_size=64, capacity=2048, giving 128
// sets), already hand-verified in geometry_test.go, so every arena byte size
// here is known to satisfy the cache-line-multiple invariant.
const testWays = 16
const testCapacity = 2048
const testSets = testCapacity / testWays

func newTestTable(t *testing.T) *Table[uint64, entry] {
	t.Helper()
	layout := geometry.Layout{Ways: testWays, TagBits: 8, ClockBits: 2, CacheLineSize: 64}
	tbl, err := New[uint64, entry](layout, testCapacity, identityHash, uint64Equal, entryKeyOf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

// setZeroKey returns a key that hashes into set 0 with tag n, since
// identityHash is the identity function and logSets=log2(testSets): a key
// that is an exact multiple of testSets has set_index = 0 and
// tag = key>>logSets = n.
func setZeroKey(n uint64) uint64 { return n * testSets }

func TestMissThenHit(t *testing.T) {
	tbl := newTestTable(t)

	if _, ok := tbl.Get(42); ok {
		t.Fatal("expected miss before any insert")
	}

	v := tbl.PutNoClobber(42)
	*v = entry{Key: 42, Val: 100}

	got, ok := tbl.Get(42)
	if !ok {
		t.Fatal("expected hit after insert")
	}
	if got.Val != 100 {
		t.Fatalf("Val = %d, want 100", got.Val)
	}
}

// TestFillOneSetThenEvictWayZero drives spec.md section 8 scenarios 2 and 3:
// filling a 16-way set exactly full, then confirming the next insert into
// that same set evicts way 0 (the CLOCK hand wraps back there, and every
// way's counter sits at 2 after its insert and one Get, so the sweep takes
// all 16 ways down to 1 in one lap and way 0 reaches zero first on the next).
func TestFillOneSetThenEvictWayZero(t *testing.T) {
	tbl := newTestTable(t)

	keys := make([]uint64, testWays)
	for i := range keys {
		keys[i] = setZeroKey(uint64(i))
		v := tbl.PutNoClobber(keys[i])
		*v = entry{Key: keys[i], Val: keys[i] + 1}
	}

	for _, k := range keys {
		if _, ok := tbl.Get(k); !ok {
			t.Fatalf("key %d should still be present", k)
		}
	}

	snapBefore := tbl.InspectSet(0)
	if snapBefore.ClockHand != 0 {
		t.Fatalf("clock hand = %d, want 0 (wrapped after filling a %d-way set)", snapBefore.ClockHand, testWays)
	}

	overflow := setZeroKey(uint64(testWays))
	ov := tbl.PutNoClobber(overflow)
	*ov = entry{Key: overflow, Val: overflow + 1}

	if _, ok := tbl.Get(keys[0]); ok {
		t.Fatal("key at way 0 should have been evicted")
	}
	for _, k := range keys[1:] {
		if _, ok := tbl.Get(k); !ok {
			t.Fatalf("key %d should still be present after eviction", k)
		}
	}
	if _, ok := tbl.Get(overflow); !ok {
		t.Fatal("the inserted overflow key should be present")
	}
}

func TestPinPreventsEviction(t *testing.T) {
	tbl := newTestTable(t)

	keys := make([]uint64, testWays)
	for i := range keys {
		keys[i] = setZeroKey(uint64(i))
		v := tbl.PutNoClobber(keys[i])
		*v = entry{Key: keys[i], Val: keys[i]}
	}

	pinKey := keys[0]
	pinned := func(v *entry) bool { return v.Key == pinKey }

	overflow := setZeroKey(uint64(testWays))
	v := tbl.PutNoClobberPinned(overflow, pinned)
	v.Key, v.Val = overflow, overflow

	if _, ok := tbl.Get(pinKey); !ok {
		t.Fatal("pinned key must survive the insert that required an eviction")
	}
}

func TestSweepFatalWhenSetFullyPinned(t *testing.T) {
	tbl := newTestTable(t)
	keys := make([]uint64, testWays)
	for i := range keys {
		keys[i] = setZeroKey(uint64(i))
		v := tbl.PutNoClobber(keys[i])
		*v = entry{Key: keys[i], Val: keys[i]}
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic: every way in the set is pinned, sweep cannot find a victim")
		}
	}()
	tbl.PutNoClobberPinned(setZeroKey(uint64(testWays)), func(*entry) bool { return true })
}

func TestRemoveIsIdempotent(t *testing.T) {
	tbl := newTestTable(t)
	v := tbl.PutNoClobber(1)
	*v = entry{Key: 1, Val: 1}

	tbl.Remove(1)
	if _, ok := tbl.Get(1); ok {
		t.Fatal("key should be gone after Remove")
	}
	tbl.Remove(1) // must not panic
	if _, ok := tbl.Get(1); ok {
		t.Fatal("key should still be gone after a second Remove")
	}

	tbl.Remove(999) // removing an absent key must also be a silent no-op
}

func TestGetSaturatesCounter(t *testing.T) {
	tbl := newTestTable(t)
	v := tbl.PutNoClobber(1)
	*v = entry{Key: 1, Val: 1}

	const maxCount = 3 // clock_bits=2 -> counts 0..3
	for i := 0; i < maxCount+5; i++ {
		tbl.Get(1)
	}

	setIndex, tag, offset := tbl.associate(1)
	way, ok := tbl.search(offset, tag, 1)
	if !ok {
		t.Fatal("key 1 should still be present")
	}
	snap := tbl.InspectSet(setIndex)
	if c := snap.Slots[way].Count; c > maxCount {
		t.Fatalf("counter %d exceeds saturation max %d", c, maxCount)
	}
}

func TestAssertChecksCatchesClobber(t *testing.T) {
	tbl := newTestTable(t)
	v := tbl.PutNoClobber(1)
	*v = entry{Key: 1, Val: 1}

	old := AssertChecks
	AssertChecks = true
	defer func() { AssertChecks = old }()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic inserting an already-present key under AssertChecks")
		}
	}()
	tbl.PutNoClobber(1)
}

func TestResetClearsOccupancy(t *testing.T) {
	tbl := newTestTable(t)
	keys := []uint64{setZeroKey(0), setZeroKey(1), setZeroKey(2)}
	for _, k := range keys {
		v := tbl.PutNoClobber(k)
		*v = entry{Key: k, Val: k}
	}
	tbl.Reset()
	for _, k := range keys {
		if _, ok := tbl.Get(k); ok {
			t.Fatalf("key %d should be gone after Reset", k)
		}
	}
}

// TestAtMostOneMatchPerSet covers the property that a tag collision between
// an occupied and an unoccupied way must still resolve to exactly one
// match: matchBitmask may report both, but the counter+equal corroboration
// in search() must disambiguate (spec.md section 8 property 2).
func TestAtMostOneMatchPerSet(t *testing.T) {
	tbl := newTestTable(t)
	k0 := setZeroKey(0)
	v0 := tbl.PutNoClobber(k0)
	*v0 = entry{Key: k0, Val: k0}

	_, tag, offset := tbl.associate(k0)
	tbl.tags.Set(offset+1, tag) // way 1 now shares way 0's tag
	tbl.counts.Set(offset+1, 0) // but way 1 is unoccupied

	way, ok := tbl.search(offset, tag, k0)
	if !ok || way != 0 {
		t.Fatalf("search should resolve the tag collision to the sole occupied way 0, got way=%d ok=%v", way, ok)
	}
}
