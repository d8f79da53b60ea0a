package assoc

// SlotSnapshot is the debug view of one way within a set (spec.md section 6,
// "inspect a set's raw state for debugging/testing").
type SlotSnapshot struct {
	Way      uint64 `json:"way"`
	Tag      uint64 `json:"tag"`
	Count    uint64 `json:"count"`
	Occupied bool   `json:"occupied"`
}

// SetSnapshot is the debug view of one entire set.
type SetSnapshot struct {
	SetIndex  uint64         `json:"set_index"`
	Offset    uint64         `json:"offset"`
	ClockHand uint64         `json:"clock_hand"`
	Slots     []SlotSnapshot `json:"slots"`
}

// InspectSet dumps the raw tag/count/clock-hand state of one set, with no
// interpretation beyond "count > 0 means occupied". Intended for tests and
// diagnostics, not the hot path.
func (t *Table[K, V]) InspectSet(setIndex uint64) SetSnapshot {
	offset := setIndex * uint64(t.geo.Ways)
	snap := SetSnapshot{
		SetIndex:  setIndex,
		Offset:    offset,
		ClockHand: t.clocks.Get(setIndex),
		Slots:     make([]SlotSnapshot, t.geo.Ways),
	}
	for w := 0; w < t.geo.Ways; w++ {
		idx := offset + uint64(w)
		count := t.counts.Get(idx)
		snap.Slots[w] = SlotSnapshot{
			Way:      uint64(w),
			Tag:      t.tags.Get(idx),
			Count:    count,
			Occupied: count > 0,
		}
	}
	return snap
}

// Inspect dumps every set. This walks the whole cache and is meant for
// offline diagnostics (spec.md section 6's InspectJSON), not production
// polling.
func (t *Table[K, V]) Inspect() []SetSnapshot {
	sets := make([]SetSnapshot, t.geo.Sets)
	for s := uint64(0); s < t.geo.Sets; s++ {
		sets[s] = t.InspectSet(s)
	}
	return sets
}

// InspectJSON returns the same snapshot as Inspect in a shape that encodes
// directly via encoding/json, for the cmd/setcache-inspect debug tool.
func (t *Table[K, V]) InspectJSON() any {
	return t.Inspect()
}
