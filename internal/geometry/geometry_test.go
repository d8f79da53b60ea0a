package geometry

import "testing"

func refLayout() Layout {
	return Layout{Ways: 16, TagBits: 8, ClockBits: 2, CacheLineSize: 64}
}

func TestNewWorkedExample(t *testing.T) {
	// ways=16, tag_bits=8, clock_bits=2, cache_line_size=64, K=V=uint64,
	// capacity=2048 -> sets=128 (section 8 concrete scenarios).
	g, err := New(refLayout(), 2048, 8, 8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.Sets != 128 {
		t.Errorf("Sets = %d, want 128", g.Sets)
	}
	if g.ClockHandBits != 4 {
		t.Errorf("ClockHandBits = %d, want 4", g.ClockHandBits)
	}
	if g.TagsPerLine != 4 {
		t.Errorf("TagsPerLine = %d, want 4", g.TagsPerLine)
	}
	if g.CountsPerLine != 16 {
		t.Errorf("CountsPerLine = %d, want 16", g.CountsPerLine)
	}
	if g.ClockHandsPerLine != 128 {
		t.Errorf("ClockHandsPerLine = %d, want 128", g.ClockHandsPerLine)
	}
	if g.ClocksArenaBytes != 64 {
		t.Errorf("ClocksArenaBytes = %d, want 64", g.ClocksArenaBytes)
	}
}

func TestNewRejectsBadWays(t *testing.T) {
	l := refLayout()
	l.Ways = 8
	if _, err := New(l, 2048, 8, 8, 8); err != ErrInvalidWays {
		t.Fatalf("got %v, want ErrInvalidWays", err)
	}
}

func TestNewRejectsBadCapacity(t *testing.T) {
	l := refLayout()
	if _, err := New(l, 2047, 8, 8, 8); err != ErrInvalidCapacity {
		t.Fatalf("got %v, want ErrInvalidCapacity", err)
	}
	if _, err := New(l, 1, 8, 8, 8); err != ErrInvalidCapacity {
		t.Fatalf("got %v, want ErrInvalidCapacity for capacity < ways", err)
	}
}

func TestNewRejectsKeyLargerThanValue(t *testing.T) {
	l := refLayout()
	if _, err := New(l, 2048, 16, 8, 8); err != ErrKeyLargerThanValue {
		t.Fatalf("got %v, want ErrKeyLargerThanValue", err)
	}
}

func TestNewRejectsNonPowerOfTwoCacheLine(t *testing.T) {
	l := Layout{Ways: 4, TagBits: 8, ClockBits: 2, CacheLineSize: 3}
	// cache_line_size must itself be a power of two, caught first.
	if _, err := New(l, 16, 2, 2, 2); err != ErrInvalidCacheLine {
		t.Fatalf("got %v, want ErrInvalidCacheLine", err)
	}
}

func TestNewValueAlignmentOverride(t *testing.T) {
	l := refLayout()
	l.ValueAlignment = 16
	// 16-byte value with natural alignment 8: 16 > 8 and 16 divides 16.
	if _, err := New(l, 2048, 8, 16, 8); err != nil {
		t.Fatalf("New: %v", err)
	}
	l.ValueAlignment = 4 // not > natural alignment 8
	if _, err := New(l, 2048, 8, 8, 8); err != ErrValueAlignment {
		t.Fatalf("got %v, want ErrValueAlignment", err)
	}
}

func TestDescribeReportsDerivedConstants(t *testing.T) {
	g, err := New(refLayout(), 2048, 8, 8, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d := g.Describe()
	if d["sets"] != g.Sets {
		t.Fatalf("Describe()[sets] = %v, want %v", d["sets"], g.Sets)
	}
}
