package style

import "testing"

func TestNewTableHasSentinelDefaultAtZero(t *testing.T) {
	tbl := New()
	s, ok := tbl.Get(0)
	if !ok || s != Default {
		t.Fatalf("expected id 0 to be the default style, got %+v ok=%v", s, ok)
	}
}

func TestGetOrInsertIsIdempotentForEqualStyles(t *testing.T) {
	tbl := New()
	a := Style{Bold: true, Fg: Color{Kind: ColorANSI256, ANSI256: 9}}
	id1 := tbl.GetOrInsert(a)
	id2 := tbl.GetOrInsert(a)
	if id1 != id2 {
		t.Fatalf("expected same id for equal styles, got %d and %d", id1, id2)
	}
}

func TestGetOrInsertAssignsDistinctIdsForDistinctStyles(t *testing.T) {
	tbl := New()
	id1 := tbl.GetOrInsert(Style{Bold: true})
	id2 := tbl.GetOrInsert(Style{Italic: true})
	if id1 == id2 {
		t.Fatalf("expected distinct ids for distinct styles")
	}
}

func TestStylesSinceReturnsOnlyNewerStyles(t *testing.T) {
	tbl := New()
	tbl.GetOrInsert(Style{Bold: true})
	baseline := tbl.CurrentCount()
	tbl.GetOrInsert(Style{Italic: true})
	tbl.GetOrInsert(Style{Reverse: true})

	entries := tbl.StylesSince(baseline)
	if len(entries) != 2 {
		t.Fatalf("expected 2 styles since baseline, got %d", len(entries))
	}
	if entries[0].Style != (Style{Italic: true}) || entries[1].Style != (Style{Reverse: true}) {
		t.Fatalf("expected insertion order preserved, got %+v", entries)
	}
}

func TestResetTruncatesToSentinel(t *testing.T) {
	tbl := New()
	tbl.GetOrInsert(Style{Bold: true})
	tbl.Reset()
	if tbl.CurrentCount() != 1 {
		t.Fatalf("expected only the sentinel after reset, got %d", tbl.CurrentCount())
	}
	if id := tbl.GetOrInsert(Default); id != 0 {
		t.Fatalf("expected default style to remain id 0 after reset, got %d", id)
	}
}
