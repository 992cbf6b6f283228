package client

import "testing"

func TestRenderSeqTrackerRejectsBeforeBaseline(t *testing.T) {
	tr := NewRenderSeqTracker()
	if tr.ShouldApply(0, 1) {
		t.Fatalf("expected reject before any baseline set beyond the zero value")
	}
}

func TestRenderSeqTrackerAcceptsMonotonicAfterBaseline(t *testing.T) {
	tr := NewRenderSeqTracker()
	tr.SetBaseline(10)

	if !tr.ShouldApply(10, 11) {
		t.Fatalf("expected accept for seq > baseline")
	}
	tr.MarkApplied(11)

	if tr.ShouldApply(10, 11) {
		t.Fatalf("expected reject for duplicate seq")
	}
	if tr.ShouldApply(10, 10) {
		t.Fatalf("expected reject for seq <= last applied")
	}
	if !tr.ShouldApply(10, 12) {
		t.Fatalf("expected accept for newer seq against the same baseline")
	}
}

func TestRenderSeqTrackerRejectsWrongBaseline(t *testing.T) {
	tr := NewRenderSeqTracker()
	tr.SetBaseline(10)
	if tr.ShouldApply(9, 11) {
		t.Fatalf("expected reject for mismatched base state id")
	}
}

func TestRenderSeqTrackerNewBaselineResetsSeq(t *testing.T) {
	tr := NewRenderSeqTracker()
	tr.SetBaseline(10)
	tr.MarkApplied(15)
	tr.SetBaseline(20)

	if !tr.ShouldApply(20, 21) {
		t.Fatalf("expected accept for first delta against the new baseline")
	}
	if tr.ShouldApply(10, 16) {
		t.Fatalf("expected reject against the stale baseline after rebase")
	}
}
