package client

import (
	"testing"

	"github.com/zrp-project/zrp/delta"
	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/style"
	"github.com/zrp-project/zrp/wire"
)

func TestApplierRejectsDeltaBeforeSnapshot(t *testing.T) {
	a := NewApplier()
	if _, err := a.ApplyDelta(wire.ScreenDelta{}); err == nil {
		t.Fatalf("expected error applying a delta before any snapshot")
	}
}

func TestApplierSnapshotThenDelta(t *testing.T) {
	store := frame.NewStore(10, 3)
	styles := style.New()

	snap := delta.ComputeSnapshot(store.CurrentFrame(), styles, store.CurrentStateID())

	a := NewApplier()
	a.ApplySnapshot(snap)

	if !a.HasFrame() {
		t.Fatalf("expected HasFrame true after snapshot")
	}
	if a.StateID() != 0 {
		t.Fatalf("expected initial state id 0, got %d", a.StateID())
	}

	baseline := store.CurrentFrame()
	store.SetCell(0, 0, frame.Cell{Codepoint: 'x', Width: 1, StyleID: 0})
	newStateID := store.AdvanceState()
	dirty := store.TakeDirtyRows()

	d := delta.ComputeDelta(baseline, store.CurrentFrame(), styles, 0, newStateID, dirty)

	watermark, err := a.ApplyDelta(d)
	if err != nil {
		t.Fatalf("unexpected error applying delta: %v", err)
	}
	if watermark != 0 {
		t.Fatalf("expected zero watermark (none set on this delta), got %d", watermark)
	}
	if a.StateID() != newStateID {
		t.Fatalf("expected state id %d, got %d", newStateID, a.StateID())
	}
	if a.CurrentFrame().Rows[0].Cell(0).Codepoint != 'x' {
		t.Fatalf("expected patched cell to show 'x'")
	}
}

func TestApplierRejectsMismatchedBase(t *testing.T) {
	store := frame.NewStore(10, 3)
	styles := style.New()
	snap := delta.ComputeSnapshot(store.CurrentFrame(), styles, store.CurrentStateID())

	a := NewApplier()
	a.ApplySnapshot(snap)

	baseline := store.CurrentFrame()
	store.SetCell(1, 1, frame.Cell{Codepoint: 'y', Width: 1, StyleID: 0})
	newStateID := store.AdvanceState()
	d := delta.ComputeDelta(baseline, store.CurrentFrame(), styles, 99, newStateID, store.TakeDirtyRows())

	if _, err := a.ApplyDelta(d); err != ErrBaseMismatch {
		t.Fatalf("expected ErrBaseMismatch, got %v", err)
	}
}

func TestApplierIndependentDeltasReplaceNotChain(t *testing.T) {
	store := frame.NewStore(10, 2)
	styles := style.New()
	snap := delta.ComputeSnapshot(store.CurrentFrame(), styles, store.CurrentStateID())

	a := NewApplier()
	a.ApplySnapshot(snap)
	baseline := store.CurrentFrame()

	store.SetCell(0, 0, frame.Cell{Codepoint: 'a', Width: 1, StyleID: 0})
	state1 := store.AdvanceState()
	d1 := delta.ComputeDelta(baseline, store.CurrentFrame(), styles, 0, state1, store.TakeDirtyRows())
	if _, err := a.ApplyDelta(d1); err != nil {
		t.Fatalf("unexpected error on first delta: %v", err)
	}

	store.SetCell(0, 1, frame.Cell{Codepoint: 'b', Width: 1, StyleID: 0})
	state2 := store.AdvanceState()
	d2 := delta.ComputeDelta(baseline, store.CurrentFrame(), styles, 0, state2, store.TakeDirtyRows())
	if _, err := a.ApplyDelta(d2); err != nil {
		t.Fatalf("unexpected error on second delta against the same baseline: %v", err)
	}

	if a.CurrentFrame().Rows[0].Cell(0).Codepoint != 'a' {
		t.Fatalf("expected row 0's change from the first delta to still be visible")
	}
	if a.CurrentFrame().Rows[0].Cell(1).Codepoint != 'b' {
		t.Fatalf("expected row 0's change from the second delta to be visible")
	}
}
