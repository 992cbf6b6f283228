package history

import (
	"testing"
	"time"

	"github.com/zrp-project/zrp/clock"
	"github.com/zrp-project/zrp/frame"
)

func TestPushAndCanResumeFrom(t *testing.T) {
	h := New(0, clock.NewManual(time.Unix(0, 0)))
	d := frame.Data{Cols: 4}
	h.Push(5, d)
	if !h.CanResumeFrom(5) {
		t.Fatalf("expected to be able to resume from a pushed state id")
	}
	if h.CanResumeFrom(6) {
		t.Fatalf("expected no resume for a state id never pushed")
	}
}

func TestOverflowEvictsOldestFIFO(t *testing.T) {
	h := New(2, clock.NewManual(time.Unix(0, 0)))
	h.Push(1, frame.Data{})
	h.Push(2, frame.Data{})
	h.Push(3, frame.Data{})
	if h.CanResumeFrom(1) {
		t.Fatalf("expected oldest entry to be evicted on overflow")
	}
	if !h.CanResumeFrom(2) || !h.CanResumeFrom(3) {
		t.Fatalf("expected the two most recent entries to survive")
	}
	if h.Len() != 2 {
		t.Fatalf("expected length capped at 2, got %d", h.Len())
	}
}

func TestDefaultCapacityIs64(t *testing.T) {
	h := New(0, clock.NewManual(time.Unix(0, 0)))
	for i := uint64(1); i <= 70; i++ {
		h.Push(i, frame.Data{})
	}
	if h.Len() != 64 {
		t.Fatalf("expected default capacity 64, got %d", h.Len())
	}
	if h.CanResumeFrom(6) {
		t.Fatalf("expected the 6 oldest entries to have been evicted")
	}
	if !h.CanResumeFrom(7) {
		t.Fatalf("expected entry 7 onward to survive")
	}
}

func TestPruneOlderThanEvictsByAge(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	h := New(10, clk)
	h.Push(1, frame.Data{})
	clk.Advance(5 * time.Second)
	h.Push(2, frame.Data{})

	h.PruneOlderThan(3 * time.Second)
	if h.CanResumeFrom(1) {
		t.Fatalf("expected entry older than maxAge to be pruned")
	}
	if !h.CanResumeFrom(2) {
		t.Fatalf("expected recent entry to survive pruning")
	}
}

func TestOldestAndNewestStateID(t *testing.T) {
	h := New(0, clock.NewManual(time.Unix(0, 0)))
	if _, ok := h.OldestStateID(); ok {
		t.Fatalf("expected no oldest state id when empty")
	}
	h.Push(3, frame.Data{})
	h.Push(7, frame.Data{})
	if id, ok := h.OldestStateID(); !ok || id != 3 {
		t.Fatalf("expected oldest 3, got %d ok=%v", id, ok)
	}
	if id, ok := h.NewestStateID(); !ok || id != 7 {
		t.Fatalf("expected newest 7, got %d ok=%v", id, ok)
	}
}
