package window

import "testing"

func TestDefaultSizeIsFour(t *testing.T) {
	w := New(0)
	if w.Size() != 4 {
		t.Fatalf("expected default window size 4, got %d", w.Size())
	}
}

func TestCanSendUntilWindowExhausted(t *testing.T) {
	w := New(2)
	if !w.CanSend() {
		t.Fatalf("expected empty window to allow send")
	}
	if err := w.MarkSent(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.CanSend() {
		t.Fatalf("expected window with 1/2 unacked to still allow send")
	}
	if err := w.MarkSent(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.CanSend() {
		t.Fatalf("expected window with 2/2 unacked to be exhausted")
	}
}

func TestMarkSentRejectsNonMonotonicStateID(t *testing.T) {
	w := New(4)
	if err := w.MarkSent(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.MarkSent(5); err == nil {
		t.Fatalf("expected error for repeated state id")
	}
	if err := w.MarkSent(3); err == nil {
		t.Fatalf("expected error for regressing state id")
	}
}

func TestAckSlidesOldestUnacked(t *testing.T) {
	w := New(4)
	w.MarkSent(1)
	w.MarkSent(2)
	w.MarkSent(3)
	w.AckReceived(2)
	oldest, ok := w.OldestUnacked()
	if !ok || oldest != 3 {
		t.Fatalf("expected oldest unacked 3 after acking 2, got %d ok=%v", oldest, ok)
	}
	if w.UnackedCount() != 1 {
		t.Fatalf("expected unacked count 1, got %d", w.UnackedCount())
	}
}

func TestAckBeyondNewestSentIsIgnored(t *testing.T) {
	w := New(4)
	w.MarkSent(1)
	w.AckReceived(99)
	oldest, ok := w.OldestUnacked()
	if !ok || oldest != 1 {
		t.Fatalf("expected ack beyond newest-sent to be ignored, got %d ok=%v", oldest, ok)
	}
}

func TestAckingEverythingEmptiesWindow(t *testing.T) {
	w := New(4)
	w.MarkSent(1)
	w.MarkSent(2)
	w.AckReceived(2)
	if _, ok := w.OldestUnacked(); ok {
		t.Fatalf("expected empty window after acking all in-flight state")
	}
	if w.UnackedCount() != 0 {
		t.Fatalf("expected unacked count 0 when empty, got %d", w.UnackedCount())
	}
	if !w.CanSend() {
		t.Fatalf("expected empty window to allow send again")
	}
}

func TestWindowInvariantUnderInterleaving(t *testing.T) {
	w := New(3)
	sent := []uint64{1, 2, 3, 4, 5, 6, 7, 8}
	acked := map[int]uint64{2: 1, 4: 3, 6: 5}
	for i, id := range sent {
		if w.CanSend() {
			if err := w.MarkSent(id); err != nil {
				t.Fatalf("unexpected error marking sent %d: %v", id, err)
			}
		}
		if count := w.UnackedCount(); count > w.Size() {
			t.Fatalf("unacked count %d exceeded window size %d", count, w.Size())
		}
		if ackAt, ok := acked[i]; ok {
			w.AckReceived(ackAt)
		}
		if oldest, ok := w.OldestUnacked(); ok && oldest == 0 {
			t.Fatalf("expected oldestUnacked > 0 whenever non-empty")
		}
		if w.CanSend() != (w.UnackedCount() < w.Size()) {
			t.Fatalf("CanSend inconsistent with UnackedCount < Size at step %d", i)
		}
	}
}

func TestResetForSnapshotRebaselinesToSingleState(t *testing.T) {
	w := New(2)
	w.MarkSent(1)
	w.MarkSent(2)
	w.ResetForSnapshot(10)
	if w.UnackedCount() != 1 {
		t.Fatalf("expected unacked count 1 after snapshot reset, got %d", w.UnackedCount())
	}
	oldest, ok := w.OldestUnacked()
	if !ok || oldest != 10 {
		t.Fatalf("expected oldest unacked 10 after snapshot reset, got %d ok=%v", oldest, ok)
	}
}
