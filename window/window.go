// Package window implements the render window: a cap on how many deltas
// may be in flight (sent but unacked) per client before a snapshot must
// replace further deltas (spec §3 "RenderWindow", §4.3, property 3).
package window

import "fmt"

const defaultWindowSize = 4

// Window tracks oldest-unacked / newest-sent state ids against a fixed
// window size.
type Window struct {
	size           uint32
	oldestUnacked  uint64 // 0 means "empty"
	newestSent     uint64 // 0 means "empty"
}

// New constructs a Window with the given size. Size 0 falls back to the
// spec's default of 4.
func New(size uint32) *Window {
	if size == 0 {
		size = defaultWindowSize
	}
	return &Window{size: size}
}

// CanSend reports whether another delta may be sent without exhausting
// the window.
func (w *Window) CanSend() bool { return !w.IsExhausted() }

// MarkSent records that stateID has just been sent. stateID must be
// strictly greater than the previous newest-sent value (or this is the
// first send); a regression returns an error instead of silently
// corrupting window bookkeeping (Go has no debug-only assertions, so this
// is a defensive runtime check rather than the original's debug_assert).
func (w *Window) MarkSent(stateID uint64) error {
	if w.newestSent != 0 && stateID <= w.newestSent {
		return fmt.Errorf("window: state id must be monotonically increasing: %d <= %d", stateID, w.newestSent)
	}
	if w.oldestUnacked == 0 {
		w.oldestUnacked = stateID
	}
	w.newestSent = stateID
	return nil
}

// AckReceived slides the window forward by a cumulative ack of stateID.
// Acks beyond newestSent are ignored.
func (w *Window) AckReceived(stateID uint64) {
	if stateID > w.newestSent {
		return
	}
	if stateID >= w.oldestUnacked {
		w.oldestUnacked = stateID + 1
	}
	if w.oldestUnacked > w.newestSent {
		w.oldestUnacked = 0
		w.newestSent = 0
	}
}

// OldestUnacked returns the oldest unacked state id, or (0, false) if the
// window is empty.
func (w *Window) OldestUnacked() (uint64, bool) {
	if w.oldestUnacked == 0 {
		return 0, false
	}
	return w.oldestUnacked, true
}

// UnackedCount returns newestSent - oldestUnacked + 1, or 0 if empty.
func (w *Window) UnackedCount() uint32 {
	if w.oldestUnacked == 0 || w.newestSent == 0 {
		return 0
	}
	return uint32(w.newestSent-w.oldestUnacked) + 1
}

// IsExhausted reports whether the window has reached its size cap.
func (w *Window) IsExhausted() bool {
	if w.oldestUnacked == 0 {
		return false
	}
	return w.UnackedCount() >= w.size
}

// ShouldForceSnapshot is an alias for IsExhausted, named for call-site
// clarity in the session layer (spec §4.3 step 1).
func (w *Window) ShouldForceSnapshot() bool { return w.IsExhausted() }

// ResetForSnapshot re-baselines the window to a single in-flight state id
// (used when a snapshot is sent: it self-baselines on send per spec §4.3).
func (w *Window) ResetForSnapshot(stateID uint64) {
	w.oldestUnacked = stateID
	w.newestSent = stateID
}

// Size returns the configured window size.
func (w *Window) Size() uint32 { return w.size }
