// Package client implements the ZRP client side: applying snapshots/deltas
// received from the server onto a local frame, the prediction overlay, and
// the input/RTT sending pipeline (spec §4.7, §4.5, §4.6 client-side
// counterparts).
package client

// RenderSeqTracker rejects stale or baseline-mismatched deltas arriving out
// of order over unreliable datagrams (spec §4.7 "RenderSeqTracker"): a
// delta is only applicable if its base_state_id matches the tracker's
// current baseline and its state_id is newer than the last applied one.
type RenderSeqTracker struct {
	currentBaselineID uint64
	lastAppliedSeq    uint64
	hasBaseline       bool
}

// NewRenderSeqTracker constructs a tracker with no baseline yet (so every
// delta is rejected until a snapshot sets one via SetBaseline).
func NewRenderSeqTracker() *RenderSeqTracker {
	return &RenderSeqTracker{}
}

// ShouldApply reports whether a delta with the given base/state ids may be
// applied: its base must match the current baseline, and its state id must
// be newer than the last one applied.
func (t *RenderSeqTracker) ShouldApply(base, seq uint64) bool {
	if !t.hasBaseline || base != t.currentBaselineID {
		return false
	}
	return seq > t.lastAppliedSeq
}

// MarkApplied records seq as applied. No-op if seq doesn't advance the
// tracker (monotonic by construction: callers only call this after
// ShouldApply returned true for the same seq).
func (t *RenderSeqTracker) MarkApplied(seq uint64) {
	if seq > t.lastAppliedSeq {
		t.lastAppliedSeq = seq
	}
}

// SetBaseline adopts a new baseline state id (after applying a snapshot),
// resetting the last-applied-seq tracking to that same id: the snapshot
// itself counts as the most recently applied state.
func (t *RenderSeqTracker) SetBaseline(stateID uint64) {
	t.currentBaselineID = stateID
	t.lastAppliedSeq = stateID
	t.hasBaseline = true
}

// CurrentBaselineID returns the tracker's current baseline.
func (t *RenderSeqTracker) CurrentBaselineID() uint64 { return t.currentBaselineID }
