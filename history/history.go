// Package history implements a bounded ring of (state_id, frame) entries
// used to furnish a resume baseline (spec §3 "StateHistory").
package history

import (
	"time"

	"github.com/zrp-project/zrp/clock"
	"github.com/zrp-project/zrp/frame"
)

const defaultMaxSize = 64

type entry struct {
	stateID   uint64
	data      frame.Data
	timestamp time.Time
}

// History is a FIFO ring buffer bounded by maxSize, with an independent
// age-based eviction path (PruneOlderThan).
type History struct {
	entries []entry
	maxSize int
	clk     clock.Clock
}

// New constructs a History with the given capacity (0 => default 64) and
// clock (nil => clock.System{}).
func New(maxSize int, clk clock.Clock) *History {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &History{maxSize: maxSize, clk: clk}
}

// Push appends a (stateID, data) entry, evicting the oldest on overflow.
func (h *History) Push(stateID uint64, data frame.Data) {
	if len(h.entries) >= h.maxSize {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, entry{stateID: stateID, data: data, timestamp: h.clk.Now()})
}

// Get returns the frame at stateID, if present.
func (h *History) Get(stateID uint64) (frame.Data, bool) {
	for _, e := range h.entries {
		if e.stateID == stateID {
			return e.data, true
		}
	}
	return frame.Data{}, false
}

// CanResumeFrom reports whether stateID is present in the history.
func (h *History) CanResumeFrom(stateID uint64) bool {
	_, ok := h.Get(stateID)
	return ok
}

// OldestStateID returns the oldest retained state id, if any.
func (h *History) OldestStateID() (uint64, bool) {
	if len(h.entries) == 0 {
		return 0, false
	}
	return h.entries[0].stateID, true
}

// NewestStateID returns the newest retained state id, if any.
func (h *History) NewestStateID() (uint64, bool) {
	if len(h.entries) == 0 {
		return 0, false
	}
	return h.entries[len(h.entries)-1].stateID, true
}

// PruneOlderThan evicts entries whose timestamp is older than maxAge,
// independent of the capacity-triggered eviction in Push.
func (h *History) PruneOlderThan(maxAge time.Duration) {
	cutoff := h.clk.Now().Add(-maxAge)
	i := 0
	for i < len(h.entries) && h.entries[i].timestamp.Before(cutoff) {
		i++
	}
	h.entries = h.entries[i:]
}

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.entries) }

// Clear empties the history.
func (h *History) Clear() { h.entries = nil }
