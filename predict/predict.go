// Package predict implements client-side input prediction: an overlay of
// unconfirmed keystroke effects drawn on top of the last confirmed frame,
// reconciled against the server's delivered_input_watermark (spec §4
// "PredictionEngine").
package predict

import (
	"time"

	"github.com/zrp-project/zrp/clock"
	"github.com/zrp-project/zrp/frame"
)

const (
	defaultMaxPending             = 100
	defaultMispredictionThreshold = 5
)

// predictedCell is one cell write a prediction applies, addressed by
// (col, row).
type predictedCell struct {
	col, row int
	cell     frame.Cell
}

// Prediction is one unconfirmed input's predicted effect: a cursor move
// plus zero or more cell writes.
type Prediction struct {
	InputSeq  uint64
	Cursor    frame.Cursor
	cells     []predictedCell
	Timestamp time.Time
}

// Confidence grades how likely a predicted character is to match what the
// server eventually renders.
type Confidence uint8

const (
	High Confidence = iota
	Medium
	ConfidenceNone
)

// ReconcileResult is the outcome of reconciling pending predictions
// against a newly delivered input watermark.
type ReconcileResult uint8

const (
	NoChange ReconcileResult = iota
	Confirmed
	Misprediction
)

// Engine maintains the overlay of pending predictions for one client
// session.
type Engine struct {
	clk                     clock.Clock
	pending                 []Prediction
	lastConfirmedSeq        uint64
	enabled                 bool
	maxPending              int
	mispredictionCount      uint32
	mispredictionThreshold  uint32
}

// New constructs an Engine with prediction enabled. clk may be nil to use
// the real wall clock.
func New(clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{
		clk:                    clk,
		enabled:                true,
		maxPending:             defaultMaxPending,
		mispredictionThreshold: defaultMispredictionThreshold,
	}
}

// Confidence reports how confident the engine is that predicting ch will
// match the server's eventual render.
func (e *Engine) Confidence(ch rune) Confidence {
	if !e.enabled {
		return ConfidenceNone
	}
	switch {
	case ch >= ' ' && ch <= '~':
		return High
	case ch <= 0x1f || ch == 0x7f:
		return ConfidenceNone
	default:
		return Medium
	}
}

// PredictChar predicts the visual effect of typing ch at cursor (within a
// screen cols wide) as inputSeq, recording it in the pending overlay.
// Returns (Prediction{}, false) if prediction is disabled, the pending
// queue is full, or ch carries no predictable effect (control characters).
func (e *Engine) PredictChar(ch rune, inputSeq uint64, cursor frame.Cursor, cols int) (Prediction, bool) {
	if !e.enabled || len(e.pending) >= e.maxPending {
		return Prediction{}, false
	}
	if e.Confidence(ch) == ConfidenceNone {
		return Prediction{}, false
	}

	width := frame.DisplayWidth(ch)
	cell := frame.Cell{Codepoint: ch, Width: uint8(width), StyleID: 0}

	maxCol := cols - 1
	if maxCol < 0 {
		maxCol = 0
	}
	newCol := cursor.Col + width
	if newCol > maxCol {
		newCol = maxCol
	}
	newCursor := cursor
	newCursor.Col = newCol

	cells := []predictedCell{{col: cursor.Col, row: cursor.Row, cell: cell}}
	for i := 1; i < width; i++ {
		cells = append(cells, predictedCell{col: cursor.Col + i, row: cursor.Row, cell: frame.Cell{Codepoint: 0, Width: 0, StyleID: 0}})
	}

	pred := Prediction{InputSeq: inputSeq, Cursor: newCursor, cells: cells, Timestamp: e.clk.Now()}
	e.pending = append(e.pending, pred)
	return pred, true
}

// ApplyOverlay returns a copy of base with all pending predictions' cell
// writes and final cursor position applied, in prediction order.
func (e *Engine) ApplyOverlay(base frame.Data) frame.Data {
	if len(e.pending) == 0 {
		return base
	}

	overlay := base.Clone()
	for _, pred := range e.pending {
		for _, pc := range pred.cells {
			if pc.row >= 0 && pc.row < len(overlay.Rows) {
				overlay.Rows[pc.row] = overlay.Rows[pc.row].WithCell(pc.col, pc.cell)
			}
		}
		overlay.Cur = pred.Cursor
	}
	return overlay
}

// Reconcile folds a newly delivered input watermark: pending predictions
// with InputSeq <= deliveredWatermark are confirmed or, if the last
// confirmed prediction's cursor disagrees with the server's actual
// cursor, treated as a misprediction (clearing all pending state and
// possibly auto-disabling the engine).
func (e *Engine) Reconcile(deliveredWatermark uint64, serverCursor frame.Cursor) ReconcileResult {
	if deliveredWatermark <= e.lastConfirmedSeq {
		return NoChange
	}
	e.lastConfirmedSeq = deliveredWatermark

	var lastConfirmedCursor *frame.Cursor
	confirmedCount := 0
	for len(e.pending) > 0 && e.pending[0].InputSeq <= deliveredWatermark {
		c := e.pending[0].Cursor
		lastConfirmedCursor = &c
		e.pending = e.pending[1:]
		confirmedCount++
	}

	if confirmedCount == 0 {
		return NoChange
	}

	if lastConfirmedCursor != nil {
		if lastConfirmedCursor.Col != serverCursor.Col || lastConfirmedCursor.Row != serverCursor.Row {
			e.mispredictionCount++
			e.pending = nil
			if e.mispredictionCount >= e.mispredictionThreshold {
				e.enabled = false
			}
			return Misprediction
		}
	}

	if e.mispredictionCount > 0 {
		e.mispredictionCount--
	}
	return Confirmed
}

// IsEnabled reports whether prediction is currently active.
func (e *Engine) IsEnabled() bool { return e.enabled }

// Disable turns off prediction and clears all pending state.
func (e *Engine) Disable() {
	e.enabled = false
	e.pending = nil
}

// Enable turns prediction back on and resets the misprediction counter.
func (e *Engine) Enable() {
	e.enabled = true
	e.mispredictionCount = 0
}

// PendingCount returns the number of unconfirmed predictions.
func (e *Engine) PendingCount() int { return len(e.pending) }

// LastConfirmedSeq returns the highest input sequence number reconciled
// so far.
func (e *Engine) LastConfirmedSeq() uint64 { return e.lastConfirmedSeq }

// MispredictionCount returns the current (decaying) misprediction count.
func (e *Engine) MispredictionCount() uint32 { return e.mispredictionCount }

// Clear drops all pending predictions without affecting enabled state or
// misprediction count.
func (e *Engine) Clear() { e.pending = nil }

// PendingPredictions returns a read-only view of the pending queue.
func (e *Engine) PendingPredictions() []Prediction { return e.pending }
