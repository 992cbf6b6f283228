package client

import (
	"errors"

	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/style"
	"github.com/zrp-project/zrp/wire"
)

// ErrBaseMismatch is returned by ApplyDelta when the delta's base state id
// doesn't match the applier's current baseline: the caller should request
// a fresh snapshot rather than apply partial state (spec §7
// "NeedSnapshot").
var ErrBaseMismatch = errors.New("client: delta base state id does not match current baseline")

// ErrStaleDelta is returned by ApplyDelta when RenderSeqTracker rejects the
// delta as already-superseded (an out-of-order or duplicate datagram).
var ErrStaleDelta = errors.New("client: delta superseded by one already applied")

// Applier owns the client's confirmed render state: the baseline frame
// that ScreenDelta.BaseStateID references (set by each snapshot, and moved
// to the displayed frame when a delta arrives based on the displayed
// state, which the server adopts as its baseline once this client acks it)
// and the currently displayed frame, which is the baseline with the most
// recently applied delta's patches layered on top — not a chain of
// successive deltas, since the server may re-send multiple independent
// diffs against the same unacked baseline (spec §4.3, §4.7).
type Applier struct {
	styles *style.Table
	seq    *RenderSeqTracker

	baseline        frame.Data
	baselineStateID uint64
	hasBaseline     bool

	display        frame.Data
	displayStateID uint64
}

// NewApplier constructs an empty Applier; the first message applied must
// be a snapshot.
func NewApplier() *Applier {
	return &Applier{styles: style.New(), seq: NewRenderSeqTracker()}
}

// ApplySnapshot replaces both the baseline and displayed frame wholesale,
// and resets the style table if the snapshot says to (spec §4.1
// "ApplySnapshot"). Returns the snapshot's delivered_input_watermark for
// the caller to reconcile against the prediction engine.
func (a *Applier) ApplySnapshot(snap wire.ScreenSnapshot) uint64 {
	if snap.StyleTableReset {
		a.styles.Reset()
	}
	for _, def := range snap.Styles {
		a.styles.GetOrInsert(def.Style)
	}

	rows := make([]frame.Row, snap.Rows)
	for _, rd := range snap.RowData {
		if int(rd.Row) >= len(rows) {
			continue
		}
		row := frame.NewRow(int(snap.Cols))
		for col := 0; col < len(rd.Codepoints) && col < int(snap.Cols); col++ {
			row = row.WithCell(col, frame.Cell{Codepoint: rd.Codepoints[col], Width: rd.Widths[col], StyleID: rd.StyleIDs[col]})
		}
		rows[rd.Row] = row
	}
	for i := range rows {
		if rows[i].Len() == 0 {
			rows[i] = frame.NewRow(int(snap.Cols))
		}
	}

	data := frame.Data{Rows: rows, Cols: int(snap.Cols), Cur: fromWireCursor(snap.Cursor)}
	a.baseline = data
	a.baselineStateID = snap.StateID
	a.hasBaseline = true
	a.display = data
	a.displayStateID = snap.StateID
	a.seq.SetBaseline(snap.StateID)

	return snap.DeliveredInputWatermark
}

// ApplyDelta patches a fresh copy of the baseline frame and makes it the
// displayed frame. Returns (watermark, nil) on success.
func (a *Applier) ApplyDelta(delta wire.ScreenDelta) (uint64, error) {
	if a.hasBaseline && delta.BaseStateID != a.baselineStateID && delta.BaseStateID == a.displayStateID {
		a.baseline = a.display
		a.baselineStateID = a.displayStateID
		a.seq.SetBaseline(a.displayStateID)
	}
	if !a.hasBaseline || delta.BaseStateID != a.baselineStateID {
		return 0, ErrBaseMismatch
	}
	if !a.seq.ShouldApply(delta.BaseStateID, delta.StateID) {
		return 0, ErrStaleDelta
	}

	for _, def := range delta.StylesAdded {
		a.styles.GetOrInsert(def.Style)
	}

	patched := a.baseline.Clone()
	for _, patch := range delta.RowPatches {
		if int(patch.Row) >= len(patched.Rows) {
			continue
		}
		row := patched.Rows[patch.Row]
		for _, run := range patch.Runs {
			for i := range run.Codepoints {
				col := int(run.ColStart) + i
				row = row.WithCell(col, frame.Cell{Codepoint: run.Codepoints[i], Width: run.Widths[i], StyleID: run.StyleIDs[i]})
			}
		}
		patched.Rows[patch.Row] = row
	}
	if delta.HasCursor {
		patched.Cur = fromWireCursor(delta.Cursor)
	}

	a.display = patched
	a.displayStateID = delta.StateID
	a.seq.MarkApplied(delta.StateID)

	return delta.DeliveredInputWatermark, nil
}

// CurrentFrame returns the currently displayed (confirmed, unpredicted)
// frame.
func (a *Applier) CurrentFrame() frame.Data { return a.display }

// StateID returns the displayed frame's state id.
func (a *Applier) StateID() uint64 { return a.displayStateID }

// BaselineStateID returns the id deltas are currently expected to
// reference.
func (a *Applier) BaselineStateID() uint64 { return a.baselineStateID }

// HasFrame reports whether a snapshot has been applied yet.
func (a *Applier) HasFrame() bool { return a.hasBaseline }

// Styles exposes the style table for render code that needs to resolve a
// cell's StyleID to an actual style.Style.
func (a *Applier) Styles() *style.Table { return a.styles }

func fromWireCursor(c wire.WireCursor) frame.Cursor {
	return frame.Cursor{
		Row:     int(c.Row),
		Col:     int(c.Col),
		Visible: c.Visible,
		Blink:   c.Blink,
		Shape:   frame.CursorShape(c.Shape),
	}
}
