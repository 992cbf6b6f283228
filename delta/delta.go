// Package delta implements the sparse row-patch diffing algorithm between
// two frame.Data snapshots (spec §4.1): dirty rows are found by structural
// row identity, and each changed row is encoded as maximal contiguous
// CellRuns rather than a full-row rewrite.
package delta

import (
	"sort"

	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/style"
	"github.com/zrp-project/zrp/wire"
)

// candidateRows returns, in ascending order, the row indices that differ
// between baseline and current. If dirtyRows is non-nil, its
// intersection with the valid range is used verbatim (per spec step 1/2:
// the caller has already marked those rows, so newly appended rows are
// NOT separately enumerated in that path). If dirtyRows is nil, every
// differing index up to min(len) is found by identity comparison, and
// any rows current has beyond baseline's length are added as well.
func candidateRows(baseline, current frame.Data, dirtyRows []int) []int {
	if dirtyRows != nil {
		out := make([]int, 0, len(dirtyRows))
		for _, idx := range dirtyRows {
			if idx >= 0 && idx < len(current.Rows) {
				out = append(out, idx)
			}
		}
		sort.Ints(out)
		return out
	}

	minLen := len(baseline.Rows)
	if len(current.Rows) < minLen {
		minLen = len(current.Rows)
	}
	out := make([]int, 0, minLen)
	for i := 0; i < minLen; i++ {
		if !frame.SameIdentity(baseline.Rows[i], current.Rows[i]) {
			out = append(out, i)
		}
	}
	for i := len(baseline.Rows); i < len(current.Rows); i++ {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func cellsDiffer(a, b frame.Cell) bool {
	return a.Codepoint != b.Codepoint || a.Width != b.Width || a.StyleID != b.StyleID
}

// encodeRowPatch walks row left-to-right, emitting maximal contiguous
// CellRuns of changed cells relative to baseRow (nil if the baseline row
// is absent, in which case every cell is considered changed).
func encodeRowPatch(rowIdx int, baseRow *frame.Row, current frame.Row) (wire.RowPatch, bool) {
	cols := current.Len()
	var runs []wire.CellRun
	col := 0
	for col < cols {
		changed := baseRow == nil || cellsDiffer(baseRow.Cell(col), current.Cell(col))
		if !changed {
			col++
			continue
		}
		start := col
		var codepoints []rune
		var widths []uint8
		var styleIDs []uint16
		for col < cols {
			c := current.Cell(col)
			stillChanged := baseRow == nil || cellsDiffer(baseRow.Cell(col), c)
			if !stillChanged {
				break
			}
			codepoints = append(codepoints, c.Codepoint)
			widths = append(widths, c.Width)
			styleIDs = append(styleIDs, c.StyleID)
			col++
		}
		runs = append(runs, wire.CellRun{
			ColStart:   uint16(start),
			Codepoints: codepoints,
			Widths:     widths,
			StyleIDs:   styleIDs,
		})
	}
	if len(runs) == 0 {
		return wire.RowPatch{}, false
	}
	return wire.RowPatch{Row: uint16(rowIdx), Runs: runs}, true
}

func toStyleDefs(entries []style.StyleEntry) []wire.StyleDef {
	out := make([]wire.StyleDef, len(entries))
	for i, e := range entries {
		out[i] = wire.StyleDef{ID: e.ID, Style: e.Style}
	}
	return out
}

func cursorsEqual(a, b frame.Cursor) bool {
	return a.Row == b.Row && a.Col == b.Col && a.Visible == b.Visible &&
		a.Blink == b.Blink && a.Shape == b.Shape
}

func toWireCursor(c frame.Cursor) wire.WireCursor {
	return wire.WireCursor{
		Row:     int32(c.Row),
		Col:     int32(c.Col),
		Visible: c.Visible,
		Blink:   c.Blink,
		Shape:   wire.CursorShape(c.Shape),
	}
}

// ComputeDelta implements spec §4.1's compute_delta. dirtyRows is the
// optional caller-supplied dirty set (e.g. from Store.TakeDirtyRows);
// pass nil to fall back to full identity-comparison scanning.
// delivered_input_watermark is left zero — the session layer populates it
// per spec §4.1 step 7 / §9.
func ComputeDelta(
	baseline, current frame.Data,
	styles *style.Table,
	baseStateID, currentStateID uint64,
	dirtyRows []int,
) wire.ScreenDelta {
	styleBaseline := styles.CurrentCount()

	rows := candidateRows(baseline, current, dirtyRows)

	var patches []wire.RowPatch
	for _, idx := range rows {
		var baseRowPtr *frame.Row
		if idx < len(baseline.Rows) {
			br := baseline.Rows[idx]
			baseRowPtr = &br
		}
		if patch, ok := encodeRowPatch(idx, baseRowPtr, current.Rows[idx]); ok {
			patches = append(patches, patch)
		}
	}

	delta := wire.ScreenDelta{
		BaseStateID: baseStateID,
		StateID:     currentStateID,
		RowPatches:  patches,
	}

	if !cursorsEqual(baseline.Cur, current.Cur) {
		delta.HasCursor = true
		delta.Cursor = toWireCursor(current.Cur)
	}

	delta.StylesAdded = toStyleDefs(styles.StylesSince(styleBaseline))
	return delta
}

// ComputeSnapshot implements spec §4.1's compute_snapshot: every row is
// emitted densely, the cursor is always included, and the full style
// table is enumerated with style_table_reset=true.
func ComputeSnapshot(current frame.Data, styles *style.Table, stateID uint64) wire.ScreenSnapshot {
	rows := make([]wire.RowData, len(current.Rows))
	for i, row := range current.Rows {
		cols := row.Len()
		codepoints := make([]rune, cols)
		widths := make([]uint8, cols)
		styleIDs := make([]uint16, cols)
		for c := 0; c < cols; c++ {
			cell := row.Cell(c)
			codepoints[c] = cell.Codepoint
			widths[c] = cell.Width
			styleIDs[c] = cell.StyleID
		}
		rows[i] = wire.RowData{Row: uint16(i), Codepoints: codepoints, Widths: widths, StyleIDs: styleIDs}
	}

	return wire.ScreenSnapshot{
		StateID:         stateID,
		Cols:            uint32(current.Cols),
		Rows:            uint32(len(current.Rows)),
		StyleTableReset: true,
		Styles:          toStyleDefs(styles.AllStyles()),
		RowData:         rows,
		Cursor:          toWireCursor(current.Cur),
	}
}
