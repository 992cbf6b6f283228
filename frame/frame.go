// Package frame implements the copy-on-write screen model: rows are shared
// by structural identity, not deep equality, so the delta engine can detect
// changed rows with a pointer comparison instead of walking every cell.
package frame

import "github.com/mattn/go-runewidth"

// CursorShape enumerates the cursor glyphs a client may render.
type CursorShape int

const (
	ShapeBlock CursorShape = iota
	ShapeUnderline
	ShapeBar
)

// Cell is one terminal grid position. A width-2 cell is always followed by
// a width-0 continuation cell carrying the same StyleID.
type Cell struct {
	Codepoint rune
	Width     uint8
	StyleID   uint16
}

// DefaultCell is the zero-value cell: a space, width 1, default style.
var DefaultCell = Cell{Codepoint: ' ', Width: 1, StyleID: 0}

// DisplayWidth returns the terminal column width of r (0, 1, or 2),
// delegating to go-runewidth rather than reimplementing the glossary's
// East-Asian-Wide Unicode ranges by hand.
func DisplayWidth(r rune) int {
	return runewidth.RuneWidth(r)
}

// Cursor is frame-level, not row-local.
type Cursor struct {
	Row, Col int
	Visible  bool
	Blink    bool
	Shape    CursorShape
}

// rowData is the shared, conceptually-immutable backing store for a Row.
// A Row holds a pointer to one; mutating a shared rowData clones it first
// (copy-on-write), which is the sole mechanism the delta engine relies on
// for "did this row change" — by pointer identity, never by value equality.
type rowData struct {
	cells []Cell
}

// Row wraps a pointer to its backing cells. Two rows are "equal for diff
// purposes" iff they point at the same rowData.
type Row struct {
	data *rowData
}

// NewRow returns a row of cols DefaultCells.
func NewRow(cols int) Row {
	cells := make([]Cell, cols)
	for i := range cells {
		cells[i] = DefaultCell
	}
	return Row{data: &rowData{cells: cells}}
}

// SameIdentity reports whether a and b share the same backing storage.
func SameIdentity(a, b Row) bool { return a.data == b.data }

// Cell returns the cell at col (zero value if out of range).
func (r Row) Cell(col int) Cell {
	if col < 0 || col >= len(r.data.cells) {
		return Cell{}
	}
	return r.data.cells[col]
}

// Len returns the row's column count.
func (r Row) Len() int { return len(r.data.cells) }

// Cells returns a read-only view of the row's cells. Callers must not
// mutate the returned slice; use Store.UpdateRow to mutate.
func (r Row) Cells() []Cell { return r.data.cells }

// WithCell returns a new Row whose cell at col is set to c, via
// copy-on-write. Exported for callers outside Store (e.g. the client-side
// prediction overlay) that need to build a modified Data without a Store.
func (r Row) WithCell(col int, c Cell) Row { return r.withCell(col, c) }

// withCell returns a new Row whose cell at col is set to c, always cloning
// (copy-on-write): the caller is responsible for only calling this when a
// mutation is actually required.
func (r Row) withCell(col int, c Cell) Row {
	cells := make([]Cell, len(r.data.cells))
	copy(cells, r.data.cells)
	if col >= 0 && col < len(cells) {
		cells[col] = c
	}
	return Row{data: &rowData{cells: cells}}
}

// resized returns a new Row with cols columns: truncated or padded with
// DefaultCell as needed.
func (r Row) resized(cols int) Row {
	cells := make([]Cell, cols)
	for i := range cells {
		if i < len(r.data.cells) {
			cells[i] = r.data.cells[i]
		} else {
			cells[i] = DefaultCell
		}
	}
	return Row{data: &rowData{cells: cells}}
}

// Data is the full screen: an ordered sequence of Rows plus a Cursor. All
// rows share the same column count.
type Data struct {
	Rows []Row
	Cols int
	Cur  Cursor
}

// Clone returns a shallow copy of d: the Rows slice is copied, but row
// identities (the rowData pointers) are preserved, exactly as a store
// snapshot must behave.
func (d Data) Clone() Data {
	rows := make([]Row, len(d.Rows))
	copy(rows, d.Rows)
	return Data{Rows: rows, Cols: d.Cols, Cur: d.Cur}
}

// Frame is an immutable snapshot handle: (data, state_id).
type Frame struct {
	Data    Data
	StateID uint64
}

// Store owns the live FrameData for one server-side session and tracks
// dirty rows since the last consumer took them.
type Store struct {
	current  Data
	stateID  uint64
	dirty    map[int]struct{}
}

// NewStore constructs a blank store at state_id=0.
func NewStore(cols, rows int) *Store {
	data := Data{Rows: make([]Row, rows), Cols: cols}
	for i := range data.Rows {
		data.Rows[i] = NewRow(cols)
	}
	data.Cur = Cursor{Visible: true, Shape: ShapeBlock}
	return &Store{current: data, dirty: make(map[int]struct{})}
}

// UpdateRow invokes mutate on the row at idx, replacing it with the
// returned row, and marks idx dirty. Out-of-range indices are a no-op.
func (s *Store) UpdateRow(idx int, mutate func(Row) Row) {
	if idx < 0 || idx >= len(s.current.Rows) {
		return
	}
	s.current.Rows[idx] = mutate(s.current.Rows[idx])
	s.dirty[idx] = struct{}{}
}

// SetCell mutates a single cell of row idx via copy-on-write, marking the
// row dirty. Out-of-range row or col is a no-op.
func (s *Store) SetCell(row, col int, c Cell) {
	if row < 0 || row >= len(s.current.Rows) {
		return
	}
	s.UpdateRow(row, func(r Row) Row { return r.withCell(col, c) })
}

// SetCursor replaces the cursor.
func (s *Store) SetCursor(c Cursor) { s.current.Cur = c }

// AdvanceState increments the state id and returns the new value.
func (s *Store) AdvanceState() uint64 {
	s.stateID++
	return s.stateID
}

// CurrentStateID returns the state id without advancing it.
func (s *Store) CurrentStateID() uint64 { return s.stateID }

// TakeDirtyRows returns the dirty set (sorted ascending) and clears it.
func (s *Store) TakeDirtyRows() []int {
	out := make([]int, 0, len(s.dirty))
	for idx := range s.dirty {
		out = append(out, idx)
	}
	s.dirty = make(map[int]struct{})
	sortInts(out)
	return out
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// CurrentFrame returns a snapshot of the current Data: the Rows slice is
// copied so callers retaining the result (a render baseline, a history
// entry) are insulated from future in-place row replacements on the
// store, while unchanged rows keep their identity for diff purposes.
func (s *Store) CurrentFrame() Data { return s.current.Clone() }

// Snapshot returns a Frame sharing current row identities with the store.
func (s *Store) Snapshot() Frame {
	return Frame{Data: s.current.Clone(), StateID: s.stateID}
}

// Resize expands or truncates the store to cols/rows, re-widening existing
// rows and marking every row dirty.
func (s *Store) Resize(cols, rows int) {
	newRows := make([]Row, rows)
	for i := range newRows {
		if i < len(s.current.Rows) {
			newRows[i] = s.current.Rows[i].resized(cols)
		} else {
			newRows[i] = NewRow(cols)
		}
	}
	s.current.Rows = newRows
	s.current.Cols = cols
	s.dirty = make(map[int]struct{})
	for i := range newRows {
		s.dirty[i] = struct{}{}
	}
}
