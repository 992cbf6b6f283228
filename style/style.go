// Package style interns Style values into dense 16-bit ids, so screen
// updates can ship a style id instead of a full style record per cell.
package style

// ColorKind distinguishes the three representable color forms.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorANSI256
	ColorRGB
)

// Color is one-of {default, ansi256(0..255), rgb(r,g,b)}.
type Color struct {
	Kind       ColorKind
	ANSI256    uint8
	R, G, B    uint8
}

// UnderlineStyle enumerates supported underline renderings.
type UnderlineStyle uint8

const (
	UnderlineNone UnderlineStyle = iota
	UnderlineSingle
	UnderlineDouble
	UnderlineDotted
	UnderlineDashed
	UnderlineCurly
)

// Style is a comparable record of all per-cell display attributes. Being
// comparable lets StyleTable key directly on a Style value without a
// serialization round trip.
type Style struct {
	Fg, Bg              Color
	Bold, Dim, Italic   bool
	Reverse, Hidden     bool
	Strike              bool
	BlinkSlow, BlinkFast bool
	Underline           UnderlineStyle
	UnderlineColor      Color
	HasUnderlineColor   bool
}

// Default is the sentinel style, always id 0.
var Default = Style{}

// Table interns Styles into dense ids. Id 0 is always the Default style.
type Table struct {
	styles   []Style
	styleIDs map[Style]uint16
}

// New constructs a Table with the sentinel default style pre-inserted.
func New() *Table {
	t := &Table{
		styles:   make([]Style, 0, 16),
		styleIDs: make(map[Style]uint16),
	}
	t.styles = append(t.styles, Default)
	t.styleIDs[Default] = 0
	return t
}

// GetOrInsert returns s's id, assigning the next id if s hasn't been seen.
func (t *Table) GetOrInsert(s Style) uint16 {
	if id, ok := t.styleIDs[s]; ok {
		return id
	}
	id := uint16(len(t.styles))
	t.styles = append(t.styles, s)
	t.styleIDs[s] = id
	return id
}

// Get returns the style at id, or (Style{}, false) if out of range.
func (t *Table) Get(id uint16) (Style, bool) {
	if int(id) >= len(t.styles) {
		return Style{}, false
	}
	return t.styles[id], true
}

// CurrentCount returns the number of interned styles, including the
// sentinel.
func (t *Table) CurrentCount() int { return len(t.styles) }

// StyleEntry pairs an id with its Style, used by StylesSince.
type StyleEntry struct {
	ID    uint16
	Style Style
}

// StylesSince returns (id, style) pairs for every id >= baseline, in
// insertion order, used to ship only newly introduced styles in a delta.
func (t *Table) StylesSince(baseline int) []StyleEntry {
	if baseline < 0 {
		baseline = 0
	}
	if baseline >= len(t.styles) {
		return nil
	}
	out := make([]StyleEntry, 0, len(t.styles)-baseline)
	for id := baseline; id < len(t.styles); id++ {
		out = append(out, StyleEntry{ID: uint16(id), Style: t.styles[id]})
	}
	return out
}

// AllStyles returns every (id, style) pair currently interned.
func (t *Table) AllStyles() []StyleEntry {
	return t.StylesSince(0)
}

// Reset truncates the table back to just the sentinel default style.
func (t *Table) Reset() {
	t.styles = t.styles[:1]
	t.styleIDs = map[Style]uint16{Default: 0}
}
