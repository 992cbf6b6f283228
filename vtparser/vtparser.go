// Package vtparser is a small VT100/ANSI escape-sequence state machine
// that feeds a frame.Store and style.Table directly, so a real PTY-backed
// program can drive a ZRP session's screen state (spec §6 "ScreenAdapter
// demo"). It implements the state machine shape of this codebase's
// teacher parser (texel/parser/parser.go): Ground/Escape/CSI/OSC states
// walking the byte stream one rune at a time, but writes straight into
// frame.Store/style.Table instead of an intermediate VTerm buffer.
package vtparser

import (
	"sync"
	"unicode/utf8"

	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/style"
)

type parseState int

const (
	stateGround parseState = iota
	stateEscape
	stateCSI
	stateOSC
)

// Parser walks raw PTY output and applies it to a shared frame.Store.
// Feed and SyncCursor serialize on an internal mutex; the PTY adapter
// calls them from a single read goroutine, matching the teacher's
// pty_app.go read loop.
type Parser struct {
	mu     sync.Mutex
	store  *frame.Store
	styles *style.Table

	state   parseState
	params  []int
	current int
	hasCur  bool
	private bool
	osc     []byte

	col, row   int
	curStyle   style.Style
	savedCol   int
	savedRow   int
}

// New constructs a Parser writing into store/styles.
func New(store *frame.Store, styles *style.Table) *Parser {
	return &Parser{store: store, styles: styles, params: make([]int, 0, 8)}
}

// Feed processes a chunk of bytes read from the PTY.
func (p *Parser) Feed(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < len(data); {
		b := data[i]
		size := 1

		switch p.state {
		case stateGround:
			switch {
			case b == '\x1b':
				p.state = stateEscape
			case b == '\n':
				p.lineFeed()
			case b == '\r':
				p.col = 0
			case b == '\b':
				if p.col > 0 {
					p.col--
				}
			case b == '\t':
				p.col = (p.col/8 + 1) * 8
			case b < ' ':
				// other control characters ignored
			default:
				var r rune
				r, size = utf8.DecodeRune(data[i:])
				p.placeChar(r)
			}
		case stateEscape:
			switch b {
			case '[':
				p.state = stateCSI
				p.params = p.params[:0]
				p.current = 0
				p.hasCur = false
				p.private = false
			case ']':
				p.state = stateOSC
				p.osc = p.osc[:0]
			case 'M':
				p.reverseLineFeed()
				p.state = stateGround
			case '=', '>':
				p.state = stateGround
			default:
				p.state = stateGround
			}
		case stateCSI:
			switch {
			case b >= '0' && b <= '9':
				p.current = p.current*10 + int(b-'0')
				p.hasCur = true
			case b == ';':
				p.params = append(p.params, p.paramOrDefault(0))
				p.current = 0
				p.hasCur = false
			case b == '?':
				p.private = true
			case b >= '@' && b <= '~':
				p.params = append(p.params, p.paramOrDefault(0))
				p.processCSI(b, p.params, p.private)
				p.state = stateGround
			}
		case stateOSC:
			if b == '\x07' {
				p.state = stateGround
			} else {
				p.osc = append(p.osc, b)
			}
		}
		i += size
	}
}

func (p *Parser) paramOrDefault(def int) int {
	if p.hasCur {
		return p.current
	}
	return def
}

func (p *Parser) cols() int { return p.store.CurrentFrame().Cols }
func (p *Parser) rows() int { return len(p.store.CurrentFrame().Rows) }

func (p *Parser) placeChar(r rune) {
	w := frame.DisplayWidth(r)
	if w <= 0 {
		w = 1
	}
	if p.col+w > p.cols() {
		p.lineFeed()
		p.col = 0
	}
	styleID := p.styles.GetOrInsert(p.curStyle)
	p.store.SetCell(p.row, p.col, frame.Cell{Codepoint: r, Width: uint8(w), StyleID: styleID})
	p.col++
	if w == 2 && p.col < p.cols() {
		p.store.SetCell(p.row, p.col, frame.Cell{Codepoint: 0, Width: 0, StyleID: styleID})
		p.col++
	}
}

func (p *Parser) lineFeed() {
	if p.row+1 >= p.rows() {
		p.scrollUp()
		return
	}
	p.row++
}

func (p *Parser) reverseLineFeed() {
	if p.row == 0 {
		return
	}
	p.row--
}

// scrollUp shifts every row up by one, clearing the new bottom row: the
// store has no native scroll primitive, so each row is rewritten from its
// successor via UpdateRow, preserving copy-on-write dirty tracking.
func (p *Parser) scrollUp() {
	rows := p.rows()
	cols := p.cols()
	data := p.store.CurrentFrame()
	for i := 0; i < rows-1; i++ {
		src := data.Rows[i+1]
		p.store.UpdateRow(i, func(frame.Row) frame.Row { return src })
	}
	p.store.UpdateRow(rows-1, func(frame.Row) frame.Row { return frame.NewRow(cols) })
}

func (p *Parser) processCSI(final byte, params []int, private bool) {
	arg := func(idx, def int) int {
		if idx < len(params) && params[idx] != 0 {
			return params[idx]
		}
		if idx < len(params) {
			return def
		}
		return def
	}

	switch final {
	case 'A':
		p.row = clamp(p.row-arg(0, 1), 0, p.rows()-1)
	case 'B':
		p.row = clamp(p.row+arg(0, 1), 0, p.rows()-1)
	case 'C':
		p.col = clamp(p.col+arg(0, 1), 0, p.cols()-1)
	case 'D':
		p.col = clamp(p.col-arg(0, 1), 0, p.cols()-1)
	case 'H', 'f':
		row := arg(0, 1) - 1
		col := arg(1, 1) - 1
		p.row = clamp(row, 0, p.rows()-1)
		p.col = clamp(col, 0, p.cols()-1)
	case 'J':
		p.eraseInDisplay(arg(0, 0))
	case 'K':
		p.eraseInLine(arg(0, 0))
	case 'm':
		p.applySGR(params)
	case 's':
		p.savedRow, p.savedCol = p.row, p.col
	case 'u':
		p.row, p.col = p.savedRow, p.savedCol
	}
	_ = private
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (p *Parser) eraseInLine(mode int) {
	cols := p.cols()
	blank := frame.Cell{Codepoint: ' ', Width: 1, StyleID: 0}
	switch mode {
	case 0:
		for c := p.col; c < cols; c++ {
			p.store.SetCell(p.row, c, blank)
		}
	case 1:
		for c := 0; c <= p.col && c < cols; c++ {
			p.store.SetCell(p.row, c, blank)
		}
	case 2:
		for c := 0; c < cols; c++ {
			p.store.SetCell(p.row, c, blank)
		}
	}
}

func (p *Parser) eraseInDisplay(mode int) {
	rows := p.rows()
	switch mode {
	case 0:
		p.eraseInLine(0)
		for r := p.row + 1; r < rows; r++ {
			p.eraseRow(r)
		}
	case 1:
		p.eraseInLine(1)
		for r := 0; r < p.row; r++ {
			p.eraseRow(r)
		}
	case 2:
		for r := 0; r < rows; r++ {
			p.eraseRow(r)
		}
	}
}

func (p *Parser) eraseRow(r int) {
	cols := p.cols()
	blank := frame.Cell{Codepoint: ' ', Width: 1, StyleID: 0}
	for c := 0; c < cols; c++ {
		p.store.SetCell(r, c, blank)
	}
}

// applySGR folds Select Graphic Rendition params into p.curStyle, the
// style newly placed characters will be tagged with.
func (p *Parser) applySGR(params []int) {
	if len(params) == 0 {
		p.curStyle = style.Style{}
		return
	}
	for i := 0; i < len(params); i++ {
		code := params[i]
		switch {
		case code == 0:
			p.curStyle = style.Style{}
		case code == 1:
			p.curStyle.Bold = true
		case code == 2:
			p.curStyle.Dim = true
		case code == 3:
			p.curStyle.Italic = true
		case code == 4:
			p.curStyle.Underline = style.UnderlineSingle
		case code == 5:
			p.curStyle.BlinkSlow = true
		case code == 6:
			p.curStyle.BlinkFast = true
		case code == 7:
			p.curStyle.Reverse = true
		case code == 8:
			p.curStyle.Hidden = true
		case code == 9:
			p.curStyle.Strike = true
		case code == 22:
			p.curStyle.Bold, p.curStyle.Dim = false, false
		case code == 23:
			p.curStyle.Italic = false
		case code == 24:
			p.curStyle.Underline = style.UnderlineNone
		case code == 25:
			p.curStyle.BlinkSlow, p.curStyle.BlinkFast = false, false
		case code == 27:
			p.curStyle.Reverse = false
		case code == 29:
			p.curStyle.Strike = false
		case code >= 30 && code <= 37:
			p.curStyle.Fg = style.Color{Kind: style.ColorANSI256, ANSI256: uint8(code - 30)}
		case code == 38:
			consumed := p.applyExtendedColor(params[i:], true)
			i += consumed
		case code == 39:
			p.curStyle.Fg = style.Color{}
		case code >= 40 && code <= 47:
			p.curStyle.Bg = style.Color{Kind: style.ColorANSI256, ANSI256: uint8(code - 40)}
		case code == 48:
			consumed := p.applyExtendedColor(params[i:], false)
			i += consumed
		case code == 49:
			p.curStyle.Bg = style.Color{}
		case code >= 90 && code <= 97:
			p.curStyle.Fg = style.Color{Kind: style.ColorANSI256, ANSI256: uint8(code - 90 + 8)}
		case code >= 100 && code <= 107:
			p.curStyle.Bg = style.Color{Kind: style.ColorANSI256, ANSI256: uint8(code - 100 + 8)}
		}
	}
}

// applyExtendedColor handles the 38;5;N / 38;2;R;G;B (and 48;... for
// background) extended color forms, returning how many extra params
// beyond the leading 38/48 it consumed.
func (p *Parser) applyExtendedColor(rest []int, foreground bool) int {
	if len(rest) < 2 {
		return 0
	}
	switch rest[1] {
	case 5:
		if len(rest) < 3 {
			return 1
		}
		c := style.Color{Kind: style.ColorANSI256, ANSI256: uint8(rest[2])}
		if foreground {
			p.curStyle.Fg = c
		} else {
			p.curStyle.Bg = c
		}
		return 2
	case 2:
		if len(rest) < 5 {
			return 1
		}
		c := style.Color{Kind: style.ColorRGB, R: uint8(rest[2]), G: uint8(rest[3]), B: uint8(rest[4])}
		if foreground {
			p.curStyle.Fg = c
		} else {
			p.curStyle.Bg = c
		}
		return 4
	}
	return 1
}

// SyncCursor pushes the parser's tracked cursor position into the store,
// called after each Feed by the adapter so render updates see it move.
func (p *Parser) SyncCursor() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.store.CurrentFrame().Cur
	cur.Row, cur.Col = p.row, p.col
	cur.Visible = true
	p.store.SetCursor(cur)
}
