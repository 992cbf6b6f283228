package client

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/zrp-project/zrp/style"
)

// TerminalRenderer paints a Client's overlay frame onto a real terminal via
// tcell.Screen, grounded on the teacher's TcellScreenDriver wrapper
// (texel/driver_tcell.go) around the same library. Paint is safe to call
// from both the read-loop goroutine (on a new frame) and the key-polling
// goroutine (for immediate local feedback after sending a keystroke).
type TerminalRenderer struct {
	mu     sync.Mutex
	screen tcell.Screen
	client *Client
}

// NewTerminalRenderer allocates and initializes a tcell screen for client.
func NewTerminalRenderer(client *Client) (*TerminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	return &TerminalRenderer{screen: screen, client: client}, nil
}

// Close tears down the terminal screen, restoring the prior terminal mode.
func (r *TerminalRenderer) Close() { r.screen.Fini() }

// Size returns the current terminal dimensions (cols, rows).
func (r *TerminalRenderer) Size() (int, int) { return r.screen.Size() }

// Paint draws the client's current overlay frame (confirmed state plus any
// pending predictions) to the terminal.
func (r *TerminalRenderer) Paint() {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := r.client.OverlayFrame()
	styles := r.client.Applier().Styles()

	for rowIdx, row := range data.Rows {
		for col := 0; col < row.Len(); col++ {
			cell := row.Cell(col)
			st, _ := styles.Get(cell.StyleID)
			r.screen.SetContent(col, rowIdx, cell.Codepoint, nil, toTcellStyle(st))
		}
	}
	if data.Cur.Visible {
		r.screen.ShowCursor(data.Cur.Col, data.Cur.Row)
	} else {
		r.screen.HideCursor()
	}
	r.screen.Show()
}

// PollKey blocks for the next terminal event, returning a decoded key
// event or (nil, false) for anything else (resize, mouse — reserved).
func (r *TerminalRenderer) PollKey() (*tcell.EventKey, bool) {
	switch ev := r.screen.PollEvent().(type) {
	case *tcell.EventKey:
		return ev, true
	default:
		return nil, false
	}
}

func toTcellStyle(s style.Style) tcell.Style {
	st := tcell.StyleDefault.
		Foreground(toTcellColor(s.Fg)).
		Background(toTcellColor(s.Bg)).
		Bold(s.Bold).
		Dim(s.Dim).
		Italic(s.Italic).
		Reverse(s.Reverse).
		Blink(s.BlinkSlow || s.BlinkFast).
		StrikeThrough(s.Strike)
	if s.Underline != style.UnderlineNone {
		st = st.Underline(true)
	}
	return st
}

func toTcellColor(c style.Color) tcell.Color {
	switch c.Kind {
	case style.ColorANSI256:
		return tcell.PaletteColor(int(c.ANSI256))
	case style.ColorRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorDefault
	}
}
