package server

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"

	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/style"
	"github.com/zrp-project/zrp/vtparser"
)

// PTYAdapter is a ScreenAdapter backed by a real shell running under a
// pseudo-terminal (spec §6 "ScreenAdapter demo"), grounded on the
// teacher's PTYApp (tui/pty_app.go): pty.StartWithSize launches the
// shell, and a background goroutine feeds its output through a VT parser
// into the shared FrameStore.
type PTYAdapter struct {
	pty     *os.File
	cmd     *exec.Cmd
	parser  *vtparser.Parser
	onDirty func()
}

// NewPTYAdapter launches shell (empty string defaults to $SHELL, falling
// back to /bin/sh) inside a cols x rows PTY, wiring its output into
// store/styles. onDirty, if non-nil, is called after each chunk of PTY
// output is applied, so the caller can wake its render-update loop
// instead of polling.
func NewPTYAdapter(shell string, cols, rows int, store *frame.Store, styles *style.Table, onDirty func()) (*PTYAdapter, error) {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("server: start pty: %w", err)
	}

	a := &PTYAdapter{
		pty:     f,
		cmd:     cmd,
		parser:  vtparser.New(store, styles),
		onDirty: onDirty,
	}
	go a.readLoop()
	return a, nil
}

func (a *PTYAdapter) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := a.pty.Read(buf)
		if n > 0 {
			a.parser.Feed(buf[:n])
			a.parser.SyncCursor()
			if a.onDirty != nil {
				a.onDirty()
			}
		}
		if err != nil {
			return
		}
	}
}

// WriteBytes implements server.ScreenAdapter: translated controller input
// is written straight to the PTY's master side. clientID is unused here
// since this adapter serves a single shared pane regardless of who holds
// the controller lease.
func (a *PTYAdapter) WriteBytes(clientID uint64, data []byte) error {
	_, err := a.pty.Write(data)
	return err
}

// Resize updates the PTY's window size (spec §4.4 "LeaseSetSize").
func (a *PTYAdapter) Resize(cols, rows int) error {
	return pty.Setsize(a.pty, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Close terminates the underlying shell and closes the PTY.
func (a *PTYAdapter) Close() error {
	a.pty.Close()
	if a.cmd.Process != nil {
		a.cmd.Process.Kill()
	}
	return a.cmd.Wait()
}
