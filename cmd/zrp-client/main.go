// Command zrp-client attaches to a ZRP server, either as an interactive
// tcell-backed terminal or a headless raw passthrough/scripted client
// (spec §6 "CLI & environment").
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"github.com/zrp-project/zrp/client"
	"github.com/zrp-project/zrp/wire"
)

// reconnectPolicy is the parsed form of --reconnect.
type reconnectPolicy struct {
	mode  string // none, once, always, after
	delay time.Duration
}

func parseReconnectPolicy(s string) (reconnectPolicy, error) {
	switch {
	case s == "" || s == "none":
		return reconnectPolicy{mode: "none"}, nil
	case s == "once":
		return reconnectPolicy{mode: "once"}, nil
	case s == "always":
		return reconnectPolicy{mode: "always"}, nil
	case strings.HasPrefix(s, "after="):
		raw := strings.TrimSuffix(strings.TrimPrefix(s, "after="), "s")
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return reconnectPolicy{}, fmt.Errorf("bad --reconnect after=Ns value: %w", err)
		}
		return reconnectPolicy{mode: "after", delay: time.Duration(secs) * time.Second}, nil
	default:
		return reconnectPolicy{}, fmt.Errorf("unrecognized --reconnect value %q", s)
	}
}

func main() {
	var (
		serverURL   = flag.String("server-url", "127.0.0.1:7777", "ZRP server address")
		token       = flag.String("token", os.Getenv("ZRP_BEARER_TOKEN"), "bearer token (also read from ZRP_BEARER_TOKEN)")
		tokenFile   = flag.String("token-file", client.DefaultTokenPath, "resume token persistence path")
		headless    = flag.Bool("headless", false, "run without a full-screen terminal UI")
		scriptPath  = flag.String("script", "", "feed this file's lines as scripted input instead of reading the keyboard")
		metricsOut  = flag.String("metrics-out", "", "write periodic JSON metrics to this path")
		reconnectFl = flag.String("reconnect", "none", "reconnect policy: none|once|always|after=Ns")
		clearToken  = flag.Bool("clear-token", false, "remove the persisted resume token and exit")
	)
	flag.Parse()

	if *clearToken {
		if err := client.ClearTokenFile(*tokenFile); err != nil {
			log.Fatalf("zrp-client: clear token: %v", err)
		}
		fmt.Println("zrp-client: resume token cleared")
		return
	}

	if err := client.CheckTokenFilePerms(*tokenFile); err != nil {
		log.Printf("zrp-client: warning: %v", err)
	}

	policy, err := parseReconnectPolicy(*reconnectFl)
	if err != nil {
		log.Fatalf("zrp-client: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for attempt := 0; ; attempt++ {
		err := runOnce(ctx, *serverURL, *token, *tokenFile, *headless, *scriptPath, *metricsOut)
		if err == nil || ctx.Err() != nil {
			return
		}
		log.Printf("zrp-client: session ended: %v", err)

		switch policy.mode {
		case "none":
			os.Exit(1)
		case "once":
			if attempt >= 1 {
				os.Exit(1)
			}
		case "after":
			select {
			case <-ctx.Done():
				return
			case <-time.After(policy.delay):
			}
		case "always":
		}
	}
}

func runOnce(ctx context.Context, serverURL, token, tokenFile string, headless bool, scriptPath, metricsOut string) error {
	cfg := client.DefaultConfig()
	cfg.BearerToken = []byte(token)
	if resumeTok, err := client.LoadTokenFile(tokenFile); err == nil {
		cfg.ResumeToken = resumeTok
	}

	c, err := client.Dial(ctx, serverURL, cfg)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	if tok := c.ResumeToken(); len(tok) > 0 {
		if err := client.SaveTokenFile(tokenFile, tok); err != nil {
			log.Printf("zrp-client: warning: failed to persist resume token: %v", err)
		}
	}

	if metricsOut != "" {
		go writeMetricsLoop(ctx, c, metricsOut)
	}

	if scriptPath != "" {
		go func() {
			if err := client.RunScript(ctx, c, scriptPath, 50*time.Millisecond); err != nil {
				log.Printf("zrp-client: script error: %v", err)
			}
		}()
		return c.Run(ctx, client.NullEventHandler{})
	}

	if headless {
		return runHeadless(ctx, c)
	}
	return runInteractive(ctx, c)
}

func writeMetricsLoop(ctx context.Context, c *client.Client, path string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
			if err != nil {
				continue
			}
			_ = os.WriteFile(path, data, 0o644)
		}
	}
}

// runHeadless puts the real terminal into raw mode and forwards keyboard
// bytes to the server as text input events (SendText), printing applied frame rows
// to stdout as plain text rather than driving a full-screen UI (spec §6
// "--headless").
func runHeadless(ctx context.Context, c *client.Client) error {
	fd := int(os.Stdin.Fd())
	var oldState *term.State
	if term.IsTerminal(fd) {
		var err error
		oldState, err = term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("headless: make raw: %w", err)
		}
		defer term.Restore(fd, oldState)
	}

	h := &headlessHandler{c: c}

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				c.SendText(string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()

	return c.Run(ctx, h)
}

type headlessHandler struct{ c *client.Client }

func (h *headlessHandler) OnFrameUpdated() {
	frame := h.c.OverlayFrame()
	for _, row := range frame.Rows {
		var sb strings.Builder
		for col := 0; col < row.Len(); col++ {
			r := row.Cell(col).Codepoint
			if r == 0 {
				continue
			}
			sb.WriteRune(r)
		}
		fmt.Println(strings.TrimRight(sb.String(), " "))
	}
}

func (h *headlessHandler) OnLeaseChanged(hasLease bool, lease wire.ControllerLease) {
	fmt.Fprintf(os.Stderr, "zrp-client: lease changed, controller=%d held=%v\n", lease.OwnerClientID, hasLease)
}

func (h *headlessHandler) OnProtocolError(perr wire.ProtocolError) {
	fmt.Fprintf(os.Stderr, "zrp-client: protocol error: %s (fatal=%v)\n", perr.Message, perr.Fatal)
}

// runInteractive drives a full-screen tcell UI, translating keystrokes
// into SendKey calls and repainting on every applied frame.
func runInteractive(ctx context.Context, c *client.Client) error {
	renderer, err := client.NewTerminalRenderer(c)
	if err != nil {
		return fmt.Errorf("interactive: init terminal: %w", err)
	}
	defer renderer.Close()

	cols, _ := renderer.Size()
	c.RequestControl(uint32(cols), 24, false)

	h := &interactiveHandler{renderer: renderer}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		for {
			ev, ok := renderer.PollKey()
			if !ok {
				continue
			}
			if ev.Key() == tcell.KeyCtrlQ {
				return
			}
			cols, _ := renderer.Size()
			if key, ok := client.TranslateKey(ev); ok {
				c.SendKey(key, cols)
			}
			renderer.Paint()
		}
	}()

	err = c.Run(runCtx, h)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type interactiveHandler struct {
	renderer *client.TerminalRenderer
}

func (h *interactiveHandler) OnFrameUpdated() { h.renderer.Paint() }

func (h *interactiveHandler) OnLeaseChanged(bool, wire.ControllerLease) { h.renderer.Paint() }

func (h *interactiveHandler) OnProtocolError(wire.ProtocolError) {}
