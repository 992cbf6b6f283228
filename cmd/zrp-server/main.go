// Command zrp-server runs a reference ZRP server over a real shell PTY,
// for manual testing and as a worked example of wiring session.RemoteSession,
// server.Server, and a ScreenAdapter together (spec §6 "CLI & environment").
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/zrp-project/zrp/server"
	"github.com/zrp-project/zrp/session"
	"github.com/zrp-project/zrp/transport"
)

func main() {
	var (
		listenAddr  = flag.String("listen", "127.0.0.1:7777", "address to bind the QUIC listener on")
		sessionName = flag.String("session-name", "", "session name reported in ServerHello (random if empty)")
		bearerToken = flag.String("bearer-token", os.Getenv("ZRP_BEARER_TOKEN"), "required bearer token (also read from ZRP_BEARER_TOKEN)")
		certFile    = flag.String("cert", "", "TLS certificate file (self-signed generated if empty)")
		keyFile     = flag.String("key", "", "TLS key file (self-signed generated if empty)")
		shell       = flag.String("shell", os.Getenv("SHELL"), "shell to run inside the PTY")
		cols        = flag.Int("cols", 80, "initial PTY column count")
		rows        = flag.Int("rows", 24, "initial PTY row count")
	)
	flag.Parse()

	if *sessionName == "" {
		*sessionName = "zrp-" + uuid.NewString()[:8]
	}

	ln, err := transport.Listen(*listenAddr, *certFile, *keyFile)
	if err != nil {
		log.Fatalf("zrp-server: listen: %v", err)
	}
	defer ln.Close()

	sess := session.New(*cols, *rows)

	cfg := server.DefaultConfig()
	cfg.SessionName = *sessionName
	cfg.BearerToken = *bearerToken

	var srv *server.Server
	adapter, err := server.NewPTYAdapter(*shell, *cols, *rows, sess.Frame, sess.Styles, func() {
		if srv != nil {
			srv.AdvanceFrameState()
		}
	})
	if err != nil {
		log.Fatalf("zrp-server: start pty adapter: %v", err)
	}
	defer adapter.Close()

	srv = server.New(ln, sess, adapter, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("zrp-server: session %q listening on %s\n", *sessionName, ln.Addr())
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("zrp-server: serve: %v", err)
	}
}
