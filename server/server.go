// Package server implements the ZRP accept loop and per-connection
// handler (spec §4.8 "Server Loop"): accept, handshake, per-client send
// channel, and the render/input dispatch loop that drives a shared
// session.RemoteSession under a read/write lock per spec §5.
package server

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zrp-project/zrp/lease"
	"github.com/zrp-project/zrp/session"
	"github.com/zrp-project/zrp/transport"
	"github.com/zrp-project/zrp/wire"
)

// ScreenAdapter is the embedder collaborator interface (spec §6): it owns
// the actual pane/program whose output drives the shared FrameStore, and
// accepts translated input bytes back from the controlling client. The
// server package never looks inside it.
type ScreenAdapter interface {
	// WriteBytes delivers translated input from clientID to the
	// controller pane.
	WriteBytes(clientID uint64, data []byte) error
}

// Config collects the server-level tunables named throughout spec §4.8
// and §6.
type Config struct {
	SessionName         string
	BearerToken         string
	RenderWindow        uint32
	MaxInflightInputs    uint32
	SnapshotIntervalMs  uint32
	MaxDatagramBytes     uint32
	SendChannelCapacity int
	IdleTickInterval    time.Duration
	Logger              *log.Logger
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		SessionName:         "default",
		RenderWindow:        wire.DefaultRenderWindow,
		MaxInflightInputs:   128,
		SnapshotIntervalMs:  1000,
		MaxDatagramBytes:    wire.DefaultMaxDatagramBytes,
		SendChannelCapacity: 4,
		IdleTickInterval:    100 * time.Millisecond, // ~10 Hz, per spec §4.8 step 7
		Logger:              log.Default(),
	}
}

// Server accepts QUIC connections on one Listener and dispatches each to
// its own connection handler against a single shared session.
type Server struct {
	cfg     Config
	ln      *transport.Listener
	session *session.RemoteSession
	adapter ScreenAdapter
	mu      sync.RWMutex // guards session per spec §5

	nextClientID uint64

	clientsMu sync.Mutex
	clients   map[uint64]chan outbound

	wg        sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

// New constructs a Server bound to ln, serving sess and routing input to
// adapter. cfg's zero value is filled in from DefaultConfig.
func New(ln *transport.Listener, sess *session.RemoteSession, adapter ScreenAdapter, cfg Config) *Server {
	if cfg.RenderWindow == 0 {
		cfg.RenderWindow = wire.DefaultRenderWindow
	}
	if cfg.MaxDatagramBytes == 0 {
		cfg.MaxDatagramBytes = wire.DefaultMaxDatagramBytes
	}
	if cfg.SendChannelCapacity == 0 {
		cfg.SendChannelCapacity = 4
	}
	if cfg.IdleTickInterval == 0 {
		cfg.IdleTickInterval = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Server{
		cfg:     cfg,
		ln:      ln,
		session: sess,
		adapter: adapter,
		clients: make(map[uint64]chan outbound),
		closing: make(chan struct{}),
	}
}

// warnIfInsecure logs a loud warning when the server is reachable
// non-locally without a bearer token configured (spec §4.8 step 2).
func (s *Server) warnIfInsecure() {
	if s.cfg.BearerToken != "" {
		return
	}
	addr := s.ln.Addr()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" || host == "localhost" || host == "127.0.0.1" || host == "::1" {
		s.cfg.Logger.Printf("zrp: warning: no bearer token configured (loopback bind %s)", addr)
		return
	}
	s.cfg.Logger.Printf("zrp: WARNING: bound to non-loopback address %s with no bearer token — anyone reaching this host can attach", addr)
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.warnIfInsecure()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.leaseTickLoop(ctx)
	}()

	for {
		conn, err := s.ln.Accept(ctx)
		if err != nil {
			select {
			case <-s.closing:
				s.wg.Wait()
				return nil
			case <-ctx.Done():
				s.wg.Wait()
				return ctx.Err()
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// Close stops accepting new connections; in-flight handlers run to
// completion.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.ln.Close()
}

func (s *Server) allocateClientID() uint64 {
	return atomic.AddUint64(&s.nextClientID, 1)
}

// leaseTickLoop periodically drives LeaseManager.Tick (spec §4.4's
// "tick() where elapsed >= duration" expiry transition is a scheduled
// state change, not a preemption — spec §5) and broadcasts a
// LeaseRevoked notice to every attached client when the lease changes
// hands that way.
func (s *Server) leaseTickLoop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case <-ticker.C:
			s.mu.Lock()
			ev := s.session.Lease.Tick()
			s.mu.Unlock()
			if ev != nil {
				s.broadcastLeaseRevoked(*ev)
			}
		}
	}
}

func (s *Server) registerClient(clientID uint64, ch chan outbound) {
	s.clientsMu.Lock()
	s.clients[clientID] = ch
	s.clientsMu.Unlock()
}

func (s *Server) unregisterClient(clientID uint64) {
	s.clientsMu.Lock()
	delete(s.clients, clientID)
	s.clientsMu.Unlock()
}

// AdvanceFrameState is the hook a ScreenAdapter calls after applying a
// chunk of program output to the shared FrameStore (spec §4.8 step 6):
// it advances the store's state id, records the new state in the resume
// history, and then dispatches an immediate render update to every
// attached client. Without this, state_id would stay pinned at 0 for the
// life of the process, every post-snapshot delta would be rejected as
// stale by the client's RenderSeqTracker, and resume would never find a
// history entry to restore from.
func (s *Server) AdvanceFrameState() {
	s.mu.Lock()
	s.session.Frame.AdvanceState()
	s.session.RecordStateSnapshot()
	s.mu.Unlock()

	s.NotifyDirty()
}

// NotifyDirty prompts an immediate render update for every attached
// client, rather than waiting for the next idle tick (spec §4.8 step 7's
// ticker is a floor, not the only trigger: a ScreenAdapter with its own
// change notifications, like PTYAdapter, can call this to cut latency).
func (s *Server) NotifyDirty() {
	s.clientsMu.Lock()
	snapshot := make(map[uint64]chan outbound, len(s.clients))
	for id, ch := range s.clients {
		snapshot[id] = ch
	}
	s.clientsMu.Unlock()

	for id, ch := range snapshot {
		s.emitRenderUpdate(id, ch)
	}
}

func (s *Server) broadcastLeaseRevoked(ev lease.Event) {
	reason := ev.Reason
	if reason == "" {
		reason = "expired"
	}
	env := wire.StreamEnvelope{Kind: wire.StreamLeaseRevoked, LeaseRevoked: wire.LeaseRevoked{LeaseID: ev.LeaseID, Reason: reason}}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for _, ch := range s.clients {
		s.sendEnvelope(ch, env, false)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn transport.Conn) {
	remote := conn.RemoteAddr()
	defer conn.Close()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		s.cfg.Logger.Printf("zrp: %s: accept control stream: %v", remote, err)
		return
	}

	hello, err := readClientHello(stream)
	if err != nil {
		s.cfg.Logger.Printf("zrp: %s: read ClientHello: %v", remote, err)
		return
	}

	if s.cfg.BearerToken != "" && string(hello.BearerToken) != s.cfg.BearerToken {
		writeFatalError(stream, wire.ErrUnauthorized, "bad bearer token")
		s.cfg.Logger.Printf("zrp: %s: auth failed", remote)
		return
	}

	h := newHandshakeResult(s, hello)

	guardArmed := true
	defer func() {
		if guardArmed {
			s.mu.Lock()
			s.session.RemoveClient(h.clientID)
			s.mu.Unlock()
		}
	}()

	if err := sendServerHello(stream, s.cfg, h); err != nil {
		s.cfg.Logger.Printf("zrp: %s: send ServerHello: %v", remote, err)
		return
	}
	guardArmed = false // handshake complete; client lifecycle now owned by runClient

	s.runClient(ctx, conn, stream, h)
}
