package server

import (
	"testing"
	"time"

	"github.com/zrp-project/zrp/clock"
	"github.com/zrp-project/zrp/session"
	"github.com/zrp-project/zrp/wire"
)

func TestBroadcastLeaseRevokedReachesRegisteredClients(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	sess := session.NewWithClock(80, 24, clk)
	srv := New(nil, sess, nil, DefaultConfig())

	h := newHandshakeResult(srv, wire.ClientHello{Version: wire.CurrentVersion, ClientName: "controller"})

	viewerCh := make(chan outbound, 8)
	srv.registerClient(999, viewerCh)

	clk.Advance(31 * time.Second) // past the 30s default lease duration

	srv.mu.Lock()
	ev := srv.session.Lease.Tick()
	srv.mu.Unlock()
	if ev == nil {
		t.Fatalf("expected lease expiry event after advancing past the lease duration")
	}
	srv.broadcastLeaseRevoked(*ev)

	select {
	case ob := <-viewerCh:
		env, err := wire.DecodeStreamEnvelope(ob.payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Kind != wire.StreamLeaseRevoked {
			t.Fatalf("expected LeaseRevoked, got kind %d", env.Kind)
		}
	default:
		t.Fatalf("expected a LeaseRevoked broadcast to the registered viewer")
	}

	_ = h
}

func TestAdvanceFrameStateBumpsStateAndRecordsHistory(t *testing.T) {
	sess := session.New(80, 24)
	srv := New(nil, sess, nil, DefaultConfig())

	h := newHandshakeResult(srv, wire.ClientHello{Version: wire.CurrentVersion, ClientName: "a"})
	ch := make(chan outbound, 8)
	srv.registerClient(h.clientID, ch)
	srv.emitRenderUpdate(h.clientID, ch) // drain the initial snapshot
	<-ch

	before := sess.Frame.CurrentStateID()
	srv.AdvanceFrameState()

	if sess.Frame.CurrentStateID() != before+1 {
		t.Fatalf("expected AdvanceFrameState to advance the frame state id, got %d want %d", sess.Frame.CurrentStateID(), before+1)
	}
	if !sess.History.CanResumeFrom(sess.Frame.CurrentStateID()) {
		t.Fatalf("expected AdvanceFrameState to record the new state into resume history")
	}

	select {
	case ob := <-ch:
		if ob.datagram {
			env, err := wire.DecodeDatagramEnvelope(ob.payload)
			if err != nil {
				t.Fatalf("decode datagram: %v", err)
			}
			if env.Kind != wire.DatagramScreenDelta {
				t.Fatalf("expected a ScreenDelta datagram, got kind %d", env.Kind)
			}
			return
		}
		env, err := wire.DecodeStreamEnvelope(ob.payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Kind != wire.StreamScreenDelta && env.Kind != wire.StreamScreenSnapshot {
			t.Fatalf("expected a render update envelope, got kind %d", env.Kind)
		}
	default:
		t.Fatalf("expected AdvanceFrameState to dispatch a render update to the registered client")
	}
}

func TestDefaultConfigFillsZeroFields(t *testing.T) {
	cfg := DefaultConfig()
	sess := session.New(80, 24)
	srv := New(nil, sess, nil, Config{})
	if srv.cfg.RenderWindow != cfg.RenderWindow {
		t.Fatalf("expected New to fill RenderWindow default, got %d", srv.cfg.RenderWindow)
	}
	if srv.cfg.SendChannelCapacity == 0 {
		t.Fatalf("expected New to fill SendChannelCapacity default")
	}
	if srv.cfg.Logger == nil {
		t.Fatalf("expected New to fill a default Logger")
	}
}
