package server

import (
	"testing"

	"github.com/zrp-project/zrp/session"
	"github.com/zrp-project/zrp/wire"
)

func newTestServer(adapter ScreenAdapter) (*Server, uint64) {
	sess := session.New(80, 24)
	srv := New(nil, sess, adapter, DefaultConfig())
	h := newHandshakeResult(srv, wire.ClientHello{Version: wire.CurrentVersion, ClientName: "t"})
	return srv, h.clientID
}

func TestDispatchFrameInputEventWritesToAdapter(t *testing.T) {
	adapter := &fakeAdapter{}
	srv, clientID := newTestServer(adapter)

	sendCh := make(chan outbound, 8)
	env := wire.StreamEnvelope{
		Kind: wire.StreamInputEvent,
		InputEvent: wire.InputEvent{
			InputSeq:    1,
			PayloadKind: wire.InputTextUTF8,
			Text:        "hi",
		},
	}
	payload, err := wire.EncodeStreamEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if ok := srv.dispatchFrame(clientID, payload, sendCh); !ok {
		t.Fatalf("expected dispatchFrame to report ok=true")
	}

	if got := string(adapter.lastWrite()); got != "hi" {
		t.Fatalf("expected adapter to receive translated text %q, got %q", "hi", got)
	}

	select {
	case ob := <-sendCh:
		ackEnv, err := wire.DecodeStreamEnvelope(ob.payload)
		if err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if ackEnv.Kind != wire.StreamInputAck || ackEnv.InputAck.AckedSeq != 1 {
			t.Fatalf("unexpected ack envelope: %+v", ackEnv)
		}
	default:
		t.Fatalf("expected an InputAck queued on sendCh")
	}
}

func TestDispatchFrameRejectsNonControllerInput(t *testing.T) {
	adapter := &fakeAdapter{}
	srv, controllerID := newTestServer(adapter)

	// Attach a second client who does not hold the lease.
	srv.mu.Lock()
	otherID := srv.allocateClientID()
	srv.session.AddClient(otherID, srv.cfg.RenderWindow)
	srv.session.Lease.AddViewer(otherID)
	srv.mu.Unlock()
	_ = controllerID

	sendCh := make(chan outbound, 8)
	env := wire.StreamEnvelope{
		Kind: wire.StreamInputEvent,
		InputEvent: wire.InputEvent{
			InputSeq:    1,
			PayloadKind: wire.InputTextUTF8,
			Text:        "nope",
		},
	}
	payload, _ := wire.EncodeStreamEnvelope(env)

	srv.dispatchFrame(otherID, payload, sendCh)

	if adapter.lastWrite() != nil {
		t.Fatalf("expected no adapter write for a non-controller client")
	}

	select {
	case ob := <-sendCh:
		errEnv, err := wire.DecodeStreamEnvelope(ob.payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if errEnv.Kind != wire.StreamProtocolError || errEnv.ProtocolError.Code != wire.ErrLeaseDenied {
			t.Fatalf("expected LeaseDenied protocol error, got %+v", errEnv)
		}
	default:
		t.Fatalf("expected a ProtocolError queued on sendCh")
	}
}

func TestDispatchFrameLeaseRequestGrantsWhenVacant(t *testing.T) {
	srv, controllerID := newTestServer(nil)

	// Release the initial controller so the lease is vacant.
	srv.mu.Lock()
	l, _ := srv.session.Lease.GetCurrentLease()
	srv.session.Lease.ReleaseControl(controllerID, l.LeaseID)
	srv.mu.Unlock()

	srv.mu.Lock()
	newID := srv.allocateClientID()
	srv.session.AddClient(newID, srv.cfg.RenderWindow)
	srv.session.Lease.AddViewer(newID)
	srv.mu.Unlock()

	sendCh := make(chan outbound, 8)
	env := wire.StreamEnvelope{Kind: wire.StreamLeaseRequest, LeaseRequest: wire.LeaseRequest{HasSize: true, Cols: 80, Rows: 24}}
	payload, _ := wire.EncodeStreamEnvelope(env)

	srv.dispatchFrame(newID, payload, sendCh)

	select {
	case ob := <-sendCh:
		grantEnv, err := wire.DecodeStreamEnvelope(ob.payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if grantEnv.Kind != wire.StreamLeaseGrant || grantEnv.LeaseGrant.OwnerClientID != newID {
			t.Fatalf("expected LeaseGrant to %d, got %+v", newID, grantEnv)
		}
	default:
		t.Fatalf("expected a LeaseGrant queued on sendCh")
	}
}

func TestEmitRenderUpdateSendsInitialSnapshot(t *testing.T) {
	srv, clientID := newTestServer(nil)

	sendCh := make(chan outbound, 8)
	srv.emitRenderUpdate(clientID, sendCh)

	select {
	case ob := <-sendCh:
		env, err := wire.DecodeStreamEnvelope(ob.payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Kind != wire.StreamScreenSnapshot {
			t.Fatalf("expected an initial snapshot, got kind %d", env.Kind)
		}
	default:
		t.Fatalf("expected a render update queued on sendCh")
	}
}

func TestRegisterAndUnregisterClient(t *testing.T) {
	srv, _ := newTestServer(nil)
	ch := make(chan outbound, 1)

	srv.registerClient(42, ch)
	srv.clientsMu.Lock()
	_, ok := srv.clients[42]
	srv.clientsMu.Unlock()
	if !ok {
		t.Fatalf("expected client 42 to be registered")
	}

	srv.unregisterClient(42)
	srv.clientsMu.Lock()
	_, ok = srv.clients[42]
	srv.clientsMu.Unlock()
	if ok {
		t.Fatalf("expected client 42 to be unregistered")
	}
}

func TestNotifyDirtyReachesAllRegisteredClients(t *testing.T) {
	srv, clientID := newTestServer(nil)

	ch := make(chan outbound, 8)
	srv.registerClient(clientID, ch)

	srv.NotifyDirty()

	select {
	case ob := <-ch:
		if len(ob.payload) == 0 {
			t.Fatalf("expected a non-empty render update payload")
		}
	default:
		t.Fatalf("expected NotifyDirty to queue a render update for the registered client")
	}
}
