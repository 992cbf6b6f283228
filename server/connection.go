package server

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/zrp-project/zrp/inputtr"
	"github.com/zrp-project/zrp/lease"
	"github.com/zrp-project/zrp/session"
	"github.com/zrp-project/zrp/transport"
	"github.com/zrp-project/zrp/wire"
)

// outbound is one encoded frame queued for a client's writer task, tagged
// with whether it's eligible to go out as an unreliable datagram.
type outbound struct {
	payload   []byte
	datagram  bool
}

// runClient drives one attached client's full lifecycle after a
// successful handshake (spec §4.8 steps 6-8): it spawns a writer task
// consuming a bounded send channel, a datagram-drain task feeding state
// acks back into the session, and runs the control-stream read/dispatch
// loop plus the idle render ticker on the calling goroutine.
func (s *Server) runClient(ctx context.Context, conn transport.Conn, stream transport.Stream, h handshakeResult) {
	clientID := h.clientID
	log := s.cfg.Logger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sendCh := make(chan outbound, s.cfg.SendChannelCapacity)
	s.registerClient(clientID, sendCh)

	done := make(chan struct{})
	go s.writerTask(stream, conn, sendCh, done)
	go s.datagramDrainTask(ctx, conn, clientID)

	defer func() {
		s.unregisterClient(clientID)
		close(sendCh)
		<-done
		s.mu.Lock()
		s.session.RemoveClient(clientID)
		s.mu.Unlock()
		log.Printf("zrp: client %d (%s) detached", clientID, conn.RemoteAddr())
	}()

	if h.resumed {
		log.Printf("zrp: client %d resumed from state %d", clientID, h.baselineID)
	} else {
		log.Printf("zrp: client %d attached fresh", clientID)
	}
	s.emitRenderUpdate(clientID, sendCh)

	ticker := time.NewTicker(s.cfg.IdleTickInterval)
	defer ticker.Stop()

	readErrCh := make(chan error, 1)
	frameCh := make(chan []byte, 8)
	go func() {
		for {
			payload, err := wire.ReadFrame(stream)
			if err != nil {
				readErrCh <- err
				return
			}
			select {
			case frameCh <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErrCh:
			if err != nil && !errors.Is(err, io.EOF) {
				log.Printf("zrp: client %d: read error: %v", clientID, err)
			}
			return
		case payload := <-frameCh:
			if !s.dispatchFrame(clientID, payload, sendCh) {
				return
			}
		case <-ticker.C:
			s.emitRenderUpdate(clientID, sendCh)
		}
	}
}

// dispatchFrame decodes and handles one stream envelope from clientID.
// Returns false if the connection should be torn down (fatal error or
// EOF-equivalent condition).
func (s *Server) dispatchFrame(clientID uint64, payload []byte, sendCh chan outbound) bool {
	env, err := wire.DecodeStreamEnvelope(payload)
	if err != nil {
		s.sendFatal(sendCh, wire.ErrBadMessage, "decode failed")
		return false
	}

	switch env.Kind {
	case wire.StreamInputEvent:
		s.handleInputEvent(clientID, env.InputEvent, sendCh)
	case wire.StreamLeaseRequest:
		s.handleLeaseRequest(clientID, env.LeaseRequest, sendCh)
	case wire.StreamLeaseRelease:
		s.mu.Lock()
		s.session.Lease.ReleaseControl(clientID, env.LeaseRelease.LeaseID)
		s.mu.Unlock()
	case wire.StreamLeaseKeepAlive:
		s.mu.Lock()
		s.session.Lease.KeepAlive(clientID, env.LeaseKeepAlive.LeaseID)
		s.mu.Unlock()
	case wire.StreamLeaseSetSize:
		s.mu.Lock()
		s.session.Lease.SetSize(clientID, env.LeaseSetSize.LeaseID, lease.DisplaySize{Cols: env.LeaseSetSize.Cols, Rows: env.LeaseSetSize.Rows})
		s.mu.Unlock()
	case wire.StreamRequestSnapshot:
		s.mu.Lock()
		s.session.ForceClientSnapshot(clientID)
		s.mu.Unlock()
		s.emitRenderUpdate(clientID, sendCh)
	case wire.StreamPing:
		s.sendEnvelope(sendCh, wire.StreamEnvelope{Kind: wire.StreamPong, Pong: wire.Pong{Nonce: env.Ping.Nonce}}, false)
	default:
		// Unknown/unsupported messages are ignored rather than torn
		// down, matching spec §7's non-fatal default for anything not
		// explicitly named as fatal.
	}
	return true
}

func (s *Server) handleInputEvent(clientID uint64, input wire.InputEvent, sendCh chan outbound) {
	s.mu.Lock()
	ack, err := s.session.ProcessInput(clientID, input)
	s.mu.Unlock()

	if err != nil {
		var ierr session.InputError
		if errors.As(err, &ierr) && ierr.Kind == session.ErrNotController {
			s.sendEnvelope(sendCh, wire.StreamEnvelope{
				Kind:          wire.StreamProtocolError,
				ProtocolError: wire.ProtocolError{Code: wire.ErrLeaseDenied, Fatal: false, Message: "not controller"},
			}, false)
		}
		// OutOfOrder/Duplicate: drop and log, per spec §9's Open
		// Question decision (conservative default, no escalation).
		s.cfg.Logger.Printf("zrp: client %d: input rejected: %v", clientID, err)
		return
	}

	s.sendEnvelope(sendCh, wire.StreamEnvelope{Kind: wire.StreamInputAck, InputAck: ack}, false)

	if data, ok := inputtr.Translate(input); ok && s.adapter != nil {
		if err := s.adapter.WriteBytes(clientID, data); err != nil {
			s.cfg.Logger.Printf("zrp: client %d: write to adapter: %v", clientID, err)
		}
	}
}

func (s *Server) handleLeaseRequest(clientID uint64, req wire.LeaseRequest, sendCh chan outbound) {
	s.mu.Lock()
	size := lease.DisplaySize{Cols: req.Cols, Rows: req.Rows}
	result := s.session.Lease.RequestControl(clientID, size, req.HasSize, req.Force)
	s.mu.Unlock()

	if result.Granted {
		s.sendEnvelope(sendCh, wire.StreamEnvelope{Kind: wire.StreamLeaseGrant, LeaseGrant: toWireLease(result.Lease)}, false)
		return
	}
	s.sendEnvelope(sendCh, wire.StreamEnvelope{
		Kind:      wire.StreamLeaseDeny,
		LeaseDeny: wire.ProtocolError{Code: wire.ErrLeaseDenied, Fatal: false, Message: result.Reason},
	}, false)
}

// emitRenderUpdate computes the next render update for clientID (if any
// is due) and queues it for delivery.
func (s *Server) emitRenderUpdate(clientID uint64, sendCh chan outbound) {
	s.mu.Lock()
	update, ok := s.session.GetRenderUpdate(clientID)
	s.mu.Unlock()
	if !ok {
		return
	}

	switch update.Kind {
	case session.UpdateSnapshot:
		s.sendEnvelope(sendCh, wire.StreamEnvelope{Kind: wire.StreamScreenSnapshot, ScreenSnapshot: update.Snapshot}, false)
	case session.UpdateDelta:
		s.sendRenderDelta(update.Delta, sendCh)
	}
}

// sendRenderDelta ships a delta via datagram when the client negotiated
// datagram support and the encoded payload fits within the negotiated
// MTU; otherwise it falls back to the reliable control stream (spec
// §4.7 "Transport choice").
func (s *Server) sendRenderDelta(d wire.ScreenDelta, sendCh chan outbound) {
	payload, err := wire.EncodeDatagramEnvelope(wire.DatagramEnvelope{Kind: wire.DatagramScreenDelta, ScreenDelta: d})
	if err == nil && uint32(len(payload)) <= s.cfg.MaxDatagramBytes {
		select {
		case sendCh <- outbound{payload: payload, datagram: true}:
		default:
			s.cfg.Logger.Printf("zrp: send channel full, dropping datagram delta")
		}
		return
	}
	s.sendEnvelope(sendCh, wire.StreamEnvelope{Kind: wire.StreamScreenDelta, ScreenDelta: d}, false)
}

func (s *Server) sendEnvelope(sendCh chan outbound, env wire.StreamEnvelope, datagram bool) {
	payload, err := wire.EncodeStreamEnvelope(env)
	if err != nil {
		s.cfg.Logger.Printf("zrp: encode envelope kind %d: %v", env.Kind, err)
		return
	}
	select {
	case sendCh <- outbound{payload: payload}:
	default:
		// Bounded channel is full: shed load by dropping this frame
		// rather than blocking the render/dispatch loop (spec §4.8,
		// §5 "Backpressure").
		s.cfg.Logger.Printf("zrp: send channel full, dropping frame kind %d", env.Kind)
	}
}

func (s *Server) sendFatal(sendCh chan outbound, code wire.ProtocolErrorCode, msg string) {
	s.sendEnvelope(sendCh, wire.StreamEnvelope{
		Kind:          wire.StreamProtocolError,
		ProtocolError: wire.ProtocolError{Code: code, Fatal: true, Message: msg},
	}, false)
}

// writerTask is the single consumer of sendCh, the serialization point
// for outbound frames on this connection (spec §5: "exactly one consumer
// task per channel"). Stream-bound frames are length-prefixed; datagram
// frames are sent as-is over the unreliable channel.
func (s *Server) writerTask(stream transport.Stream, conn transport.Conn, sendCh chan outbound, done chan struct{}) {
	defer close(done)
	for ob := range sendCh {
		var err error
		if ob.datagram {
			err = conn.SendDatagram(ob.payload)
		} else {
			err = wire.WriteFrame(stream, ob.payload)
		}
		if err != nil {
			s.cfg.Logger.Printf("zrp: write failed: %v", err)
			return
		}
	}
}

// datagramDrainTask continuously receives datagrams (StateAcks, in
// practice) and folds them into the session under lock (spec §4.8 step 7
// "a background task drains incoming datagrams into session state-ack
// processing").
func (s *Server) datagramDrainTask(ctx context.Context, conn transport.Conn, clientID uint64) {
	for {
		payload, err := conn.ReceiveDatagram(ctx)
		if err != nil {
			return
		}
		env, err := wire.DecodeDatagramEnvelope(payload)
		if err != nil {
			continue
		}
		switch env.Kind {
		case wire.DatagramStateAck:
			s.mu.Lock()
			s.session.ProcessStateAck(clientID, env.StateAck)
			s.mu.Unlock()
		case wire.DatagramPing:
			_ = conn.SendDatagram(mustEncodeDatagramPong(env.Ping.Nonce))
		}
	}
}

func mustEncodeDatagramPong(nonce uint64) []byte {
	payload, _ := wire.EncodeDatagramEnvelope(wire.DatagramEnvelope{Kind: wire.DatagramPong, Pong: wire.Pong{Nonce: nonce}})
	return payload
}
