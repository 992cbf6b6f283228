package server

import (
	"errors"
	"io"

	"github.com/zrp-project/zrp/lease"
	"github.com/zrp-project/zrp/session"
	"github.com/zrp-project/zrp/transport"
	"github.com/zrp-project/zrp/wire"
)

// readClientHello reads the first frame of the control stream and decodes
// it as a ClientHello (spec §4.8 step 1). Any other message type is a
// protocol violation (spec §7 "WrongFirstMessage").
func readClientHello(stream transport.Stream) (wire.ClientHello, error) {
	payload, err := wire.ReadFrame(stream)
	if err != nil {
		return wire.ClientHello{}, err
	}
	env, err := wire.DecodeStreamEnvelope(payload)
	if err != nil {
		return wire.ClientHello{}, err
	}
	if env.Kind != wire.StreamClientHello {
		return wire.ClientHello{}, errUnexpectedFirstMessage
	}
	return env.ClientHello, nil
}

var errUnexpectedFirstMessage = errors.New("server: expected ClientHello as first message")

// handshakeResult carries everything sendServerHello needs once the
// resume-or-fresh decision (spec §4.8 steps 3-4) has been made.
type handshakeResult struct {
	clientID     uint64
	sessionState wire.SessionState
	lease        wire.ControllerLease
	hasLease     bool
	resumeToken  []byte
	negotiated   wire.Capabilities
	version      wire.ProtocolVersion
	resumed      bool
	baselineID   uint64
}

func negotiateCapabilities(client wire.Capabilities) wire.Capabilities {
	// The server clamps support bits down to its own (spec §6): this
	// reference server implements every bit in wire.Capabilities, so
	// negotiation is simply AND-ing against what the client asked for,
	// except images/clipboard/hyperlinks which are negotiation-only
	// stubs per spec §1 and are never offered.
	out := client
	out.SupportsImages = false
	out.SupportsClipboard = false
	out.SupportsHyperlinks = false
	if out.MaxDatagramBytes == 0 || out.MaxDatagramBytes > wire.DefaultMaxDatagramBytes {
		out.MaxDatagramBytes = wire.DefaultMaxDatagramBytes
	}
	return out
}

// newHandshakeResult decides resume-vs-fresh (spec §4.8 steps 3-4) and
// allocates or restores the client's session-side state. The caller
// (server.handleConnection) holds no lock across handshake beyond this
// single call's duration.
func newHandshakeResult(s *Server, hello wire.ClientHello) handshakeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	negotiated := negotiateCapabilities(hello.Capabilities)

	if len(hello.ResumeToken) > 0 {
		outcome := s.session.TryResume(hello.ResumeToken, s.cfg.RenderWindow)
		if outcome.Kind == session.ResumeResumed {
			s.session.Lease.AddViewer(outcome.ClientID)
			result := s.requestControlLocked(outcome.ClientID)
			tok := s.session.GenerateResumeToken(outcome.ClientID)
			return handshakeResult{
				clientID:     outcome.ClientID,
				sessionState: wire.SessionResurrected,
				lease:        result.lease,
				hasLease:     result.hasLease,
				resumeToken:  tok,
				negotiated:   negotiated,
				version:      wire.CurrentVersion,
				resumed:      true,
				baselineID:   outcome.BaselineStateID,
			}
		}
		s.cfg.Logger.Printf("zrp: resume failed (%d), falling back to fresh attach", outcome.Kind)
	}

	clientID := s.allocateClientID()
	s.session.AddClient(clientID, s.cfg.RenderWindow)
	s.session.Lease.AddViewer(clientID)
	result := s.requestControlLocked(clientID)
	tok := s.session.GenerateResumeToken(clientID)

	return handshakeResult{
		clientID:     clientID,
		sessionState: wire.SessionCreated,
		lease:        result.lease,
		hasLease:     result.hasLease,
		resumeToken:  tok,
		negotiated:   negotiated,
		version:      wire.CurrentVersion,
	}
}

type controlResult struct {
	lease    wire.ControllerLease
	hasLease bool
}

// requestControlLocked attempts to make clientID the controller if no one
// currently holds the lease, otherwise reports the existing lease (spec
// §4.8 step 4: "attempt request_control and include the resulting or
// current lease"). Must be called with s.mu held.
func (s *Server) requestControlLocked(clientID uint64) controlResult {
	if _, ok := s.session.Lease.GetCurrentLease(); !ok {
		res := s.session.Lease.RequestControl(clientID, lease.DisplaySize{}, false, false)
		if res.Granted {
			return controlResult{lease: toWireLease(res.Lease), hasLease: true}
		}
	}
	if l, ok := s.session.Lease.GetCurrentLease(); ok {
		return controlResult{lease: toWireLease(l), hasLease: true}
	}
	return controlResult{}
}

// toWireLease converts the lease package's internal representation into
// the wire-level ControllerLease shipped in ServerHello/LeaseGrant.
func toWireLease(l lease.Lease) wire.ControllerLease {
	policy := wire.PolicyLastWriterWins
	if l.Policy == lease.ExplicitOnly {
		policy = wire.PolicyExplicitOnly
	}
	return wire.ControllerLease{
		LeaseID:       l.LeaseID,
		OwnerClientID: l.OwnerClientID,
		Policy:        policy,
		HasSize:       l.HasSize,
		Cols:          l.Size.Cols,
		Rows:          l.Size.Rows,
		RemainingMs:   l.RemainingMs,
		DurationMs:    l.DurationMs,
	}
}

func sendServerHello(stream transport.Stream, cfg Config, h handshakeResult) error {
	hello := wire.ServerHello{
		NegotiatedVersion:      h.version,
		NegotiatedCapabilities: h.negotiated,
		ClientID:               h.clientID,
		SessionName:            cfg.SessionName,
		SessionState:           h.sessionState,
		HasLease:               h.hasLease,
		Lease:                  h.lease,
		ResumeToken:            h.resumeToken,
		SnapshotIntervalMs:     cfg.SnapshotIntervalMs,
		MaxInflightInputs:      cfg.MaxInflightInputs,
		RenderWindow:           cfg.RenderWindow,
	}
	payload, err := wire.EncodeStreamEnvelope(wire.StreamEnvelope{Kind: wire.StreamServerHello, ServerHello: hello})
	if err != nil {
		return err
	}
	return wire.WriteFrame(stream, payload)
}

func writeFatalError(w io.Writer, code wire.ProtocolErrorCode, msg string) {
	payload, err := wire.EncodeStreamEnvelope(wire.StreamEnvelope{
		Kind:          wire.StreamProtocolError,
		ProtocolError: wire.ProtocolError{Code: code, Fatal: true, Message: msg},
	})
	if err != nil {
		return
	}
	_ = wire.WriteFrame(w, payload)
}
