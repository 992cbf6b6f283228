// Package session ties the frame/style/delta/window/lease/inputpipe/rtt/
// history/resume packages together into one shared, lockable session
// object per spec §3 "RemoteSession" and §5's concurrency discipline
// (lock, extract, drop lock, then do I/O).
package session

import (
	"crypto/rand"
	"sync/atomic"
	"time"

	"github.com/zrp-project/zrp/clock"
	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/history"
	"github.com/zrp-project/zrp/inputpipe"
	"github.com/zrp-project/zrp/lease"
	"github.com/zrp-project/zrp/resume"
	"github.com/zrp-project/zrp/rtt"
	"github.com/zrp-project/zrp/style"
	"github.com/zrp-project/zrp/wire"
)

const (
	defaultLeaseDuration  = 30 * time.Second
	defaultHistorySize    = 64
	defaultTokenExpiryMs  = resume.DefaultExpiryMs
	defaultMaxClockSkewMs = resume.DefaultMaxClockSkewMs
)

var sessionIDCounter uint64

func nextSessionID() uint64 {
	return atomic.AddUint64(&sessionIDCounter, 1)
}

// RenderUpdateKind distinguishes the two render update shapes a client
// might need next.
type RenderUpdateKind uint8

const (
	UpdateSnapshot RenderUpdateKind = iota
	UpdateDelta
)

// RenderUpdate is what get_render_update hands back to the caller for
// one client, already serializable via wire.Encode{Screen,Delta}.
type RenderUpdate struct {
	Kind     RenderUpdateKind
	Snapshot wire.ScreenSnapshot
	Delta    wire.ScreenDelta
}

// InputErrorKind classifies why ProcessInput refused an input event.
type InputErrorKind uint8

const (
	ErrClientNotFound InputErrorKind = iota
	ErrNotController
	ErrOutOfOrder
	ErrDuplicate
)

// InputError is returned by ProcessInput on any non-success outcome.
type InputError struct {
	Kind     InputErrorKind
	Expected uint64 // set only when Kind == ErrOutOfOrder
	Received uint64 // set only when Kind == ErrOutOfOrder
}

func (e InputError) Error() string {
	switch e.Kind {
	case ErrClientNotFound:
		return "session: client not found"
	case ErrNotController:
		return "session: client does not hold the controller lease"
	case ErrOutOfOrder:
		return "session: input out of order"
	case ErrDuplicate:
		return "session: duplicate input"
	default:
		return "session: input rejected"
	}
}

// ResumeOutcomeKind enumerates TryResume's result shapes.
type ResumeOutcomeKind uint8

const (
	ResumeInvalidToken ResumeOutcomeKind = iota
	ResumeExpiredToken
	ResumeFutureDatedToken
	ResumeSessionMismatch
	ResumeClientIDInUse
	ResumeStateNotFound
	ResumeResumed
)

// ResumeOutcome is TryResume's result.
type ResumeOutcome struct {
	Kind             ResumeOutcomeKind
	ClientID         uint64 // set only when Kind == ResumeResumed
	BaselineStateID  uint64 // set only when Kind == ResumeResumed
}

// RemoteSession is the single shared state object for one terminal
// session, accessed by every connection handler under a caller-supplied
// lock (spec §5: the session itself is lock-free; the server wraps it in
// a sync.RWMutex and follows lock->extract->unlock->I/O).
type RemoteSession struct {
	Frame        *frame.Store
	Styles       *style.Table
	Lease        *lease.Manager
	Rtt          *rtt.Estimator
	History      *history.History
	SessionID    uint64

	clients        map[uint64]*clientRenderState
	inputReceivers map[uint64]*inputpipe.InputReceiver

	clk             clock.Clock
	tokenExpiryMs   uint64
	maxClockSkewMs  uint64
	tokenSecret     [32]byte
}

// New constructs a RemoteSession sized cols x rows, with a freshly
// generated random token-signing secret.
func New(cols, rows int) *RemoteSession {
	return newWithClock(cols, rows, clock.System{})
}

// NewWithClock is New, but injects clk (for deterministic tests of
// lease/rtt timing behavior that flows through this session).
func NewWithClock(cols, rows int, clk clock.Clock) *RemoteSession {
	return newWithClock(cols, rows, clk)
}

func newWithClock(cols, rows int, clk clock.Clock) *RemoteSession {
	var secret [32]byte
	_, _ = rand.Read(secret[:])

	return &RemoteSession{
		Frame:          frame.NewStore(cols, rows),
		Styles:         style.New(),
		Lease:          lease.New(lease.LastWriterWins, defaultLeaseDuration, clk),
		Rtt:            rtt.New(),
		History:        history.New(defaultHistorySize, clk),
		SessionID:      nextSessionID(),
		clients:        make(map[uint64]*clientRenderState),
		inputReceivers: make(map[uint64]*inputpipe.InputReceiver),
		clk:            clk,
		tokenExpiryMs:  defaultTokenExpiryMs,
		maxClockSkewMs: defaultMaxClockSkewMs,
		tokenSecret:    secret,
	}
}

// WithSessionID overrides the auto-assigned session id (used by callers
// restoring a named session across a server restart).
func (s *RemoteSession) WithSessionID(id uint64) *RemoteSession {
	s.SessionID = id
	return s
}

// AddClient registers a new client with its own render window and input
// receiver.
func (s *RemoteSession) AddClient(clientID uint64, windowSize uint32) {
	s.clients[clientID] = newClientRenderState(windowSize)
	s.inputReceivers[clientID] = inputpipe.NewInputReceiver()
}

// RemoveClient detaches a client, revoking any lease it holds.
func (s *RemoteSession) RemoveClient(clientID uint64) {
	delete(s.clients, clientID)
	delete(s.inputReceivers, clientID)
	s.Lease.RemoveClient(clientID)
}

// ClientCount returns the number of attached clients.
func (s *RemoteSession) ClientCount() int { return len(s.clients) }

// HasClient reports whether clientID is currently attached.
func (s *RemoteSession) HasClient(clientID uint64) bool {
	_, ok := s.clients[clientID]
	return ok
}

// ProcessInput sequences one input event from clientID, refusing it if
// the client isn't the current controller, is unknown, or the event is a
// duplicate/out-of-order arrival.
func (s *RemoteSession) ProcessInput(clientID uint64, input wire.InputEvent) (wire.InputAck, error) {
	if !s.Lease.IsController(clientID) {
		return wire.InputAck{}, InputError{Kind: ErrNotController}
	}

	receiver, ok := s.inputReceivers[clientID]
	if !ok {
		return wire.InputAck{}, InputError{Kind: ErrClientNotFound}
	}

	switch res := receiver.ProcessInput(input); res.Kind {
	case inputpipe.Processed:
		return receiver.GenerateAck(), nil
	case inputpipe.Duplicate:
		return wire.InputAck{}, InputError{Kind: ErrDuplicate}
	default:
		return wire.InputAck{}, InputError{Kind: ErrOutOfOrder, Expected: res.Expected, Received: res.Received}
	}
}

// ProcessStateAck folds a client's StateAck into its render window and
// the shared RTT estimator, and advances its baseline once the server
// learns the client actually applied the pending frame.
func (s *RemoteSession) ProcessStateAck(clientID uint64, ack wire.StateAck) {
	cs, ok := s.clients[clientID]
	if !ok {
		return
	}
	cs.processStateAck(ack)

	if ack.SrttMs > 0 {
		s.Rtt.RecordSample(ack.SrttMs)
	}

	if ack.LastAppliedStateID >= cs.pendingStateIDVal() {
		if pending, has := cs.pendingFrameVal(); has {
			cs.advanceBaseline(ack.LastAppliedStateID, pending)
		}
	}
}

// GetRenderUpdate returns the next render update clientID should receive,
// or (RenderUpdate{}, false) if clientID is unknown or nothing is due (the
// current state id was already sent). An exhausted render window yields a
// snapshot, not (RenderUpdate{}, false).
func (s *RemoteSession) GetRenderUpdate(clientID uint64) (RenderUpdate, bool) {
	cs, ok := s.clients[clientID]
	if !ok {
		return RenderUpdate{}, false
	}

	currentFrame := s.Frame.CurrentFrame()
	currentStateID := s.Frame.CurrentStateID()

	watermark := s.deliveredInputWatermark()

	if cs.shouldSendSnapshot() {
		snap := cs.prepareSnapshot(currentFrame, currentStateID, s.Styles)
		snap.DeliveredInputWatermark = watermark
		return RenderUpdate{Kind: UpdateSnapshot, Snapshot: snap}, true
	}
	if cs.canSend() {
		d, ok := cs.prepareDelta(currentFrame, currentStateID, s.Styles)
		if !ok {
			return RenderUpdate{}, false
		}
		d.DeliveredInputWatermark = watermark
		return RenderUpdate{Kind: UpdateDelta, Delta: d}, true
	}
	return RenderUpdate{}, false
}

// deliveredInputWatermark is the current controller's last processed
// input seq, per spec §9's SHOULD: populating this from the low-level
// delta engine's always-zero value is the session layer's job, so that
// client-side prediction reconciliation works across deltas and not only
// on full snapshots.
func (s *RemoteSession) deliveredInputWatermark() uint64 {
	lease, ok := s.Lease.GetCurrentLease()
	if !ok {
		return 0
	}
	receiver, ok := s.inputReceivers[lease.OwnerClientID]
	if !ok {
		return 0
	}
	return receiver.LastAckedSeq()
}

// ForceClientSnapshot discards clientID's baseline so its next render
// update is a full snapshot (used after a detected desync).
func (s *RemoteSession) ForceClientSnapshot(clientID uint64) {
	if cs, ok := s.clients[clientID]; ok {
		cs.resetBaseline()
	}
}

// RecordStateSnapshot pushes the current frame into the resumable
// history ring, keyed by its current state id.
func (s *RemoteSession) RecordStateSnapshot() {
	stateID := s.Frame.CurrentStateID()
	s.History.Push(stateID, s.Frame.CurrentFrame())
}

// GenerateResumeToken mints a signed resume token for clientID reflecting
// its current render baseline and input ack watermark.
func (s *RemoteSession) GenerateResumeToken(clientID uint64) []byte {
	var lastAppliedStateID uint64
	if cs, ok := s.clients[clientID]; ok {
		lastAppliedStateID = cs.baselineStateID()
	}

	var lastAckedInputSeq uint64
	if r, ok := s.inputReceivers[clientID]; ok {
		lastAckedInputSeq = r.LastAckedSeq()
	}

	tok := resume.New(s.SessionID, clientID, lastAppliedStateID, lastAckedInputSeq, uint64(s.clk.Now().UnixMilli()))
	return tok.EncodeSigned(s.tokenSecret[:])
}

// TryResume attempts to restore a disconnected client from tokenBytes.
func (s *RemoteSession) TryResume(tokenBytes []byte, windowSize uint32) ResumeOutcome {
	tok, ok := resume.DecodeSigned(tokenBytes, s.tokenSecret[:])
	if !ok {
		return ResumeOutcome{Kind: ResumeInvalidToken}
	}

	nowMs := uint64(s.clk.Now().UnixMilli())
	if !tok.IsValidTimestamp(s.tokenExpiryMs, nowMs, s.maxClockSkewMs) {
		if tok.IssuedAtMs > nowMs+s.maxClockSkewMs {
			return ResumeOutcome{Kind: ResumeFutureDatedToken}
		}
		return ResumeOutcome{Kind: ResumeExpiredToken}
	}

	if tok.SessionID != s.SessionID {
		return ResumeOutcome{Kind: ResumeSessionMismatch}
	}

	if s.HasClient(tok.ClientID) {
		return ResumeOutcome{Kind: ResumeClientIDInUse}
	}

	if !s.History.CanResumeFrom(tok.LastAppliedStateID) {
		return ResumeOutcome{Kind: ResumeStateNotFound}
	}

	s.clients[tok.ClientID] = newClientRenderState(windowSize)
	s.inputReceivers[tok.ClientID] = inputpipe.NewInputReceiverFromSeq(tok.LastAckedInputSeq)

	if baselineFrame, found := s.History.Get(tok.LastAppliedStateID); found {
		s.clients[tok.ClientID].advanceBaseline(tok.LastAppliedStateID, baselineFrame)
	}

	return ResumeOutcome{Kind: ResumeResumed, ClientID: tok.ClientID, BaselineStateID: tok.LastAppliedStateID}
}

// SetTokenExpiry overrides the default resume-token expiry window.
func (s *RemoteSession) SetTokenExpiry(expiryMs uint64) { s.tokenExpiryMs = expiryMs }

// SetMaxClockSkew overrides the default resume-token clock-skew
// tolerance.
func (s *RemoteSession) SetMaxClockSkew(skewMs uint64) { s.maxClockSkewMs = skewMs }

// CanResumeFromState reports whether stateID is still in the resumable
// history window.
func (s *RemoteSession) CanResumeFromState(stateID uint64) bool {
	return s.History.CanResumeFrom(stateID)
}

// TokenSecret exposes the session's token-signing secret, for tests that
// need to construct tokens independently of GenerateResumeToken.
func (s *RemoteSession) TokenSecret() [32]byte { return s.tokenSecret }
