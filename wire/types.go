// Package wire defines the ZRP v1.0 envelope and message types (spec §6)
// and their hand-rolled binary codec (spec §4.7), in the style of this
// codebase's teacher protocol package: one encode/decode function pair per
// message, built on encoding/binary and bytes.Buffer rather than a
// generated serializer.
package wire

import "github.com/zrp-project/zrp/style"

// ProtocolVersion is ZRP's negotiated version; this implementation is 1.0.
type ProtocolVersion struct {
	Major, Minor uint16
}

var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// DefaultMaxDatagramBytes and DefaultRenderWindow are the spec's stated
// defaults for handshake negotiation.
const (
	DefaultMaxDatagramBytes = 1200
	DefaultRenderWindow     = 4
	MaxFrameSize            = 1 << 20 // 1 MB, spec §4.7
)

// Capabilities negotiated at handshake time.
type Capabilities struct {
	SupportsDatagrams       bool
	MaxDatagramBytes        uint32
	SupportsStyleDictionary bool
	SupportsStyledUnderlines bool
	SupportsPrediction      bool
	SupportsImages          bool
	SupportsClipboard       bool
	SupportsHyperlinks      bool
}

// ControllerPolicy governs whether a contending lease request takes over
// without an explicit force flag.
type ControllerPolicy uint8

const (
	PolicyLastWriterWins ControllerPolicy = iota
	PolicyExplicitOnly
)

// AttachMode distinguishes a fresh attach from a resume attempt.
type AttachMode uint8

const (
	AttachFresh AttachMode = iota
	AttachResume
)

// ClientRole is Controller or Viewer.
type ClientRole uint8

const (
	RoleController ClientRole = iota
	RoleViewer
)

// CursorShape mirrors frame.CursorShape on the wire (Block/Beam/Underline
// per spec §6; frame package additionally has Bar, used identically to
// Beam on the wire).
type CursorShape uint8

const (
	WireShapeBlock CursorShape = iota
	WireShapeBeam
	WireShapeUnderline
)

// SessionState is reported in ServerHello.
type SessionState uint8

const (
	SessionRunning SessionState = iota
	SessionCreated
	SessionResurrected
)

// SpecialKey enumerates non-printable keys a client may send.
type SpecialKey uint8

const (
	KeyNone SpecialKey = iota
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeyArrowUp
	KeyArrowDown
	KeyArrowRight
	KeyArrowLeft
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// KeyModifiers is a bitmask: 0x1 Shift, 0x2 Alt, 0x4 Ctrl, 0x8 Super.
type KeyModifiers uint8

const (
	ModShift KeyModifiers = 1 << iota
	ModAlt
	ModCtrl
	ModSuper
)

// KeyEvent carries either a printable rune or a SpecialKey, never both.
type KeyEvent struct {
	Modifiers KeyModifiers
	Special   SpecialKey // KeyNone if Rune is the payload
	Rune      rune
}

// MouseEvent is reserved; not required for v1 correctness (spec §4.9).
type MouseEvent struct {
	Row, Col int32
	Button   uint8
	Pressed  bool
}

// InputPayloadKind tags InputEvent's oneof payload.
type InputPayloadKind uint8

const (
	InputTextUTF8 InputPayloadKind = iota
	InputRawBytes
	InputKey
	InputMouse
)

// InputEvent is a client->server keystroke/paste/mouse event.
type InputEvent struct {
	InputSeq     uint64
	ClientTimeMs uint64
	PayloadKind  InputPayloadKind
	Text         string // InputTextUTF8
	Raw          []byte // InputRawBytes
	Key          KeyEvent
	Mouse        MouseEvent
}

// InputAck acknowledges input and optionally carries an RTT sample.
// RTTSampleSeq == 0 means "no new RTT sample".
type InputAck struct {
	AckedSeq           uint64
	RTTSampleSeq       uint64
	EchoedClientTimeMs uint64
}

// ControllerLease mirrors lease.Manager's externally observable state.
type ControllerLease struct {
	LeaseID       uint64
	OwnerClientID uint64
	Policy        ControllerPolicy
	HasSize       bool
	Cols, Rows    uint32
	RemainingMs   uint32
	DurationMs    uint32
}

// StyleDef pairs an interned id with its Style, for shipping newly
// introduced styles in a snapshot or delta.
type StyleDef struct {
	ID    uint16
	Style style.Style
}

// RowData is one densely-encoded row in a ScreenSnapshot.
type RowData struct {
	Row        uint16
	Codepoints []rune
	Widths     []uint8
	StyleIDs   []uint16
}

// WireCursor is the on-wire cursor representation.
type WireCursor struct {
	Row, Col int32
	Visible  bool
	Blink    bool
	Shape    CursorShape
}

// ScreenSnapshot carries the full screen state densely.
type ScreenSnapshot struct {
	StateID                 uint64
	Cols, Rows               uint32
	StyleTableReset          bool
	Styles                   []StyleDef
	RowData                  []RowData
	Cursor                   WireCursor
	DeliveredInputWatermark  uint64
}

// CellRun is a maximal contiguous changed span within one row.
type CellRun struct {
	ColStart   uint16
	Codepoints []rune
	Widths     []uint8
	StyleIDs   []uint16
}

// RowPatch is the set of CellRuns for one changed row.
type RowPatch struct {
	Row  uint16
	Runs []CellRun
}

// ScreenDelta carries a sparse patch relative to BaseStateID.
type ScreenDelta struct {
	BaseStateID             uint64
	StateID                 uint64
	StylesAdded             []StyleDef
	RowPatches              []RowPatch
	HasCursor               bool
	Cursor                  WireCursor
	DeliveredInputWatermark uint64
}

// StateAck is the client's periodic acknowledgement of applied state.
type StateAck struct {
	LastAppliedStateID  uint64
	LastReceivedStateID uint64
	ClientTimeMs        uint64
	EstimatedLossPPM    uint32
	SrttMs              uint32
}

// ProtocolErrorCode enumerates fatal/non-fatal error classes (spec §7).
type ProtocolErrorCode uint8

const (
	ErrUnauthorized ProtocolErrorCode = iota
	ErrBadVersion
	ErrBadMessage
	ErrFlowControl
	ErrSessionNotFound
	ErrLeaseDenied
	ErrInternal
)

// ProtocolError is sent for both fatal and non-fatal protocol violations.
type ProtocolError struct {
	Code    ProtocolErrorCode
	Fatal   bool
	Message string
}

// RequestSnapshotReason explains why a client is asking for a fresh
// snapshot instead of waiting for the next delta.
type RequestSnapshotReason uint8

const (
	ReasonBaseMismatch RequestSnapshotReason = iota
	ReasonPeriodic
	ReasonDecodeError
	ReasonUserRequest
)

// RequestSnapshot is a client->server request for an immediate snapshot.
type RequestSnapshot struct {
	Reason RequestSnapshotReason
}

// ClientHello is the first message a client sends.
type ClientHello struct {
	Version      ProtocolVersion
	Capabilities Capabilities
	ClientName   string
	BearerToken  []byte
	ResumeToken  []byte
}

// ServerHello is the handshake response.
type ServerHello struct {
	NegotiatedVersion      ProtocolVersion
	NegotiatedCapabilities Capabilities
	ClientID               uint64
	SessionName            string
	SessionState           SessionState
	HasLease               bool
	Lease                  ControllerLease
	ResumeToken            []byte
	SnapshotIntervalMs     uint32
	MaxInflightInputs      uint32
	RenderWindow           uint32
}

// LeaseRequest asks to become (or remain) controller.
type LeaseRequest struct {
	HasSize    bool
	Cols, Rows uint32
	Force      bool
}

// LeaseRelease voluntarily gives up a held lease.
type LeaseRelease struct {
	LeaseID uint64
}

// LeaseKeepAlive renews a held lease.
type LeaseKeepAlive struct {
	LeaseID uint64
}

// LeaseSetSize reports a controller's new terminal size.
type LeaseSetSize struct {
	LeaseID    uint64
	Cols, Rows uint32
}

// LeaseRevoked notifies a client its lease was taken or expired.
type LeaseRevoked struct {
	LeaseID uint64
	Reason  string
}

// Ping/Pong carry an opaque nonce for latency probing outside InputEvent.
type Ping struct{ Nonce uint64 }
type Pong struct{ Nonce uint64 }

// UnsupportedFeatureNotice tells a client a requested capability isn't
// available server-side.
type UnsupportedFeatureNotice struct {
	Feature string
}

// StreamKind tags the StreamEnvelope oneof.
type StreamKind uint8

const (
	StreamClientHello StreamKind = iota
	StreamServerHello
	StreamLeaseRequest
	StreamLeaseGrant
	StreamLeaseDeny
	StreamLeaseRelease
	StreamLeaseSetSize
	StreamLeaseKeepAlive
	StreamLeaseRevoked
	StreamScreenSnapshot
	StreamScreenDelta
	StreamInputEvent
	StreamInputAck
	StreamRequestSnapshot
	StreamPing
	StreamPong
	StreamProtocolError
	StreamUnsupportedFeature
)

// StreamEnvelope is the one-of carried over the reliable control stream.
type StreamEnvelope struct {
	Kind                     StreamKind
	ClientHello              ClientHello
	ServerHello              ServerHello
	LeaseRequest             LeaseRequest
	LeaseGrant               ControllerLease
	LeaseDeny                ProtocolError
	LeaseRelease             LeaseRelease
	LeaseSetSize             LeaseSetSize
	LeaseKeepAlive           LeaseKeepAlive
	LeaseRevoked             LeaseRevoked
	ScreenSnapshot           ScreenSnapshot
	ScreenDelta              ScreenDelta
	InputEvent               InputEvent
	InputAck                 InputAck
	RequestSnapshot          RequestSnapshot
	Ping                     Ping
	Pong                     Pong
	ProtocolError            ProtocolError
	UnsupportedFeatureNotice UnsupportedFeatureNotice
}

// DatagramKind tags the DatagramEnvelope oneof.
type DatagramKind uint8

const (
	DatagramScreenDelta DatagramKind = iota
	DatagramStateAck
	DatagramPing
	DatagramPong
)

// DatagramEnvelope is the one-of carried over unreliable datagrams.
type DatagramEnvelope struct {
	Kind        DatagramKind
	ScreenDelta ScreenDelta
	StateAck    StateAck
	Ping        Ping
	Pong        Pong
}
