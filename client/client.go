package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zrp-project/zrp/clock"
	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/inputpipe"
	"github.com/zrp-project/zrp/predict"
	"github.com/zrp-project/zrp/rtt"
	"github.com/zrp-project/zrp/transport"
	"github.com/zrp-project/zrp/wire"
)

// Config collects client-level tunables (spec §6 CLI section).
type Config struct {
	BearerToken        []byte
	ResumeToken        []byte
	ClientName         string
	MaxInflightInputs  int
	InsecureSkipVerify bool
	Logger             *log.Logger
	Clock              clock.Clock
}

// DefaultConfig fills in the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		ClientName:         "zrp-client",
		MaxInflightInputs:  128,
		InsecureSkipVerify: true,
		Logger:             log.Default(),
		Clock:              clock.System{},
	}
}

// Client is one attached ZRP session: the confirmed-frame applier, the
// prediction overlay, and the input/RTT pipelines layered over one control
// stream and its companion datagram channel.
type Client struct {
	cfg    Config
	conn   transport.Conn
	stream transport.Stream

	applier *Applier
	predict *predict.Engine
	sender  *inputpipe.InputSender
	rtt     *rtt.Estimator

	clientID    uint64
	hello       wire.ServerHello
	isController bool
	leaseID      uint64
}

// Dial connects to addr, performs the ZRP handshake, and returns an
// attached Client. cfg's zero value is filled in from DefaultConfig.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	if cfg.MaxInflightInputs == 0 {
		cfg.MaxInflightInputs = 128
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}

	conn, err := transport.Dial(ctx, addr, cfg.InsecureSkipVerify)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	stream, err := conn.OpenStream(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: open control stream: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		conn:    conn,
		stream:  stream,
		applier: NewApplier(),
		predict: predict.New(cfg.Clock),
		sender:  inputpipe.NewInputSender(cfg.MaxInflightInputs, cfg.Clock),
		rtt:     rtt.New(),
	}

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	hello := wire.ClientHello{
		Version: wire.CurrentVersion,
		Capabilities: wire.Capabilities{
			SupportsDatagrams:       true,
			MaxDatagramBytes:        wire.DefaultMaxDatagramBytes,
			SupportsStyleDictionary: true,
			SupportsStyledUnderlines: true,
			SupportsPrediction:      true,
		},
		ClientName:  c.cfg.ClientName,
		BearerToken: c.cfg.BearerToken,
		ResumeToken: c.cfg.ResumeToken,
	}
	payload, err := wire.EncodeStreamEnvelope(wire.StreamEnvelope{Kind: wire.StreamClientHello, ClientHello: hello})
	if err != nil {
		return fmt.Errorf("client: encode ClientHello: %w", err)
	}
	if err := wire.WriteFrame(c.stream, payload); err != nil {
		return fmt.Errorf("client: send ClientHello: %w", err)
	}

	respPayload, err := wire.ReadFrame(c.stream)
	if err != nil {
		return fmt.Errorf("client: read ServerHello: %w", err)
	}
	env, err := wire.DecodeStreamEnvelope(respPayload)
	if err != nil {
		return fmt.Errorf("client: decode ServerHello: %w", err)
	}
	if env.Kind == wire.StreamProtocolError {
		return fmt.Errorf("client: server rejected handshake: %s", env.ProtocolError.Message)
	}
	if env.Kind != wire.StreamServerHello {
		return fmt.Errorf("client: expected ServerHello, got kind %d", env.Kind)
	}

	c.hello = env.ServerHello
	c.clientID = env.ServerHello.ClientID
	if env.ServerHello.HasLease {
		c.leaseID = env.ServerHello.Lease.LeaseID
		c.isController = env.ServerHello.Lease.OwnerClientID == c.clientID
	}
	return nil
}

// ClientID returns the id the server assigned (or restored) this client.
func (c *Client) ClientID() uint64 { return c.clientID }

// ResumeToken returns the fresh resume token issued at handshake, for the
// caller to persist (spec §6 CLI "--token-file").
func (c *Client) ResumeToken() []byte { return c.hello.ResumeToken }

// IsController reports whether this client currently holds the controller
// lease.
func (c *Client) IsController() bool { return c.isController }

// Applier exposes the confirmed-frame applier for render code.
func (c *Client) Applier() *Applier { return c.applier }

// Predict exposes the prediction engine for render code building the
// overlay frame.
func (c *Client) Predict() *predict.Engine { return c.predict }

// Close tears down the underlying connection.
func (c *Client) Close() error {
	c.stream.Close()
	return c.conn.Close()
}

// EventHandler receives parsed stream/datagram events during Run, so the
// caller (typically render code) can repaint or react to lease changes
// without Run exposing its internal dispatch loop.
type EventHandler interface {
	OnFrameUpdated()
	OnLeaseChanged(hasLease bool, lease wire.ControllerLease)
	OnProtocolError(wire.ProtocolError)
}

// Run drives the client's background read loop until ctx is cancelled or
// the connection closes: stream messages are dispatched synchronously,
// datagrams are drained concurrently, and a periodic StateAck is sent at
// ~2 Hz.
func (c *Client) Run(ctx context.Context, h EventHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	datagramErrCh := make(chan error, 1)
	go c.drainDatagrams(ctx, h, datagramErrCh)

	frameCh := make(chan []byte, 8)
	readErrCh := make(chan error, 1)
	go func() {
		for {
			payload, err := wire.ReadFrame(c.stream)
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

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrCh:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case err := <-datagramErrCh:
			return err
		case payload := <-frameCh:
			if err := c.dispatchStream(payload, h); err != nil {
				return err
			}
		case <-ticker.C:
			c.sendStateAck()
		}
	}
}

func (c *Client) dispatchStream(payload []byte, h EventHandler) error {
	env, err := wire.DecodeStreamEnvelope(payload)
	if err != nil {
		return fmt.Errorf("client: decode stream envelope: %w", err)
	}
	switch env.Kind {
	case wire.StreamScreenSnapshot:
		watermark := c.applier.ApplySnapshot(env.ScreenSnapshot)
		c.reconcile(watermark)
		h.OnFrameUpdated()
	case wire.StreamScreenDelta:
		watermark, err := c.applier.ApplyDelta(env.ScreenDelta)
		if err != nil {
			c.requestSnapshot(wire.ReasonBaseMismatch)
			return nil
		}
		c.reconcile(watermark)
		h.OnFrameUpdated()
	case wire.StreamLeaseGrant:
		c.leaseID = env.LeaseGrant.LeaseID
		c.isController = env.LeaseGrant.OwnerClientID == c.clientID
		h.OnLeaseChanged(true, env.LeaseGrant)
	case wire.StreamLeaseDeny:
		h.OnProtocolError(env.LeaseDeny)
	case wire.StreamLeaseRevoked:
		if env.LeaseRevoked.LeaseID == c.leaseID {
			c.isController = false
			c.predict.Disable()
		}
		h.OnLeaseChanged(false, wire.ControllerLease{LeaseID: env.LeaseRevoked.LeaseID})
	case wire.StreamInputAck:
		result := c.sender.ProcessAck(env.InputAck)
		if result.RttSample != nil {
			c.rtt.RecordSample(result.RttSample.RttMs)
		}
	case wire.StreamPong:
		// Reserved for future out-of-band latency probes; input-carried
		// RTT samples (above) are this client's primary RTT source.
	case wire.StreamProtocolError:
		h.OnProtocolError(env.ProtocolError)
		if env.ProtocolError.Fatal {
			return fmt.Errorf("client: fatal protocol error: %s", env.ProtocolError.Message)
		}
	case wire.StreamUnsupportedFeature:
		c.cfg.Logger.Printf("zrp: server doesn't support feature %q", env.UnsupportedFeatureNotice.Feature)
	}
	return nil
}

func (c *Client) reconcile(watermark uint64) {
	result := c.predict.Reconcile(watermark, c.applier.CurrentFrame().Cur)
	if result == predict.Misprediction {
		c.cfg.Logger.Printf("zrp: misprediction detected, predictions cleared (count=%d)", c.predict.MispredictionCount())
	}
}

func (c *Client) drainDatagrams(ctx context.Context, h EventHandler, errCh chan<- error) {
	for {
		payload, err := c.conn.ReceiveDatagram(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				errCh <- err
			}
			return
		}
		env, err := wire.DecodeDatagramEnvelope(payload)
		if err != nil {
			continue
		}
		switch env.Kind {
		case wire.DatagramScreenDelta:
			watermark, err := c.applier.ApplyDelta(env.ScreenDelta)
			if err != nil {
				if errors.Is(err, ErrBaseMismatch) {
					c.requestSnapshot(wire.ReasonBaseMismatch)
				}
				continue
			}
			c.reconcile(watermark)
			h.OnFrameUpdated()
		case wire.DatagramPong:
			// Reserved; see dispatchStream's StreamPong note.
		}
	}
}

// OverlayFrame returns the currently displayed frame with pending
// predictions layered on top, for rendering.
func (c *Client) OverlayFrame() frame.Data {
	return c.predict.ApplyOverlay(c.applier.CurrentFrame())
}

func (c *Client) requestSnapshot(reason wire.RequestSnapshotReason) {
	c.sendStream(wire.StreamEnvelope{Kind: wire.StreamRequestSnapshot, RequestSnapshot: wire.RequestSnapshot{Reason: reason}})
}

func (c *Client) sendStateAck() {
	srtt, _ := c.rtt.SRTTMs()
	ack := wire.StateAck{
		LastAppliedStateID:  c.applier.StateID(),
		LastReceivedStateID: c.applier.StateID(),
		ClientTimeMs:        uint64(c.cfg.Clock.Now().UnixMilli()),
		SrttMs:              srtt,
	}
	payload, err := wire.EncodeDatagramEnvelope(wire.DatagramEnvelope{Kind: wire.DatagramStateAck, StateAck: ack})
	if err != nil {
		return
	}
	if err := c.conn.SendDatagram(payload); err != nil {
		c.cfg.Logger.Printf("zrp: send state ack: %v", err)
	}
}

func (c *Client) sendStream(env wire.StreamEnvelope) {
	payload, err := wire.EncodeStreamEnvelope(env)
	if err != nil {
		c.cfg.Logger.Printf("zrp: encode envelope kind %d: %v", env.Kind, err)
		return
	}
	if err := wire.WriteFrame(c.stream, payload); err != nil {
		c.cfg.Logger.Printf("zrp: write failed: %v", err)
	}
}

// SendText sends a UTF-8 text input event (e.g. a pasted block) as the
// next sequenced input, recording it with the sender for ack/RTT tracking.
// No prediction is attempted for pasted text.
func (c *Client) SendText(text string) {
	c.sendInput(wire.InputEvent{PayloadKind: wire.InputTextUTF8, Text: text})
}

// SendKey sends a single key event, predicting its effect locally first
// when the key carries a predictable printable rune and this client holds
// the controller lease.
func (c *Client) SendKey(key wire.KeyEvent, cols int) {
	seq := c.sender.NextSeq()
	if c.isController && key.Special == wire.KeyNone && key.Modifiers&wire.ModCtrl == 0 && key.Rune != 0 {
		c.predict.PredictChar(key.Rune, seq, c.applier.CurrentFrame().Cur, cols)
	}
	c.sendInput(wire.InputEvent{PayloadKind: wire.InputKey, Key: key})
}

func (c *Client) sendInput(event wire.InputEvent) {
	if !c.sender.CanSend() {
		c.cfg.Logger.Printf("zrp: inflight input cap reached, dropping keystroke")
		return
	}
	event.InputSeq = c.sender.NextSeq()
	event.ClientTimeMs = uint64(c.cfg.Clock.Now().UnixMilli())
	c.sender.MarkSent(event.InputSeq, event.ClientTimeMs)
	c.sendStream(wire.StreamEnvelope{Kind: wire.StreamInputEvent, InputEvent: event})
}

// RequestControl asks the server for the controller lease.
func (c *Client) RequestControl(cols, rows uint32, force bool) {
	c.sendStream(wire.StreamEnvelope{Kind: wire.StreamLeaseRequest, LeaseRequest: wire.LeaseRequest{HasSize: cols > 0 && rows > 0, Cols: cols, Rows: rows, Force: force}})
}

// ReleaseControl voluntarily gives up the controller lease, if held.
func (c *Client) ReleaseControl() {
	if !c.isController {
		return
	}
	c.sendStream(wire.StreamEnvelope{Kind: wire.StreamLeaseRelease, LeaseRelease: wire.LeaseRelease{LeaseID: c.leaseID}})
}

// KeepAliveLease renews the held lease.
func (c *Client) KeepAliveLease() {
	if !c.isController {
		return
	}
	c.sendStream(wire.StreamEnvelope{Kind: wire.StreamLeaseKeepAlive, LeaseKeepAlive: wire.LeaseKeepAlive{LeaseID: c.leaseID}})
}

// RTTEstimator exposes the RTT/link-state estimator for metrics reporting.
func (c *Client) RTTEstimator() *rtt.Estimator { return c.rtt }
