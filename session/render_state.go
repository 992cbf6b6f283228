package session

import (
	"github.com/zrp-project/zrp/delta"
	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/style"
	"github.com/zrp-project/zrp/window"
	"github.com/zrp-project/zrp/wire"
)

// clientRenderState tracks one client's render baseline and in-flight
// window, independent of its input sequencing or lease status (spec §3
// "ClientRenderState").
type clientRenderState struct {
	renderWindow *window.Window

	ackedBaseline        frame.Data
	hasBaseline          bool
	ackedBaselineStateID uint64

	pendingFrame    frame.Data
	hasPendingFrame bool
	pendingStateID  uint64
}

func newClientRenderState(windowSize uint32) *clientRenderState {
	return &clientRenderState{renderWindow: window.New(windowSize)}
}

// processStateAck folds a StateAck's cumulative ack into the render
// window.
func (c *clientRenderState) processStateAck(ack wire.StateAck) {
	c.renderWindow.AckReceived(ack.LastAppliedStateID)
}

// advanceBaseline adopts ackedFrame as the new baseline, provided it is
// not older than the current one (or there is no current baseline yet).
func (c *clientRenderState) advanceBaseline(ackedStateID uint64, ackedFrame frame.Data) {
	if !c.hasBaseline || ackedStateID >= c.ackedBaselineStateID {
		c.ackedBaseline = ackedFrame
		c.ackedBaselineStateID = ackedStateID
		c.hasBaseline = true
	}
}

// shouldSendSnapshot reports whether the next render update must be a
// full snapshot rather than a delta.
func (c *clientRenderState) shouldSendSnapshot() bool {
	return !c.hasBaseline || c.renderWindow.ShouldForceSnapshot()
}

// canSend reports whether the render window has room for another delta.
func (c *clientRenderState) canSend() bool { return c.renderWindow.CanSend() }

// prepareDelta computes a delta against the current baseline and marks
// the window accordingly. Returns (ScreenDelta{}, false) if there is no
// baseline yet or the window is exhausted.
func (c *clientRenderState) prepareDelta(currentFrame frame.Data, currentStateID uint64, styles *style.Table) (wire.ScreenDelta, bool) {
	if !c.hasBaseline || !c.renderWindow.CanSend() {
		return wire.ScreenDelta{}, false
	}

	d := delta.ComputeDelta(c.ackedBaseline, currentFrame, styles, c.ackedBaselineStateID, currentStateID, nil)

	if err := c.renderWindow.MarkSent(currentStateID); err != nil {
		return wire.ScreenDelta{}, false
	}
	c.pendingFrame = currentFrame
	c.hasPendingFrame = true
	c.pendingStateID = currentStateID

	return d, true
}

// prepareSnapshot computes a full snapshot and re-baselines the client on
// it immediately (a snapshot is self-confirming: it doesn't wait for an
// ack before becoming the new baseline).
func (c *clientRenderState) prepareSnapshot(currentFrame frame.Data, currentStateID uint64, styles *style.Table) wire.ScreenSnapshot {
	snap := delta.ComputeSnapshot(currentFrame, styles, currentStateID)

	c.renderWindow.ResetForSnapshot(currentStateID)
	c.ackedBaseline = currentFrame
	c.ackedBaselineStateID = currentStateID
	c.hasBaseline = true
	c.pendingFrame = currentFrame
	c.hasPendingFrame = true
	c.pendingStateID = currentStateID

	return snap
}

func (c *clientRenderState) pendingFrameVal() (frame.Data, bool) {
	return c.pendingFrame, c.hasPendingFrame
}

func (c *clientRenderState) pendingStateIDVal() uint64 { return c.pendingStateID }

func (c *clientRenderState) baselineStateID() uint64 { return c.ackedBaselineStateID }

func (c *clientRenderState) hasBaselineVal() bool { return c.hasBaseline }

// resetBaseline discards the current baseline, forcing the next render
// update to be a snapshot.
func (c *clientRenderState) resetBaseline() {
	c.hasBaseline = false
	c.ackedBaselineStateID = 0
}
