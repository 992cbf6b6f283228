package client

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zrp-project/zrp/wire"
)

// NullEventHandler implements EventHandler with no-ops, for headless runs
// that have nothing to paint.
type NullEventHandler struct{}

func (NullEventHandler) OnFrameUpdated()                           {}
func (NullEventHandler) OnLeaseChanged(bool, wire.ControllerLease) {}
func (NullEventHandler) OnProtocolError(wire.ProtocolError)        {}

// RunScript feeds path's non-empty lines to c as text input at interval,
// for the headless `--script PATH` CLI mode (spec §6).
func RunScript(ctx context.Context, c *Client, path string, interval time.Duration) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("client: open script %s: %w", path, err)
	}
	defer f.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		c.SendText(line + "\n")
	}
	return scanner.Err()
}

// Metrics is a point-in-time snapshot of a client's link/prediction state,
// written to `--metrics-out PATH` as JSON.
type Metrics struct {
	ClientID            uint64 `json:"client_id"`
	SRTTMs              uint32 `json:"srtt_ms,omitempty"`
	LinkState           string `json:"link_state"`
	RTOMs               uint32 `json:"rto_ms"`
	InflightInputs      int    `json:"inflight_inputs"`
	PendingPredictions  int    `json:"pending_predictions"`
	PredictionEnabled   bool   `json:"prediction_enabled"`
	MispredictionCount  uint32 `json:"misprediction_count"`
	ConfirmedStateID    uint64 `json:"confirmed_state_id"`
	IsController        bool   `json:"is_controller"`
}

// Snapshot captures the client's current metrics.
func (c *Client) Snapshot() Metrics {
	srtt, _ := c.rtt.SRTTMs()
	return Metrics{
		ClientID:           c.clientID,
		SRTTMs:             srtt,
		LinkState:          c.rtt.LinkState().String(),
		RTOMs:              c.rtt.RTOMs(),
		InflightInputs:     c.sender.InflightCount(),
		PendingPredictions: c.predict.PendingCount(),
		PredictionEnabled:  c.predict.IsEnabled(),
		MispredictionCount: c.predict.MispredictionCount(),
		ConfirmedStateID:   c.applier.StateID(),
		IsController:       c.isController,
	}
}
