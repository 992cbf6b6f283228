// Package inputpipe implements the two halves of input sequencing: server
// side dedup/ordering (InputReceiver) and client side inflight tracking
// with RTT sampling (InputSender), per spec §4.5 "Input pipeline".
package inputpipe

import (
	"time"

	"github.com/zrp-project/zrp/clock"
	"github.com/zrp-project/zrp/wire"
)

// ProcessResult is the outcome of InputReceiver.ProcessInput.
type ProcessResult struct {
	Kind     ProcessKind
	Expected uint64 // set only when Kind == OutOfOrder
	Received uint64 // set only when Kind == OutOfOrder
}

type ProcessKind uint8

const (
	Processed ProcessKind = iota
	Duplicate
	OutOfOrder
)

// InputReceiver sequences inbound InputEvents on the server side: strictly
// increasing seq numbers, duplicates and gaps both rejected without
// advancing state.
type InputReceiver struct {
	lastProcessedSeq uint64
	pendingRTTSeq    uint64
	pendingRTTTime   uint64
	havePendingRTT   bool
}

// NewInputReceiver constructs a fresh InputReceiver.
func NewInputReceiver() *InputReceiver {
	return &InputReceiver{}
}

// NewInputReceiverFromSeq constructs an InputReceiver resuming from a
// previously acked sequence number (used when restoring a client from a
// resume token), so the next accepted input must be lastAckedSeq+1.
func NewInputReceiverFromSeq(lastAckedSeq uint64) *InputReceiver {
	return &InputReceiver{lastProcessedSeq: lastAckedSeq}
}

// ProcessInput validates and (if in-order) applies input's sequence
// number.
func (r *InputReceiver) ProcessInput(input wire.InputEvent) ProcessResult {
	seq := input.InputSeq

	if seq == 0 {
		return ProcessResult{Kind: OutOfOrder, Expected: r.lastProcessedSeq + 1, Received: seq}
	}
	if seq <= r.lastProcessedSeq {
		return ProcessResult{Kind: Duplicate}
	}

	expected := r.lastProcessedSeq + 1
	if seq != expected {
		return ProcessResult{Kind: OutOfOrder, Expected: expected, Received: seq}
	}

	r.lastProcessedSeq = seq
	r.pendingRTTSeq = seq
	r.pendingRTTTime = input.ClientTimeMs
	r.havePendingRTT = true

	return ProcessResult{Kind: Processed}
}

// GenerateAck builds the ack to return for the most recently processed
// input, consuming any pending RTT sample.
func (r *InputReceiver) GenerateAck() wire.InputAck {
	rttSeq, echoed := uint64(0), uint64(0)
	if r.havePendingRTT {
		rttSeq, echoed = r.pendingRTTSeq, r.pendingRTTTime
		r.havePendingRTT = false
	}
	return wire.InputAck{
		AckedSeq:           r.lastProcessedSeq,
		RTTSampleSeq:       rttSeq,
		EchoedClientTimeMs: echoed,
	}
}

// LastAckedSeq returns the highest sequence number successfully applied.
func (r *InputReceiver) LastAckedSeq() uint64 { return r.lastProcessedSeq }

// InflightInput is one input awaiting acknowledgement on the client side.
type InflightInput struct {
	Seq          uint64
	ClientTimeMs uint64
	SentAt       time.Time
}

// RttSample is an RTT measurement recovered from an ack that echoes a
// tracked inflight input.
type RttSample struct {
	RttMs uint32
	Seq   uint64
}

// AckOutcome distinguishes a usable ack from a stale one that should be
// ignored (e.g. received before any input was sent).
type AckOutcome uint8

const (
	AckOk AckOutcome = iota
	AckStale
)

// AckResult is the outcome of InputSender.ProcessAck.
type AckResult struct {
	Outcome  AckOutcome
	RttSample *RttSample // non-nil only when Outcome == AckOk and a sample was recovered
}

// InputSender tracks inflight client input awaiting acknowledgement,
// bounded by maxInflight (spec §4.5's backpressure cap on unacked input).
type InputSender struct {
	clk         clock.Clock
	nextSeq     uint64
	inflight    []InflightInput
	maxInflight int
}

// NewInputSender constructs an InputSender. clk may be nil to use the
// real wall clock.
func NewInputSender(maxInflight int, clk clock.Clock) *InputSender {
	if clk == nil {
		clk = clock.System{}
	}
	return &InputSender{clk: clk, nextSeq: 1, maxInflight: maxInflight}
}

// CanSend reports whether another input may be sent without exceeding the
// inflight cap.
func (s *InputSender) CanSend() bool { return len(s.inflight) < s.maxInflight }

// NextSeq returns the sequence number the next MarkSent call will use.
func (s *InputSender) NextSeq() uint64 { return s.nextSeq }

// MarkSent records that an input with the given seq/clientTime has just
// been sent. No-op if seq doesn't match the expected next sequence
// number (guards against double-marking).
func (s *InputSender) MarkSent(seq uint64, clientTimeMs uint64) {
	if seq != s.nextSeq {
		return
	}
	s.inflight = append(s.inflight, InflightInput{Seq: seq, ClientTimeMs: clientTimeMs, SentAt: s.clk.Now()})
	s.nextSeq++
}

// ProcessAck retires all inflight inputs covered by ack's cumulative
// acked_seq, recovering an RTT sample if the ack echoes a tracked input's
// seq/client_time.
func (s *InputSender) ProcessAck(ack wire.InputAck) AckResult {
	if ack.AckedSeq == 0 {
		return AckResult{Outcome: AckStale}
	}

	var sample *RttSample
	i := 0
	for i < len(s.inflight) && s.inflight[i].Seq <= ack.AckedSeq {
		in := s.inflight[i]
		if in.Seq == ack.RTTSampleSeq && in.ClientTimeMs == ack.EchoedClientTimeMs {
			elapsed := s.clk.Now().Sub(in.SentAt)
			sample = &RttSample{RttMs: uint32(elapsed.Milliseconds()), Seq: in.Seq}
		}
		i++
	}
	s.inflight = s.inflight[i:]

	return AckResult{Outcome: AckOk, RttSample: sample}
}

// InflightCount returns the number of unacked inputs currently tracked.
func (s *InputSender) InflightCount() int { return len(s.inflight) }
