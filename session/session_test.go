package session

import (
	"testing"
	"time"

	"github.com/zrp-project/zrp/clock"
	"github.com/zrp-project/zrp/frame"
	"github.com/zrp-project/zrp/lease"
	"github.com/zrp-project/zrp/wire"
)

func TestFirstRenderUpdateIsAlwaysSnapshot(t *testing.T) {
	s := New(80, 24)
	s.AddClient(1, 4)

	upd, ok := s.GetRenderUpdate(1)
	if !ok || upd.Kind != UpdateSnapshot {
		t.Fatalf("expected the first render update to be a snapshot, got %+v ok=%v", upd, ok)
	}
	if upd.Snapshot.Rows != 24 || upd.Snapshot.Cols != 80 {
		t.Fatalf("expected snapshot sized 80x24, got %dx%d", upd.Snapshot.Cols, upd.Snapshot.Rows)
	}
}

func TestDeltaAfterAckedSnapshot(t *testing.T) {
	s := New(80, 24)
	s.AddClient(1, 4)
	s.GetRenderUpdate(1) // initial snapshot at state_id=0

	s.Frame.SetCell(0, 0, frame.Cell{Codepoint: 'a', Width: 1})
	s.Frame.AdvanceState()

	upd, ok := s.GetRenderUpdate(1)
	if !ok || upd.Kind != UpdateDelta {
		t.Fatalf("expected a delta once a baseline exists, got %+v ok=%v", upd, ok)
	}
	if upd.Delta.BaseStateID != 0 || upd.Delta.StateID != 1 {
		t.Fatalf("expected delta base=0 state=1, got base=%d state=%d", upd.Delta.BaseStateID, upd.Delta.StateID)
	}
}

func TestWindowExhaustionForcesSnapshot(t *testing.T) {
	s := New(80, 24)
	s.AddClient(1, 2) // window size 2
	s.GetRenderUpdate(1) // snapshot at state 0, self-baselines

	// Two deltas sent without any ack exhausts a window of size 2.
	s.Frame.AdvanceState()
	upd1, ok := s.GetRenderUpdate(1)
	if !ok || upd1.Kind != UpdateDelta {
		t.Fatalf("expected first delta, got %+v ok=%v", upd1, ok)
	}

	s.Frame.AdvanceState()
	upd2, ok := s.GetRenderUpdate(1)
	if !ok || upd2.Kind != UpdateDelta {
		t.Fatalf("expected second delta, got %+v ok=%v", upd2, ok)
	}

	s.Frame.AdvanceState()
	upd3, ok := s.GetRenderUpdate(1)
	if !ok || upd3.Kind != UpdateSnapshot {
		t.Fatalf("expected window exhaustion to force a snapshot, got %+v ok=%v", upd3, ok)
	}
	if upd3.Snapshot.StateID != 3 {
		t.Fatalf("expected forced snapshot at state 3, got %d", upd3.Snapshot.StateID)
	}
}

func TestStateAckAdvancesBaselineOnlyWhenPendingReached(t *testing.T) {
	s := New(80, 24)
	s.AddClient(1, 4)
	s.GetRenderUpdate(1) // snapshot state 0

	s.Frame.AdvanceState()
	s.GetRenderUpdate(1) // delta base=0 state=1, pending=1

	s.Frame.AdvanceState()
	s.GetRenderUpdate(1) // delta base=0 state=2, pending=2

	s.ProcessStateAck(1, wire.StateAck{LastAppliedStateID: 1})
	if s.clients[1].baselineStateID() != 0 {
		t.Fatalf("expected baseline to stay at 0 until ack reaches the pending state id")
	}

	s.ProcessStateAck(1, wire.StateAck{LastAppliedStateID: 2})
	if s.clients[1].baselineStateID() != 2 {
		t.Fatalf("expected baseline to advance to 2 once ack reaches pending state id")
	}
}

func TestProcessInputRejectsNonController(t *testing.T) {
	s := New(80, 24)
	s.AddClient(1, 4)

	_, err := s.ProcessInput(1, wire.InputEvent{InputSeq: 1})
	ierr, ok := err.(InputError)
	if !ok || ierr.Kind != ErrNotController {
		t.Fatalf("expected NotController error, got %v", err)
	}
}

func TestProcessInputSequencingAndAck(t *testing.T) {
	s := New(80, 24)
	s.AddClient(1, 4)
	s.Lease.RequestControl(1, lease.DisplaySize{}, false, false)

	ack, err := s.ProcessInput(1, wire.InputEvent{InputSeq: 1, ClientTimeMs: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.AckedSeq != 1 || ack.RTTSampleSeq != 1 || ack.EchoedClientTimeMs != 1000 {
		t.Fatalf("expected ack echoing the first input, got %+v", ack)
	}

	_, err = s.ProcessInput(1, wire.InputEvent{InputSeq: 1, ClientTimeMs: 2000})
	ierr, ok := err.(InputError)
	if !ok || ierr.Kind != ErrDuplicate {
		t.Fatalf("expected Duplicate for a repeated seq, got %v", err)
	}

	_, err = s.ProcessInput(1, wire.InputEvent{InputSeq: 5, ClientTimeMs: 3000})
	ierr, ok = err.(InputError)
	if !ok || ierr.Kind != ErrOutOfOrder || ierr.Expected != 2 || ierr.Received != 5 {
		t.Fatalf("expected OutOfOrder{expected=2,received=5}, got %v", err)
	}
}

func TestResumeAfterDisconnect(t *testing.T) {
	clk := clock.NewManual(time.Unix(1000, 0))
	s := NewWithClock(80, 24, clk)
	s.AddClient(1, 4)

	s.GetRenderUpdate(1) // snapshot at state 0
	s.RecordStateSnapshot()

	token := s.GenerateResumeToken(1)

	s.Frame.AdvanceState() // state 1
	s.RecordStateSnapshot()
	s.Frame.AdvanceState() // state 2
	s.RecordStateSnapshot()

	s.RemoveClient(1)

	outcome := s.TryResume(token, 4)
	if outcome.Kind != ResumeResumed || outcome.ClientID != 1 || outcome.BaselineStateID != 0 {
		t.Fatalf("expected successful resume at baseline 0, got %+v", outcome)
	}

	upd, ok := s.GetRenderUpdate(1)
	if !ok || upd.Kind != UpdateDelta {
		t.Fatalf("expected the first post-resume update to be a delta, got %+v ok=%v", upd, ok)
	}
	if upd.Delta.BaseStateID != 0 {
		t.Fatalf("expected delta based on the restored baseline 0, got %d", upd.Delta.BaseStateID)
	}
}

func TestTryResumeRejectsUnknownState(t *testing.T) {
	s := New(80, 24)
	tok := s.GenerateResumeToken(1) // no history recorded at all

	outcome := s.TryResume(tok, 4)
	if outcome.Kind != ResumeStateNotFound {
		t.Fatalf("expected StateNotFound, got %+v", outcome)
	}
}

func TestTryResumeRejectsTamperedToken(t *testing.T) {
	s := New(80, 24)
	tok := s.GenerateResumeToken(1)
	tok[0] ^= 0xFF

	outcome := s.TryResume(tok, 4)
	if outcome.Kind != ResumeInvalidToken {
		t.Fatalf("expected InvalidToken for a tampered token, got %+v", outcome)
	}
}

func TestTryResumeRejectsClientIDInUse(t *testing.T) {
	s := New(80, 24)
	s.AddClient(1, 4)
	s.RecordStateSnapshot()
	tok := s.GenerateResumeToken(1)

	outcome := s.TryResume(tok, 4)
	if outcome.Kind != ResumeClientIDInUse {
		t.Fatalf("expected ClientIDInUse since client 1 is still attached, got %+v", outcome)
	}
}
