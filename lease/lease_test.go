package lease

import (
	"testing"
	"time"

	"github.com/zrp-project/zrp/clock"
)

func TestRequestControlGrantsWhenNoController(t *testing.T) {
	m := New(LastWriterWins, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	res := m.RequestControl(1, DisplaySize{80, 24}, true, false)
	if !res.Granted {
		t.Fatalf("expected grant when no controller held, got reason %q", res.Reason)
	}
	if res.Lease.LeaseID != 1 || res.Lease.OwnerClientID != 1 {
		t.Fatalf("unexpected lease: %+v", res.Lease)
	}
	if !m.IsController(1) {
		t.Fatalf("expected client 1 to be controller")
	}
}

func TestRequestControlSameOwnerRenewsIdempotently(t *testing.T) {
	m := New(ExplicitOnly, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	first := m.RequestControl(1, DisplaySize{}, false, false)
	second := m.RequestControl(1, DisplaySize{}, false, false)
	if !first.Granted || !second.Granted {
		t.Fatalf("expected both requests from the same owner to be granted")
	}
	if first.Lease.LeaseID != second.Lease.LeaseID {
		t.Fatalf("expected same lease id on renewal: %d vs %d", first.Lease.LeaseID, second.Lease.LeaseID)
	}
}

func TestExplicitOnlyPolicyRejectsWithoutForce(t *testing.T) {
	m := New(ExplicitOnly, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	m.RequestControl(1, DisplaySize{}, false, false)
	res := m.RequestControl(2, DisplaySize{}, false, false)
	if res.Granted {
		t.Fatalf("expected contending request to be rejected under ExplicitOnly")
	}
	if res.Current == nil || res.Current.OwnerClientID != 1 {
		t.Fatalf("expected Current to report the existing owner")
	}
}

func TestExplicitOnlyPolicyGrantsWithForce(t *testing.T) {
	m := New(ExplicitOnly, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	m.RequestControl(1, DisplaySize{}, false, false)
	res := m.RequestControl(2, DisplaySize{}, false, true)
	if !res.Granted {
		t.Fatalf("expected forced takeover to be granted")
	}
	if !m.IsController(2) || m.IsController(1) {
		t.Fatalf("expected client 2 to be controller after forced takeover")
	}
	if !m.IsViewer(1) {
		t.Fatalf("expected previous owner to become a viewer")
	}
}

func TestLastWriterWinsAlwaysTakesOver(t *testing.T) {
	m := New(LastWriterWins, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	m.RequestControl(1, DisplaySize{}, false, false)
	res := m.RequestControl(2, DisplaySize{}, false, false)
	if !res.Granted {
		t.Fatalf("expected LastWriterWins to grant without force")
	}
}

func TestReleaseControlRequiresMatchingOwnerAndLease(t *testing.T) {
	m := New(ExplicitOnly, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	res := m.RequestControl(1, DisplaySize{}, false, false)
	if m.ReleaseControl(2, res.Lease.LeaseID) {
		t.Fatalf("expected release from a non-owner to fail")
	}
	if m.ReleaseControl(1, res.Lease.LeaseID+99) {
		t.Fatalf("expected release with wrong lease id to fail")
	}
	if !m.ReleaseControl(1, res.Lease.LeaseID) {
		t.Fatalf("expected release to succeed for matching owner/lease")
	}
	if m.IsController(1) {
		t.Fatalf("expected client 1 to no longer be controller after release")
	}
}

func TestKeepAliveRenewsGrantedAt(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	m := New(ExplicitOnly, 10*time.Second, clk)
	res := m.RequestControl(1, DisplaySize{}, false, false)
	clk.Advance(9 * time.Second)
	if !m.KeepAlive(1, res.Lease.LeaseID) {
		t.Fatalf("expected keepalive to succeed")
	}
	clk.Advance(9 * time.Second)
	if ev := m.Tick(); ev != nil {
		t.Fatalf("expected lease to still be valid after keepalive renewal, got event %+v", ev)
	}
}

func TestTickExpiresLeaseAfterDuration(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	m := New(ExplicitOnly, 10*time.Second, clk)
	res := m.RequestControl(1, DisplaySize{}, false, false)
	clk.Advance(10 * time.Second)
	ev := m.Tick()
	if ev == nil || ev.Kind != EventExpired || ev.Owner != 1 || ev.LeaseID != res.Lease.LeaseID {
		t.Fatalf("expected expiry event for client 1, got %+v", ev)
	}
	if m.IsController(1) {
		t.Fatalf("expected controller to be cleared after expiry")
	}
}

func TestTickDoesNothingWhenNoController(t *testing.T) {
	m := New(ExplicitOnly, 10*time.Second, clock.NewManual(time.Unix(0, 0)))
	if ev := m.Tick(); ev != nil {
		t.Fatalf("expected no event when there is no controller, got %+v", ev)
	}
}

func TestRemoveClientRevokesActiveLease(t *testing.T) {
	m := New(ExplicitOnly, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	res := m.RequestControl(1, DisplaySize{}, false, false)
	ev := m.RemoveClient(1)
	if ev == nil || ev.Kind != EventRevoked || ev.LeaseID != res.Lease.LeaseID {
		t.Fatalf("expected revoked event on disconnect, got %+v", ev)
	}
	if m.IsController(1) {
		t.Fatalf("expected controller cleared after disconnect")
	}
}

func TestRemoveClientNonControllerReturnsNil(t *testing.T) {
	m := New(ExplicitOnly, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	m.RequestControl(1, DisplaySize{}, false, false)
	m.AddViewer(2)
	if ev := m.RemoveClient(2); ev != nil {
		t.Fatalf("expected no event removing a mere viewer, got %+v", ev)
	}
	if m.ViewerCount() != 0 {
		t.Fatalf("expected viewer 2 to be detached")
	}
}

func TestSetSizeRequiresMatchingLease(t *testing.T) {
	m := New(ExplicitOnly, 30*time.Second, clock.NewManual(time.Unix(0, 0)))
	res := m.RequestControl(1, DisplaySize{80, 24}, true, false)
	if !m.SetSize(1, res.Lease.LeaseID, DisplaySize{100, 40}) {
		t.Fatalf("expected set size to succeed for owner")
	}
	size, ok := m.CurrentSize()
	if !ok || size.Cols != 100 || size.Rows != 40 {
		t.Fatalf("expected updated size, got %+v ok=%v", size, ok)
	}
	if m.SetSize(2, res.Lease.LeaseID, DisplaySize{1, 1}) {
		t.Fatalf("expected set size from non-owner to fail")
	}
}

func TestGetCurrentLeaseReportsRemainingTime(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	m := New(ExplicitOnly, 10*time.Second, clk)
	m.RequestControl(1, DisplaySize{}, false, false)
	clk.Advance(4 * time.Second)
	l, ok := m.GetCurrentLease()
	if !ok {
		t.Fatalf("expected a current lease")
	}
	if l.RemainingMs != 6000 {
		t.Fatalf("expected 6000ms remaining, got %d", l.RemainingMs)
	}
}
