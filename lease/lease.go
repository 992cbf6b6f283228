// Package lease implements controller-lease arbitration: single-holder,
// time-bound authority to inject input into a session (spec §3
// "LeaseManager", §4.4).
package lease

import (
	"fmt"
	"time"

	"github.com/zrp-project/zrp/clock"
)

// Policy governs whether a contending request takes over without an
// explicit force flag.
type Policy uint8

const (
	LastWriterWins Policy = iota
	ExplicitOnly
)

// DisplaySize is the controller's reported terminal size.
type DisplaySize struct {
	Cols, Rows uint32
}

// Lease is the externally observable state of a granted lease.
type Lease struct {
	LeaseID       uint64
	OwnerClientID uint64
	Policy        Policy
	Size          DisplaySize
	HasSize       bool
	RemainingMs   uint32
	DurationMs    uint32
}

// Result is the outcome of a RequestControl call.
type Result struct {
	Granted bool
	Lease   Lease
	Reason  string // set only when !Granted
	Current *Lease // set only when !Granted and a lease is currently held
}

// EventKind distinguishes the reasons a lease transitioned away from
// Active outside of an explicit Release by its owner.
type EventKind uint8

const (
	EventExpired EventKind = iota
	EventRevoked
)

// Event reports an asynchronous lease state change (expiry or revocation
// on disconnect), surfaced from Tick / RemoveClient.
type Event struct {
	Kind    EventKind
	LeaseID uint64
	Owner   uint64
	Reason  string
}

type stateKind uint8

const (
	stateNoController stateKind = iota
	stateActive
	stateExpired
)

type activeState struct {
	owner      uint64
	leaseID    uint64
	grantedAt  time.Time
	duration   time.Duration
	size       DisplaySize
	hasSize    bool
}

// Manager is the controller-lease state machine for one session.
type Manager struct {
	clk             clock.Clock
	state           stateKind
	active          activeState
	expiredOwner    uint64
	policy          Policy
	nextLeaseID     uint64
	defaultDuration time.Duration
	viewers         map[uint64]struct{}
}

// New constructs a Manager with the given policy and default lease
// duration. clk may be nil to use the real wall clock.
func New(policy Policy, duration time.Duration, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	return &Manager{
		clk:             clk,
		state:           stateNoController,
		policy:          policy,
		nextLeaseID:     1,
		defaultDuration: duration,
		viewers:         make(map[uint64]struct{}),
	}
}

func (m *Manager) buildLease(leaseID, owner uint64, size DisplaySize, hasSize bool, remaining time.Duration) Lease {
	return Lease{
		LeaseID:       leaseID,
		OwnerClientID: owner,
		Policy:        m.policy,
		Size:          size,
		HasSize:       hasSize,
		RemainingMs:   uint32(remaining.Milliseconds()),
		DurationMs:    uint32(m.defaultDuration.Milliseconds()),
	}
}

// RequestControl implements the transition table in spec §4.4.
func (m *Manager) RequestControl(clientID uint64, size DisplaySize, hasSize, force bool) Result {
	switch m.state {
	case stateNoController, stateExpired:
		leaseID := m.nextLeaseID
		m.nextLeaseID++
		m.state = stateActive
		m.active = activeState{
			owner:     clientID,
			leaseID:   leaseID,
			grantedAt: m.clk.Now(),
			duration:  m.defaultDuration,
			size:      size,
			hasSize:   hasSize,
		}
		delete(m.viewers, clientID)
		return Result{Granted: true, Lease: m.buildLease(leaseID, clientID, size, hasSize, m.defaultDuration)}

	case stateActive:
		if m.active.owner == clientID {
			remaining := m.active.duration - m.clk.Now().Sub(m.active.grantedAt)
			if remaining < 0 {
				remaining = 0
			}
			return Result{Granted: true, Lease: m.buildLease(m.active.leaseID, clientID, m.active.size, m.active.hasSize, remaining)}
		}

		canTakeover := force
		if m.policy == LastWriterWins {
			canTakeover = true
		}

		if canTakeover {
			prevOwner := m.active.owner
			leaseID := m.nextLeaseID
			m.nextLeaseID++
			m.viewers[prevOwner] = struct{}{}
			m.state = stateActive
			m.active = activeState{
				owner:     clientID,
				leaseID:   leaseID,
				grantedAt: m.clk.Now(),
				duration:  m.defaultDuration,
				size:      size,
				hasSize:   hasSize,
			}
			delete(m.viewers, clientID)
			return Result{Granted: true, Lease: m.buildLease(leaseID, clientID, size, hasSize, m.defaultDuration)}
		}

		remaining := m.active.duration - m.clk.Now().Sub(m.active.grantedAt)
		if remaining < 0 {
			remaining = 0
		}
		cur := m.buildLease(m.active.leaseID, m.active.owner, m.active.size, m.active.hasSize, remaining)
		return Result{
			Granted: false,
			Reason:  fmt.Sprintf("lease held by client %d (policy: %d)", m.active.owner, m.policy),
			Current: &cur,
		}
	}
	return Result{Granted: false, Reason: "unreachable lease state"}
}

// ReleaseControl releases a held lease iff owner/leaseID match the
// current holder; returns false (silently) on mismatch.
func (m *Manager) ReleaseControl(clientID, leaseID uint64) bool {
	if m.state != stateActive || m.active.owner != clientID || m.active.leaseID != leaseID {
		return false
	}
	m.expiredOwner = clientID
	m.state = stateExpired
	return true
}

// KeepAlive renews a held lease's granted_at iff owner/leaseID match.
func (m *Manager) KeepAlive(clientID, leaseID uint64) bool {
	if m.state != stateActive || m.active.owner != clientID || m.active.leaseID != leaseID {
		return false
	}
	m.active.grantedAt = m.clk.Now()
	return true
}

// Tick checks for lease expiry; returns an Event if the active lease just
// expired.
func (m *Manager) Tick() *Event {
	if m.state != stateActive {
		return nil
	}
	if m.clk.Now().Sub(m.active.grantedAt) >= m.active.duration {
		ev := Event{Kind: EventExpired, LeaseID: m.active.leaseID, Owner: m.active.owner}
		m.expiredOwner = m.active.owner
		m.state = stateExpired
		return &ev
	}
	return nil
}

// CurrentSize returns the active controller's reported size, if any.
func (m *Manager) CurrentSize() (DisplaySize, bool) {
	if m.state != stateActive || !m.active.hasSize {
		return DisplaySize{}, false
	}
	return m.active.size, true
}

// SetSize updates the active controller's size iff owner/leaseID match.
func (m *Manager) SetSize(clientID, leaseID uint64, size DisplaySize) bool {
	if m.state != stateActive || m.active.owner != clientID || m.active.leaseID != leaseID {
		return false
	}
	m.active.size = size
	m.active.hasSize = true
	return true
}

// IsController reports whether clientID currently holds the lease.
func (m *Manager) IsController(clientID uint64) bool {
	return m.state == stateActive && m.active.owner == clientID
}

// GetCurrentLease returns the active lease with remaining_ms recomputed.
func (m *Manager) GetCurrentLease() (Lease, bool) {
	if m.state != stateActive {
		return Lease{}, false
	}
	remaining := m.active.duration - m.clk.Now().Sub(m.active.grantedAt)
	if remaining < 0 {
		remaining = 0
	}
	return m.buildLease(m.active.leaseID, m.active.owner, m.active.size, m.active.hasSize, remaining), true
}

// AddViewer marks clientID as a non-controller, unless it's already the
// controller.
func (m *Manager) AddViewer(clientID uint64) {
	if !m.IsController(clientID) {
		m.viewers[clientID] = struct{}{}
	}
}

// RemoveClient detaches clientID, revoking its lease (if held) and
// returning the resulting Event.
func (m *Manager) RemoveClient(clientID uint64) *Event {
	delete(m.viewers, clientID)
	if m.state == stateActive && m.active.owner == clientID {
		ev := Event{Kind: EventRevoked, LeaseID: m.active.leaseID, Owner: clientID, Reason: "disconnect"}
		m.expiredOwner = clientID
		m.state = stateExpired
		return &ev
	}
	return nil
}

// IsViewer reports whether clientID is tracked as a non-controller
// viewer.
func (m *Manager) IsViewer(clientID uint64) bool {
	_, ok := m.viewers[clientID]
	return ok
}

// ViewerCount returns the number of tracked viewers.
func (m *Manager) ViewerCount() int { return len(m.viewers) }
