// Package rtt implements round-trip-time estimation, loss tracking, and
// link-state classification used to size the adaptive retransmit timeout
// (spec §4.6 "RttEstimator").
package rtt

import "math"

const (
	defaultAlpha        = 0.125
	fastAlpha           = 0.25
	defaultBeta         = 0.25
	sampleWindowSize    = 128
	defaultInitialRTOMs = 1000
	maxRTOMs            = 60000
)

// LinkState classifies recent link quality from RTT variance and loss
// rate, with asymmetric hysteresis guarding transitions.
type LinkState uint8

const (
	Stable LinkState = iota
	Normal
	Degraded
)

func (s LinkState) String() string {
	switch s {
	case Stable:
		return "stable"
	case Degraded:
		return "degraded"
	default:
		return "normal"
	}
}

func floorForState(s LinkState) uint32 {
	switch s {
	case Stable:
		return 50
	case Degraded:
		return 200
	default:
		return 100
	}
}

// Estimator is a TCP-style smoothed-RTT estimator (RFC 6298 shape) with an
// added link-state classifier and adaptive RTO floor.
type Estimator struct {
	srtt      float64
	hasSRTT   bool
	rttvar    float64
	alpha     float64
	beta      float64

	sampleCount int
	lossCount   int

	current   LinkState
	candidate LinkState
	hasCand   bool

	totalElapsedMs    uint64
	candidateSinceMs  uint64
}

// New constructs an Estimator in its initial, sample-free state.
func New() *Estimator {
	return &Estimator{alpha: defaultAlpha, beta: defaultBeta, current: Normal, candidate: Normal, hasCand: true}
}

// RecordSample folds a new RTT measurement (in milliseconds) into the
// smoothed estimate and advances the link-state machine.
func (e *Estimator) RecordSample(rttMs uint32) {
	if e.sampleCount >= sampleWindowSize {
		e.sampleCount = 0
		e.lossCount = 0
	}

	rtt := float64(rttMs)
	if !e.hasSRTT {
		e.srtt = rtt
		e.rttvar = rtt / 2
		e.hasSRTT = true
	} else {
		fast := rtt < 0.85*e.srtt || rtt < e.srtt-2*e.rttvar
		alpha := defaultAlpha
		if fast {
			alpha = fastAlpha
		}
		e.rttvar = (1-e.beta)*e.rttvar + e.beta*math.Abs(e.srtt-rtt)
		e.srtt = (1-alpha)*e.srtt + alpha*rtt
	}
	e.sampleCount++

	elapsed := rttMs
	if elapsed < 10 {
		elapsed = 10
	}
	e.driveStateUpdate(uint64(elapsed))
}

// RecordLoss accounts for a lost/unacked input and advances the link-state
// machine by a nominal 10ms tick.
func (e *Estimator) RecordLoss() {
	e.lossCount++
	e.driveStateUpdate(10)
}

func classify(variance, lossRate float64) LinkState {
	if variance < 0.20 && lossRate < 0.015 {
		return Stable
	}
	if variance > 0.50 || lossRate > 0.06 {
		return Degraded
	}
	return Normal
}

func (e *Estimator) requiredDwellMs(candidate, current LinkState) uint64 {
	if current == Degraded && candidate != Degraded {
		return 2000
	}
	switch candidate {
	case Stable:
		return 1000
	case Degraded:
		return 500
	default:
		return 0
	}
}

func (e *Estimator) driveStateUpdate(elapsedMs uint64) {
	e.totalElapsedMs += elapsedMs

	srtt := e.srtt
	if srtt < 25 {
		srtt = 25
	}
	variance := e.rttvar / srtt

	lossRate := 0.0
	if e.sampleCount > 0 {
		lossRate = float64(e.lossCount) / float64(e.sampleCount)
	}

	candidateNow := classify(variance, lossRate)
	if !e.hasCand || candidateNow != e.candidate {
		e.candidate = candidateNow
		e.candidateSinceMs = e.totalElapsedMs
		e.hasCand = true
	}

	dwell := e.totalElapsedMs - e.candidateSinceMs
	if e.candidate != e.current && dwell >= e.requiredDwellMs(e.candidate, e.current) {
		e.current = e.candidate
	}
}

// SRTTMs returns the smoothed RTT in milliseconds, or (0, false) before
// the first sample.
func (e *Estimator) SRTTMs() (uint32, bool) {
	if !e.hasSRTT {
		return 0, false
	}
	return uint32(math.Round(e.srtt)), true
}

// RTOMs returns the current adaptive retransmit timeout, clamped to
// [floor(LinkState), 60000] (1000ms before any sample is recorded).
func (e *Estimator) RTOMs() uint32 {
	if !e.hasSRTT {
		return defaultInitialRTOMs
	}
	rto := math.Round(e.srtt + 4*e.rttvar)
	floor := float64(floorForState(e.current))
	if rto < floor {
		rto = floor
	}
	if rto > maxRTOMs {
		rto = maxRTOMs
	}
	return uint32(rto)
}

// LinkState returns the current (hysteresis-settled) link state.
func (e *Estimator) LinkState() LinkState { return e.current }

// RttVarMs returns the current smoothed RTT variance.
func (e *Estimator) RttVarMs() float64 { return e.rttvar }
