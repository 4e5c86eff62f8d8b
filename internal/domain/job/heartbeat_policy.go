package job

import (
	"errors"
	"time"
)

// ErrInvalidStaleAfter indicates the reaper threshold is not positive.
var ErrInvalidStaleAfter = errors.New("stale-after threshold must be positive")

// minHeartbeatsPerWindow is how many heartbeats must fit inside one stale window
// so that a single missed beat never gets a live job reaped.
const minHeartbeatsPerWindow = 3

// HeartbeatSource identifies how a heartbeat interval was resolved.
type HeartbeatSource string

const (
	// HeartbeatSourceExplicit indicates the configured interval was used as is.
	HeartbeatSourceExplicit HeartbeatSource = "explicit"
	// HeartbeatSourceDefault indicates no interval was configured.
	HeartbeatSourceDefault HeartbeatSource = "default"
	// HeartbeatSourceClamped indicates the interval was shortened to fit the stale window.
	HeartbeatSourceClamped HeartbeatSource = "clamped"
)

// HeartbeatPolicy keeps worker heartbeats inside the reaper's stale window.
type HeartbeatPolicy struct {
	staleAfter time.Duration
}

// NewHeartbeatPolicy constructs a HeartbeatPolicy for the reaper's stale-after threshold.
func NewHeartbeatPolicy(staleAfter time.Duration) (*HeartbeatPolicy, error) {
	if staleAfter <= 0 {
		return nil, ErrInvalidStaleAfter
	}
	return &HeartbeatPolicy{staleAfter: staleAfter}, nil
}

// StaleAfter returns the reaper threshold the policy was built for.
func (p *HeartbeatPolicy) StaleAfter() time.Duration {
	if p == nil {
		return 0
	}
	return p.staleAfter
}

// HeartbeatDecision captures the outcome of resolving a heartbeat interval.
type HeartbeatDecision struct {
	Interval  time.Duration
	Source    HeartbeatSource
	Requested time.Duration
}

// Clamped reports whether the requested interval was shortened.
func (d HeartbeatDecision) Clamped() bool {
	return d.Source == HeartbeatSourceClamped
}

// Resolve returns the heartbeat interval a worker should use.
func (p *HeartbeatPolicy) Resolve(request time.Duration) HeartbeatDecision {
	decision := HeartbeatDecision{Requested: request}
	if p == nil {
		decision.Interval = request
		decision.Source = HeartbeatSourceExplicit
		return decision
	}

	ceiling := max(p.staleAfter/minHeartbeatsPerWindow, time.Second)
	switch {
	case request <= 0:
		decision.Interval = ceiling
		decision.Source = HeartbeatSourceDefault
	case request > ceiling:
		decision.Interval = ceiling
		decision.Source = HeartbeatSourceClamped
	default:
		decision.Interval = request
		decision.Source = HeartbeatSourceExplicit
	}
	return decision
}
