package reconciler

import "github.com/cuemby/lookout/pkg/types"

// RapidOutcome is the verdict of the rapid poll phase after one tick
type RapidOutcome int

const (
	// RapidContinue means more ticks are needed
	RapidContinue RapidOutcome = iota
	// RapidRunning means the worker came up and stayed up
	RapidRunning
	// RapidStopped means the worker never came up
	RapidStopped
	// RapidFailed means the worker came up and then went inactive
	RapidFailed
	// RapidUnconfirmed means every tick failed, so nothing is known yet
	RapidUnconfirmed
)

func (o RapidOutcome) String() string {
	switch o {
	case RapidContinue:
		return "continue"
	case RapidRunning:
		return "running"
	case RapidStopped:
		return "stopped"
	case RapidFailed:
		return "failed"
	case RapidUnconfirmed:
		return "unconfirmed"
	default:
		return "invalid"
	}
}

// State maps a final outcome onto a session state
func (o RapidOutcome) State() types.SessionState {
	switch o {
	case RapidRunning:
		return types.SessionStateRunning
	case RapidFailed:
		return types.SessionStateFailed
	case RapidStopped:
		return types.SessionStateStopped
	default:
		return types.SessionStateStarting
	}
}

// RapidPhase tracks the short burst of polls that follows a start command.
// Unknown snapshots count as ticks but carry no observation, so a phase
// made only of failed ticks ends unconfirmed rather than stopped.
type RapidPhase struct {
	ticks      int
	seen       int
	sawActive  bool
	lastActive bool
	observed   bool
}

// NewRapidPhase creates a tracker for a phase of the given number of ticks
func NewRapidPhase(ticks int) *RapidPhase {
	if ticks < 1 {
		ticks = 1
	}
	return &RapidPhase{ticks: ticks}
}

// Observe records one tick and returns the phase verdict. Once a verdict
// other than RapidContinue is returned the phase is over.
func (r *RapidPhase) Observe(snap types.HealthSnapshot) RapidOutcome {
	r.seen++

	if !snap.Unknown {
		r.observed = true
		if snap.DetectionActive {
			r.sawActive = true
			r.lastActive = true
		} else {
			if r.sawActive {
				return RapidFailed
			}
			r.lastActive = false
		}
	}

	if r.seen < r.ticks {
		return RapidContinue
	}

	switch {
	case !r.observed:
		return RapidUnconfirmed
	case r.lastActive:
		return RapidRunning
	default:
		return RapidStopped
	}
}

// Seen returns the number of ticks observed so far
func (r *RapidPhase) Seen() int {
	return r.seen
}
