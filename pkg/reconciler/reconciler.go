package reconciler

import (
	"fmt"
	"time"

	"github.com/cuemby/lookout/pkg/types"
)

// AlertType identifies an alert raised by reconciliation
type AlertType string

const (
	// AlertUnexpectedStop fires when a running worker goes inactive without
	// being asked to stop
	AlertUnexpectedStop AlertType = "unexpected_stop"
)

// Alert is a user-visible alert produced by reconciliation
type Alert struct {
	Type    AlertType
	Message string
}

// Decision is the outcome of reconciling one snapshot
type Decision struct {
	// State is the session state after applying the snapshot
	State types.SessionState

	// Alert is set when an alert must be emitted
	Alert *Alert

	// AlertEdge is the new value of the alert edge flag
	AlertEdge bool
}

// Changed reports whether the decision moves the session away from prev
func (d Decision) Changed(prev types.SessionState) bool {
	return d.State != prev
}

// Reconcile derives the next session state from the previous state, one
// health snapshot, and the alert edge flag. It has no side effects.
//
// An Unknown snapshot (failed poll) never changes anything. A running worker
// whose monitor is alive but whose detection loop stopped is a silent
// failure: the session goes to Failed and an unexpected-stop alert fires,
// once per excursion. Every other inactive report means the session is
// stopped; every active report means it is running.
func Reconcile(prev types.SessionState, snap types.HealthSnapshot, alertEdge bool) Decision {
	if snap.Unknown {
		return Decision{State: prev, AlertEdge: alertEdge}
	}

	if snap.DetectionActive {
		// Back to running clears the edge so the next excursion alerts again
		return Decision{State: types.SessionStateRunning, AlertEdge: false}
	}

	if prev == types.SessionStateRunning && snap.MonitoringActive {
		alert, edge := UnexpectedStop(alertEdge)
		return Decision{
			State:     types.SessionStateFailed,
			Alert:     alert,
			AlertEdge: edge,
		}
	}

	return Decision{State: types.SessionStateStopped, AlertEdge: alertEdge}
}

// UnexpectedStop returns the unexpected-stop alert unless the edge is
// already set, together with the new edge value
func UnexpectedStop(alertEdge bool) (*Alert, bool) {
	if alertEdge {
		return nil, true
	}
	return &Alert{
		Type:    AlertUnexpectedStop,
		Message: "Detection session stopped unexpectedly",
	}, true
}

// HeartbeatStale reports whether an active worker's heartbeat is older
// than threshold. Snapshots without heartbeat information are never stale.
func HeartbeatStale(snap types.HealthSnapshot, threshold time.Duration) bool {
	if !snap.DetectionActive || threshold <= 0 {
		return false
	}
	age, ok := snap.Heartbeat()
	return ok && age > threshold
}

// Describe renders a transition for logs and event messages
func Describe(prev types.SessionState, d Decision) string {
	if d.Alert != nil {
		return fmt.Sprintf("%s -> %s (%s)", prev, d.State, d.Alert.Type)
	}
	return fmt.Sprintf("%s -> %s", prev, d.State)
}
