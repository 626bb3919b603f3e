package health

import (
	"context"
	"time"

	"github.com/cuemby/lookout/pkg/types"
)

// Probe queries the worker for one health snapshot
type Probe interface {
	Health(ctx context.Context) (types.HealthSnapshot, error)
}

// ProbeFunc adapts a function to the Probe interface
type ProbeFunc func(ctx context.Context) (types.HealthSnapshot, error)

// Health calls f(ctx)
func (f ProbeFunc) Health(ctx context.Context) (types.HealthSnapshot, error) {
	return f(ctx)
}

// Config contains the configuration of a poll loop
type Config struct {
	// Interval is the time between health checks
	Interval time.Duration

	// Timeout is the maximum time to wait for a single health query
	Timeout time.Duration

	// Retries is the number of consecutive failed polls before the
	// connection to the worker is reported as degraded
	Retries int
}

// DefaultConfig returns the steady-state poll configuration
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
}

// Status tracks the outcome of consecutive polls against the worker
type Status struct {
	// ConsecutiveFailures tracks the number of consecutive failed polls
	ConsecutiveFailures int

	// ConsecutiveSuccesses tracks the number of consecutive successful polls
	ConsecutiveSuccesses int

	// LastCheck is the timestamp of the last poll
	LastCheck time.Time

	// LastSnapshot is the snapshot produced by the last poll
	LastSnapshot types.HealthSnapshot

	// Degraded is set once failures reach the retry threshold and cleared
	// by the next successful poll
	Degraded bool

	// StartedAt is when polling started
	StartedAt time.Time
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		StartedAt: time.Now(),
	}
}

// Update records a poll result. It returns true when the degraded flag
// flipped, in either direction.
func (s *Status) Update(snap types.HealthSnapshot, config Config) bool {
	s.LastCheck = snap.ObservedAt
	s.LastSnapshot = snap
	wasDegraded := s.Degraded

	if !snap.Unknown {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Degraded = false
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0

		if config.Retries > 0 && s.ConsecutiveFailures >= config.Retries {
			s.Degraded = true
		}
	}

	return wasDegraded != s.Degraded
}

// Check runs one health query bounded by timeout. A failed query yields an
// Unknown snapshot; Check never returns an error.
func Check(ctx context.Context, probe Probe, timeout time.Duration) types.HealthSnapshot {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap, err := probe.Health(checkCtx)
	if err != nil {
		return types.UnknownSnapshot(time.Now(), err)
	}
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = time.Now()
	}
	return snap
}
