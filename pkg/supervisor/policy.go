package supervisor

import (
	"time"

	"github.com/cuemby/lookout/pkg/health"
)

// Policy holds the timing constants of the supervisor
type Policy struct {
	// StartTimeout bounds POST /start
	StartTimeout time.Duration `yaml:"start_timeout"`

	// StopTimeout bounds POST /stop
	StopTimeout time.Duration `yaml:"stop_timeout"`

	// TestTimeout bounds POST /test-camera
	TestTimeout time.Duration `yaml:"test_timeout"`

	// HealthTimeout bounds each health poll and the attach status query
	HealthTimeout time.Duration `yaml:"health_timeout"`

	// RapidTicks is the number of polls in the rapid phase after a start
	RapidTicks int `yaml:"rapid_ticks"`

	// RapidInterval is the poll interval of the rapid phase
	RapidInterval time.Duration `yaml:"rapid_interval"`

	// SteadyInterval is the poll interval once the session is confirmed
	SteadyInterval time.Duration `yaml:"steady_interval"`

	// HeartbeatStaleAfter is the heartbeat age past which an active
	// worker is reported stale. Zero disables the check.
	HeartbeatStaleAfter time.Duration `yaml:"heartbeat_stale_after"`

	// DegradedAfter is the number of consecutive failed polls before the
	// worker connection is reported degraded
	DegradedAfter int `yaml:"degraded_after"`
}

// DefaultPolicy returns the production timings
func DefaultPolicy() Policy {
	return Policy{
		StartTimeout:        15 * time.Second,
		StopTimeout:         5 * time.Second,
		TestTimeout:         10 * time.Second,
		HealthTimeout:       5 * time.Second,
		RapidTicks:          5,
		RapidInterval:       1 * time.Second,
		SteadyInterval:      5 * time.Second,
		HeartbeatStaleAfter: 15 * time.Second,
		DegradedAfter:       3,
	}
}

// withDefaults fills zero fields from DefaultPolicy
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.StartTimeout <= 0 {
		p.StartTimeout = d.StartTimeout
	}
	if p.StopTimeout <= 0 {
		p.StopTimeout = d.StopTimeout
	}
	if p.TestTimeout <= 0 {
		p.TestTimeout = d.TestTimeout
	}
	if p.HealthTimeout <= 0 {
		p.HealthTimeout = d.HealthTimeout
	}
	if p.RapidTicks <= 0 {
		p.RapidTicks = d.RapidTicks
	}
	if p.RapidInterval <= 0 {
		p.RapidInterval = d.RapidInterval
	}
	if p.SteadyInterval <= 0 {
		p.SteadyInterval = d.SteadyInterval
	}
	if p.DegradedAfter <= 0 {
		p.DegradedAfter = d.DegradedAfter
	}
	return p
}

func (p Policy) rapidConfig() health.Config {
	return health.Config{
		Interval: p.RapidInterval,
		Timeout:  p.HealthTimeout,
		Retries:  p.DegradedAfter,
	}
}

func (p Policy) steadyConfig() health.Config {
	return health.Config{
		Interval: p.SteadyInterval,
		Timeout:  p.HealthTimeout,
		Retries:  p.DegradedAfter,
	}
}
