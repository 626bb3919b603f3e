package types

import (
	"fmt"
	"strings"
	"time"
)

// SessionState represents the supervisor's view of the remote detection session
type SessionState string

const (
	SessionStateStopped  SessionState = "stopped"
	SessionStateStarting SessionState = "starting"
	SessionStateRunning  SessionState = "running"
	SessionStateFailed   SessionState = "failed"
)

// AllSessionStates lists every state, in state machine order
var AllSessionStates = []SessionState{
	SessionStateStopped,
	SessionStateStarting,
	SessionStateRunning,
	SessionStateFailed,
}

// Active reports whether the state corresponds to a worker that is (or is
// about to be) detecting
func (s SessionState) Active() bool {
	return s == SessionStateStarting || s == SessionStateRunning
}

// SessionConfig holds the settings submitted to the worker on start.
// JSON tags follow the worker's start payload; YAML tags are used for
// profiles and the client config file.
type SessionConfig struct {
	CameraURL             string `json:"ipCameraUrl" yaml:"camera_url"`
	CameraPort            string `json:"ipCameraPort,omitempty" yaml:"camera_port,omitempty"`
	NotifyTopic           string `json:"ntfyTopic,omitempty" yaml:"notify_topic,omitempty"`
	NotifyPriority        string `json:"ntfyPriority,omitempty" yaml:"notify_priority,omitempty"`
	EnablePersonDetection bool   `json:"enablePersonDetection" yaml:"enable_person_detection"`
	EnableLogging         bool   `json:"enableLogging" yaml:"enable_logging"`
}

// Validate checks the config before anything is sent to the worker
func (c SessionConfig) Validate() error {
	if strings.TrimSpace(c.CameraURL) == "" {
		return &ValidationError{Field: "camera_url", Message: "Camera URL is required"}
	}
	return nil
}

// Endpoint returns the camera address for display, with the port appended
// when one was given
func (c SessionConfig) Endpoint() string {
	if c.CameraPort == "" {
		return c.CameraURL
	}
	return fmt.Sprintf("%s:%s", c.CameraURL, c.CameraPort)
}

// HealthSnapshot is one point-in-time report of worker activity.
// A snapshot produced by a failed poll has Unknown set and carries no
// activity information.
type HealthSnapshot struct {
	DetectionActive  bool      `json:"detection_active"`
	MonitoringActive bool      `json:"monitoring_active"`
	HeartbeatAge     *float64  `json:"heartbeat_age"`
	ObservedAt       time.Time `json:"observed_at"`
	Unknown          bool      `json:"unknown,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// UnknownSnapshot builds the synthetic snapshot for a poll that failed
func UnknownSnapshot(at time.Time, err error) HealthSnapshot {
	snap := HealthSnapshot{
		ObservedAt: at,
		Unknown:    true,
	}
	if err != nil {
		snap.Error = err.Error()
	}
	return snap
}

// Heartbeat returns the worker heartbeat age as a duration, if reported
func (s HealthSnapshot) Heartbeat() (time.Duration, bool) {
	if s.Unknown || s.HeartbeatAge == nil {
		return 0, false
	}
	return time.Duration(*s.HeartbeatAge * float64(time.Second)), true
}

// String renders the snapshot for logs and CLI output
func (s HealthSnapshot) String() string {
	if s.Unknown {
		return "unknown"
	}
	out := fmt.Sprintf("detection=%t monitoring=%t", s.DetectionActive, s.MonitoringActive)
	if age, ok := s.Heartbeat(); ok {
		out += fmt.Sprintf(" heartbeat=%s", age.Round(100*time.Millisecond))
	}
	return out
}

// Profile is a named, saved session config
type Profile struct {
	Name      string        `json:"name" yaml:"name"`
	Config    SessionConfig `json:"config" yaml:"config"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
}
