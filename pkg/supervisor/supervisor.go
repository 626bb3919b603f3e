package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/lookout/pkg/client"
	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/health"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/reconciler"
	"github.com/cuemby/lookout/pkg/types"
)

// Command names used in logs, metrics, and command.failed events
const (
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandAttach = "attach"
	CommandTest   = "test-camera"
)

// WorkerClient is the subset of the worker API the supervisor drives
type WorkerClient interface {
	Health(ctx context.Context) (types.HealthSnapshot, error)
	Status(ctx context.Context) (*client.StatusResponse, error)
	Start(ctx context.Context, cfg types.SessionConfig) error
	Stop(ctx context.Context) error
	TestCamera(ctx context.Context, url, port string) (*client.CameraTestResult, error)
}

// Status is a read-only view of the supervisor
type Status struct {
	State        types.SessionState    `json:"state"`
	SessionID    string                `json:"session_id,omitempty"`
	Generation   uint64                `json:"generation"`
	Phase        string                `json:"phase,omitempty"`
	AlertEdge    bool                  `json:"alert_edge"`
	Config       *types.SessionConfig  `json:"config,omitempty"`
	LastSnapshot *types.HealthSnapshot `json:"last_snapshot,omitempty"`
	StartedAt    time.Time             `json:"started_at,omitempty"`
}

// Option configures a Supervisor
type Option func(*Supervisor)

// WithPolicy replaces the default timings. Zero fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(s *Supervisor) {
		s.policy = p.withDefaults()
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// Supervisor owns the detection session: its state, the alert edge, and the
// single poll task. All state is mutated under mu; events are published
// after mu is released.
type Supervisor struct {
	client WorkerClient
	sink   events.Sink
	policy Policy
	logger zerolog.Logger

	mu        sync.Mutex
	state     types.SessionState
	alertEdge bool
	staleEdge bool
	sessionID string
	config    *types.SessionConfig
	startedAt time.Time
	last      types.HealthSnapshot
	observed  bool

	nextGen   uint64
	activeGen uint64
	task      *pollTask
	phase     string

	busy   bool
	closed bool
}

// New creates a supervisor driving the worker behind c. Events go to sink,
// which may be nil.
func New(c WorkerClient, sink events.Sink, opts ...Option) *Supervisor {
	if sink == nil {
		sink = events.Discard
	}

	s := &Supervisor{
		client: c,
		sink:   sink,
		policy: DefaultPolicy(),
		logger: log.WithComponent("supervisor"),
		state:  types.SessionStateStopped,
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics.SetSessionState(s.state)
	metrics.RegisterComponent(metrics.ComponentSupervisor, true, "ready")
	return s
}

// Policy returns the timings in effect
func (s *Supervisor) Policy() Policy {
	return s.policy
}

// CurrentState returns the session state
func (s *Supervisor) CurrentState() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the supervisor's view of the session
func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:      s.state,
		SessionID:  s.sessionID,
		Generation: s.activeGen,
		Phase:      s.phase,
		AlertEdge:  s.alertEdge,
		StartedAt:  s.startedAt,
	}
	if s.config != nil {
		cfg := *s.config
		st.Config = &cfg
	}
	if s.observed {
		snap := s.last
		st.LastSnapshot = &snap
	}
	return st
}

// Start validates cfg, asks the worker to start detecting, and on success
// enters Starting and launches the rapid poll phase
func (s *Supervisor) Start(ctx context.Context, cfg types.SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	logger := s.logger.With().Str("camera", cfg.Endpoint()).Logger()
	logger.Info().Msg("Starting detection session")

	// The worker restarts while it handles the start, so polls of the
	// previous session stop before the request goes out
	wasPolling := s.cancelTask()

	timer := metrics.NewTimer()
	startCtx, cancel := context.WithTimeout(ctx, s.policy.StartTimeout)
	err := s.client.Start(startCtx, cfg)
	cancel()
	timer.ObserveDurationVec(metrics.CommandDuration, CommandStart)

	if err != nil {
		if wasPolling {
			// Keep supervising whatever the worker was doing before
			s.mu.Lock()
			s.launchLocked(health.PhaseSteady)
			s.mu.Unlock()
		}
		s.commandFailed(CommandStart, err)
		return err
	}
	metrics.CommandsTotal.WithLabelValues(CommandStart, "success").Inc()

	var out []*events.Event
	s.mu.Lock()
	s.sessionID = uuid.New().String()
	s.config = &cfg
	s.startedAt = time.Now()
	s.alertEdge = false
	s.staleEdge = false
	out = s.transitionLocked(types.SessionStateStarting, "start accepted by worker", out)
	s.launchLocked(health.PhaseRapid)
	sessionID := s.sessionID
	s.mu.Unlock()

	s.publish(out)
	sl := log.WithSessionID(logger, sessionID)
	sl.Info().Msg("Detection session started, confirming")
	return nil
}

// Stop cancels polling and asks the worker to stop. On failure the state
// is left unchanged and polling stays cancelled.
func (s *Supervisor) Stop(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	s.logger.Info().Msg("Stopping detection session")
	s.cancelTask()

	timer := metrics.NewTimer()
	stopCtx, cancel := context.WithTimeout(ctx, s.policy.StopTimeout)
	err := s.client.Stop(stopCtx)
	cancel()
	timer.ObserveDurationVec(metrics.CommandDuration, CommandStop)

	if err != nil {
		s.commandFailed(CommandStop, err)
		return err
	}
	metrics.CommandsTotal.WithLabelValues(CommandStop, "success").Inc()

	var out []*events.Event
	s.mu.Lock()
	out = s.transitionLocked(types.SessionStateStopped, "stop accepted by worker", out)
	s.mu.Unlock()

	s.publish(out)
	s.logger.Info().Msg("Detection session stopped")
	return nil
}

// Attach queries the worker once and adopts a session it reports as
// active, going straight to Running with steady polling. An inactive
// worker leaves the supervisor Stopped.
func (s *Supervisor) Attach(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	timer := metrics.NewTimer()
	statusCtx, cancel := context.WithTimeout(ctx, s.policy.HealthTimeout)
	status, err := s.client.Status(statusCtx)
	cancel()
	timer.ObserveDurationVec(metrics.CommandDuration, CommandAttach)

	if err != nil {
		metrics.UpdateComponent(metrics.ComponentWorker, false, err.Error())
		s.commandFailed(CommandAttach, err)
		return err
	}
	metrics.CommandsTotal.WithLabelValues(CommandAttach, "success").Inc()
	metrics.UpdateComponent(metrics.ComponentWorker, true, "attached")

	s.cancelTask()

	var out []*events.Event
	s.mu.Lock()
	if status.DetectionActive {
		if s.sessionID == "" {
			s.sessionID = uuid.New().String()
			s.startedAt = time.Now()
		}
		s.alertEdge = false
		s.staleEdge = false
		out = s.transitionLocked(types.SessionStateRunning, "attached to active worker", out)
		s.launchLocked(health.PhaseSteady)
	} else {
		out = s.transitionLocked(types.SessionStateStopped, "worker reports no active session", out)
	}
	s.mu.Unlock()

	s.publish(out)
	s.logger.Info().
		Bool("detection_active", status.DetectionActive).
		Bool("model_loaded", status.ModelLoaded).
		Msg("Attached to worker")
	return nil
}

// TestConnection asks the worker to probe a camera. It never changes
// session state. A negative result is returned as a *client.RemoteError
// carrying the worker's message.
func (s *Supervisor) TestConnection(ctx context.Context, url, port string) (bool, error) {
	cfg := types.SessionConfig{CameraURL: url, CameraPort: port}
	if err := cfg.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false, ErrClosed
	}

	timer := metrics.NewTimer()
	testCtx, cancel := context.WithTimeout(ctx, s.policy.TestTimeout)
	defer cancel()

	result, err := s.client.TestCamera(testCtx, url, port)
	timer.ObserveDurationVec(metrics.CommandDuration, CommandTest)
	if err != nil {
		s.commandFailed(CommandTest, err)
		return false, err
	}

	metrics.CommandsTotal.WithLabelValues(CommandTest, "success").Inc()
	s.logger.Info().Str("camera", cfg.Endpoint()).Msg("Camera test succeeded")
	return result.Success, nil
}

// Close cancels polling and waits for it to stop. Later commands return
// ErrClosed.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancelTask()
	metrics.UpdateComponent(metrics.ComponentSupervisor, false, "closed")
	return nil
}

// begin claims the command slot
func (s *Supervisor) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Supervisor) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// commandFailed records a failed command and surfaces it as an event
func (s *Supervisor) commandFailed(command string, err error) {
	kind := client.Kind(err)
	metrics.CommandsTotal.WithLabelValues(command, kind).Inc()
	s.logger.Error().Err(err).Str("command", command).Str("kind", kind).Msg("Session command failed")

	s.mu.Lock()
	ev := s.eventLocked(events.EventCommandFailed, err.Error())
	s.mu.Unlock()

	ev.Metadata = map[string]string{
		"command": command,
		"kind":    kind,
	}
	s.sink.Publish(ev)
}

// transitionLocked moves to state to and appends the matching event.
// Caller holds s.mu.
func (s *Supervisor) transitionLocked(to types.SessionState, reason string, out []*events.Event) []*events.Event {
	from := s.state
	if from == to {
		return out
	}

	s.state = to
	metrics.StateTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	metrics.SetSessionState(to)

	s.logger.Info().
		Str("session_id", s.sessionID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("Session state changed")

	return append(out, s.eventLocked(events.StateEvent(to), reason))
}

// alertLocked appends the event for alert, if any. Caller holds s.mu.
func (s *Supervisor) alertLocked(alert *reconciler.Alert, out []*events.Event) []*events.Event {
	if alert == nil {
		return out
	}

	metrics.AlertsTotal.WithLabelValues(string(alert.Type)).Inc()
	s.logger.Warn().
		Str("session_id", s.sessionID).
		Str("alert", string(alert.Type)).
		Msg(alert.Message)

	return append(out, s.eventLocked(events.EventUnexpectedStop, alert.Message))
}

func (s *Supervisor) eventLocked(typ events.EventType, message string) *events.Event {
	return &events.Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: time.Now(),
		Message:   message,
		SessionID: s.sessionID,
		State:     s.state,
	}
}

func (s *Supervisor) publish(out []*events.Event) {
	for _, ev := range out {
		s.sink.Publish(ev)
	}
}
