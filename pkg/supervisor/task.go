package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/health"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/reconciler"
	"github.com/cuemby/lookout/pkg/types"
)

// pollTask is the single background poll loop of the supervisor. A task
// runs the rapid phase, the steady phase, or the first followed by the
// second, all under one generation.
type pollTask struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// launchLocked starts a new poll task beginning in phase. The previous task
// must already be cancelled and awaited. Caller holds s.mu.
func (s *Supervisor) launchLocked(phase string) {
	if s.closed {
		return
	}

	s.nextGen++
	ctx, cancel := context.WithCancel(context.Background())
	task := &pollTask{
		gen:    s.nextGen,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.task = task
	s.activeGen = task.gen
	s.phase = phase

	go s.runTask(ctx, task, phase)
}

// cancelTask cancels the active poll task and waits for it to exit. It
// reports whether a task was running. Snapshots still in flight are
// discarded by the generation check.
func (s *Supervisor) cancelTask() bool {
	s.mu.Lock()
	task := s.task
	s.task = nil
	s.activeGen = 0
	s.phase = ""
	s.mu.Unlock()

	if task == nil {
		return false
	}

	task.cancel()
	<-task.done
	s.logger.Debug().Uint64("generation", task.gen).Msg("Poll task cancelled")
	return true
}

func (s *Supervisor) runTask(ctx context.Context, task *pollTask, phase string) {
	defer close(task.done)
	defer task.cancel()

	if phase == health.PhaseRapid {
		if !s.runRapid(ctx, task.gen) {
			return
		}
	}
	s.runSteady(ctx, task.gen)
}

// runRapid runs the rapid phase and reports whether steady polling should
// follow
func (s *Supervisor) runRapid(ctx context.Context, gen uint64) bool {
	tracker := reconciler.NewRapidPhase(s.policy.RapidTicks)
	steady := false

	poller := health.NewPoller(gen, s.client, s.policy.rapidConfig(), func(gen uint64, snap types.HealthSnapshot) bool {
		cont, next := s.applyRapid(gen, snap, tracker.Observe(snap))
		steady = next
		return cont
	}).WithLogger(s.logger).WithPhase(health.PhaseRapid)

	poller.Run(ctx)
	return steady && ctx.Err() == nil
}

func (s *Supervisor) runSteady(ctx context.Context, gen uint64) {
	poller := health.NewPoller(gen, s.client, s.policy.steadyConfig(), s.applySteady).
		WithLogger(s.logger).
		WithPhase(health.PhaseSteady)

	poller.Run(ctx)
}

// applyRapid applies one rapid-phase tick. cont reports whether the rapid
// phase goes on; steady whether steady polling takes over when it ends.
func (s *Supervisor) applyRapid(gen uint64, snap types.HealthSnapshot, outcome reconciler.RapidOutcome) (cont, steady bool) {
	var out []*events.Event

	s.mu.Lock()
	if gen != s.activeGen {
		s.mu.Unlock()
		return false, false
	}

	out = s.observeLocked(snap, out)

	switch outcome {
	case reconciler.RapidContinue:
		cont = true

	case reconciler.RapidRunning:
		s.alertEdge = false
		out = s.transitionLocked(types.SessionStateRunning, "worker confirmed active", out)
		s.phase = health.PhaseSteady
		steady = true

	case reconciler.RapidFailed:
		alert, edge := reconciler.UnexpectedStop(s.alertEdge)
		s.alertEdge = edge
		out = s.transitionLocked(types.SessionStateFailed, "detection stopped during start-up", out)
		out = s.alertLocked(alert, out)
		s.phase = health.PhaseSteady
		steady = true

	case reconciler.RapidStopped:
		out = s.transitionLocked(types.SessionStateStopped, "worker never became active", out)
		s.phase = ""

	case reconciler.RapidUnconfirmed:
		// State stays Starting until steady polling gets a real answer
		s.logger.Warn().Int("ticks", s.policy.RapidTicks).Msg("Worker unreachable during start-up, continuing with steady polling")
		s.phase = health.PhaseSteady
		steady = true
	}
	s.mu.Unlock()

	s.publish(out)
	return cont, steady
}

// applySteady applies one steady-phase tick through the decision table
func (s *Supervisor) applySteady(gen uint64, snap types.HealthSnapshot) bool {
	var out []*events.Event

	s.mu.Lock()
	if gen != s.activeGen {
		s.mu.Unlock()
		return false
	}

	out = s.observeLocked(snap, out)

	prev := s.state
	d := reconciler.Reconcile(prev, snap, s.alertEdge)
	s.alertEdge = d.AlertEdge
	if d.Changed(prev) {
		out = s.transitionLocked(d.State, reconciler.Describe(prev, d), out)
	}
	out = s.alertLocked(d.Alert, out)
	s.mu.Unlock()

	s.publish(out)
	return true
}

// observeLocked records a snapshot and runs the checks that do not depend
// on the poll phase. Caller holds s.mu.
func (s *Supervisor) observeLocked(snap types.HealthSnapshot, out []*events.Event) []*events.Event {
	if snap.Unknown {
		metrics.UpdateComponent(metrics.ComponentWorker, false, snap.Error)
		return out
	}

	s.last = snap
	s.observed = true
	metrics.UpdateComponent(metrics.ComponentWorker, true, snap.String())

	stale := reconciler.HeartbeatStale(snap, s.policy.HeartbeatStaleAfter)
	switch {
	case stale && !s.staleEdge:
		s.staleEdge = true
		age, _ := snap.Heartbeat()
		s.logger.Warn().
			Dur("heartbeat_age", age).
			Dur("threshold", s.policy.HeartbeatStaleAfter).
			Msg("Worker heartbeat is stale")
		metrics.AlertsTotal.WithLabelValues(string(events.EventHeartbeatStale)).Inc()
		out = append(out, s.eventLocked(events.EventHeartbeatStale,
			fmt.Sprintf("No detection heartbeat for %s", age.Round(100*time.Millisecond))))
	case !stale:
		s.staleEdge = false
	}

	return out
}
