package health

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/types"
	"github.com/rs/zerolog"
)

// Poll phases, used as log and metric labels
const (
	PhaseRapid  = "rapid"
	PhaseSteady = "steady"
)

// Handler receives each snapshot together with the generation of the
// poller that produced it. Returning false ends the poll loop.
type Handler func(gen uint64, snap types.HealthSnapshot) bool

// Poller runs a fixed-interval health poll loop bound to one generation.
// At most one query is in flight; an interval that elapses while a query is
// still running is skipped rather than queued.
type Poller struct {
	gen     uint64
	probe   Probe
	config  Config
	handler Handler
	phase   string
	logger  zerolog.Logger

	mu     sync.Mutex
	status *Status
}

// NewPoller creates a poller for generation gen
func NewPoller(gen uint64, probe Probe, config Config, handler Handler) *Poller {
	return &Poller{
		gen:     gen,
		probe:   probe,
		config:  config,
		handler: handler,
		phase:   PhaseSteady,
		logger:  log.WithGeneration(log.WithComponent("poller"), gen),
		status:  NewStatus(),
	}
}

// WithLogger sets the parent logger; the generation field is added to it
func (p *Poller) WithLogger(logger zerolog.Logger) *Poller {
	p.logger = log.WithGeneration(logger, p.gen)
	return p
}

// WithPhase sets the phase label
func (p *Poller) WithPhase(phase string) *Poller {
	p.phase = phase
	p.logger = p.logger.With().Str("phase", phase).Logger()
	return p
}

// Generation returns the generation this poller reports under
func (p *Poller) Generation() uint64 {
	return p.gen
}

// Status returns a copy of the poll status
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.status
}

// Run polls until ctx is cancelled or the handler returns false. Results
// produced after cancellation are dropped, never passed to the handler.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.logger.Debug().
		Dur("interval", p.config.Interval).
		Dur("timeout", p.config.Timeout).
		Msg("Health poller started")
	defer func() {
		p.logger.Debug().Msg("Health poller stopped")
	}()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}

		if ctx.Err() != nil {
			return
		}

		snap, ok := p.tick(ctx)
		if !ok {
			return
		}
		if !p.handler(p.gen, snap) {
			return
		}

		select {
		case <-ticker.C:
			metrics.PollSkippedTotal.WithLabelValues(p.phase).Inc()
			p.logger.Debug().Msg("Health query overran the poll interval, skipping one tick")
		default:
		}
	}
}

// tick performs one poll. ok is false when ctx was cancelled meanwhile.
func (p *Poller) tick(ctx context.Context) (types.HealthSnapshot, bool) {
	timer := metrics.NewTimer()
	snap := Check(ctx, p.probe, p.config.Timeout)
	timer.ObserveDurationVec(metrics.PollDuration, p.phase)

	if ctx.Err() != nil {
		metrics.PollTicksTotal.WithLabelValues(p.phase, metrics.PollResultDiscarded).Inc()
		p.logger.Debug().Msg("Discarding snapshot from cancelled poll")
		return snap, false
	}

	p.mu.Lock()
	flipped := p.status.Update(snap, p.config)
	failures := p.status.ConsecutiveFailures
	degraded := p.status.Degraded
	p.mu.Unlock()

	metrics.PollConsecutiveFailures.Set(float64(failures))

	if snap.Unknown {
		metrics.PollTicksTotal.WithLabelValues(p.phase, metrics.PollResultUnknown).Inc()
		p.logger.Warn().
			Str("error", snap.Error).
			Int("consecutive_failures", failures).
			Msg("Health poll failed, worker state unknown")
	} else {
		metrics.PollTicksTotal.WithLabelValues(p.phase, metrics.PollResultOK).Inc()
		p.logger.Debug().Str("snapshot", snap.String()).Msg("Health poll")
	}

	if flipped {
		if degraded {
			p.logger.Warn().
				Int("consecutive_failures", failures).
				Msg("Worker unreachable, keeping last known session state")
		} else {
			p.logger.Info().Msg("Worker reachable again")
		}
	}

	return snap, true
}
