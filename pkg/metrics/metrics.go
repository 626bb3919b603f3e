package metrics

import (
	"net/http"

	"github.com/cuemby/lookout/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll tick results
const (
	PollResultOK        = "ok"
	PollResultUnknown   = "unknown"
	PollResultDiscarded = "discarded"
)

var (
	// Session metrics
	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lookout_session_state",
			Help: "Current session state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	StateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_state_transitions_total",
			Help: "Total number of session state transitions",
		},
		[]string{"from", "to"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_alerts_total",
			Help: "Total number of alerts emitted by type",
		},
		[]string{"type"},
	)

	// Poll metrics
	PollTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_poll_ticks_total",
			Help: "Total number of health polls by phase and result",
		},
		[]string{"phase", "result"},
	)

	PollSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_poll_skipped_total",
			Help: "Total number of poll intervals skipped because a query was still in flight",
		},
		[]string{"phase"},
	)

	PollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lookout_poll_duration_seconds",
			Help:    "Health query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	PollConsecutiveFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lookout_poll_consecutive_failures",
			Help: "Number of consecutive failed health polls",
		},
	)

	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_commands_total",
			Help: "Total number of worker commands by command and result",
		},
		[]string{"command", "result"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lookout_command_duration_seconds",
			Help:    "Worker command duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Event metrics
	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lookout_events_dropped_total",
			Help: "Total number of events dropped because a buffer was full",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_notifications_total",
			Help: "Total number of push notifications by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(SessionState)
	prometheus.MustRegister(StateTransitionsTotal)
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(PollTicksTotal)
	prometheus.MustRegister(PollSkippedTotal)
	prometheus.MustRegister(PollDuration)
	prometheus.MustRegister(PollConsecutiveFailures)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(NotificationsTotal)
}

// SetSessionState marks state as the current session state, both on the
// gauge and in the health report
func SetSessionState(state types.SessionState) {
	healthChecker.recordSession(state)
	for _, s := range types.AllSessionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		SessionState.WithLabelValues(string(s)).Set(value)
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
