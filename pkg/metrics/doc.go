/*
Package metrics provides Prometheus metrics and component health tracking
for Lookout.

All collectors are package-level variables registered with the default
Prometheus registry in init, so importing the package is enough to expose
them through Handler.

# Metrics

Session:

	lookout_session_state{state}               gauge, 1 for the current state
	lookout_state_transitions_total{from,to}   counter
	lookout_alerts_total{type}                 counter (alert.unexpected_stop, alert.heartbeat_stale)

Polling:

	lookout_poll_ticks_total{phase,result}     counter (phase rapid|steady, result ok|unknown|discarded)
	lookout_poll_skipped_total{phase}          counter, intervals skipped while a query was in flight
	lookout_poll_duration_seconds{phase}       histogram
	lookout_poll_consecutive_failures          gauge

Commands and delivery:

	lookout_commands_total{command,result}     counter (result success|timeout|network|remote|other)
	lookout_command_duration_seconds{command}  histogram
	lookout_events_dropped_total               counter, broker and subscriber buffer overflows
	lookout_notifications_total{result}        counter (sent|error|rejected)

# Component health

Components report themselves with RegisterComponent and UpdateComponent.
GetReadiness is ready only when every critical component (by default the
supervisor and the worker) is registered and healthy. The supervisor marks
the worker healthy on every answered poll and unhealthy on every failed one.

# Timing

	timer := metrics.NewTimer()
	err := c.Start(ctx, cfg)
	timer.ObserveDurationVec(metrics.CommandDuration, "start")
*/
package metrics
