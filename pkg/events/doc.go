/*
Package events provides the in-memory event broker used to fan supervisor
events out to the daemon's consumers.

The supervisor publishes state transitions, alerts, and command failures
through the Sink interface. A Broker queues them (buffer: 100) and a single
distribution loop copies each event to every subscriber channel (buffer:
50 each).

	Supervisor ──Publish──▶ Broker queue ──▶ broadcast loop
	                                            │
	                   ┌────────────────────────┼──────────────────┐
	                   ▼                        ▼                  ▼
	             ntfy notifier          /events websocket     CLI watch log

Publish never blocks. An event that does not fit the queue, or a
subscriber that has fallen behind, loses the event and the
lookout_events_dropped_total counter is incremented.

# Event Types

	session.starting        start accepted, rapid polling begins
	session.running         worker confirmed active
	session.stopped         worker confirmed inactive
	session.failed          running worker stopped on its own
	alert.unexpected_stop   fired once per Running to Failed excursion
	alert.heartbeat_stale   active worker stopped refreshing its heartbeat
	command.failed          start, stop, or attach was rejected

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.Message)
	}
*/
package events
