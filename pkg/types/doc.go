/*
Package types defines the core data types shared across Lookout.

These are plain values with no behaviour beyond validation and formatting:
the session configuration sent to the detection worker, the health snapshot
produced by each poll, and the session state owned by the supervisor.

# Session State

The supervisor is the only writer of SessionState:

	stopped ──Start──▶ starting ──rapid poll ok──▶ running
	   ▲                   │                          │
	   │                   └──never came up───────────┤
	   │                                              ▼
	   └────────────Stop / inactive────────────── failed

Failed is entered when a running worker goes quiet without being asked to.
Polling continues in that state, so a worker that recovers on its own is
picked up again as running.

# Health Snapshots

A HealthSnapshot is immutable and belongs to the poll generation that
produced it. When a poll fails (timeout, connection refused) the poller
produces an Unknown snapshot instead of an error:

	snap := types.UnknownSnapshot(time.Now(), err)
	snap.Unknown // true, activity flags are meaningless

Unknown snapshots never move the state machine.

# Session Config

SessionConfig uses the worker's JSON field names (ipCameraUrl, ntfyTopic,
...) so it can be posted to /start as-is. Validate rejects an empty camera
URL with a *ValidationError.
*/
package types
