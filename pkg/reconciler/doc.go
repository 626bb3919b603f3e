/*
Package reconciler turns worker health snapshots into detection session
state.

Everything in this package is a pure function of its inputs. The
supervisor owns the state, the alert edge, and the poll loops; the
reconciler only decides.

# Decision Table

Reconcile applies one snapshot to the previous state:

	snapshot        condition                      next      edge
	--------        ---------                      ----      ----
	Unknown         any                            previous  unchanged
	detection=on    any                            Running   reset
	detection=off   prev=Running, monitoring=on    Failed    set, alert if it was clear
	detection=off   anything else                  Stopped   unchanged

An Unknown snapshot is a failed poll (timeout, connection refused, bad
response). It carries no information about the worker and therefore never
transitions the session.

The alert edge makes the unexpected-stop alert fire once per excursion:
the first Running to inactive observation alerts and sets the edge, later
inactive observations stay silent, and the edge clears only when the
worker is seen active again.

# Rapid Phase

After a start command the supervisor polls quickly for a fixed number of
ticks. RapidPhase tracks that burst:

	tick:     1        2        3        4        5
	          active   active   active   active   active    -> RapidRunning
	          active   inactive                             -> RapidFailed
	          inactive inactive inactive inactive inactive  -> RapidStopped
	          unknown  unknown  unknown  unknown  unknown   -> RapidUnconfirmed

An inactive observation after an earlier active one ends the phase
immediately with RapidFailed. Otherwise the last known observation at the
final tick decides between RapidRunning and RapidStopped. Unknown ticks
consume a tick but are never an observation, so a phase in which every
poll failed ends RapidUnconfirmed and leaves the state where it was.

# Heartbeat

HeartbeatStale flags an active worker whose heartbeat is older than a
threshold. It does not change state; the supervisor reports it as an
event.
*/
package reconciler
