/*
Package supervisor owns the lifecycle of a remote detection session.

A Supervisor issues start, stop, and attach commands against the worker,
then follows the worker's health with a single background poll task and
derives the session state from what it observes.

# State Machine

	          Start ok             rapid phase confirms
	Stopped ───────────▶ Starting ─────────────────────▶ Running
	   ▲                    │                              │  ▲
	   │                    │ never became active          │  │ recovered
	   │◀───────────────────┘                              ▼  │
	   │                                                   Failed
	   └──────────────── Stop ok (from any state) ◀────────────┘

Start enters Starting only after the worker accepted the command. The rapid
phase then polls RapidTicks times at RapidInterval. Active throughout means
Running and steady polling at SteadyInterval. Active followed by inactive
means Failed, one unexpected-stop alert, and steady polling so the worker
can recover. Never active means Stopped and no more polling. If every rapid
tick failed the worker was never observed: the session stays Starting and
steady polling decides once the worker answers.

# Poll Task

At most one poll task exists. Each task carries a generation number; every
snapshot is applied only if its generation is still the active one, so a
response that arrives after cancellation is discarded. Start and Stop
cancel the task and wait for it to exit before they send their request. A
failed Start resumes steady polling of whatever was being supervised.

# Commands

Start, Stop, and Attach are mutually exclusive: while one is in flight the
others fail fast with ErrBusy. Configuration is validated before the busy
check and before any network call. TestConnection runs independently and
never touches session state, but its failures are published like the
others.

Failed commands are returned to the caller unchanged (*client.TimeoutError,
*client.NetworkError, *client.RemoteError) and published as command.failed
events.
*/
package supervisor
