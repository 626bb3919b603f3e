/*
Package api implements the local HTTP API served by `lookout watch`.

The API lets other processes on the host inspect and drive the running
supervisor without talking to the worker directly, and streams supervisor
events to dashboards over a websocket.

# Architecture

	┌──────────── CLIENT (curl / lookout events / dashboard) ────────────┐
	│   HTTP GET/POST                       websocket /events            │
	└───────────────┬───────────────────────────────┬────────────────────┘
	                │                               │
	┌───────────────▼───────────────────────────────▼────────────────────┐
	│  LogRequests → AllowFrom → RequireToken → LimitCommands → ReadOnly │
	│                                                                     │
	│   /session*  ──► Session (supervisor)                               │
	│   /events    ──► events.Broker subscription                         │
	│   /health /ready /live /metrics ──► pkg/metrics                     │
	└─────────────────────────────────────────────────────────────────────┘

# Endpoints

	GET  /health          process liveness plus the current session state
	GET  /ready           503 until the supervisor and worker components report healthy
	GET  /live            bare liveness probe
	GET  /metrics         Prometheus exposition
	GET  /session         supervisor.Status as JSON
	POST /session/start   body is a types.SessionConfig (worker JSON tags)
	POST /session/stop
	POST /session/attach  adopt a session started elsewhere
	GET  /events          websocket, one JSON events.Event per message

# Errors

Failures are returned as ErrorResponse with a kind:

	validation    400  invalid config or body
	forbidden     403  read-only API or address not allowed
	busy          409  another command is in flight
	rate_limited  429  too many session commands from one client
	closed        503  supervisor shut down
	timeout       504  worker did not answer in time
	network       502  worker unreachable
	remote        502  worker answered with a failure

# Access control

Options.Token requires `Authorization: Bearer <token>` (or ?token= for
websocket clients). /live and /health stay open for probes. Options.ReadOnly
rejects every non-GET request with 403.

Options.AllowedIPs restricts clients by address (403 otherwise), and
Options.CommandRate limits POST requests per client address with a token
bucket (429 once the burst is spent). Reads are never rate limited.
*/
package api
