/*
Package client is an HTTP/JSON client for the detection worker's control
endpoint.

	GET  /health       detection_active, monitoring_active, heartbeat_age
	GET  /status       detection_active, model_loaded
	POST /start        types.SessionConfig
	POST /stop
	POST /test-camera  {url, port} -> {success, message}

Any 2xx is success. Failures carry a {message} body which is surfaced
verbatim.

# Errors

Every call returns one of three error types, so callers can tell a slow
worker from an unreachable one from a refusal:

	*TimeoutError  the context deadline expired
	*NetworkError  the request never got an answer
	*RemoteError   the worker answered with a non-2xx status

Kind returns the matching label for metrics and events.

# Usage

	c := client.NewClient("http://jetson.local:5000", client.WithBearerToken(token))

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := c.Start(ctx, cfg); err != nil {
		var remote *client.RemoteError
		if errors.As(err, &remote) {
			fmt.Println(remote.Message)
		}
	}

Deadlines come from the caller's context. The underlying http.Client only
carries a 60s backstop.
*/
package client
