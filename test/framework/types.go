package framework

import (
	"net/http"
	"time"
)

// Reply describes how the fake worker answers one request
type Reply struct {
	// Status is the HTTP status code (default: 200)
	Status int
	// Body is encoded as JSON; nil sends an empty body
	Body interface{}
	// Delay holds the response back, aborted early if the client goes away
	Delay time.Duration
	// Gate, when set, holds the response until the channel is closed
	Gate <-chan struct{}
	// IgnoreCancel keeps holding the response even after the client gave up
	IgnoreCancel bool
}

func (r Reply) status() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// Call records one request served by the fake worker
type Call struct {
	Method string
	Path   string
	Body   []byte
	At     time.Time
}

// HealthBody builds a GET /health body
func HealthBody(detection, monitoring bool, heartbeatAge *float64) map[string]interface{} {
	return map[string]interface{}{
		"status":            "healthy",
		"detection_active":  detection,
		"monitoring_active": monitoring,
		"heartbeat_age":     heartbeatAge,
	}
}

// Active is a /health reply for a worker that is detecting
func Active() Reply {
	age := 1.0
	return Reply{Body: HealthBody(true, true, &age)}
}

// Inactive is a /health reply for a worker whose detection loop died while
// its monitor thread is still up
func Inactive() Reply {
	return Reply{Body: HealthBody(false, true, nil)}
}

// Idle is a /health reply for a worker with nothing running
func Idle() Reply {
	return Reply{Body: HealthBody(false, false, nil)}
}

// Failure is an error reply carrying the worker's {success, message} body
func Failure(status int, message string) Reply {
	return Reply{
		Status: status,
		Body: map[string]interface{}{
			"success": false,
			"message": message,
		},
	}
}

// OK is a plain success reply
func OK(message string) Reply {
	return Reply{
		Body: map[string]interface{}{
			"success": true,
			"message": message,
		},
	}
}
