package api

import (
	"net/http"
	"time"

	"github.com/cuemby/lookout/pkg/metrics"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version,omitempty"`
	Session    string            `json:"session"`
	Uptime     string            `json:"uptime,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint
// This is a simple liveness check - returns 200 if the process is alive.
// Component health is reported but does not change the status code.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := metrics.GetHealth()
	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Version:    s.opts.Version,
		Session:    string(s.session.Snapshot().State),
		Uptime:     health.Uptime,
		Components: health.Components,
	}

	writeJSON(w, http.StatusOK, response)
}

// readyHandler implements the /ready endpoint
// Ready once the supervisor is up and the worker has answered a poll
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	readiness := metrics.GetReadiness()
	checks := readiness.Components
	if checks == nil {
		checks = make(map[string]string)
	}

	status := "ready"
	statusCode := http.StatusOK
	message := readiness.Message

	if readiness.Status != "ready" {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	// The session state is informational: a stopped session is still ready
	checks["session"] = string(s.session.Snapshot().State)

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	writeJSON(w, statusCode, response)
}
