package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/lookout/pkg/types"
)

// Component names reported by the watch daemon
const (
	ComponentWorker     = "worker"
	ComponentSupervisor = "supervisor"
	ComponentNotifier   = "notifier"
)

// HealthStatus is the process view served on /health and /ready
type HealthStatus struct {
	Status     string            `json:"status"` // healthy/unhealthy, or ready/not_ready
	Timestamp  time.Time         `json:"timestamp"`
	Session    string            `json:"session,omitempty"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	StartTime  time.Time         `json:"-"`
}

// ComponentHealth is the last report of one component. Since is when the
// component last flipped between healthy and unhealthy.
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
	Since   time.Time
}

// HealthChecker keeps the component reports of the watch daemon together
// with the session state the supervisor last published
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	critical   []string
	session    types.SessionState
	startTime  time.Time
	version    string
}

var healthChecker = newHealthChecker()

func newHealthChecker() *HealthChecker {
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		critical:   []string{ComponentSupervisor, ComponentWorker},
		startTime:  time.Now(),
	}
}

// SetVersion sets the version reported on /health and /ready
func SetVersion(version string) {
	healthChecker.mu.Lock()
	healthChecker.version = version
	healthChecker.mu.Unlock()
}

// SetCriticalComponents replaces the components that gate readiness
func SetCriticalComponents(names ...string) {
	healthChecker.mu.Lock()
	healthChecker.critical = append([]string(nil), names...)
	healthChecker.mu.Unlock()
}

// RegisterComponent records a report for name
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.report(name, healthy, message)
}

// UpdateComponent records a report for name. The worker component is
// updated on every poll tick, so a flapping worker shows up in Since.
func UpdateComponent(name string, healthy bool, message string) {
	healthChecker.report(name, healthy, message)
}

func (h *HealthChecker) report(name string, healthy bool, message string) {
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	since := now
	if prev, ok := h.components[name]; ok && prev.Healthy == healthy {
		since = prev.Since
	}
	h.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: now,
		Since:   since,
	}
}

func (h *HealthChecker) recordSession(state types.SessionState) {
	h.mu.Lock()
	h.session = state
	h.mu.Unlock()
}

// GetHealth reports every component. Any unhealthy component, critical or
// not, makes the status unhealthy.
func GetHealth() HealthStatus {
	h := healthChecker
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	components := make(map[string]string, len(h.components))
	for name, comp := range h.components {
		if comp.Healthy {
			components[name] = "healthy"
			continue
		}
		status = "unhealthy"
		components[name] = "unhealthy: " + comp.Message
	}

	return h.statusLocked(status, "", components)
}

// GetReadiness reports whether the supervisor is up and the worker has
// answered its last poll. The session state is informational only: an idle
// worker with no session is still ready.
func GetReadiness() HealthStatus {
	h := healthChecker
	h.mu.RLock()
	defer h.mu.RUnlock()

	critical := append([]string(nil), h.critical...)
	sort.Strings(critical)

	status := "ready"
	var message string
	checks := make(map[string]string, len(critical))
	for _, name := range critical {
		comp, ok := h.components[name]
		switch {
		case !ok:
			checks[name] = "not registered"
			if message == "" {
				message = name + " has not reported yet"
			}
		case !comp.Healthy:
			checks[name] = "not ready: " + comp.Message
			if message == "" {
				message = name + " unhealthy for " + time.Since(comp.Since).Round(time.Second).String()
			}
		default:
			checks[name] = "ready"
			continue
		}
		status = "not_ready"
	}

	return h.statusLocked(status, message, checks)
}

func (h *HealthChecker) statusLocked(status, message string, components map[string]string) HealthStatus {
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Session:    string(h.session),
		Components: components,
		Message:    message,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		StartTime:  h.startTime,
	}
}

// LivenessHandler answers 200 for as long as the process is serving
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).Round(time.Second).String(),
		})
	}
}
