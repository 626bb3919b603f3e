package framework

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Worker control endpoint paths
const (
	PathHealth     = "/health"
	PathStatus     = "/status"
	PathStart      = "/start"
	PathStop       = "/stop"
	PathTestCamera = "/test-camera"
)

// FakeWorker is a programmable worker control endpoint. Each path has a
// queue of replies consumed in order and a default reply used once the
// queue is empty. Every request is recorded.
type FakeWorker struct {
	server *httptest.Server

	mu       sync.Mutex
	calls    []Call
	queues   map[string][]Reply
	defaults map[string]Reply
}

// NewFakeWorker starts a fake worker that reports an idle, healthy process
func NewFakeWorker() *FakeWorker {
	fw := &FakeWorker{
		queues: make(map[string][]Reply),
		defaults: map[string]Reply{
			PathHealth:     Idle(),
			PathStatus:     {Body: map[string]interface{}{"detection_active": false, "model_loaded": true}},
			PathStart:      OK("Detection started"),
			PathStop:       OK("Detection stopped"),
			PathTestCamera: OK("Camera connection successful"),
		},
	}
	fw.server = httptest.NewServer(http.HandlerFunc(fw.serve))
	return fw
}

// URL returns the base URL of the fake worker
func (fw *FakeWorker) URL() string {
	return fw.server.URL
}

// Close shuts the fake worker down
func (fw *FakeWorker) Close() {
	fw.server.CloseClientConnections()
	fw.server.Close()
}

// Queue appends replies for path, served before the default
func (fw *FakeWorker) Queue(path string, replies ...Reply) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.queues[path] = append(fw.queues[path], replies...)
}

// SetDefault sets the reply used for path once its queue is drained
func (fw *FakeWorker) SetDefault(path string, reply Reply) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.defaults[path] = reply
}

// Calls returns a copy of every recorded request
func (fw *FakeWorker) Calls() []Call {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	out := make([]Call, len(fw.calls))
	copy(out, fw.calls)
	return out
}

// CallCount returns how many requests were made to path
func (fw *FakeWorker) CallCount(path string) int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	n := 0
	for _, c := range fw.calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

// TotalCalls returns the number of requests on any path
func (fw *FakeWorker) TotalCalls() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.calls)
}

// LastBody returns the body of the most recent request on path
func (fw *FakeWorker) LastBody(path string) []byte {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for i := len(fw.calls) - 1; i >= 0; i-- {
		if fw.calls[i].Path == path {
			return fw.calls[i].Body
		}
	}
	return nil
}

func (fw *FakeWorker) next(path string) Reply {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if q := fw.queues[path]; len(q) > 0 {
		fw.queues[path] = q[1:]
		return q[0]
	}
	if r, ok := fw.defaults[path]; ok {
		return r
	}
	return Reply{Status: http.StatusNotFound, Body: map[string]string{"message": "not found"}}
}

func (fw *FakeWorker) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	fw.mu.Lock()
	fw.calls = append(fw.calls, Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   body,
		At:     time.Now(),
	})
	fw.mu.Unlock()

	reply := fw.next(r.URL.Path)

	if !hold(r, reply) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.status())
	if reply.Body != nil {
		_ = json.NewEncoder(w).Encode(reply.Body)
	}
}

// hold applies the reply's delay and gate. It returns false when the client
// went away and the reply does not ignore cancellation.
func hold(r *http.Request, reply Reply) bool {
	done := r.Context().Done()
	if reply.IgnoreCancel {
		done = nil
	}

	if reply.Delay > 0 {
		timer := time.NewTimer(reply.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-done:
			return false
		}
	}

	if reply.Gate != nil {
		select {
		case <-reply.Gate:
		case <-done:
			return false
		}
	}
	return true
}
