package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/lookout/pkg/events"
)

type received struct {
	path    string
	body    string
	headers http.Header
}

func newNtfy(t *testing.T, status int) (*httptest.Server, func() []received) {
	t.Helper()

	var mu sync.Mutex
	var got []received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, received{path: r.URL.Path, body: string(body), headers: r.Header.Clone()})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), got...)
	}
}

func TestConfig_URL(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"default base", Config{Topic: "garage-cam"}, "https://ntfy.sh/garage-cam"},
		{"custom base", Config{BaseURL: "https://ntfy.example.com/", Topic: "/garage-cam"}, "https://ntfy.example.com/garage-cam"},
		{"full url topic", Config{BaseURL: "https://ignored", Topic: "http://10.0.0.2:8080/alerts"}, "http://10.0.0.2:8080/alerts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.URL())
		})
	}

	assert.False(t, Config{Topic: "  "}.Enabled())
	assert.True(t, Config{Topic: "x"}.Enabled())
}

func TestNotifier_Send(t *testing.T) {
	srv, got := newNtfy(t, http.StatusOK)
	n := New(Config{BaseURL: srv.URL, Topic: "garage-cam", Priority: "low"}, srv.Client())

	err := n.Send(context.Background(), Message{Title: "hello", Body: "world", Tags: []string{"a", "b"}})
	require.NoError(t, err)

	reqs := got()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/garage-cam", reqs[0].path)
	assert.Equal(t, "world", reqs[0].body)
	assert.Equal(t, "hello", reqs[0].headers.Get("Title"))
	assert.Equal(t, "low", reqs[0].headers.Get("Priority"), "configured priority is the fallback")
	assert.Equal(t, "a,b", reqs[0].headers.Get("Tags"))
}

func TestNotifier_SendRejected(t *testing.T) {
	srv, _ := newNtfy(t, http.StatusTooManyRequests)
	n := New(Config{BaseURL: srv.URL, Topic: "t"}, srv.Client())

	err := n.Send(context.Background(), Message{Title: "x", Body: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestMessageFor(t *testing.T) {
	at := time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)

	msg, ok := MessageFor(&events.Event{Type: events.EventUnexpectedStop, Timestamp: at, Message: "Detection session stopped unexpectedly"}, "default")
	require.True(t, ok)
	assert.Equal(t, "high", msg.Priority)
	assert.Equal(t, "[13:04:05] Detection session stopped unexpectedly", msg.Body)

	msg, ok = MessageFor(&events.Event{Type: events.EventCommandFailed, Timestamp: at, Message: "boom", Metadata: map[string]string{"command": "stop"}}, "min")
	require.True(t, ok)
	assert.Equal(t, "Session stop failed", msg.Title)
	assert.Equal(t, "min", msg.Priority)

	_, ok = MessageFor(&events.Event{Type: events.EventSessionRunning, Timestamp: at}, "default")
	assert.False(t, ok, "state changes do not notify")
}

func TestNotifier_Run(t *testing.T) {
	srv, got := newNtfy(t, http.StatusOK)
	n := New(Config{BaseURL: srv.URL, Topic: "garage-cam"}, srv.Client())

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(ctx, sub)
	}()

	broker.Publish(&events.Event{Type: events.EventSessionRunning})
	broker.Publish(&events.Event{Type: events.EventUnexpectedStop, Message: "stopped"})

	require.Eventually(t, func() bool { return len(got()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "high", got()[0].headers.Get("Priority"))

	cancel()
	<-done
	broker.Unsubscribe(sub)
}
