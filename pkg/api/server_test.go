package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/lookout/pkg/client"
	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/cuemby/lookout/pkg/supervisor"
	"github.com/cuemby/lookout/pkg/types"
)

type fakeSession struct {
	mu       sync.Mutex
	state    types.SessionState
	started  []types.SessionConfig
	stops    int
	attaches int
	err      error
}

func (f *fakeSession) Snapshot() supervisor.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return supervisor.Status{State: f.state, SessionID: "sess-1"}
}

func (f *fakeSession) Start(ctx context.Context, cfg types.SessionConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, cfg)
	f.state = types.SessionStateStarting
	return nil
}

func (f *fakeSession) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stops++
	f.state = types.SessionStateStopped
	return nil
}

func (f *fakeSession) Attach(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attaches++
	return f.err
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Session(t *testing.T) {
	session := &fakeSession{state: types.SessionStateRunning}
	h := NewServer(session, nil, Options{}).Handler()

	w := do(t, h, http.MethodGet, "/session", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status supervisor.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, types.SessionStateRunning, status.State)
	assert.Equal(t, "sess-1", status.SessionID)
}

func TestServer_StartStop(t *testing.T) {
	session := &fakeSession{state: types.SessionStateStopped}
	h := NewServer(session, nil, Options{}).Handler()

	w := do(t, h, http.MethodPost, "/session/start", `{"ipCameraUrl":"webcam://0","enablePersonDetection":true}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, session.started, 1)
	assert.Equal(t, "webcam://0", session.started[0].CameraURL)
	assert.True(t, session.started[0].EnablePersonDetection)

	w = do(t, h, http.MethodPost, "/session/stop", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, session.stops)

	w = do(t, h, http.MethodPost, "/session/attach", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, session.attaches)

	w = do(t, h, http.MethodGet, "/session/stop", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		body       string
		wantStatus int
		wantKind   string
	}{
		{"validation", nil, `{"ipCameraUrl":""}`, http.StatusBadRequest, "validation"},
		{"bad json", nil, `{`, http.StatusBadRequest, "validation"},
		{"busy", supervisor.ErrBusy, `{"ipCameraUrl":"webcam://0"}`, http.StatusConflict, "busy"},
		{"closed", supervisor.ErrClosed, `{"ipCameraUrl":"webcam://0"}`, http.StatusServiceUnavailable, "closed"},
		{"timeout", &client.TimeoutError{Op: client.OpStart}, `{"ipCameraUrl":"webcam://0"}`, http.StatusGatewayTimeout, "timeout"},
		{"remote", &client.RemoteError{Op: client.OpStart, StatusCode: 500, Message: "model not loaded"}, `{"ipCameraUrl":"webcam://0"}`, http.StatusBadGateway, "remote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(&fakeSession{err: tt.err}, nil, Options{}).Handler()

			w := do(t, h, http.MethodPost, "/session/start", tt.body, nil)
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServer_ReadOnly(t *testing.T) {
	session := &fakeSession{state: types.SessionStateRunning}
	h := NewServer(session, nil, Options{ReadOnly: true}).Handler()

	w := do(t, h, http.MethodPost, "/session/stop", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, session.stops)

	w = do(t, h, http.MethodGet, "/session", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Token(t *testing.T) {
	h := NewServer(&fakeSession{}, nil, Options{Token: "s3cret"}).Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/session", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/session", "", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/session?token=s3cret", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/live", "", nil).Code, "probes stay open")
}

func TestServer_Metrics(t *testing.T) {
	metrics.SetSessionState(types.SessionStateStopped)
	h := NewServer(&fakeSession{}, nil, Options{}).Handler()

	w := do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lookout_session_state")
}

func TestServer_EventStream(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	s := NewServer(&fakeSession{}, broker, Options{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	broker.Publish(&events.Event{Type: events.EventUnexpectedStop, Message: "Detection session stopped unexpectedly"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.EventUnexpectedStop, ev.Type)
	assert.NotEmpty(t, ev.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "stream closed on shutdown: %v", err)
	assert.Equal(t, 0, broker.SubscriberCount())
}
