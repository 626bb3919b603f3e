package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/lookout/pkg/types"
	"github.com/cuemby/lookout/test/framework"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Health(t *testing.T) {
	fw := framework.NewFakeWorker()
	defer fw.Close()

	age := 2.5
	fw.Queue(framework.PathHealth, framework.Reply{Body: framework.HealthBody(true, true, &age)})

	c := NewClient(fw.URL())
	snap, err := c.Health(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.DetectionActive)
	assert.True(t, snap.MonitoringActive)
	assert.False(t, snap.Unknown)
	require.NotNil(t, snap.HeartbeatAge)
	assert.Equal(t, 2.5, *snap.HeartbeatAge)
	assert.False(t, snap.ObservedAt.IsZero())
}

func TestClient_HealthNullHeartbeat(t *testing.T) {
	fw := framework.NewFakeWorker()
	defer fw.Close()

	c := NewClient(fw.URL())
	snap, err := c.Health(context.Background())
	require.NoError(t, err)

	assert.False(t, snap.DetectionActive)
	assert.Nil(t, snap.HeartbeatAge)
}

func TestClient_HealthInvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Health(context.Background())

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, OpHealth, remoteErr.Op)
}

func TestClient_StartSendsConfig(t *testing.T) {
	fw := framework.NewFakeWorker()
	defer fw.Close()

	cfg := types.SessionConfig{
		CameraURL:             "rtsp://10.0.0.5/stream",
		CameraPort:            "554",
		NotifyTopic:           "porch",
		NotifyPriority:        "high",
		EnablePersonDetection: true,
	}

	err := NewClient(fw.URL()).Start(context.Background(), cfg)
	require.NoError(t, err)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(fw.LastBody(framework.PathStart), &sent))
	assert.Equal(t, "rtsp://10.0.0.5/stream", sent["ipCameraUrl"])
	assert.Equal(t, "554", sent["ipCameraPort"])
	assert.Equal(t, "porch", sent["ntfyTopic"])
	assert.Equal(t, "high", sent["ntfyPriority"])
	assert.Equal(t, true, sent["enablePersonDetection"])
	assert.Equal(t, false, sent["enableLogging"])
}

func TestClient_StartRemoteError(t *testing.T) {
	tests := []struct {
		name        string
		reply       framework.Reply
		wantMessage string
		wantStatus  int
	}{
		{
			name:        "worker message surfaced verbatim",
			reply:       framework.Failure(http.StatusBadRequest, "Detection is already running"),
			wantMessage: "Detection is already running",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "empty body falls back to generic message",
			reply:       framework.Reply{Status: http.StatusInternalServerError},
			wantMessage: "Failed to start detection (HTTP 500 Internal Server Error)",
			wantStatus:  http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := framework.NewFakeWorker()
			defer fw.Close()
			fw.Queue(framework.PathStart, tt.reply)

			err := NewClient(fw.URL()).Start(context.Background(), types.SessionConfig{CameraURL: "webcam://0"})

			var remoteErr *RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.wantStatus, remoteErr.StatusCode)
			assert.Equal(t, tt.wantMessage, err.Error())
			assert.Equal(t, "remote", Kind(err))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	fw := framework.NewFakeWorker()
	defer fw.Close()
	fw.Queue(framework.PathStart, framework.Reply{Delay: 500 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := NewClient(fw.URL()).Start(ctx, types.SessionConfig{CameraURL: "webcam://0"})

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, OpStart, timeoutErr.Op)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "timeout", Kind(err))
}

func TestClient_NetworkError(t *testing.T) {
	// Grab a free address, then close the listener so nothing answers
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	err := NewClient(addr).Stop(context.Background())

	var networkErr *NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Equal(t, OpStop, networkErr.Op)
	assert.Equal(t, "network", Kind(err))
}

func TestClient_ContextCancellation(t *testing.T) {
	fw := framework.NewFakeWorker()
	defer fw.Close()
	fw.Queue(framework.PathHealth, framework.Reply{Delay: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(fw.URL()).Health(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr), "cancellation is not a timeout")
}

func TestClient_TestCamera(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fw := framework.NewFakeWorker()
		defer fw.Close()

		result, err := NewClient(fw.URL()).TestCamera(context.Background(), "http://192.168.1.100", "8080")
		require.NoError(t, err)
		assert.True(t, result.Success)

		var sent CameraTestRequest
		require.NoError(t, json.Unmarshal(fw.LastBody(framework.PathTestCamera), &sent))
		assert.Equal(t, "http://192.168.1.100", sent.URL)
		assert.Equal(t, "8080", sent.Port)
	})

	t.Run("worker reports failure with 200", func(t *testing.T) {
		fw := framework.NewFakeWorker()
		defer fw.Close()
		fw.Queue(framework.PathTestCamera, framework.Failure(http.StatusOK, "unreachable"))

		_, err := NewClient(fw.URL()).TestCamera(context.Background(), "http://192.168.1.100", "8080")

		var remoteErr *RemoteError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, "unreachable", remoteErr.Message)
	})

	t.Run("worker reports failure with 400", func(t *testing.T) {
		fw := framework.NewFakeWorker()
		defer fw.Close()
		fw.Queue(framework.PathTestCamera, framework.Failure(http.StatusBadRequest, "Failed to connect to camera at rtsp://x"))

		_, err := NewClient(fw.URL()).TestCamera(context.Background(), "rtsp://x", "")
		assert.EqualError(t, err, "Failed to connect to camera at rtsp://x")
	})
}

func TestClient_HeadersAndBaseURL(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"detection_active": true, "model_loaded": true}`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", WithBearerToken("secret"))
	assert.Equal(t, server.URL, c.BaseURL())

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.DetectionActive)
	assert.True(t, status.ModelLoaded)
	assert.Equal(t, "Bearer secret", gotAuth)
}
