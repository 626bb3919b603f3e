package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/lookout/pkg/types"
)

// Operation names, used in errors, metrics and events
const (
	OpHealth     = "health"
	OpStatus     = "status"
	OpStart      = "start"
	OpStop       = "stop"
	OpTestCamera = "test-camera"
)

// maxBodyBytes bounds how much of a response body is read
const maxBodyBytes = 1 << 20

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status           string   `json:"status,omitempty"`
	DetectionActive  bool     `json:"detection_active"`
	MonitoringActive bool     `json:"monitoring_active"`
	HeartbeatAge     *float64 `json:"heartbeat_age"`
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	DetectionActive bool `json:"detection_active"`
	ModelLoaded     bool `json:"model_loaded"`
}

// CameraTestRequest is the body of POST /test-camera
type CameraTestRequest struct {
	URL  string `json:"url"`
	Port string `json:"port"`
}

// CameraTestResult is the body returned by POST /test-camera
type CameraTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// errorBody is the failure body the worker sends for non-2xx responses
type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message"`
}

// Client talks to the worker control endpoint over HTTP/JSON.
// It sets no deadlines of its own: every call takes its timeout from ctx.
type Client struct {
	baseURL string
	headers map[string]string
	http    *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithBearerToken sets the Authorization header the worker uses to
// attribute a session to a user
func WithBearerToken(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

// NewClient creates a client for the worker at baseURL (e.g. "http://localhost:5000")
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: make(map[string]string),
		http: &http.Client{
			// Backstop only; callers always pass a tighter ctx deadline.
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the worker endpoint this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health performs GET /health and returns the snapshot it describes
func (c *Client) Health(ctx context.Context) (types.HealthSnapshot, error) {
	var resp HealthResponse
	if err := c.do(ctx, OpHealth, http.MethodGet, "/health", nil, &resp); err != nil {
		return types.HealthSnapshot{}, err
	}

	return types.HealthSnapshot{
		DetectionActive:  resp.DetectionActive,
		MonitoringActive: resp.MonitoringActive,
		HeartbeatAge:     resp.HeartbeatAge,
		ObservedAt:       time.Now(),
	}, nil
}

// Status performs GET /status
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, OpStatus, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start performs POST /start with the session config as body
func (c *Client) Start(ctx context.Context, cfg types.SessionConfig) error {
	return c.do(ctx, OpStart, http.MethodPost, "/start", cfg, nil)
}

// Stop performs POST /stop
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, OpStop, http.MethodPost, "/stop", nil, nil)
}

// TestCamera performs POST /test-camera. A worker answer of
// {success: false} is returned as a *RemoteError carrying its message.
func (c *Client) TestCamera(ctx context.Context, url, port string) (*CameraTestResult, error) {
	var result CameraTestResult
	req := CameraTestRequest{URL: url, Port: port}
	if err := c.do(ctx, OpTestCamera, http.MethodPost, "/test-camera", req, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return &result, &RemoteError{Op: OpTestCamera, StatusCode: http.StatusOK, Message: result.Message}
	}
	return &result, nil
}

// do sends one request and decodes a 2xx body into out (when non-nil)
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return classify(ctx, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		// Body may be empty or not JSON; fall back to the generic message.
		_ = json.Unmarshal(data, &eb)
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: eb.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("invalid %s response: %v", op, err),
		}
	}
	return nil
}
