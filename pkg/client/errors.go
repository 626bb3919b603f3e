package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TimeoutError is returned when a request exceeds its deadline
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out, worker might be unresponsive", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError is returned when the worker could not be reached
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: cannot reach worker: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is returned when the worker answered with a failure. Message
// is the worker-provided message, verbatim, when it sent one.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return genericFailure(e.Op, e.StatusCode)
}

// Kind names the error class for metrics labels and event metadata
func Kind(err error) string {
	var timeoutErr *TimeoutError
	var networkErr *NetworkError
	var remoteErr *RemoteError

	switch {
	case err == nil:
		return "none"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &networkErr):
		return "network"
	case errors.As(err, &remoteErr):
		return "remote"
	default:
		return "other"
	}
}

func genericFailure(op string, status int) string {
	var msg string
	switch op {
	case OpStart:
		msg = "Failed to start detection"
	case OpStop:
		msg = "Failed to stop detection"
	case OpTestCamera:
		msg = "Camera connection test failed"
	default:
		msg = fmt.Sprintf("%s request failed", op)
	}
	if status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d %s)", msg, status, http.StatusText(status))
	}
	return msg
}

// classify maps a transport error onto the client taxonomy
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}

	return &NetworkError{Op: op, Err: err}
}
