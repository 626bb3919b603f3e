package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/lookout/pkg/types"
)

// StateReader is satisfied by the session supervisor
type StateReader interface {
	CurrentState() types.SessionState
}

// Waiter provides utilities for waiting on conditions with timeouts
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter creates a new Waiter with the given timeout and polling interval
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{
		timeout:  timeout,
		interval: interval,
	}
}

// DefaultWaiter returns a waiter suited to unit tests (2s timeout, 5ms interval)
func DefaultWaiter() *Waiter {
	return NewWaiter(2*time.Second, 5*time.Millisecond)
}

// WaitFor waits for a condition to become true
func (w *Waiter) WaitFor(ctx context.Context, condition func() bool, description string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Check immediately
	if condition() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for: %s (timeout: %v)", description, w.timeout)
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// WaitForState waits for the supervisor to reach a session state
func (w *Waiter) WaitForState(ctx context.Context, s StateReader, state types.SessionState) error {
	return w.WaitFor(ctx, func() bool {
		return s.CurrentState() == state
	}, fmt.Sprintf("session state %s (last: %s)", state, s.CurrentState()))
}

// WaitForCalls waits until the fake worker has served at least n requests on path
func (w *Waiter) WaitForCalls(ctx context.Context, fw *FakeWorker, path string, n int) error {
	return w.WaitFor(ctx, func() bool {
		return fw.CallCount(path) >= n
	}, fmt.Sprintf("%d calls to %s", n, path))
}
