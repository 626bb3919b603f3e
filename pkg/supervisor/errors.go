package supervisor

import "errors"

var (
	// ErrBusy is returned when a start, stop, or attach is already in progress
	ErrBusy = errors.New("another session command is in progress")

	// ErrClosed is returned by commands issued after Close
	ErrClosed = errors.New("supervisor is closed")
)
