package connection

import (
	"errors"
	"fmt"
)

// Manager errors.
var (
	// ErrAwaitPending is returned when a reply for the same correlation
	// key is already being awaited. Overlapping waits for one key are a
	// caller error, not a race to be resolved silently.
	ErrAwaitPending = errors.New("a wait for this reply is already pending")

	// ErrReplyTimeout is the cause inside a SetupError when a station
	// never answered the identification request.
	ErrReplyTimeout = errors.New("no reply within timeout")

	// ErrInvalidHost marks a syntactically invalid host address.
	ErrInvalidHost = errors.New("invalid host address")

	// ErrClosed is returned from operations on a closed manager.
	ErrClosed = errors.New("connection manager closed")
)

// SetupError wraps everything that can go wrong while identifying a
// charging station: no answer within the timeout, or an identification
// payload that failed validation. Setup errors are surfaced to the caller
// and never retried automatically.
type SetupError struct {
	// Host the setup attempt was addressed to.
	Host string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("setup of charging station at %s failed: %v", e.Host, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SetupError) Unwrap() error {
	return e.Err
}
