package kernel

import (
	"errors"
	"fmt"
)

// Session manager errors.
var (
	// ErrNotReady is returned when executeCode is called and no session is
	// ready to accept work.
	ErrNotReady = errors.New("kernel session not ready")

	// ErrBusy is returned when an execution is already in flight.
	ErrBusy = errors.New("execution already in flight")

	// ErrNoSession is returned for operations that need a live session.
	ErrNoSession = errors.New("no active session")
)

// Cause classifies a session lifecycle failure. All causes are retryable.
type Cause string

const (
	CauseConnectionTimeout  Cause = "connection-timeout"
	CauseCreationTimeout    Cause = "creation-timeout"
	CauseBackendUnavailable Cause = "backend-unavailable"
)

// SessionError is a retryable, user-facing session lifecycle failure.
type SessionError struct {
	Cause Cause
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("kernel session failed (%s): %v", e.Cause, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Message returns the advisory text shown to the user.
func (e *SessionError) Message() string {
	switch e.Cause {
	case CauseConnectionTimeout:
		return "Connection to the kernel backend timed out. Try restarting the kernel."
	case CauseCreationTimeout:
		return "The kernel took too long to start. Try restarting the kernel."
	default:
		return "The kernel backend is unavailable. Try restarting the kernel."
	}
}
