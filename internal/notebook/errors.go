package notebook

import "errors"

// Document model errors.
var (
	// ErrCellNotFound is returned for operations on an unknown cell id.
	ErrCellNotFound = errors.New("cell not found")

	// ErrCellNotExecutable is returned when executing a non-code cell.
	ErrCellNotExecutable = errors.New("cell is not executable")

	// ErrCellRunning is returned when executing a cell that is already
	// running.
	ErrCellRunning = errors.New("cell is already running")

	// ErrExecutionInFlight is returned when another cell's execution is
	// still in flight; only one execute may run per session.
	ErrExecutionInFlight = errors.New("another execution is in flight")

	// ErrKernelNotReady is returned when no session is ready.
	ErrKernelNotReady = errors.New("kernel is not ready")

	// ErrDuplicateCellID is returned when inserting an explicit id that
	// already exists.
	ErrDuplicateCellID = errors.New("cell id already exists")
)
