package bridge

import "errors"

// Bridge protocol errors.
var (
	// ErrKernelNotFound is returned for operations on an unknown kernel id.
	ErrKernelNotFound = errors.New("kernel not found")

	// ErrWorkerClosed is returned when the worker has shut down.
	ErrWorkerClosed = errors.New("worker closed")

	// ErrForbiddenImport is returned when sandboxed code imports outside
	// the whitelist.
	ErrForbiddenImport = errors.New("forbidden imports detected")

	// ErrMount is returned when attaching a host directory to the sandbox
	// filesystem fails.
	ErrMount = errors.New("mount failed")
)
