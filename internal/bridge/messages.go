// Package bridge implements the message-passing contract between the kernel
// session manager and an isolated interpreter worker running untrusted
// notebook code. Each worker holds a persistent Go interpreter so variable
// state survives across executions; the host reaches it only through typed
// message channels, never shared memory.
package bridge

import (
	"time"

	"gobook/internal/output"
)

// MessageKind tags one worker-to-host protocol message.
type MessageKind string

const (
	// MessageOutput carries one captured output fragment. Fragments are
	// forwarded immediately in emission order, never batched.
	MessageOutput MessageKind = "output"

	// MessageComplete is the single terminal message for an execute request.
	MessageComplete MessageKind = "complete"
)

// Message is one protocol message streamed from the worker during an execute
// request. Exactly one MessageComplete closes every request.
type Message struct {
	Kind MessageKind

	// Item is set for MessageOutput.
	Item output.Item

	// Complete fields.
	Success bool
	Err     string

	// Outputs is the full accumulated output list on success, for consumers
	// that attach late and missed the stream.
	Outputs []output.Item
}

// KernelInfo is the session handle returned by CreateKernel. It is replaced
// wholesale on restart and destroyed on teardown.
type KernelInfo struct {
	ID        string
	CreatedAt time.Time
}

// CreateOptions configures a new interpreter worker.
type CreateOptions struct {
	// ScratchDir is the sandbox working directory. Empty means a fresh
	// temp directory per worker.
	ScratchDir string

	// ExtraImports extends the stdlib import whitelist.
	ExtraImports []string
}
