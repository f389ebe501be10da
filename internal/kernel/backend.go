package kernel

import (
	"context"

	"gobook/internal/bridge"
	"gobook/internal/output"
)

// Backend is the execution backend contract. The in-process implementation
// is *bridge.Bridge; remote backends satisfy the same surface.
type Backend interface {
	CreateKernel(ctx context.Context, opts bridge.CreateOptions) (*bridge.KernelInfo, error)
	DestroyKernel(ctx context.Context, id string) error
	RestartKernel(ctx context.Context, id string) (bool, error)
	InterruptKernel(ctx context.Context, id string) (bool, error)
	PingKernel(ctx context.Context, id string) bool
	Execute(ctx context.Context, id string, code string) (<-chan bridge.Message, error)
}

// Status is reported to OnStatus over the course of one execute call.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Callbacks receives streamed results of one execute call. OnOutput is
// invoked for every normalized fragment in arrival order; OnStatus is
// invoked at least for starting, running, and a terminal completed/error.
// Either may be nil.
type Callbacks struct {
	OnOutput func(output.Item)
	OnStatus func(status Status, detail string)
}

func (c Callbacks) output(item output.Item) {
	if c.OnOutput != nil {
		c.OnOutput(item)
	}
}

func (c Callbacks) status(s Status, detail string) {
	if c.OnStatus != nil {
		c.OnStatus(s, detail)
	}
}
