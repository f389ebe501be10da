package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gobook/internal/logging"
)

// Config holds bridge-wide defaults applied to every worker.
type Config struct {
	// ScratchDir, when set, roots every worker's sandbox under this
	// directory instead of per-worker temp dirs.
	ScratchDir string

	// ExtraImports extends the stdlib import whitelist for all workers.
	ExtraImports []string
}

// Bridge implements the execution backend contract over in-process sandboxed
// interpreter workers. It is stateless per call apart from the worker table;
// each worker serves one execute request at a time.
type Bridge struct {
	cfg Config

	mu      sync.Mutex
	workers map[string]*worker
}

// New creates a bridge with no running workers.
func New(cfg Config) *Bridge {
	return &Bridge{
		cfg:     cfg,
		workers: make(map[string]*worker),
	}
}

// CreateKernel starts a new interpreter worker and returns its session handle.
func (b *Bridge) CreateKernel(ctx context.Context, opts CreateOptions) (*KernelInfo, error) {
	id := uuid.NewString()
	return b.createWorker(ctx, id, opts)
}

func (b *Bridge) createWorker(ctx context.Context, id string, opts CreateOptions) (*KernelInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ScratchDir == "" && b.cfg.ScratchDir != "" {
		opts.ScratchDir = fmt.Sprintf("%s/%s", b.cfg.ScratchDir, id)
	}
	opts.ExtraImports = append(opts.ExtraImports, b.cfg.ExtraImports...)

	w, err := newWorker(id, opts)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.workers[id] = w
	b.mu.Unlock()

	logging.Bridge("kernel %s created (scratch=%s)", id, w.scratch)
	return &KernelInfo{ID: id, CreatedAt: time.Now()}, nil
}

// DestroyKernel shuts down a worker and removes its scratch state.
func (b *Bridge) DestroyKernel(ctx context.Context, id string) error {
	b.mu.Lock()
	w, ok := b.workers[id]
	delete(b.workers, id)
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrKernelNotFound, id)
	}
	w.close()
	logging.Bridge("kernel %s destroyed", id)
	return nil
}

// RestartKernel replaces the worker behind id with a fresh interpreter.
// Mounts do not survive a restart; the session handle id does.
func (b *Bridge) RestartKernel(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	w, ok := b.workers[id]
	delete(b.workers, id)
	b.mu.Unlock()

	if !ok {
		return false, fmt.Errorf("%w: %s", ErrKernelNotFound, id)
	}
	w.close()

	// The replacement keeps the session's creation options: same import
	// whitelist, same scratch root.
	if _, err := b.createWorker(ctx, id, w.opts); err != nil {
		return false, err
	}
	logging.Bridge("kernel %s restarted", id)
	return true, nil
}

// InterruptKernel requests a cooperative cancel of the in-flight execution.
// Returns false when nothing was running.
func (b *Bridge) InterruptKernel(ctx context.Context, id string) (bool, error) {
	w, err := b.worker(id)
	if err != nil {
		return false, err
	}
	interrupted := w.interrupt()
	logging.Bridge("kernel %s interrupt requested (in-flight=%v)", id, interrupted)
	return interrupted, nil
}

// PingKernel reports whether the worker behind id is alive.
func (b *Bridge) PingKernel(ctx context.Context, id string) bool {
	b.mu.Lock()
	w, ok := b.workers[id]
	b.mu.Unlock()
	return ok && w.alive()
}

// Execute sends one execute request to the worker and returns its message
// stream. The stream yields output messages in emission order and is closed
// after exactly one terminal message. Cancelling ctx abandons the request;
// late worker messages are dropped, not delivered.
func (b *Bridge) Execute(ctx context.Context, id string, code string) (<-chan Message, error) {
	w, err := b.worker(id)
	if err != nil {
		return nil, err
	}

	out := make(chan Message, 64)
	req := execRequest{ctx: ctx, code: code, out: out}

	select {
	case w.requests <- req:
		return out, nil
	case <-w.done:
		return nil, fmt.Errorf("%w: %s", ErrWorkerClosed, id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Mount attaches a host directory to the worker's sandbox filesystem at the
// given mount point. Remounting a point unmounts the previous handle first.
func (b *Bridge) Mount(id, mountPoint, hostDir string) error {
	w, err := b.worker(id)
	if err != nil {
		return err
	}
	if err := w.mounts.mount(mountPoint, hostDir); err != nil {
		return err
	}
	logging.Bridge("kernel %s: mounted %s at %s", id, hostDir, mountPoint)
	return nil
}

// Unmount detaches the mount point. Unknown points are a no-op.
func (b *Bridge) Unmount(id, mountPoint string) error {
	w, err := b.worker(id)
	if err != nil {
		return err
	}
	w.mounts.unmount(mountPoint)
	return nil
}

// Close shuts down all workers.
func (b *Bridge) Close() error {
	b.mu.Lock()
	workers := make([]*worker, 0, len(b.workers))
	for id, w := range b.workers {
		workers = append(workers, w)
		delete(b.workers, id)
	}
	b.mu.Unlock()

	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error {
			w.close()
			return nil
		})
	}
	return g.Wait()
}

func (b *Bridge) worker(id string) (*worker, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.workers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKernelNotFound, id)
	}
	return w, nil
}
