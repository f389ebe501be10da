// Package kernel owns one remote interpreter session's lifecycle: create,
// keepalive, interrupt, restart, reset, and stuck detection. It exposes a
// single ExecuteCode entry point; the caller is responsible for not issuing
// overlapping executes against the same session.
package kernel

import (
	"context"
	"errors"
	"sync"
	"time"

	"gobook/internal/bridge"
	"gobook/internal/config"
	"gobook/internal/logging"
	"gobook/internal/output"
)

// State is the session manager's lifecycle state.
type State int

const (
	StateStarting State = iota
	StateIdle
	StateBusy
	StateError
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ResetSnippet is the namespace-clearing snippet executed by ResetKernelState
// through a live session.
const ResetSnippet = "//gobook:reset\n"

// Manager owns exactly one session handle at a time. The handle is replaced
// wholesale on restart and destroyed on teardown. Construct with NewManager
// and inject wherever a session is needed; multiple independent managers can
// coexist under test.
type Manager struct {
	backend Backend
	cfg     config.KernelConfig
	opts    bridge.CreateOptions

	mu      sync.Mutex
	state   State
	session *bridge.KernelInfo
	lastErr *SessionError

	// gen counts sessions. Callbacks captured under an older generation
	// are discarded, so a superseded session can never mutate state after
	// a restart completes.
	gen int

	stuck      bool
	stuckTimer *time.Timer

	keepaliveStop chan struct{}
}

// NewManager creates a session manager over the given backend. No session
// exists until CreateSession succeeds.
func NewManager(backend Backend, cfg config.KernelConfig) *Manager {
	return &Manager{
		backend: backend,
		cfg:     cfg,
		state:   StateError, // unusable until a session is created
	}
}

// SetCreateOptions configures worker options used for session creation.
func (m *Manager) SetCreateOptions(opts bridge.CreateOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether one ExecuteCode call can be accepted.
func (m *Manager) Ready() bool {
	return m.State() == StateIdle
}

// Stuck reports the advisory stuck flag. It is raised by a timer for user
// messaging only and never forces a state transition.
func (m *Manager) Stuck() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stuck
}

// LastError returns the most recent session lifecycle failure, if any.
func (m *Manager) LastError() *SessionError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SessionID returns the current session handle id, or "".
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

// CreateSession races session creation against the startup timeout. On
// success the handle is stored and keepalive starts; on failure the manager
// enters error with a typed, retryable cause.
func (m *Manager) CreateSession(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateStarting
	m.lastErr = nil
	m.mu.Unlock()

	m.armStuckTimer()
	defer m.disarmStuckTimer()

	logging.Kernel("creating session (timeout=%v)", m.cfg.StartupTimeout)

	cctx, cancel := context.WithTimeout(ctx, m.cfg.StartupTimeout)
	defer cancel()

	info, err := m.backend.CreateKernel(cctx, m.opts)
	if err != nil {
		serr := &SessionError{Cause: classifyCreateErr(cctx, err), Err: err}
		m.mu.Lock()
		m.state = StateError
		m.lastErr = serr
		m.mu.Unlock()
		logging.Get(logging.CategoryKernel).Error("session creation failed: %v", serr)
		return serr
	}

	m.mu.Lock()
	m.session = info
	m.state = StateIdle
	m.gen++
	m.stuck = false
	m.stopKeepaliveLocked()
	stop := make(chan struct{})
	m.keepaliveStop = stop
	m.mu.Unlock()

	go m.keepalive(info.ID, stop)

	logging.Kernel("session %s ready", info.ID)
	return nil
}

func classifyCreateErr(ctx context.Context, err error) Cause {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return CauseCreationTimeout
	case errors.Is(err, context.Canceled):
		return CauseConnectionTimeout
	default:
		return CauseBackendUnavailable
	}
}

// ExecuteCode runs one snippet through the current session, streaming
// normalized output fragments and status updates to the callbacks. It blocks
// until a terminal status and returns the manager to idle. Exceeding the
// timeout abandons the request locally; late backend messages are ignored.
func (m *Manager) ExecuteCode(ctx context.Context, code string, cb Callbacks, timeout time.Duration) error {
	m.mu.Lock()
	switch m.state {
	case StateBusy:
		m.mu.Unlock()
		return ErrBusy
	case StateIdle:
	default:
		m.mu.Unlock()
		return ErrNotReady
	}
	m.state = StateBusy
	gen := m.gen
	id := m.session.ID
	m.mu.Unlock()

	if timeout <= 0 {
		timeout = m.cfg.ExecuteTimeout
	}

	m.armStuckTimer()
	defer m.disarmStuckTimer()

	// Returning to idle is gated on the generation: if a restart superseded
	// this session mid-flight, its state wins.
	defer func() {
		m.mu.Lock()
		if m.gen == gen && m.state == StateBusy {
			m.state = StateIdle
		}
		m.mu.Unlock()
	}()

	guard := func(fn func()) {
		m.mu.Lock()
		live := m.gen == gen
		m.mu.Unlock()
		if live {
			fn()
		}
	}

	guard(func() { cb.status(StatusStarting, "") })

	ectx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, err := m.backend.Execute(ectx, id, code)
	if err != nil {
		guard(func() { cb.status(StatusError, err.Error()) })
		return err
	}

	guard(func() { cb.status(StatusRunning, "") })

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				// Stream closed without a terminal message; treat as
				// a protocol error but leave the session usable.
				guard(func() { cb.status(StatusError, "execution stream closed unexpectedly") })
				return nil
			}
			switch msg.Kind {
			case bridge.MessageOutput:
				item := output.ProcessANSI(msg.Item)
				guard(func() { cb.output(item) })
			case bridge.MessageComplete:
				if msg.Success {
					guard(func() { cb.status(StatusCompleted, "") })
				} else {
					guard(func() { cb.status(StatusError, msg.Err) })
				}
				return nil
			}
		case <-ectx.Done():
			guard(func() { cb.status(StatusError, "execution timed out") })
			return nil
		}
	}
}

// InterruptKernel requests a best-effort cooperative cancel of the in-flight
// execution. Failure is advisory; the manager stays usable.
func (m *Manager) InterruptKernel(ctx context.Context) (bool, error) {
	id := m.SessionID()
	if id == "" {
		return false, ErrNoSession
	}
	ok, err := m.backend.InterruptKernel(ctx, id)
	if err != nil {
		logging.Get(logging.CategoryKernel).Warn("interrupt failed: %v", err)
		return false, err
	}
	return ok, nil
}

// RestartKernel destroys the current session (failure logged, non-fatal) and
// creates a fresh one. Existing cell outputs are untouched; late callbacks
// from the superseded session are never invoked once restart completes.
func (m *Manager) RestartKernel(ctx context.Context) error {
	m.mu.Lock()
	old := m.session
	m.session = nil
	m.gen++ // supersede any in-flight callbacks immediately
	m.stuck = false
	m.stopKeepaliveLocked()
	m.mu.Unlock()

	if old != nil {
		if err := m.backend.DestroyKernel(ctx, old.ID); err != nil {
			logging.Get(logging.CategoryKernel).Warn("destroy during restart failed: %v", err)
		}
	}

	return m.CreateSession(ctx)
}

// ResetKernelState clears the interpreter namespace. When the session is
// ready the fixed reset snippet runs through it; otherwise this falls back to
// a full restart.
func (m *Manager) ResetKernelState(ctx context.Context) error {
	if !m.Ready() {
		logging.Kernel("reset requested while %s; falling back to restart", m.State())
		return m.RestartKernel(ctx)
	}
	return m.ExecuteCode(ctx, ResetSnippet, Callbacks{}, 30*time.Second)
}

// Close tears down the session and keepalive. The manager is unusable after.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	old := m.session
	m.session = nil
	m.state = StateError
	m.gen++
	m.stopKeepaliveLocked()
	m.mu.Unlock()

	if old == nil {
		return nil
	}
	return m.backend.DestroyKernel(ctx, old.ID)
}

// keepalive pings the session at a fixed interval while it exists. A failed
// ping is logged and swallowed: transient network blips must not tear down a
// working session.
func (m *Manager) keepalive(id string, stop <-chan struct{}) {
	interval := m.cfg.KeepaliveInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !m.backend.PingKernel(context.Background(), id) {
				logging.Get(logging.CategoryKernel).Warn("keepalive ping failed for session %s", id)
			} else {
				logging.KernelDebug("keepalive ping ok for session %s", id)
			}
		}
	}
}

func (m *Manager) stopKeepaliveLocked() {
	if m.keepaliveStop != nil {
		close(m.keepaliveStop)
		m.keepaliveStop = nil
	}
}

// armStuckTimer starts the advisory stuck timer. On expiry it only raises a
// flag for user messaging; it never cancels anything.
func (m *Manager) armStuckTimer() {
	if m.cfg.StuckThreshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stuckTimer != nil {
		m.stuckTimer.Stop()
	}
	m.stuckTimer = time.AfterFunc(m.cfg.StuckThreshold, func() {
		m.mu.Lock()
		m.stuck = true
		m.mu.Unlock()
		logging.Get(logging.CategoryKernel).Warn("operation exceeded stuck threshold (%v)", m.cfg.StuckThreshold)
	})
}

func (m *Manager) disarmStuckTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stuckTimer != nil {
		m.stuckTimer.Stop()
		m.stuckTimer = nil
	}
}
