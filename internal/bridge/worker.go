package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"gobook/internal/logging"
	"gobook/internal/output"
)

// resetDirective is the namespace-clearing snippet recognized by the worker.
// Evaluating it replaces the interpreter with a fresh one; mounts and the
// scratch directory survive.
const resetDirective = "//gobook:reset"

// execRequest is one execute message sent to a worker.
type execRequest struct {
	ctx  context.Context
	code string
	out  chan Message
}

// streamWriter forwards writes from the interpreter's stdout/stderr to the
// current execution's emit function. The sink is swapped per request.
type streamWriter struct {
	mu   sync.Mutex
	emit func(output.Item)
	typ  output.Type
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	emit := w.emit
	w.mu.Unlock()
	if emit != nil {
		emit(output.Item{Type: w.typ, Content: string(p)})
	}
	return len(p), nil
}

func (w *streamWriter) setSink(emit func(output.Item)) {
	w.mu.Lock()
	w.emit = emit
	w.mu.Unlock()
}

// worker owns one sandboxed interpreter. It is reachable only through its
// request channel; requests are served strictly one at a time.
type worker struct {
	id         string
	opts       CreateOptions
	scratch    string
	ownScratch bool
	allowed    map[string]bool
	mounts     *mountTable

	requests chan execRequest
	quit     chan struct{}
	done     chan struct{}

	stdout *streamWriter
	stderr *streamWriter

	// emitMu guards the display-builtin sink alongside the stream writers.
	emitMu sync.Mutex
	emit   func(output.Item)

	interp *interp.Interpreter

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

func newWorker(id string, opts CreateOptions) (*worker, error) {
	scratch := opts.ScratchDir
	ownScratch := false
	if scratch == "" {
		dir, err := os.MkdirTemp("", "gobook-kernel-")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch dir: %w", err)
		}
		scratch = dir
		ownScratch = true
	} else if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	w := &worker{
		id:         id,
		opts:       opts,
		scratch:    scratch,
		ownScratch: ownScratch,
		allowed:    allowedImportSet(opts.ExtraImports),
		mounts:     newMountTable(),
		requests:   make(chan execRequest),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		stdout:     &streamWriter{typ: output.TypeStdout},
		stderr:     &streamWriter{typ: output.TypeStderr},
	}

	if err := w.buildInterp(); err != nil {
		w.removeScratch()
		return nil, err
	}

	go w.run()
	return w, nil
}

// buildInterp creates a fresh interpreter bound to the worker's writers and
// display builtins. Called at startup and on the reset directive.
func (w *worker) buildInterp() error {
	i := interp.New(interp.Options{
		Stdout: w.stdout,
		Stderr: w.stderr,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	if err := i.Use(w.displayExports()); err != nil {
		return fmt.Errorf("failed to load display symbols: %w", err)
	}
	w.interp = i
	return nil
}

func (w *worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			return
		case req := <-w.requests:
			w.handle(req)
		}
	}
}

// handle serves one execute request: sync mounts in, evaluate, sync mounts
// out, then emit exactly one terminal message and close the channel.
func (w *worker) handle(req execRequest) {
	defer close(req.out)

	var (
		mu       sync.Mutex
		captured []output.Item
	)
	send := func(m Message) {
		select {
		case req.out <- m:
		case <-req.ctx.Done():
			// The caller abandoned this execution; drop the message
			// rather than block the worker.
		}
	}
	emit := func(item output.Item) {
		mu.Lock()
		captured = append(captured, item)
		mu.Unlock()
		send(Message{Kind: MessageOutput, Item: item})
	}

	w.setSinks(emit)
	defer w.setSinks(nil)

	fail := func(err error) {
		send(Message{Kind: MessageComplete, Success: false, Err: err.Error()})
	}

	code := req.code
	if strings.HasPrefix(strings.TrimSpace(code), resetDirective) {
		if err := w.buildInterp(); err != nil {
			fail(err)
			return
		}
		logging.Bridge("worker %s: namespace reset", w.id)
		send(Message{Kind: MessageComplete, Success: true})
		return
	}

	if err := validateImports(code, w.allowed); err != nil {
		fail(err)
		return
	}

	// Mount sync ordering is mandatory: in before eval, out after, so
	// writes survive across calls.
	if err := w.mounts.syncIn(w.scratch); err != nil {
		fail(err)
		return
	}

	err := w.eval(req.ctx, code)

	if syncErr := w.mounts.syncOut(w.scratch); syncErr != nil {
		logging.Get(logging.CategoryBridge).Warn("worker %s: mount sync out failed: %v", w.id, syncErr)
	}

	if err != nil {
		fail(err)
		return
	}
	mu.Lock()
	outputs := make([]output.Item, len(captured))
	copy(outputs, captured)
	mu.Unlock()
	send(Message{Kind: MessageComplete, Success: true, Outputs: outputs})
}

// eval runs the code with cooperative cancellation. The interpreter checks
// the context between statements only; a tight loop is not preempted.
func (w *worker) eval(ctx context.Context, code string) (err error) {
	evalCtx, cancel := context.WithCancel(ctx)
	w.cancelMu.Lock()
	w.cancel = cancel
	w.cancelMu.Unlock()

	// Worker shutdown must not wait behind running user code: closing the
	// quit channel cancels the evaluation in flight.
	go func() {
		select {
		case <-w.quit:
			cancel()
		case <-evalCtx.Done():
		}
	}()
	defer func() {
		w.cancelMu.Lock()
		w.cancel = nil
		w.cancelMu.Unlock()
		cancel()

		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter panic: %v", r)
		}
	}()

	// Leading import declarations go through as individual sources: the
	// interpreter rejects a source mixing an import declaration with the
	// statements that follow it.
	imports, body := splitLeadingImports(code)
	for _, decl := range imports {
		if _, err = w.interp.EvalWithContext(evalCtx, decl); err != nil {
			return err
		}
	}
	if strings.TrimSpace(body) == "" {
		return nil
	}
	_, err = w.interp.EvalWithContext(evalCtx, body)
	return err
}

// interrupt cancels the in-flight evaluation, if any. Best effort: the
// interpreter only notices at statement boundaries.
func (w *worker) interrupt() bool {
	w.cancelMu.Lock()
	defer w.cancelMu.Unlock()
	if w.cancel == nil {
		return false
	}
	w.cancel()
	return true
}

// setSinks points the stream writers and display builtins at the current
// execution's emitter. nil detaches them between executions.
func (w *worker) setSinks(emit func(output.Item)) {
	w.stdout.setSink(emit)
	w.stderr.setSink(emit)
	w.emitMu.Lock()
	w.emit = emit
	w.emitMu.Unlock()
}

// emitItem routes a display-builtin call to the current execution.
func (w *worker) emitItem(item output.Item) {
	w.emitMu.Lock()
	emit := w.emit
	w.emitMu.Unlock()
	if emit != nil {
		emit(item)
	}
}

func (w *worker) alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *worker) close() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.done
	w.removeScratch()
}

func (w *worker) removeScratch() {
	if w.ownScratch {
		os.RemoveAll(w.scratch)
	}
}

// scratchPath resolves a sandbox-relative path, rejecting traversal outside
// the scratch directory.
func (w *worker) scratchPath(rel string) (string, error) {
	p := filepath.Join(w.scratch, filepath.Clean("/"+rel))
	if p != w.scratch && !strings.HasPrefix(p, w.scratch+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes sandbox: %s", rel)
	}
	return p, nil
}

// displayExports exposes the gobook helper package to sandboxed code:
// rich-display calls, service registration, and file access confined to the
// mounted scratch directory.
func (w *worker) displayExports() interp.Exports {
	return interp.Exports{
		"gobook/gobook": {
			"DisplayHTML": newBuiltin(func(html string) {
				w.emitItem(output.Item{Type: output.TypeHTML, Content: html})
			}),
			"DisplaySVG": newBuiltin(func(svg string) {
				w.emitItem(output.Item{Type: output.TypeSVG, Content: svg})
			}),
			"DisplayImage": newBuiltin(func(mime string, data []byte) {
				w.emitItem(output.Item{
					Type:    output.TypeImage,
					Content: dataURI(mime, data),
				})
			}),
			"DisplayAudio": newBuiltin(func(mime string, data []byte) {
				w.emitItem(output.Item{
					Type:    output.TypeAudio,
					Content: dataURI(mime, data),
				})
			}),
			"RegisterService": newBuiltin(func(name string) {
				w.emitItem(output.Item{
					Type:    output.TypeService,
					Content: fmt.Sprintf(`{"name":%q,"kernel":%q}`, name, w.id),
				})
			}),
			"ReadFile": newBuiltin(func(path string) (string, error) {
				p, err := w.scratchPath(path)
				if err != nil {
					return "", err
				}
				data, err := os.ReadFile(p)
				return string(data), err
			}),
			"WriteFile": newBuiltin(func(path, content string) error {
				p, err := w.scratchPath(path)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
					return err
				}
				return os.WriteFile(p, []byte(content), 0644)
			}),
		},
	}
}

// newBuiltin wraps a Go function for injection into the interpreter.
func newBuiltin(fn any) reflect.Value {
	return reflect.ValueOf(fn)
}

// dataURI encodes binary output as a base64 data URI with an explicit MIME
// prefix, per the wire encoding contract.
func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
