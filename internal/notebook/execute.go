package notebook

import (
	"context"
	"fmt"
	"time"

	"gobook/internal/kernel"
	"gobook/internal/logging"
	"gobook/internal/output"
)

// ExecuteCell runs one code cell through the session manager. It is a no-op
// error unless the cell is executable and a session is ready. The latest
// live-edited content is reconciled first (the editor buffer wins while its
// pane is visible). Streamed output items accumulate in arrival order; the
// terminal status decides success or error. Re-running a finished cell is
// permitted and assigns a fresh executionCount.
//
// Execution errors end up in the cell, never as a returned error; the return
// value reports infrastructure problems only.
func (nb *Notebook) ExecuteCell(ctx context.Context, id string, moveFocusAfter bool) error {
	nb.mu.Lock()
	c := nb.cellLocked(id)
	if c == nil {
		nb.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	if !c.Executable() {
		nb.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrCellNotExecutable, id, c.Type)
	}
	if c.ExecutionState == ExecRunning {
		nb.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCellRunning, id)
	}
	if nb.executing {
		nb.mu.Unlock()
		return ErrExecutionInFlight
	}
	if nb.kernel == nil || !nb.kernel.Ready() {
		nb.mu.Unlock()
		return ErrKernelNotReady
	}

	// Reconcile live editor content before running.
	if buf, ok := nb.live[id]; ok && buf.visible {
		c.Content = buf.content
	}
	code := c.Content

	c.ExecutionState = ExecRunning
	c.Output = nil
	nb.executing = true
	nb.mu.Unlock()

	logging.Notebook("executing cell %s (%d bytes)", id, len(code))
	start := time.Now()

	cb := kernel.Callbacks{
		OnOutput: func(item output.Item) {
			nb.mu.Lock()
			if cur := nb.cellLocked(id); cur != nil {
				cur.Output = append(cur.Output, item)
			}
			nb.mu.Unlock()
		},
		OnStatus: func(s kernel.Status, detail string) {
			switch s {
			case kernel.StatusCompleted:
				nb.finishCell(id, true, "")
			case kernel.StatusError:
				nb.finishCell(id, false, detail)
			}
		},
	}

	err := nb.kernel.ExecuteCode(ctx, code, cb, 0)

	nb.mu.Lock()
	nb.executing = false
	// A pre-flight failure never reached a terminal status; don't leave
	// the cell stranded in running.
	if cur := nb.cellLocked(id); cur != nil && cur.ExecutionState == ExecRunning {
		cur.ExecutionState = ExecError
		msg := "execution aborted"
		if err != nil {
			msg = err.Error()
		}
		cur.Output = append(cur.Output, output.Item{Type: output.TypeError, Content: msg})
	}

	var success bool
	var outputBytes int
	if cur := nb.cellLocked(id); cur != nil {
		success = cur.ExecutionState == ExecSuccess
		for _, item := range cur.Output {
			outputBytes += len(item.Content)
		}
	}
	history := nb.history

	if moveFocusAfter {
		if i := nb.indexOfLocked(id); i >= 0 && i+1 < len(nb.cells) {
			nb.activeID = nb.cells[i+1].ID
		}
	}
	nb.markDirtyLocked()
	nb.mu.Unlock()

	if history != nil {
		history.RecordExecution(id, code, success, time.Since(start), outputBytes)
	}

	logging.Notebook("cell %s finished (success=%v, %v)", id, success, time.Since(start))
	return err
}

// finishCell applies the terminal state for an execution. Success assigns
// the next executionCount; error preserves whatever output was captured and
// appends the failure description.
func (nb *Notebook) finishCell(id string, success bool, detail string) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	c := nb.cellLocked(id)
	if c == nil || c.ExecutionState != ExecRunning {
		return
	}

	if success {
		c.ExecutionState = ExecSuccess
		c.ExecutionCount = nb.execCounter
		nb.execCounter++
		return
	}

	c.ExecutionState = ExecError
	if detail != "" {
		c.Output = append(c.Output, output.Item{
			Type:    output.TypeError,
			Content: detail,
			Attrs:   map[string]any{output.AttrProcessedANSI: true},
		})
	}
}

// RunAllCells executes every code cell in document order, awaiting each
// before starting the next, so later cells observe side effects of earlier
// ones. Cells that fail stay in error state and the run continues; only
// infrastructure failures abort the sweep.
func (nb *Notebook) RunAllCells(ctx context.Context) error {
	nb.mu.RLock()
	ids := make([]string, 0, len(nb.cells))
	for _, c := range nb.cells {
		if c.Executable() {
			ids = append(ids, c.ID)
		}
	}
	nb.mu.RUnlock()

	logging.Notebook("run all: %d code cells", len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := nb.ExecuteCell(ctx, id, false); err != nil {
			return fmt.Errorf("run all stopped at cell %s: %w", id, err)
		}
	}
	return nil
}
