package notebook

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gobook/internal/bridge"
	"gobook/internal/config"
	"gobook/internal/kernel"
	"gobook/internal/output"
)

// newLiveNotebook wires a notebook to a real in-process interpreter session.
func newLiveNotebook(t *testing.T) *Notebook {
	t.Helper()

	b := bridge.New(bridge.Config{})
	km := kernel.NewManager(b, config.KernelConfig{
		StartupTimeout:    10 * time.Second,
		ExecuteTimeout:    10 * time.Second,
		KeepaliveInterval: time.Hour,
		StuckThreshold:    time.Hour,
	})
	require.NoError(t, km.CreateSession(context.Background()))

	nb := New(km,
		config.NotebookConfig{AutosaveDelay: 10 * time.Millisecond},
		config.OutputConfig{TruncateLimit: 4000})
	t.Cleanup(func() {
		_ = nb.Close()
		_ = km.Close(context.Background())
		_ = b.Close()
	})
	return nb
}

func TestExecuteCellHappyPath(t *testing.T) {
	nb := newLiveNotebook(t)

	id, _ := nb.AddCell(CellCode, "import \"fmt\"\nfmt.Println(6 * 7)", AddOptions{})
	require.NoError(t, nb.ExecuteCell(context.Background(), id, false))

	c, _ := nb.Cell(id)
	require.Equal(t, ExecSuccess, c.ExecutionState)
	require.Equal(t, 1, c.ExecutionCount)
	require.NotEmpty(t, c.Output)
	require.Equal(t, output.TypeStdout, c.Output[0].Type)
	require.Contains(t, c.Output[0].Content, "42")
}

func TestExecuteCellUserErrorStaysInCell(t *testing.T) {
	nb := newLiveNotebook(t)

	id, _ := nb.AddCell(CellCode, `undefinedSymbol()`, AddOptions{})

	// A user error is cell state, not a Go error.
	require.NoError(t, nb.ExecuteCell(context.Background(), id, false))

	c, _ := nb.Cell(id)
	require.Equal(t, ExecError, c.ExecutionState)
	require.Zero(t, c.ExecutionCount, "failed runs never earn a count")

	var sawErr bool
	for _, item := range c.Output {
		if item.Type == output.TypeError {
			sawErr = true
		}
	}
	require.True(t, sawErr, "error detail should land in the output")
}

func TestExecutionCountSurvivesDeletion(t *testing.T) {
	nb := newLiveNotebook(t)
	ctx := context.Background()

	a, _ := nb.AddCell(CellCode, `x := 1`, AddOptions{})
	b, _ := nb.AddCell(CellCode, `y := 2`, AddOptions{})
	require.NoError(t, nb.ExecuteCell(ctx, a, false))
	require.NoError(t, nb.ExecuteCell(ctx, b, false))

	require.NoError(t, nb.DeleteCell(b))

	c, _ := nb.AddCell(CellCode, `z := 3`, AddOptions{})
	require.NoError(t, nb.ExecuteCell(ctx, c, false))

	got, _ := nb.Cell(c)
	if got.ExecutionCount != 3 {
		t.Errorf("count after deletion = %d, want 3 (counts are never reused)", got.ExecutionCount)
	}

	// Re-running an old cell assigns a fresh count.
	require.NoError(t, nb.ExecuteCell(ctx, a, false))
	got, _ = nb.Cell(a)
	require.Equal(t, 4, got.ExecutionCount)
}

func TestExecuteCellRejectsBadTargets(t *testing.T) {
	nb := newLiveNotebook(t)
	ctx := context.Background()

	md, _ := nb.AddCell(CellMarkdown, "# notes", AddOptions{})
	require.ErrorIs(t, nb.ExecuteCell(ctx, md, false), ErrCellNotExecutable)
	require.ErrorIs(t, nb.ExecuteCell(ctx, "no-such-cell", false), ErrCellNotFound)
}

func TestExecuteCellRequiresReadyKernel(t *testing.T) {
	nb := newTestNotebook(t) // nil kernel

	id, _ := nb.AddCell(CellCode, "x := 1", AddOptions{})
	require.ErrorIs(t, nb.ExecuteCell(context.Background(), id, false), ErrKernelNotReady)
}

func TestExecuteCellSingleFlight(t *testing.T) {
	nb := newLiveNotebook(t)
	ctx := context.Background()

	slow, _ := nb.AddCell(CellCode, "import \"time\"\ntime.Sleep(500 * time.Millisecond)", AddOptions{})
	other, _ := nb.AddCell(CellCode, `x := 1`, AddOptions{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = nb.ExecuteCell(ctx, slow, false)
	}()

	// Wait until the slow cell is actually running, then try a second one.
	require.Eventually(t, func() bool {
		c, _ := nb.Cell(slow)
		return c.ExecutionState == ExecRunning
	}, 5*time.Second, 5*time.Millisecond)

	err := nb.ExecuteCell(ctx, other, false)
	if err == nil {
		t.Fatal("concurrent execute should be rejected")
	}
	// Depending on timing the kernel or the notebook raises it first.
	ok := strings.Contains(err.Error(), ErrExecutionInFlight.Error()) ||
		strings.Contains(err.Error(), "busy")
	require.True(t, ok, "unexpected rejection: %v", err)

	wg.Wait()
}

func TestExecuteCellRunsLiveBuffer(t *testing.T) {
	nb := newLiveNotebook(t)

	id, _ := nb.AddCell(CellCode, "import \"fmt\"\nfmt.Println(\"old\")", AddOptions{})
	nb.SetLiveContent(id, "import \"fmt\"\nfmt.Println(\"new\")", true)

	require.NoError(t, nb.ExecuteCell(context.Background(), id, false))

	c, _ := nb.Cell(id)
	require.Contains(t, c.Output[0].Content, "new")
	require.Equal(t, "import \"fmt\"\nfmt.Println(\"new\")", c.Content, "live content is committed by the run")
}

func TestExecuteCellMovesFocus(t *testing.T) {
	nb := newLiveNotebook(t)
	ctx := context.Background()

	a, _ := nb.AddCell(CellCode, `x := 1`, AddOptions{})
	b, _ := nb.AddCell(CellCode, `y := 2`, AddOptions{})

	require.NoError(t, nb.ExecuteCell(ctx, a, true))
	require.Equal(t, b, nb.ActiveCell())

	// Shift-enter on the last cell keeps focus where it is.
	require.NoError(t, nb.SetActiveCell(b))
	require.NoError(t, nb.ExecuteCell(ctx, b, true))
	require.Equal(t, b, nb.ActiveCell())
}

func TestRunAllCellsContinuesPastErrors(t *testing.T) {
	nb := newLiveNotebook(t)
	ctx := context.Background()

	good, _ := nb.AddCell(CellCode, `a := 10`, AddOptions{})
	bad, _ := nb.AddCell(CellCode, `undefinedSymbol()`, AddOptions{})
	nb.AddCell(CellMarkdown, "skipped", AddOptions{})
	after, _ := nb.AddCell(CellCode, "import \"fmt\"\nfmt.Println(a + 1)", AddOptions{})

	require.NoError(t, nb.RunAllCells(ctx))

	c, _ := nb.Cell(good)
	require.Equal(t, ExecSuccess, c.ExecutionState)
	c, _ = nb.Cell(bad)
	require.Equal(t, ExecError, c.ExecutionState)

	// Later cells still ran and saw earlier side effects.
	c, _ = nb.Cell(after)
	require.Equal(t, ExecSuccess, c.ExecutionState)
	require.Contains(t, c.Output[0].Content, "11")
}

func TestRunAllCellsHonorsCancellation(t *testing.T) {
	nb := newLiveNotebook(t)

	nb.AddCell(CellCode, `x := 1`, AddOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, nb.RunAllCells(ctx))
}
