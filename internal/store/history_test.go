package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	hs, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hs.Close() })
	return hs
}

func TestRecordAndRecent(t *testing.T) {
	hs := newTestStore(t)

	hs.RecordExecution("cell-1", "x := 1", true, 12*time.Millisecond, 0)
	hs.RecordExecution("cell-2", "undefined()", false, 3*time.Millisecond, 42)
	hs.RecordExecution("cell-1", "x := 2", true, 8*time.Millisecond, 0)

	records, err := hs.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	require.Equal(t, "x := 2", records[0].Code)
	require.Equal(t, "cell-1", records[0].CellID)
	require.True(t, records[0].Success)
	require.Equal(t, int64(8), records[0].DurationMs)

	require.False(t, records[1].Success)
	require.Equal(t, 42, records[1].OutputBytes)
}

func TestRecentHonorsLimit(t *testing.T) {
	hs := newTestStore(t)

	for i := 0; i < 10; i++ {
		hs.RecordExecution("cell", "code", true, time.Millisecond, 0)
	}

	records, err := hs.Recent(3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	n, err := hs.Count()
	require.NoError(t, err)
	require.Equal(t, 10, n)
}

func TestForCell(t *testing.T) {
	hs := newTestStore(t)

	hs.RecordExecution("a", "first", true, time.Millisecond, 0)
	hs.RecordExecution("b", "other", true, time.Millisecond, 0)
	hs.RecordExecution("a", "second", false, time.Millisecond, 0)

	records, err := hs.ForCell("a")
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Oldest first for per-cell history.
	require.Equal(t, "first", records[0].Code)
	require.Equal(t, "second", records[1].Code)

	records, err = hs.ForCell("missing")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	hs, err := Open(path)
	require.NoError(t, err)
	hs.RecordExecution("cell", "code", true, time.Millisecond, 7)
	require.NoError(t, hs.Close())

	hs, err = Open(path)
	require.NoError(t, err)
	defer hs.Close()

	n, err := hs.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
