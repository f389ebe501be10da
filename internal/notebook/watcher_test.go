package notebook

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileWatcherFiresOnExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.gobook")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	var fired atomic.Int32
	fw, err := NewFileWatcher(path, func() { fired.Add(1) })
	require.NoError(t, err)
	fw.debounce = 50 * time.Millisecond

	require.NoError(t, fw.Start(context.Background()))
	defer fw.Stop()

	// A burst of writes collapses into one notification.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, 3*time.Second, 20*time.Millisecond)

	// Unrelated files in the same directory do not notify.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load())
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.gobook")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	fw, err := NewFileWatcher(path, func() {})
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))

	fw.Stop()
	fw.Stop()
}
