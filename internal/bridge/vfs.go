package bridge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// mountTable tracks host directories attached to the sandbox filesystem.
// Mount points are paths relative to the sandbox scratch root. Remounting a
// point replaces the previous handle.
type mountTable struct {
	mu     sync.Mutex
	mounts map[string]string // mount point -> host dir
}

func newMountTable() *mountTable {
	return &mountTable{mounts: make(map[string]string)}
}

// mount attaches hostDir at mountPoint. An existing mount at the same point
// is unmounted first.
func (m *mountTable) mount(mountPoint, hostDir string) error {
	info, err := os.Stat(hostDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMount, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrMount, hostDir)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounts[filepath.Clean(mountPoint)] = hostDir
	return nil
}

// unmount detaches the handle at mountPoint. Unknown points are a no-op.
func (m *mountTable) unmount(mountPoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mounts, filepath.Clean(mountPoint))
}

// snapshot returns a copy of the mount map.
func (m *mountTable) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.mounts))
	for k, v := range m.mounts {
		out[k] = v
	}
	return out
}

// syncIn copies every mounted host directory into the sandbox scratch dir.
// Runs before each execution so the sandbox sees the latest persisted state.
func (m *mountTable) syncIn(scratch string) error {
	for point, hostDir := range m.snapshot() {
		if err := copyDir(hostDir, filepath.Join(scratch, point)); err != nil {
			return fmt.Errorf("sync in %s: %w", point, err)
		}
	}
	return nil
}

// syncOut copies sandbox mount points back to their host directories.
// Runs after each execution so writes survive across calls.
func (m *mountTable) syncOut(scratch string) error {
	for point, hostDir := range m.snapshot() {
		src := filepath.Join(scratch, point)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyDir(src, hostDir); err != nil {
			return fmt.Errorf("sync out %s: %w", point, err)
		}
	}
	return nil
}

// copyDir recursively copies regular files from src into dst, creating
// directories as needed. Symlinks and special files are skipped.
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
