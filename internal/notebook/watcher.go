package notebook

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gobook/internal/logging"
)

// FileWatcher watches the bound notebook file for external edits and invokes
// a callback once writes have settled. It watches the containing directory
// rather than the file itself because most editors save via rename, which
// breaks a direct file watch.
type FileWatcher struct {
	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	path      string
	onChange  func()
	debounce  time.Duration
	lastEvent time.Time
	pending   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
}

// NewFileWatcher creates a watcher for path. onChange fires on the watcher
// goroutine after external writes settle; keep it cheap or dispatch.
func NewFileWatcher(path string, onChange func()) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		watcher:  watcher,
		path:     filepath.Clean(path),
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = true
	fw.mu.Unlock()

	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
		return err
	}
	logging.Persist("FileWatcher: watching %s for changes to %s", dir, fw.path)

	go fw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.stopCh)
	<-fw.doneCh

	if err := fw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryPersist).Error("FileWatcher: error closing watcher: %v", err)
	}
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryPersist).Error("FileWatcher error: %v", err)

		case <-ticker.C:
			fw.fireSettled()
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != fw.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	logging.PersistDebug("FileWatcher: %s event for %s", event.Op, event.Name)

	fw.mu.Lock()
	fw.lastEvent = time.Now()
	fw.pending = true
	fw.mu.Unlock()
}

// fireSettled invokes onChange once no new events arrived for the debounce
// window, collapsing the burst an editor save produces into one reload.
func (fw *FileWatcher) fireSettled() {
	fw.mu.Lock()
	ready := fw.pending && time.Since(fw.lastEvent) >= fw.debounce
	if ready {
		fw.pending = false
	}
	fw.mu.Unlock()

	if ready && fw.onChange != nil {
		fw.onChange()
	}
}
