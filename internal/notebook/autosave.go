package notebook

import (
	"sync"
	"time"
)

// autosaver debounces save requests: bursts of edits inside the delay window
// collapse into one save. Saving is not transactional with execution; losing
// the most recent output on a crash between a run and the next save is an
// accepted risk for local-only persistence.
type autosaver struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	save  func()
}

func newAutosaver(delay time.Duration, save func()) *autosaver {
	if delay <= 0 {
		delay = time.Second
	}
	return &autosaver{delay: delay, save: save}
}

// markDirty schedules a save after the debounce delay, restarting the window
// if one is already pending.
func (a *autosaver) markDirty() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.save)
}

// stop cancels any pending save.
func (a *autosaver) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
