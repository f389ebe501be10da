package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gobook/internal/config"
	"gobook/internal/kernel"
	"gobook/internal/logging"
	"gobook/internal/output"
)

// documentRecord is the persisted form of a notebook.
type documentRecord struct {
	Cells    []Cell           `json:"cells"`
	Metadata DocumentMetadata `json:"metadata"`
}

// GetCurrentCellsContent returns the cells with live editor buffers
// reconciled into content. The editor wins only while its pane is visible.
func (nb *Notebook) GetCurrentCellsContent() []Cell {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	out := make([]Cell, len(nb.cells))
	for i, c := range nb.cells {
		cell := c.snapshot()
		if buf, ok := nb.live[c.ID]; ok && buf.visible {
			cell.Content = buf.content
		}
		out[i] = cell
	}
	return out
}

// OutputSummary renders a cell's captured output as transcript text,
// coalesced and truncated per the configured limit.
func (nb *Notebook) OutputSummary(id string) (string, bool) {
	c, ok := nb.Cell(id)
	if !ok {
		return "", false
	}
	nb.mu.RLock()
	limit := nb.outCfg.TruncateLimit
	nb.mu.RUnlock()
	return output.Summary(c.Output, limit), true
}

// Bind attaches the notebook to a file path. Subsequent mutations schedule
// debounced auto-saves to that path.
func (nb *Notebook) Bind(path string) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.path = path
}

// Path returns the bound file path, or "".
func (nb *Notebook) Path() string {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return nb.path
}

// Save writes the full sequence plus notebook metadata to path.
// Presentation-only fields are stripped first.
func (nb *Notebook) Save(path string) error {
	cells := nb.GetCurrentCellsContent()
	for i := range cells {
		cells[i].Metadata.IsEditing = false
	}

	nb.mu.Lock()
	nb.meta.Modified = time.Now()
	record := documentRecord{Cells: cells, Metadata: nb.meta}
	nb.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notebook: %w", err)
	}

	// Write-then-rename so a crash mid-save never corrupts the document.
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create notebook dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write notebook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace notebook: %w", err)
	}

	logging.Persist("saved %d cells to %s", len(cells), path)
	return nil
}

// saveIfBound is the autosave target. Failures are logged, never fatal.
func (nb *Notebook) saveIfBound() {
	path := nb.Path()
	if path == "" {
		return
	}
	if err := nb.Save(path); err != nil {
		logging.Get(logging.CategoryPersist).Error("auto-save failed: %v", err)
	}
}

// markDirtyLocked schedules a debounced auto-save. Callers hold nb.mu; the
// autosaver has its own lock and the save itself runs later on a timer
// goroutine, so this never deadlocks.
func (nb *Notebook) markDirtyLocked() {
	if nb.path != "" && nb.autosaver != nil {
		nb.autosaver.markDirty()
	}
}

// Close stops the autosaver and flushes a final save when bound.
func (nb *Notebook) Close() error {
	nb.autosaver.stop()
	if path := nb.Path(); path != "" {
		return nb.Save(path)
	}
	return nil
}

// Load reads a persisted notebook. Every cell receives a fresh id (parent
// links are remapped), executionState resets to idle, transient UI attrs are
// stripped, and the execution counter resumes at max(executionCount)+1.
// A missing or corrupt file is treated as no saved state, not an error.
func Load(path string, km *kernel.Manager, cfg config.NotebookConfig, outCfg config.OutputConfig) (*Notebook, error) {
	nb := New(km, cfg, outCfg)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nb, nil
		}
		return nil, fmt.Errorf("failed to read notebook: %w", err)
	}

	var record documentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		logging.Get(logging.CategoryPersist).Warn("corrupt notebook %s, starting empty: %v", path, err)
		return nb, nil
	}

	// First pass: fresh ids.
	idMap := make(map[string]string, len(record.Cells))
	for i := range record.Cells {
		idMap[record.Cells[i].ID] = uuid.NewString()
	}

	maxCount := 0
	cells := make([]*Cell, 0, len(record.Cells))
	for _, rec := range record.Cells {
		c := rec
		c.ID = idMap[rec.ID]
		c.ExecutionState = ExecIdle
		c.Metadata.IsEditing = false
		if mapped, ok := idMap[c.Metadata.Parent]; ok {
			c.Metadata.Parent = mapped
		} else {
			c.Metadata.Parent = ""
		}
		if c.ExecutionCount > maxCount {
			maxCount = c.ExecutionCount
		}
		cells = append(cells, &c)
	}

	nb.mu.Lock()
	nb.cells = cells
	nb.execCounter = maxCount + 1
	if len(cells) > 0 {
		nb.activeID = cells[len(cells)-1].ID
	}
	if record.Metadata.Kernelspec.Name != "" {
		nb.meta = record.Metadata
	}
	nb.mu.Unlock()

	logging.Persist("loaded %d cells from %s (counter=%d)", len(cells), path, maxCount+1)
	return nb, nil
}
