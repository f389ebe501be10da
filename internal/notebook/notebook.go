package notebook

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gobook/internal/config"
	"gobook/internal/kernel"
	"gobook/internal/logging"
)

// HistoryRecorder receives a record of every finished execution. Recording
// failures are the recorder's problem; the notebook never fails on them.
type HistoryRecorder interface {
	RecordExecution(cellID, code string, success bool, duration time.Duration, outputBytes int)
}

// liveBuffer is the editor-side content of a cell being edited. When the
// code pane is visible the buffer wins over stored content at execute and
// save time.
type liveBuffer struct {
	content string
	visible bool
}

// DocumentMetadata is the notebook-level metadata persisted alongside cells.
type DocumentMetadata struct {
	Kernelspec   Kernelspec   `json:"kernelspec"`
	LanguageInfo LanguageInfo `json:"language_info"`
	Title        string       `json:"title,omitempty"`
	Created      time.Time    `json:"created,omitempty"`
	Modified     time.Time    `json:"modified,omitempty"`
}

// Kernelspec identifies the interpreter backing the document.
type Kernelspec struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// LanguageInfo describes the cell language.
type LanguageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Notebook holds the ordered cell sequence. All mutations go through its
// methods; reads return snapshots. A single Notebook pairs with a single
// kernel session manager, injected at construction.
type Notebook struct {
	mu sync.RWMutex

	cells       []*Cell
	activeID    string
	execCounter int // next executionCount to assign

	kernel  *kernel.Manager
	cfg     config.NotebookConfig
	outCfg  config.OutputConfig
	history HistoryRecorder

	// executing enforces one in-flight execution per session.
	executing bool

	live map[string]liveBuffer

	// lastAgentCell anchors streamed agent responses that arrive without
	// explicit placement.
	lastAgentCell string

	meta      DocumentMetadata
	path      string
	autosaver *autosaver
}

// New creates an empty notebook bound to the given session manager.
func New(km *kernel.Manager, cfg config.NotebookConfig, outCfg config.OutputConfig) *Notebook {
	nb := &Notebook{
		kernel:      km,
		cfg:         cfg,
		outCfg:      outCfg,
		execCounter: 1,
		live:        make(map[string]liveBuffer),
		meta: DocumentMetadata{
			Kernelspec:   Kernelspec{Name: "gobook", DisplayName: "Go (gobook)"},
			LanguageInfo: LanguageInfo{Name: "go"},
			Created:      time.Now(),
		},
	}
	nb.autosaver = newAutosaver(cfg.AutosaveDelay, nb.saveIfBound)
	return nb
}

// SetHistoryRecorder attaches an execution history sink.
func (nb *Notebook) SetHistoryRecorder(h HistoryRecorder) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.history = h
}

// Kernel returns the injected session manager.
func (nb *Notebook) Kernel() *kernel.Manager {
	return nb.kernel
}

// AddOptions controls cell insertion. Position precedence: HasIndex >
// AfterID > successor of the active cell > document end.
type AddOptions struct {
	Role     Role
	AfterID  string
	ParentID string

	Index    int
	HasIndex bool

	// ExplicitID uses the given id instead of generating one. Insertion
	// fails if the id already exists.
	ExplicitID string
}

// AddCell inserts a new cell and makes it the active cell. Returns the new
// cell's id.
func (nb *Notebook) AddCell(typ CellType, content string, opts AddOptions) (string, error) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	cell, err := nb.newCellLocked(typ, content, opts)
	if err != nil {
		return "", err
	}

	pos := nb.insertPositionLocked(opts)
	nb.insertAtLocked(cell, pos)
	nb.activeID = cell.ID

	logging.Notebook("added %s cell %s at %d", typ, cell.ID, pos)
	nb.markDirtyLocked()
	return cell.ID, nil
}

// AddCellBefore inserts a new cell immediately before the reference cell.
// The active cell does not change.
func (nb *Notebook) AddCellBefore(refID string, typ CellType, content string, opts AddOptions) (string, error) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	ref := nb.indexOfLocked(refID)
	if ref < 0 {
		return "", fmt.Errorf("%w: %s", ErrCellNotFound, refID)
	}

	cell, err := nb.newCellLocked(typ, content, opts)
	if err != nil {
		return "", err
	}

	nb.insertAtLocked(cell, ref)
	logging.Notebook("added %s cell %s before %s", typ, cell.ID, refID)
	nb.markDirtyLocked()
	return cell.ID, nil
}

func (nb *Notebook) newCellLocked(typ CellType, content string, opts AddOptions) (*Cell, error) {
	id := opts.ExplicitID
	if id == "" {
		id = uuid.NewString()
	} else if nb.indexOfLocked(id) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCellID, id)
	}

	return &Cell{
		ID:             id,
		Type:           typ,
		Content:        content,
		ExecutionState: ExecIdle,
		Role:           opts.Role,
		Metadata: Metadata{
			Parent:          opts.ParentID,
			IsCodeVisible:   typ == CellCode,
			IsOutputVisible: true,
		},
	}, nil
}

// insertPositionLocked resolves the insertion index per the precedence rule.
func (nb *Notebook) insertPositionLocked(opts AddOptions) int {
	if opts.HasIndex {
		return clamp(opts.Index, 0, len(nb.cells))
	}
	if opts.AfterID != "" {
		if i := nb.indexOfLocked(opts.AfterID); i >= 0 {
			return i + 1
		}
	}
	if nb.activeID != "" {
		if i := nb.indexOfLocked(nb.activeID); i >= 0 {
			return i + 1
		}
	}
	return len(nb.cells)
}

func (nb *Notebook) insertAtLocked(cell *Cell, pos int) {
	nb.cells = append(nb.cells, nil)
	copy(nb.cells[pos+1:], nb.cells[pos:])
	nb.cells[pos] = cell
}

// DeleteCell removes a single cell. Children keep their parent reference;
// only DeleteCellWithChildren cascades.
func (nb *Notebook) DeleteCell(id string) error {
	return nb.deleteCells(id, false)
}

// DeleteCellWithChildren removes the cell and, cascading, every cell whose
// parent equals its id. The relative order of survivors is unchanged.
func (nb *Notebook) DeleteCellWithChildren(id string) error {
	return nb.deleteCells(id, true)
}

func (nb *Notebook) deleteCells(id string, withChildren bool) error {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	idx := nb.indexOfLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}

	doomed := map[string]bool{id: true}
	if withChildren {
		for _, c := range nb.cells {
			if c.Metadata.Parent == id {
				doomed[c.ID] = true
			}
		}
	}

	survivors := nb.cells[:0]
	for _, c := range nb.cells {
		if doomed[c.ID] {
			delete(nb.live, c.ID) // release editor resources
			continue
		}
		survivors = append(survivors, c)
	}
	nb.cells = survivors

	// Re-derive the active cell to the index now occupied, clamped.
	if len(nb.cells) == 0 {
		nb.activeID = ""
	} else {
		nb.activeID = nb.cells[clamp(idx, 0, len(nb.cells)-1)].ID
	}

	logging.Notebook("deleted cell %s (cascade=%v, removed=%d)", id, withChildren, len(doomed))
	nb.markDirtyLocked()
	return nil
}

// UpdateCellContent replaces a cell's content. No state transition.
func (nb *Notebook) UpdateCellContent(id, content string) error {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	c := nb.cellLocked(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	c.Content = content
	c.Metadata.UserModified = true
	nb.markDirtyLocked()
	return nil
}

// SetLiveContent records the editor buffer for a cell. visible mirrors
// whether the code pane is showing; the buffer wins over stored content only
// while visible.
func (nb *Notebook) SetLiveContent(id, content string, visible bool) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.live[id] = liveBuffer{content: content, visible: visible}
}

// Cell returns a snapshot of one cell.
func (nb *Notebook) Cell(id string) (Cell, bool) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	c := nb.cellLocked(id)
	if c == nil {
		return Cell{}, false
	}
	return c.snapshot(), true
}

// Cells returns a snapshot of the full sequence in document order.
func (nb *Notebook) Cells() []Cell {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]Cell, len(nb.cells))
	for i, c := range nb.cells {
		out[i] = c.snapshot()
	}
	return out
}

// ActiveCell returns the active cell id, or "".
func (nb *Notebook) ActiveCell() string {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return nb.activeID
}

// SetActiveCell makes the given cell active.
func (nb *Notebook) SetActiveCell(id string) error {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if nb.indexOfLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}
	nb.activeID = id
	return nil
}

// Len returns the cell count.
func (nb *Notebook) Len() int {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return len(nb.cells)
}

// Metadata returns the document metadata.
func (nb *Notebook) Metadata() DocumentMetadata {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return nb.meta
}

// SetTitle sets the document title.
func (nb *Notebook) SetTitle(title string) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.meta.Title = title
	nb.markDirtyLocked()
}

func (nb *Notebook) cellLocked(id string) *Cell {
	if i := nb.indexOfLocked(id); i >= 0 {
		return nb.cells[i]
	}
	return nil
}

func (nb *Notebook) indexOfLocked(id string) int {
	for i, c := range nb.cells {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
