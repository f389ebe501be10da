package notebook

import (
	"fmt"

	"gobook/internal/logging"
)

// FindChildrenCells returns, in document order, every cell whose parent link
// points at the given id.
func (nb *Notebook) FindChildrenCells(id string) []Cell {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	var children []Cell
	for _, c := range nb.cells {
		if c.Metadata.Parent == id {
			children = append(children, c.snapshot())
		}
	}
	return children
}

// GetParentCell returns the cell the given cell responds to, if any.
func (nb *Notebook) GetParentCell(id string) (Cell, bool) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	c := nb.cellLocked(id)
	if c == nil || c.Metadata.Parent == "" {
		return Cell{}, false
	}
	p := nb.cellLocked(c.Metadata.Parent)
	if p == nil {
		return Cell{}, false
	}
	return p.snapshot(), true
}

// FindLastCellOfConversation walks the cell's parent and siblings and
// returns the document-order-last id of that conversation turn. Used to
// anchor new content after an entire turn rather than a single cell.
func (nb *Notebook) FindLastCellOfConversation(id string) (string, error) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	c := nb.cellLocked(id)
	if c == nil {
		return "", fmt.Errorf("%w: %s", ErrCellNotFound, id)
	}

	root := c
	if c.Metadata.Parent != "" {
		if p := nb.cellLocked(c.Metadata.Parent); p != nil {
			root = p
		}
	}

	// The conversation is the root plus every cell answering it. Relations
	// are recomputed by scanning; fine at notebook scale.
	last := nb.indexOfLocked(root.ID)
	for i, cell := range nb.cells {
		if cell.Metadata.Parent == root.ID && i > last {
			last = i
		}
	}
	return nb.cells[last].ID, nil
}

// RegenerateResponses deletes all current children of a user cell, inserts a
// placeholder thinking cell as the new anchor, and returns the original
// message text for resubmission. Idempotent re-generation: history is never
// duplicated.
func (nb *Notebook) RegenerateResponses(userCellID string) (string, error) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	user := nb.cellLocked(userCellID)
	if user == nil {
		return "", fmt.Errorf("%w: %s", ErrCellNotFound, userCellID)
	}
	text := user.Content

	survivors := nb.cells[:0]
	removed := 0
	for _, c := range nb.cells {
		if c.Metadata.Parent == userCellID {
			delete(nb.live, c.ID)
			removed++
			continue
		}
		survivors = append(survivors, c)
	}
	nb.cells = survivors

	placeholder, err := nb.newCellLocked(CellThinking, "", AddOptions{
		Role:     RoleAssistant,
		ParentID: userCellID,
	})
	if err != nil {
		return "", err
	}
	nb.insertAtLocked(placeholder, nb.indexOfLocked(userCellID)+1)
	nb.lastAgentCell = placeholder.ID

	logging.Notebook("regenerating responses for %s (removed %d children)", userCellID, removed)
	nb.markDirtyLocked()
	return text, nil
}

// UpdateCellByID is the upsert primitive for streaming agent responses. An
// existing id is updated in place; otherwise a new cell is inserted at a
// position derived from the last agent anchor or the explicit parent. The
// caller streams multiple cells by id without tracking positions. Returns
// true when a cell was created.
func (nb *Notebook) UpdateCellByID(id, content string, typ CellType, role Role, parent string) bool {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	if c := nb.cellLocked(id); c != nil {
		c.Content = content
		if typ != "" {
			c.Type = typ
		}
		if role != "" {
			c.Role = role
		}
		if parent != "" {
			c.Metadata.Parent = parent
		}
		nb.lastAgentCell = id
		nb.markDirtyLocked()
		return false
	}

	pos := len(nb.cells)
	switch {
	case parent != "":
		if anchor := nb.lastOfConversationLocked(parent); anchor >= 0 {
			pos = anchor + 1
		}
	case nb.lastAgentCell != "":
		if i := nb.indexOfLocked(nb.lastAgentCell); i >= 0 {
			pos = i + 1
		}
	}

	cell := &Cell{
		ID:             id,
		Type:           typ,
		Content:        content,
		ExecutionState: ExecIdle,
		Role:           role,
		Metadata: Metadata{
			Parent:          parent,
			IsCodeVisible:   typ == CellCode,
			IsOutputVisible: true,
		},
	}
	nb.insertAtLocked(cell, pos)
	nb.lastAgentCell = id

	logging.NotebookDebug("upserted cell %s at %d (parent=%s)", id, pos, parent)
	nb.markDirtyLocked()
	return true
}

// lastOfConversationLocked returns the index of the document-order-last cell
// in the conversation rooted at rootID, or -1.
func (nb *Notebook) lastOfConversationLocked(rootID string) int {
	last := nb.indexOfLocked(rootID)
	if last < 0 {
		return -1
	}
	for i, c := range nb.cells {
		if c.Metadata.Parent == rootID && i > last {
			last = i
		}
	}
	return last
}
