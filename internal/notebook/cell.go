// Package notebook is the single source of truth for the ordered cell
// sequence and its execution bookkeeping. The same mutation surface serves
// direct user interaction and agent tool invocation; nothing else writes
// document state.
package notebook

import (
	"gobook/internal/output"
)

// CellType classifies a cell's content.
type CellType string

const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
	CellText     CellType = "text"
	CellThinking CellType = "thinking"
)

// ExecState is the per-cell execution lifecycle state.
type ExecState string

const (
	ExecIdle    ExecState = "idle"
	ExecRunning ExecState = "running"
	ExecSuccess ExecState = "success"
	ExecError   ExecState = "error"
)

// Role attributes a cell to one of the document's actors.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Metadata carries per-cell flags and the conversation thread link. Parent is
// an independent logical link: children are conventionally inserted adjacent
// to their parent and siblings, but the sequence does not enforce it.
type Metadata struct {
	IsEditing       bool   `json:"isEditing,omitempty"`
	IsCodeVisible   bool   `json:"isCodeVisible,omitempty"`
	IsOutputVisible bool   `json:"isOutputVisible,omitempty"`
	Parent          string `json:"parent,omitempty"`
	UserModified    bool   `json:"userModified,omitempty"`
}

// Cell is one ordered unit of notebook content. Output is nil or non-empty,
// never an empty slice. ExecutionCount is assigned only on success for code
// cells and strictly increases across the document's lifetime, surviving
// deletions.
type Cell struct {
	ID             string        `json:"id"`
	Type           CellType      `json:"type"`
	Content        string        `json:"content"`
	ExecutionState ExecState     `json:"executionState"`
	ExecutionCount int           `json:"executionCount,omitempty"`
	Output         []output.Item `json:"output,omitempty"`
	Role           Role          `json:"role,omitempty"`
	Metadata       Metadata      `json:"metadata"`
}

// Executable reports whether the cell can be sent to the kernel.
func (c *Cell) Executable() bool {
	return c.Type == CellCode
}

// snapshot returns a value copy safe to hand outside the lock.
func (c *Cell) snapshot() Cell {
	cp := *c
	if c.Output != nil {
		cp.Output = make([]output.Item, len(c.Output))
		copy(cp.Output, c.Output)
	}
	return cp
}
