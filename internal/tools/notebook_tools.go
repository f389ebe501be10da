package tools

import (
	"context"
	"fmt"

	"gobook/internal/notebook"
	"gobook/internal/output"
)

// NotebookTools binds the tool surface to one notebook. Every tool mutates
// the shared document through the same operations the user interface calls,
// so agent work is visible and undoable like any other edit.
type NotebookTools struct {
	nb       *notebook.Notebook
	truncate int
}

// NewNotebookTools creates the binding. truncate caps the output summary
// returned to the agent from run_code.
func NewNotebookTools(nb *notebook.Notebook, truncate int) *NotebookTools {
	if truncate <= 0 {
		truncate = 4000
	}
	return &NotebookTools{nb: nb, truncate: truncate}
}

// RegisterAll installs the full notebook tool surface into the registry.
func (nt *NotebookTools) RegisterAll(r *Registry) {
	r.MustRegister(nt.runCodeTool())
	r.MustRegister(nt.addCellTool())
	r.MustRegister(nt.updateCellTool())
	r.MustRegister(nt.deleteCellTool())
	r.MustRegister(nt.restartKernelTool())
	r.MustRegister(nt.resetKernelTool())
}

// RunCode creates a code cell, executes it against the live session, and
// returns a transcript-sized summary of what the code produced. Errors from
// the code itself come back in the summary, not as a Go error.
func (nt *NotebookTools) RunCode(ctx context.Context, code, parent string) (string, error) {
	id, err := nt.nb.AddCell(notebook.CellCode, code, notebook.AddOptions{
		Role:     notebook.RoleAssistant,
		ParentID: parent,
	})
	if err != nil {
		return "", fmt.Errorf("failed to add cell: %w", err)
	}

	if err := nt.nb.ExecuteCell(ctx, id, false); err != nil {
		return "", fmt.Errorf("failed to execute cell %s: %w", id, err)
	}

	cell, ok := nt.nb.Cell(id)
	if !ok {
		return "", fmt.Errorf("cell %s vanished during execution", id)
	}

	summary := output.Summary(cell.Output, nt.truncate)
	if cell.ExecutionState == notebook.ExecError && summary == "" {
		summary = "execution failed with no output"
	}
	if summary == "" {
		summary = "(no output)"
	}
	return summary, nil
}

func (nt *NotebookTools) runCodeTool() *Tool {
	return &Tool{
		Name:        "run_code",
		Description: "Add a code cell to the notebook, execute it in the shared session, and return the captured output.",
		Category:    CategoryNotebook,
		Schema: ToolSchema{
			Required: []string{"code"},
			Properties: map[string]Property{
				"code":   {Type: "string", Description: "Go source to execute"},
				"parent": {Type: "string", Description: "Optional id of the user cell this responds to"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			code, err := stringArg(args, "code")
			if err != nil {
				return "", fmt.Errorf("%w: code must be a string", err)
			}
			parent, err := stringArg(args, "parent")
			if err != nil {
				return "", fmt.Errorf("%w: parent must be a string", err)
			}
			return nt.RunCode(ctx, code, parent)
		},
	}
}

func (nt *NotebookTools) addCellTool() *Tool {
	return &Tool{
		Name:        "add_cell",
		Description: "Insert a markdown or code cell without executing it.",
		Category:    CategoryNotebook,
		Schema: ToolSchema{
			Required: []string{"type", "content"},
			Properties: map[string]Property{
				"type":    {Type: "string", Description: "Cell type", Enum: []any{"code", "markdown"}},
				"content": {Type: "string", Description: "Cell content"},
				"parent":  {Type: "string", Description: "Optional conversation parent id"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			typ, err := stringArg(args, "type")
			if err != nil {
				return "", err
			}
			content, err := stringArg(args, "content")
			if err != nil {
				return "", err
			}
			parent, err := stringArg(args, "parent")
			if err != nil {
				return "", err
			}
			id, err := nt.nb.AddCell(notebook.CellType(typ), content, notebook.AddOptions{
				Role:     notebook.RoleAssistant,
				ParentID: parent,
			})
			if err != nil {
				return "", err
			}
			return id, nil
		},
	}
}

func (nt *NotebookTools) updateCellTool() *Tool {
	return &Tool{
		Name:        "update_cell",
		Description: "Replace the content of an existing cell.",
		Category:    CategoryNotebook,
		Schema: ToolSchema{
			Required: []string{"id", "content"},
			Properties: map[string]Property{
				"id":      {Type: "string", Description: "Cell id"},
				"content": {Type: "string", Description: "New content"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, err := stringArg(args, "id")
			if err != nil {
				return "", err
			}
			content, err := stringArg(args, "content")
			if err != nil {
				return "", err
			}
			if err := nt.nb.UpdateCellContent(id, content); err != nil {
				return "", err
			}
			return "updated", nil
		},
	}
}

func (nt *NotebookTools) deleteCellTool() *Tool {
	return &Tool{
		Name:        "delete_cell",
		Description: "Delete a cell, optionally cascading to its response cells.",
		Category:    CategoryNotebook,
		Schema: ToolSchema{
			Required: []string{"id"},
			Properties: map[string]Property{
				"id":            {Type: "string", Description: "Cell id"},
				"with_children": {Type: "boolean", Description: "Also delete cells answering this one", Default: false},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, err := stringArg(args, "id")
			if err != nil {
				return "", err
			}
			cascade, err := boolArg(args, "with_children")
			if err != nil {
				return "", err
			}
			if cascade {
				err = nt.nb.DeleteCellWithChildren(id)
			} else {
				err = nt.nb.DeleteCell(id)
			}
			if err != nil {
				return "", err
			}
			return "deleted", nil
		},
	}
}

func (nt *NotebookTools) restartKernelTool() *Tool {
	return &Tool{
		Name:        "restart_kernel",
		Description: "Tear down the interpreter session and start a fresh one. All in-memory state is lost.",
		Category:    CategoryKernel,
		Schema:      ToolSchema{Properties: map[string]Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			km := nt.nb.Kernel()
			if km == nil {
				return "", notebook.ErrKernelNotReady
			}
			if err := km.RestartKernel(ctx); err != nil {
				return "", err
			}
			return "kernel restarted", nil
		},
	}
}

func (nt *NotebookTools) resetKernelTool() *Tool {
	return &Tool{
		Name:        "reset_kernel",
		Description: "Clear the session namespace without a full restart when possible.",
		Category:    CategoryKernel,
		Schema:      ToolSchema{Properties: map[string]Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			km := nt.nb.Kernel()
			if km == nil {
				return "", notebook.ErrKernelNotReady
			}
			if err := km.ResetKernelState(ctx); err != nil {
				return "", err
			}
			return "kernel state reset", nil
		},
	}
}
