package tools

import (
	"context"
	"fmt"

	"gobook/internal/logging"
	"gobook/internal/notebook"
)

// StreamItemType tags one item of a streamed agent response.
type StreamItemType string

const (
	StreamText     StreamItemType = "text"
	StreamMarkdown StreamItemType = "markdown"
	StreamToolCall StreamItemType = "tool_call"
)

// StreamItem is one unit of a streamed agent response. Text and markdown
// items carry content for a cell identified by ID; repeated items with the
// same ID update the cell in place, which is how token-at-a-time streaming
// renders. Tool calls carry a registered tool name and its arguments.
type StreamItem struct {
	Type    StreamItemType `json:"type"`
	ID      string         `json:"id"`
	Content string         `json:"content,omitempty"`
	Parent  string         `json:"parent,omitempty"`

	ToolName string         `json:"toolName,omitempty"`
	ToolArgs map[string]any `json:"toolArgs,omitempty"`
}

// StreamConsumer applies a streamed agent response to the notebook. It is
// the write half of the agent integration: the agent produces items, the
// consumer upserts cells and dispatches tool calls.
type StreamConsumer struct {
	nb       *notebook.Notebook
	registry *Registry
}

// NewStreamConsumer wires a consumer to a notebook and tool registry.
func NewStreamConsumer(nb *notebook.Notebook, registry *Registry) *StreamConsumer {
	return &StreamConsumer{nb: nb, registry: registry}
}

// Apply processes one stream item. For content items the returned string is
// empty; for tool calls it is the tool's result, which the caller feeds back
// to the agent.
func (sc *StreamConsumer) Apply(ctx context.Context, item StreamItem) (string, error) {
	switch item.Type {
	case StreamText, StreamMarkdown:
		if item.ID == "" {
			return "", fmt.Errorf("stream item without id")
		}
		cellType := notebook.CellText
		if item.Type == StreamMarkdown {
			cellType = notebook.CellMarkdown
		}
		sc.nb.UpdateCellByID(item.ID, item.Content, cellType, notebook.RoleAssistant, item.Parent)
		return "", nil

	case StreamToolCall:
		if sc.registry == nil {
			return "", ErrToolNotFound
		}
		logging.Tools("stream tool call: %s", item.ToolName)
		res, err := sc.registry.Execute(ctx, item.ToolName, item.ToolArgs)
		if err != nil {
			// The agent sees tool failures as text, same as a human would.
			return fmt.Sprintf("tool %s failed: %v", item.ToolName, err), nil
		}
		return res.Result, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStreamItem, item.Type)
	}
}

// ApplyAll drains a channel of stream items, collecting tool results in
// order. It stops on the first malformed item or cancelled context.
func (sc *StreamConsumer) ApplyAll(ctx context.Context, items <-chan StreamItem) ([]string, error) {
	var results []string
	for {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case item, ok := <-items:
			if !ok {
				return results, nil
			}
			res, err := sc.Apply(ctx, item)
			if err != nil {
				return results, err
			}
			if res != "" {
				results = append(results, res)
			}
		}
	}
}
