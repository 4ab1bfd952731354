package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/samsaffron/workbench/internal/llm"
)

// List returns the immediate children of a workspace directory, skipping
// ignored names. Sizes are reported for files only.
func (w *Workspace) List(rel string) ([]DirEntry, error) {
	dir, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, statError(rel, err)
	}
	if !info.IsDir() {
		return nil, NewToolErrorf(ErrNotADirectory, "%s is not a directory", displayPath(rel))
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, NewToolErrorf(ErrExecutionFailed, "read directory: %v", err)
	}

	entries := make([]DirEntry, 0, len(children))
	for _, child := range children {
		if w.ignore.Match(child.Name()) {
			continue
		}
		if child.IsDir() {
			entries = append(entries, DirEntry{Name: child.Name(), Kind: EntryDirectory})
			continue
		}
		entry := DirEntry{Name: child.Name(), Kind: EntryFile}
		if fi, err := child.Info(); err == nil {
			size := fi.Size()
			entry.Size = &size
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// statError maps a stat failure onto the tool error taxonomy.
func statError(rel string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return NewToolErrorf(ErrNotFound, "%s does not exist", displayPath(rel))
	}
	return NewToolErrorf(ErrExecutionFailed, "stat %s: %v", displayPath(rel), err)
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

// ListTool implements the list tool.
type ListTool struct {
	ws *Workspace
}

// NewListTool creates a new ListTool.
func NewListTool(ws *Workspace) *ListTool {
	return &ListTool{ws: ws}
}

// ListArgs are the arguments for list.
type ListArgs struct {
	Path string `json:"path,omitempty"`
}

func (t *ListTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ListToolName,
		Description: "List the immediate children of a workspace directory with their kind and file size.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Directory relative to the workspace root (default: the root)",
				},
			},
			"additionalProperties": false,
		},
	}
}

func (t *ListTool) Preview(args json.RawMessage) string {
	var a ListArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return displayPath(a.Path)
}

func (t *ListTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a ListArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return t.ws.List(a.Path)
}
