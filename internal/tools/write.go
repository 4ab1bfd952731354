package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samsaffron/workbench/cmd/udiff"
	"github.com/samsaffron/workbench/internal/llm"
)

// WriteFile replaces the content of a workspace file. Without approve it only
// returns the unified diff from the current content (empty for a missing
// file) to content; nothing touches disk. With approve the file and any
// missing parents are created and the content is written verbatim.
func (w *Workspace) WriteFile(rel, content string, approve bool) (MutationResult, error) {
	path, err := w.Resolve(rel)
	if err != nil {
		return MutationResult{}, err
	}
	before, mode, exists, err := readExisting(rel, path)
	if err != nil {
		return MutationResult{}, err
	}

	if !approve {
		return DiffPreview(rel, udiff.Diff(rel, before, content)), nil
	}

	if !exists {
		mode = 0644
	}
	if err := atomicWrite(path, content, mode); err != nil {
		return MutationResult{}, err
	}
	return Applied(rel, len(content)), nil
}

// atomicWrite writes content to a uniquely named temp file beside path and
// renames it into place, so readers never observe a partial file.
func atomicWrite(path, content string, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return NewToolErrorf(ErrExecutionFailed, "failed to create directory: %v", err)
	}

	tf, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return NewToolErrorf(ErrExecutionFailed, "failed to create temp file: %v", err)
	}
	tempPath := tf.Name()

	if _, err := tf.WriteString(content); err != nil {
		tf.Close()
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to write temp file: %v", err)
	}
	if err := tf.Sync(); err != nil {
		tf.Close()
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to sync temp file: %v", err)
	}
	if err := tf.Close(); err != nil {
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to close temp file: %v", err)
	}

	// CreateTemp uses 0600.
	if err := os.Chmod(tempPath, mode); err != nil {
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to set file permissions: %v", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return NewToolErrorf(ErrExecutionFailed, "failed to rename temp file: %v", err)
	}
	return nil
}

// WriteTool implements the write tool.
type WriteTool struct {
	ws *Workspace
}

// NewWriteTool creates a new WriteTool.
func NewWriteTool(ws *Workspace) *WriteTool {
	return &WriteTool{ws: ws}
}

// WriteArgs are the arguments for write. Content is a pointer so an explicit
// empty string can be told apart from a missing field.
type WriteArgs struct {
	Path    string  `json:"path"`
	Content *string `json:"content"`
	Approve bool    `json:"approve,omitempty"`
}

func (t *WriteTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: WriteToolName,
		Description: `Replace a file's content. Without approve this is a dry run that returns a unified diff and changes nothing.
Call again with the same content and approve=true to write it.`,
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the workspace root",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Complete new file content",
				},
				"approve": map[string]interface{}{
					"type":        "boolean",
					"description": "Write to disk instead of previewing (default: false)",
				},
			},
			"required":             []string{"path", "content"},
			"additionalProperties": false,
		},
	}
}

func (t *WriteTool) Preview(args json.RawMessage) string {
	var a WriteArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	if a.Approve {
		return a.Path
	}
	return fmt.Sprintf("%s (dry run)", a.Path)
}

func (t *WriteTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a WriteArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, NewToolError(ErrInvalidArguments, "path is required")
	}
	if a.Content == nil {
		return nil, NewToolError(ErrInvalidArguments, "content is required")
	}
	return t.ws.WriteFile(a.Path, *a.Content, a.Approve)
}
