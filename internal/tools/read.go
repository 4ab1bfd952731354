package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/samsaffron/workbench/internal/llm"
)

// Read returns up to maxBytes of a workspace file. When the file is larger the
// content is cut to exactly maxBytes bytes, Truncated is set and TotalBytes
// carries the real size. maxBytes <= 0 selects DefaultMaxReadBytes.
func (w *Workspace) Read(rel string, maxBytes int64) (FileSnapshot, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxReadBytes
	}

	path, err := w.Resolve(rel)
	if err != nil {
		return FileSnapshot{}, err
	}

	// Stat before opening: opening a FIFO blocks until a writer shows up.
	info, err := os.Stat(path)
	if err != nil {
		return FileSnapshot{}, statError(rel, err)
	}
	if !info.Mode().IsRegular() {
		return FileSnapshot{}, NewToolErrorf(ErrNotAFile, "%s is not a file", displayPath(rel))
	}

	f, err := os.Open(path)
	if err != nil {
		return FileSnapshot{}, statError(rel, err)
	}
	defer f.Close()

	limit := maxBytes
	if limit > info.Size() {
		limit = info.Size()
	}
	// Read one byte past the limit so growth since Stat is still detected.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return FileSnapshot{}, NewToolErrorf(ErrExecutionFailed, "read error: %v", err)
	}

	total := info.Size()
	if int64(len(data)) > total {
		total = int64(len(data))
	}
	if int64(len(data)) <= maxBytes {
		return FileSnapshot{Content: string(data), TotalBytes: total}, nil
	}
	return FileSnapshot{
		Content:    string(data[:maxBytes]),
		Truncated:  true,
		TotalBytes: total,
	}, nil
}

// readExisting returns the current content of path, or "" when it does not
// exist yet. Anything other than a regular file at path is an error.
func readExisting(rel, path string) (content string, mode os.FileMode, exists bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, false, nil
		}
		return "", 0, false, statError(rel, err)
	}
	if info.IsDir() {
		return "", 0, false, NewToolErrorf(ErrNotAFile, "%s is a directory", rel)
	}
	if !info.Mode().IsRegular() {
		return "", 0, false, NewToolErrorf(ErrNotAFile, "%s is not a regular file", rel)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, false, NewToolErrorf(ErrExecutionFailed, "read error: %v", err)
	}
	return string(data), info.Mode().Perm(), true, nil
}

// ReadTool implements the read tool.
type ReadTool struct {
	ws     *Workspace
	limits Limits
}

// NewReadTool creates a new ReadTool.
func NewReadTool(ws *Workspace, limits Limits) *ReadTool {
	return &ReadTool{ws: ws, limits: limits}
}

// ReadArgs are the arguments for read.
type ReadArgs struct {
	Path     string `json:"path"`
	MaxBytes int64  `json:"maxBytes,omitempty"`
}

func (t *ReadTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ReadToolName,
		Description: "Read a workspace file as text. Large files are truncated; use totalBytes to see how much was left out.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the workspace root",
				},
				"maxBytes": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Maximum bytes to return (default: %d)", t.limits.MaxReadBytes),
				},
			},
			"required":             []string{"path"},
			"additionalProperties": false,
		},
	}
}

func (t *ReadTool) Preview(args json.RawMessage) string {
	var a ReadArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	return a.Path
}

func (t *ReadTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a ReadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, NewToolError(ErrInvalidArguments, "path is required")
	}
	if a.MaxBytes < 0 {
		return nil, NewToolError(ErrInvalidArguments, "maxBytes must be positive")
	}

	maxBytes := a.MaxBytes
	if maxBytes == 0 {
		maxBytes = t.limits.MaxReadBytes
	}
	return t.ws.Read(a.Path, maxBytes)
}
