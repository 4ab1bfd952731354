package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samsaffron/workbench/internal/llm"
)

// Glob returns the files under relDir whose path relative to relDir matches
// pattern (doublestar syntax, ** crosses directories). Results are relative to
// the workspace root and come back in directory-walk order.
func (w *Workspace) Glob(ctx context.Context, pattern, relDir string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, NewToolErrorf(ErrInvalidArguments, "invalid glob pattern: %q", pattern)
	}

	base, err := w.Resolve(relDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, statError(relDir, err)
	}
	if !info.IsDir() {
		return nil, NewToolErrorf(ErrNotADirectory, "%s is not a directory", displayPath(relDir))
	}

	matches := []string{}
	err = w.walk(ctx, base, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		ok, err := doublestar.Match(pattern, filepath.ToSlash(relPath))
		if err != nil || !ok {
			return nil
		}
		matches = append(matches, w.Rel(path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// walk visits every entry below base in lexical order, pruning ignored names.
// Unreadable entries are skipped. The walk stops early when ctx is done.
func (w *Workspace) walk(ctx context.Context, base string, fn func(path string, d fs.DirEntry) error) error {
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if d != nil && d.IsDir() && path != base {
				return filepath.SkipDir
			}
			return nil
		}
		if path == base {
			return nil
		}
		if w.ignore.Match(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return fn(path, d)
	})
	if err != nil {
		if ctx.Err() != nil {
			return NewToolErrorf(ErrExecutionFailed, "search cancelled: %v", ctx.Err())
		}
		return NewToolErrorf(ErrExecutionFailed, "walk error: %v", err)
	}
	return nil
}

// GlobTool implements the glob tool.
type GlobTool struct {
	ws *Workspace
}

// NewGlobTool creates a new GlobTool.
func NewGlobTool(ws *Workspace) *GlobTool {
	return &GlobTool{ws: ws}
}

// GlobArgs are the arguments for glob.
type GlobArgs struct {
	Pattern string `json:"pattern"`
	Cwd     string `json:"cwd,omitempty"`
}

func (t *GlobTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        GlobToolName,
		Description: "Find files by glob pattern (supports ** for recursive matching). Returns paths relative to the workspace root.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob pattern, e.g. '**/*.go' or 'src/**/*.ts'",
				},
				"cwd": map[string]interface{}{
					"type":        "string",
					"description": "Directory the pattern is matched against (default: the root)",
				},
			},
			"required":             []string{"pattern"},
			"additionalProperties": false,
		},
	}
}

func (t *GlobTool) Preview(args json.RawMessage) string {
	var a GlobArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Pattern == "" {
		return ""
	}
	if a.Cwd != "" {
		return fmt.Sprintf("%s in %s", a.Pattern, a.Cwd)
	}
	return a.Pattern
}

func (t *GlobTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a GlobArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Pattern == "" {
		return nil, NewToolError(ErrInvalidArguments, "pattern is required")
	}
	return t.ws.Glob(ctx, a.Pattern, a.Cwd)
}
