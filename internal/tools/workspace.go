package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is the directory every tool is confined to. It is immutable after
// construction and safe for concurrent use.
type Workspace struct {
	root   string
	ignore *IgnoreSet
}

// NewWorkspace canonicalizes root and returns a Workspace for it. The root
// must be an existing directory.
func NewWorkspace(root string, ignore *IgnoreSet) (*Workspace, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", abs)
	}
	if ignore == nil {
		ignore = &IgnoreSet{}
	}
	return &Workspace{root: filepath.Clean(abs), ignore: ignore}, nil
}

// Root returns the canonical workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve turns a workspace-relative path into an absolute one, failing with
// PATH_ESCAPE when the result would lie outside the root. An empty path
// resolves to the root. Absolute paths are accepted when they are inside the
// root. The path does not need to exist.
func (w *Workspace) Resolve(rel string) (string, error) {
	var abs string
	if filepath.IsAbs(rel) {
		abs = filepath.Clean(rel)
	} else {
		abs = filepath.Join(w.root, rel)
	}
	if !w.contains(abs) {
		return "", NewToolErrorf(ErrPathEscape, "path %q resolves outside the workspace", rel)
	}
	return abs, nil
}

func (w *Workspace) contains(abs string) bool {
	if abs == w.root {
		return true
	}
	prefix := w.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(abs, prefix)
}

// Rel converts a resolved path back into a slash-separated path relative to
// the root. The root itself is ".".
func (w *Workspace) Rel(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
