package tools

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestList(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{
		"b.txt":            "hello",
		"a/inner.txt":      "",
		".git/HEAD":        "ref",
		"node_modules/x":   "",
		"sub/deep/file.go": "package deep",
	})

	entries, err := ws.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if want := []string{"a", "b.txt", "sub"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}

	if entries[0].Kind != EntryDirectory || entries[0].Size != nil {
		t.Errorf("directory entry = %+v", entries[0])
	}
	if entries[1].Kind != EntryFile || entries[1].Size == nil || *entries[1].Size != 5 {
		t.Errorf("file entry = %+v", entries[1])
	}

	nested, err := ws.List("sub/deep")
	if err != nil {
		t.Fatalf("List(sub/deep): %v", err)
	}
	if len(nested) != 1 || nested[0].Name != "file.go" {
		t.Fatalf("nested = %+v", nested)
	}
}

func TestListErrors(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"file.txt": "x"})

	tests := []struct {
		rel  string
		want ToolErrorType
	}{
		{"missing", ErrNotFound},
		{"file.txt", ErrNotADirectory},
		{"../", ErrPathEscape},
	}
	for _, tt := range tests {
		_, err := ws.List(tt.rel)
		if ErrorType(err) != tt.want {
			t.Errorf("List(%q) error = %v, want %s", tt.rel, err, tt.want)
		}
	}
}

func TestReadTruncationBoundary(t *testing.T) {
	const maxBytes = 16
	ws := newTestWorkspace(t, map[string]string{
		"exact.txt": strings.Repeat("a", maxBytes),
		"over.txt":  strings.Repeat("b", maxBytes+1),
	})

	exact, err := ws.Read("exact.txt", maxBytes)
	if err != nil {
		t.Fatalf("Read exact: %v", err)
	}
	if exact.Truncated || len(exact.Content) != maxBytes || exact.TotalBytes != maxBytes {
		t.Fatalf("exact = %+v", exact)
	}

	over, err := ws.Read("over.txt", maxBytes)
	if err != nil {
		t.Fatalf("Read over: %v", err)
	}
	if !over.Truncated {
		t.Fatal("expected truncated=true")
	}
	if len(over.Content) != maxBytes {
		t.Fatalf("content length = %d, want %d", len(over.Content), maxBytes)
	}
	if over.TotalBytes != maxBytes+1 {
		t.Fatalf("totalBytes = %d, want %d", over.TotalBytes, maxBytes+1)
	}
}

func TestReadHugeLimit(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"small.txt": "hello"})

	snap, err := ws.Read("small.txt", math.MaxInt64)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if snap.Content != "hello" || snap.Truncated || snap.TotalBytes != 5 {
		t.Fatalf("snapshot = %+v", snap)
	}

	tool := NewReadTool(ws, Limits{MaxReadBytes: DefaultMaxReadBytes})
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"path":"small.txt","maxBytes":9223372036854775807}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := res.(FileSnapshot); got.Content != "hello" {
		t.Fatalf("content = %q", got.Content)
	}
}

func TestReadErrors(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"dir/file.txt": "x"})

	if _, err := ws.Read("nope.txt", 0); ErrorType(err) != ErrNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if _, err := ws.Read("dir", 0); ErrorType(err) != ErrNotAFile {
		t.Errorf("expected NOT_A_FILE, got %v", err)
	}
	if _, err := ws.Read("../../etc/passwd", 0); ErrorType(err) != ErrPathEscape {
		t.Errorf("expected PATH_ESCAPE, got %v", err)
	}
}

func TestReadToolDefaults(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"f.txt": "0123456789"})
	tool := NewReadTool(ws, Limits{MaxReadBytes: 4, MaxMatches: 10})

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"path":"f.txt"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	snap := out.(FileSnapshot)
	if snap.Content != "0123" || !snap.Truncated || snap.TotalBytes != 10 {
		t.Fatalf("snapshot = %+v", snap)
	}

	out, err = tool.Execute(context.Background(), json.RawMessage(`{"path":"f.txt","maxBytes":100}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if snap := out.(FileSnapshot); snap.Truncated || snap.Content != "0123456789" {
		t.Fatalf("snapshot = %+v", snap)
	}

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{}`)); ErrorType(err) != ErrInvalidArguments {
		t.Fatalf("expected INVALID_ARGUMENTS, got %v", err)
	}
}

func TestGlob(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{
		"a.go":                "",
		"sub/b.go":            "",
		"sub/c.txt":           "",
		"sub/deeper/d.go":     "",
		"node_modules/dep.go": "",
	})

	tests := []struct {
		pattern string
		cwd     string
		want    []string
	}{
		{"**/*.go", "", []string{"a.go", "sub/b.go", "sub/deeper/d.go"}},
		{"*.go", "", []string{"a.go"}},
		{"*.go", "sub", []string{"sub/b.go"}},
		{"**/*.txt", "sub", []string{"sub/c.txt"}},
		{"*.rs", "", []string{}},
	}
	for _, tt := range tests {
		got, err := ws.Glob(context.Background(), tt.pattern, tt.cwd)
		if err != nil {
			t.Fatalf("Glob(%q, %q): %v", tt.pattern, tt.cwd, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Glob(%q, %q) = %v, want %v", tt.pattern, tt.cwd, got, tt.want)
		}
	}
}

func TestGlobErrors(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"f.txt": ""})

	if _, err := ws.Glob(context.Background(), "[", ""); ErrorType(err) != ErrInvalidArguments {
		t.Errorf("expected INVALID_ARGUMENTS, got %v", err)
	}
	if _, err := ws.Glob(context.Background(), "*", "../.."); ErrorType(err) != ErrPathEscape {
		t.Errorf("expected PATH_ESCAPE, got %v", err)
	}
	if _, err := ws.Glob(context.Background(), "*", "f.txt"); ErrorType(err) != ErrNotADirectory {
		t.Errorf("expected NOT_A_DIRECTORY, got %v", err)
	}
}
