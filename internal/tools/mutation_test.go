package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samsaffron/workbench/cmd/udiff"
)

func readFile(t *testing.T, ws *Workspace, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(ws.Root(), filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func TestWriteDryRunIsIdempotent(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"hello.txt": "hello\n"})

	first, err := ws.WriteFile("hello.txt", "world\n", false)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if first.Status != StatusPreview || first.Diff == nil {
		t.Fatalf("expected preview with diff, got %+v", first)
	}
	if !strings.Contains(*first.Diff, "-hello\n") || !strings.Contains(*first.Diff, "+world\n") {
		t.Fatalf("unexpected diff:\n%s", *first.Diff)
	}
	if !strings.Contains(*first.Diff, "hello.txt") {
		t.Fatalf("diff is not labeled with the path:\n%s", *first.Diff)
	}

	for i := 0; i < 3; i++ {
		again, err := ws.WriteFile("hello.txt", "world\n", false)
		if err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if *again.Diff != *first.Diff {
			t.Fatalf("preview diff changed between calls")
		}
	}
	if got := readFile(t, ws, "hello.txt"); got != "hello\n" {
		t.Fatalf("dry run modified the file: %q", got)
	}
}

func TestWriteApprove(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"hello.txt": "hello\n"})

	result, err := ws.WriteFile("hello.txt", "world\n", true)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if result.Status != StatusApplied || result.BytesWritten == nil || *result.BytesWritten != 6 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := readFile(t, ws, "hello.txt"); got != "world\n" {
		t.Fatalf("content = %q", got)
	}

	// Nothing left to preview once applied.
	preview, err := ws.WriteFile("hello.txt", "world\n", false)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if *preview.Diff != "" {
		t.Fatalf("expected empty diff, got:\n%s", *preview.Diff)
	}
}

func TestWriteNewFileCreatesParents(t *testing.T) {
	ws := newTestWorkspace(t, nil)

	preview, err := ws.WriteFile("a/b/new.txt", "fresh\n", false)
	if err != nil {
		t.Fatalf("WriteFile preview: %v", err)
	}
	if !strings.Contains(*preview.Diff, "+fresh\n") {
		t.Fatalf("unexpected diff:\n%s", *preview.Diff)
	}
	if _, err := os.Stat(filepath.Join(ws.Root(), "a")); !os.IsNotExist(err) {
		t.Fatalf("dry run created a directory: %v", err)
	}

	if _, err := ws.WriteFile("a/b/new.txt", "fresh\n", true); err != nil {
		t.Fatalf("WriteFile approve: %v", err)
	}
	if got := readFile(t, ws, "a/b/new.txt"); got != "fresh\n" {
		t.Fatalf("content = %q", got)
	}
	info, err := os.Stat(filepath.Join(ws.Root(), "a", "b", "new.txt"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Fatalf("mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestWritePreservesMode(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"run.sh": "#!/bin/sh\n"})
	path := filepath.Join(ws.Root(), "run.sh")
	if err := os.Chmod(path, 0755); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if _, err := ws.WriteFile("run.sh", "#!/bin/sh\necho hi\n", true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Fatalf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestWriteErrors(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"dir/file.txt": "x"})

	if _, err := ws.WriteFile("../outside.txt", "x", true); ErrorType(err) != ErrPathEscape {
		t.Errorf("expected PATH_ESCAPE, got %v", err)
	}
	if _, err := ws.WriteFile("dir", "x", true); ErrorType(err) != ErrNotAFile {
		t.Errorf("expected NOT_A_FILE, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(ws.Root()), "outside.txt")); !os.IsNotExist(err) {
		t.Errorf("escape wrote outside the workspace")
	}
}

func TestApplyPatchRoundTrip(t *testing.T) {
	a := "package main\n\nfunc main() {\n\tprintln(\"a\")\n}\n"
	b := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"b\")\n}\n"
	ws := newTestWorkspace(t, map[string]string{"main.go": a})
	patch := udiff.Diff("main.go", a, b)

	preview, err := ws.ApplyPatch("main.go", patch, false)
	if err != nil {
		t.Fatalf("ApplyPatch preview: %v", err)
	}
	if preview.Status != StatusPreview || preview.Content == nil || *preview.Content != b {
		t.Fatalf("unexpected preview %+v", preview)
	}
	if got := readFile(t, ws, "main.go"); got != a {
		t.Fatalf("preview modified the file")
	}

	applied, err := ws.ApplyPatch("main.go", patch, true)
	if err != nil {
		t.Fatalf("ApplyPatch approve: %v", err)
	}
	if applied.Status != StatusApplied || *applied.BytesWritten != len(b) {
		t.Fatalf("unexpected result %+v", applied)
	}
	if got := readFile(t, ws, "main.go"); got != b {
		t.Fatalf("content = %q, want %q", got, b)
	}
}

func TestApplyPatchCreatesMissingFile(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	patch := udiff.Diff("docs/new.md", "", "# Title\n")

	if _, err := ws.ApplyPatch("docs/new.md", patch, true); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if got := readFile(t, ws, "docs/new.md"); got != "# Title\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestApplyPatchConflictLeavesFileUnchanged(t *testing.T) {
	a := "one\ntwo\nthree\n"
	b := "one\n2\nthree\n"
	c := "alpha\nbeta\ngamma\n"
	ws := newTestWorkspace(t, map[string]string{"f.txt": c})
	patch := udiff.Diff("f.txt", a, b)

	for _, approve := range []bool{false, true} {
		result, err := ws.ApplyPatch("f.txt", patch, approve)
		if err != nil {
			t.Fatalf("ApplyPatch: %v", err)
		}
		if result.Status != StatusFailed || result.Reason != PatchDoesNotApply {
			t.Fatalf("approve=%v: expected failed result, got %+v", approve, result)
		}
		if result.Detail == "" {
			t.Fatalf("expected a detail naming the hunk")
		}
	}
	if got := readFile(t, ws, "f.txt"); got != c {
		t.Fatalf("file changed: %q", got)
	}
}

func TestApplyPatchSelectsMatchingSection(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{
		"x.txt": "x\n",
		"y.txt": "y\n",
	})
	patch := udiff.Diff("x.txt", "x\n", "X\n") + udiff.Diff("y.txt", "y\n", "Y\n")

	result, err := ws.ApplyPatch("y.txt", patch, true)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if result.Status != StatusApplied {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := readFile(t, ws, "y.txt"); got != "Y\n" {
		t.Fatalf("y.txt = %q", got)
	}
	if got := readFile(t, ws, "x.txt"); got != "x\n" {
		t.Fatalf("x.txt touched: %q", got)
	}

	result, err = ws.ApplyPatch("z.txt", patch, false)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failure for a path the patch does not name, got %+v", result)
	}
}

func TestApplyPatchGarbage(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"f.txt": "x\n"})
	result, err := ws.ApplyPatch("f.txt", "this is not a diff", false)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %+v", result)
	}
}
