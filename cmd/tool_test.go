package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/samsaffron/workbench/internal/client"
	"github.com/samsaffron/workbench/internal/llm"
	"github.com/samsaffron/workbench/internal/tools"
	"github.com/samsaffron/workbench/internal/ui"
)

func TestReadToolArgs(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		stdin   string
		approve bool
		want    map[string]any
	}{
		{"empty", "", "", false, map[string]any{}},
		{"inline", `{"path":"a.txt"}`, "", false, map[string]any{"path": "a.txt"}},
		{"stdin", "-", ` {"pattern":"x"} `, false, map[string]any{"pattern": "x"}},
		{"approve flag", `{"path":"a.txt","content":"x"}`, "", true, map[string]any{"path": "a.txt", "content": "x", "approve": true}},
		{"approve on empty", "", "", true, map[string]any{"approve": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := readToolArgs(tt.raw, strings.NewReader(tt.stdin), tt.approve)
			if err != nil {
				t.Fatalf("readToolArgs: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("args %q are not JSON: %v", raw, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("args = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("args[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}

	if _, err := readToolArgs(`[1,2]`, nil, true); err == nil {
		t.Fatal("expected error for non-object args with --approve")
	}
}

func TestPrintEnvelopeJSON(t *testing.T) {
	var buf bytes.Buffer
	env := tools.Success(tools.Applied("a.txt", 3))
	if err := printEnvelope(&buf, env, nil); err != nil {
		t.Fatalf("printEnvelope: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if decoded["ok"] != true {
		t.Fatalf("decoded = %v", decoded)
	}
}

func TestPrintEnvelopePretty(t *testing.T) {
	var buf bytes.Buffer
	preview := tools.DiffPreview("a.txt", "--- a.txt\n+++ a.txt\n@@ -1 +1 @@\n-one\n+two\n")
	styles := ui.NewStylesWithProfile(&buf, termenv.Ascii)
	if err := printEnvelope(&buf, tools.Success(preview), styles); err != nil {
		t.Fatalf("printEnvelope: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Edit: a.txt") || !strings.Contains(out, "two") || !strings.Contains(out, "--approve") {
		t.Fatalf("output = %q", out)
	}

	buf.Reset()
	failure := tools.Failure(tools.NewToolError(tools.ErrNotFound, "file not found: x"))
	if err := printEnvelope(&buf, failure, styles); err != nil {
		t.Fatalf("printEnvelope: %v", err)
	}
	if !strings.Contains(buf.String(), "NOT_FOUND: file not found: x") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestToolStyles(t *testing.T) {
	var buf bytes.Buffer
	if s, err := toolStyles(&buf, "always", false); err != nil || s == nil || !s.Color() {
		t.Fatalf("always: styles = %v, err = %v", s, err)
	}
	if s, err := toolStyles(&buf, "never", false); err != nil || s == nil || s.Color() {
		t.Fatalf("never: styles = %v, err = %v", s, err)
	}
	if s, err := toolStyles(&buf, "always", true); err != nil || s != nil {
		t.Fatalf("--json should win: styles = %v, err = %v", s, err)
	}
	if _, err := toolStyles(&buf, "sometimes", false); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestInteractiveApply(t *testing.T) {
	root := t.TempDir()
	ws, err := tools.NewWorkspace(root, nil)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	registry := tools.NewRegistry(ws, tools.DefaultLimits())
	args := json.RawMessage(`{"path":"notes.txt","content":"hello\n"}`)

	for _, accept := range []bool{false, true} {
		var buf bytes.Buffer
		styles := ui.NewStylesWithProfile(&buf, termenv.Ascii)
		preview := registry.Invoke(context.Background(), "write", args)
		if !isPreview(preview) {
			t.Fatalf("expected preview, got %+v", preview)
		}
		var asked string
		env, err := interactiveApply(context.Background(), registry, "write", args, preview, &buf, styles,
			func(title string) (bool, error) {
				asked = title
				return accept, nil
			})
		if err != nil {
			t.Fatalf("interactiveApply: %v", err)
		}
		if asked != "Apply changes to notes.txt?" {
			t.Fatalf("title = %q", asked)
		}
		if !strings.Contains(buf.String(), "hello") {
			t.Fatalf("diff not shown:\n%s", buf.String())
		}

		_, statErr := os.Stat(filepath.Join(root, "notes.txt"))
		if !accept {
			if env.Result != nil || statErr == nil {
				t.Fatalf("declined change was applied: %+v", env)
			}
			continue
		}
		m, ok := env.Result.(tools.MutationResult)
		if !ok || m.Status != tools.StatusApplied || statErr != nil {
			t.Fatalf("accepted change not applied: %+v, stat %v", env, statErr)
		}
	}
}

func TestReadPrompt(t *testing.T) {
	got, err := readPrompt([]string{"hello", "world"}, nil)
	if err != nil || got != "hello world" {
		t.Fatalf("readPrompt = %q, %v", got, err)
	}
	got, err = readPrompt([]string{"-"}, strings.NewReader("from stdin\n"))
	if err != nil || got != "from stdin" {
		t.Fatalf("readPrompt stdin = %q, %v", got, err)
	}
	if _, err := readPrompt([]string{"  "}, nil); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestStreamChatPrintsTokens(t *testing.T) {
	f := newServeFixture(t, nil, nil)
	var out bytes.Buffer
	err := streamChat(context.Background(), client.New(f.srv.URL, testToken, nil), llm.ChatRequest{
		Messages: []llm.Message{llm.UserText("hi")},
	}, &out, nil)
	if err != nil {
		t.Fatalf("streamChat: %v", err)
	}
	if out.String() != "Olá, mundo\n" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestStreamChatErrorEvent(t *testing.T) {
	backend := llm.NewMockBackend("mock").
		WithChunks(llm.Chunk{Content: "partial"}).
		FailAfterChunks(errors.New("connection reset"))
	f := newServeFixture(t, backend, nil)

	var out bytes.Buffer
	err := streamChat(context.Background(), client.New(f.srv.URL, testToken, nil), llm.ChatRequest{
		Messages: []llm.Message{llm.UserText("hi")},
	}, &out, nil)
	if err == nil || !strings.HasPrefix(err.Error(), "BACKEND_STREAM_ERROR") {
		t.Fatalf("err = %v", err)
	}
	if out.String() != "partial" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestStreamChatMarkdown(t *testing.T) {
	backend := llm.NewMockBackend("mock", "# Title", "\n\n", "some **bold** text")
	f := newServeFixture(t, backend, nil)
	render, err := newMarkdownRenderer("notty", 40)
	if err != nil {
		t.Fatalf("newMarkdownRenderer: %v", err)
	}

	var out bytes.Buffer
	err = streamChat(context.Background(), client.New(f.srv.URL, testToken, nil), llm.ChatRequest{
		Messages: []llm.Message{llm.UserText("hi")},
	}, &out, render)
	if err != nil {
		t.Fatalf("streamChat: %v", err)
	}
	got := out.String()
	raw := "# Title\n\nsome **bold** text\n"
	if !strings.Contains(got, "Title") || !strings.Contains(got, "bold") || got == raw {
		t.Fatalf("output = %q", got)
	}
}

func TestPreviewDiffForPatch(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws, err := tools.NewWorkspace(root, nil)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	diff := previewDiff(ws, tools.ContentPreview("a.txt", "two\n"))
	if !strings.Contains(diff, "-one") || !strings.Contains(diff, "+two") {
		t.Fatalf("diff = %q", diff)
	}
	if got := previewDiff(ws, tools.DiffPreview("a.txt", "given")); got != "given" {
		t.Fatalf("diff = %q", got)
	}
}
