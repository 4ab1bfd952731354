package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/samsaffron/workbench/cmd/udiff"
)

func TestRegistryNamesAndSpecs(t *testing.T) {
	r := NewRegistry(newTestWorkspace(t, nil), DefaultLimits())

	if got := r.Names(); !reflect.DeepEqual(got, AllToolNames()) {
		t.Fatalf("Names() = %v", got)
	}
	specs := r.Specs()
	if len(specs) != len(AllToolNames()) {
		t.Fatalf("expected %d specs, got %d", len(AllToolNames()), len(specs))
	}
	for i, spec := range specs {
		if spec.Name != AllToolNames()[i] {
			t.Errorf("spec %d name = %q", i, spec.Name)
		}
		if spec.Schema["type"] != "object" {
			t.Errorf("spec %s schema is not an object schema", spec.Name)
		}
	}
}

func TestInvokeEnvelopes(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"a.txt": "alpha\n"})
	r := NewRegistry(ws, DefaultLimits())
	ctx := context.Background()

	tests := []struct {
		name      string
		tool      string
		args      string
		wantOK    bool
		wantError ToolErrorType
	}{
		{"read ok", "read", `{"path":"a.txt"}`, true, ""},
		{"read missing file", "read", `{"path":"missing.txt"}`, false, ErrNotFound},
		{"read without path", "read", `{}`, false, ErrInvalidArguments},
		{"read with bad json", "read", `{"path":`, false, ErrInvalidArguments},
		{"read with wrong arg type", "read", `{"path":["a"]}`, false, ErrInvalidArguments},
		{"read escape", "read", `{"path":"../../etc/passwd"}`, false, ErrPathEscape},
		{"unknown tool", "delete", `{"path":"a.txt"}`, false, ErrUnknownTool},
		{"list root with nil args", "list", ``, true, ""},
		{"write without content", "write", `{"path":"b.txt"}`, false, ErrInvalidArguments},
		{"applyPatch without diff", "applyPatch", `{"path":"a.txt"}`, false, ErrInvalidArguments},
		{"glob without pattern", "glob", `{}`, false, ErrInvalidArguments},
		{"grep ok", "grep", `{"pattern":"ALPHA"}`, true, ""},
		{"unknown params are ignored", "read", `{"path":"a.txt","offset":3}`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := r.Invoke(ctx, tt.tool, json.RawMessage(tt.args))
			if env.OK != tt.wantOK {
				t.Fatalf("ok = %v, want %v (error %q)", env.OK, tt.wantOK, env.Error)
			}
			if tt.wantOK {
				if env.Result == nil || env.Error != "" {
					t.Fatalf("unexpected success envelope %+v", env)
				}
				return
			}
			if env.Result != nil {
				t.Fatalf("failure carried a result: %+v", env)
			}
			if !strings.HasPrefix(env.Error, string(tt.wantError)+":") {
				t.Fatalf("error = %q, want prefix %s", env.Error, tt.wantError)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(ws.Root(), "b.txt")); !os.IsNotExist(err) {
		t.Fatal("invalid write touched the filesystem")
	}
}

func TestInvokeRejectedPatch(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"f.txt": "something else\n"})
	r := NewRegistry(ws, DefaultLimits())

	args, _ := json.Marshal(ApplyPatchArgs{
		Path:    "f.txt",
		Diff:    udiff.Diff("f.txt", "one\n", "two\n"),
		Approve: true,
	})
	env := r.Invoke(context.Background(), "applyPatch", args)
	if env.OK {
		t.Fatalf("expected failure, got %+v", env)
	}
	if !strings.HasPrefix(env.Error, "PATCH_REJECTED: patch does not apply") {
		t.Fatalf("error = %q", env.Error)
	}
}

func TestInvokeWriteFlow(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	r := NewRegistry(ws, DefaultLimits())
	ctx := context.Background()

	env := r.Invoke(ctx, "write", json.RawMessage(`{"path":"out.txt","content":""}`))
	if !env.OK {
		t.Fatalf("dry run failed: %s", env.Error)
	}
	if env.Result.(MutationResult).Status != StatusPreview {
		t.Fatalf("expected preview, got %+v", env.Result)
	}

	env = r.Invoke(ctx, "write", json.RawMessage(`{"path":"out.txt","content":"done\n","approve":true}`))
	if !env.OK {
		t.Fatalf("approve failed: %s", env.Error)
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"ok":true,"result":{"status":"applied","path":"out.txt","bytesWritten":5}}`
	if string(data) != want {
		t.Fatalf("envelope = %s, want %s", data, want)
	}
}

type panicTool struct{ *ListTool }

func (panicTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	panic("boom")
}

func TestInvokeRecoversPanics(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	r := NewRegistry(ws, DefaultLimits())
	r.tools[ListToolName] = panicTool{NewListTool(ws)}

	env := r.Invoke(context.Background(), ListToolName, nil)
	if env.OK || !strings.HasPrefix(env.Error, "EXECUTION_FAILED:") {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestRegistryUnknownToolSuggestion(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	r := NewRegistry(ws, DefaultLimits())

	env := r.Invoke(context.Background(), "aplyPatch", nil)
	if env.OK || env.Error != "UNKNOWN_TOOL: unknown tool: aplyPatch (did you mean applyPatch?)" {
		t.Fatalf("error = %q", env.Error)
	}
	env = r.Invoke(context.Background(), "zzz", nil)
	if env.Error != "UNKNOWN_TOOL: unknown tool: zzz" {
		t.Fatalf("error = %q", env.Error)
	}
}

func TestGetToolKind(t *testing.T) {
	reg := NewRegistry(newTestWorkspace(t, nil), Limits{})
	for _, name := range reg.Names() {
		if GetToolKind(name) == "" {
			t.Errorf("tool %q has no kind", name)
		}
	}
	if GetToolKind(WriteToolName) != KindEdit || GetToolKind(GrepToolName) != KindSearch {
		t.Fatal("unexpected kind mapping")
	}
	if got := GetToolKind("rm"); got != "" {
		t.Fatalf("GetToolKind(rm) = %q", got)
	}
}
