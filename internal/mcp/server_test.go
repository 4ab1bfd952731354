package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samsaffron/workbench/internal/tools"
)

func newTestSession(t *testing.T, files map[string]string) (*mcp.ClientSession, string) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		if err := os.WriteFile(filepath.Join(root, rel), []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ws, err := tools.NewWorkspace(root, nil)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	srv := NewServer(tools.NewRegistry(ws, tools.DefaultLimits()), "test")

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs, ws.Root()
}

// formatContent joins the text content of a tool result.
func formatContent(content []mcp.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if text, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

func TestServerListsTools(t *testing.T) {
	cs, _ := newTestSession(t, nil)

	result, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	seen := map[string]bool{}
	for _, tool := range result.Tools {
		seen[tool.Name] = true
	}
	for _, want := range tools.AllToolNames() {
		if !seen[want] {
			t.Fatalf("missing tool %q", want)
		}
	}
	if len(seen) != len(tools.AllToolNames()) {
		t.Fatalf("expected %d tools, got %d", len(tools.AllToolNames()), len(seen))
	}
}

func TestServerCallTool(t *testing.T) {
	cs, root := newTestSession(t, map[string]string{"a.txt": "hello\n"})
	ctx := context.Background()

	result, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "read",
		Arguments: map[string]any{"path": "a.txt"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", formatContent(result.Content))
	}
	var env struct {
		OK     bool               `json:"ok"`
		Result tools.FileSnapshot `json:"result"`
	}
	if err := json.Unmarshal([]byte(formatContent(result.Content)), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.OK || env.Result.Content != "hello\n" {
		t.Fatalf("envelope = %+v", env)
	}

	result, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "write",
		Arguments: map[string]any{"path": "b.txt", "content": "new\n", "approve": true},
	})
	if err != nil {
		t.Fatalf("CallTool write: %v", err)
	}
	if result.IsError {
		t.Fatalf("write failed: %s", formatContent(result.Content))
	}
	data, err := os.ReadFile(filepath.Join(root, "b.txt"))
	if err != nil || string(data) != "new\n" {
		t.Fatalf("b.txt = %q, %v", data, err)
	}
}

func TestServerCallToolFailure(t *testing.T) {
	cs, _ := newTestSession(t, nil)

	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "read",
		Arguments: map[string]any{"path": "../outside"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for a path escape")
	}
	if text := formatContent(result.Content); !strings.Contains(text, `"ok":false`) || !strings.Contains(text, "PATH_ESCAPE") {
		t.Fatalf("content = %s", text)
	}
}
