// Package mcp exposes the workspace tools over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samsaffron/workbench/internal/tools"
)

// Invoker runs a named tool and returns its envelope.
type Invoker interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) tools.Envelope
}

// Server serves a tool registry to MCP clients.
type Server struct {
	server   *mcp.Server
	registry *tools.Registry
}

// NewServer registers every tool in registry on a new MCP server.
func NewServer(registry *tools.Registry, version string) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "workbench",
		Version: version,
	}, nil)

	for _, spec := range registry.Specs() {
		server.AddTool(&mcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.Schema,
		}, toolHandler(registry, spec.Name))
	}
	return &Server{server: server, registry: registry}
}

// toolHandler adapts a registry tool. The envelope is returned as JSON text;
// an {ok:false} envelope marks the result as an error so the model sees it.
func toolHandler(inv Invoker, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}
		env := inv.Invoke(ctx, name, args)
		data, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
			IsError: !env.OK,
		}, nil
	}
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp server starting", "workspace", s.registry.Workspace().Root(), "tools", s.registry.Names())
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session on transport. Used with in-memory
// transports in tests.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}
