package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/samsaffron/workbench/internal/llm"
)

// Tool is a single workspace operation exposed to callers.
type Tool interface {
	Spec() llm.ToolSpec
	// Preview returns a short human description of a call, or "".
	Preview(args json.RawMessage) string
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry routes tool calls by name and wraps every outcome in an Envelope.
// It is safe for concurrent use; calls never serialize on each other.
type Registry struct {
	ws     *Workspace
	limits Limits
	order  []string
	tools  map[string]Tool
}

// NewRegistry registers every workspace tool against ws.
func NewRegistry(ws *Workspace, limits Limits) *Registry {
	if limits.MaxReadBytes <= 0 {
		limits.MaxReadBytes = DefaultMaxReadBytes
	}
	if limits.MaxMatches <= 0 {
		limits.MaxMatches = DefaultMaxMatches
	}

	r := &Registry{
		ws:     ws,
		limits: limits,
		tools:  make(map[string]Tool),
	}
	for _, name := range AllToolNames() {
		var tool Tool
		switch name {
		case ListToolName:
			tool = NewListTool(ws)
		case ReadToolName:
			tool = NewReadTool(ws, limits)
		case WriteToolName:
			tool = NewWriteTool(ws)
		case ApplyPatchToolName:
			tool = NewApplyPatchTool(ws)
		case GlobToolName:
			tool = NewGlobTool(ws)
		case GrepToolName:
			tool = NewGrepTool(ws, limits)
		}
		r.order = append(r.order, name)
		r.tools[name] = tool
	}
	return r
}

// Workspace returns the workspace the tools are bound to.
func (r *Registry) Workspace() *Workspace {
	return r.ws
}

// Names returns the registered tool names in dispatch order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns the specs of all registered tools.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Invoke runs the named tool. Every error, including a panic inside the
// tool, comes back as {ok:false}. A mutation whose patch was rejected is
// reported as a PATCH_REJECTED failure.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (env Envelope) {
	tool, ok := r.tools[name]
	if !ok {
		if suggestion := r.suggest(name); suggestion != "" {
			return Failure(NewToolErrorf(ErrUnknownTool, "unknown tool: %s (did you mean %s?)", name, suggestion))
		}
		return Failure(NewToolErrorf(ErrUnknownTool, "unknown tool: %s", name))
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("tool panicked", "tool", name, "panic", p)
			env = Failure(NewToolErrorf(ErrExecutionFailed, "tool %s panicked: %v", name, p))
		}
	}()

	if unknown := UnknownParams(args, schemaKeys(tool.Spec().Schema)); len(unknown) > 0 {
		slog.Debug("ignoring unknown tool parameters", "tool", name, "params", unknown)
	}

	result, err := tool.Execute(ctx, args)
	if err == nil {
		if m, ok := result.(MutationResult); ok && m.Status == StatusFailed {
			err = rejected(m)
		}
	}
	if err != nil {
		slog.Debug("tool call failed", "tool", name, "kind", GetToolKind(name), "preview", tool.Preview(args),
			"error_type", ErrorType(err), "duration", time.Since(start))
		return Failure(err)
	}

	slog.Debug("tool call", "tool", name, "kind", GetToolKind(name), "preview", tool.Preview(args), "duration", time.Since(start))
	return Success(result)
}

func rejected(m MutationResult) *ToolError {
	if m.Detail == "" {
		return NewToolError(ErrPatchRejected, m.Reason)
	}
	return NewToolError(ErrPatchRejected, fmt.Sprintf("%s: %s", m.Reason, m.Detail))
}

// suggest returns the closest registered tool name to name, or "".
func (r *Registry) suggest(name string) string {
	if name == "" {
		return ""
	}
	matches := fuzzy.Find(name, r.order)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
