// Package tools provides the sandboxed workspace tools for workbench: path
// containment, listing, reads, searches and the dry-run/approve mutations.
package tools

import (
	"errors"
	"fmt"
)

// ToolKind groups tools in log output.
type ToolKind string

const (
	KindRead   ToolKind = "read"
	KindEdit   ToolKind = "edit"
	KindSearch ToolKind = "search"
)

// ToolErrorType provides structured errors for callers and the model.
type ToolErrorType string

const (
	ErrPathEscape       ToolErrorType = "PATH_ESCAPE"
	ErrNotFound         ToolErrorType = "NOT_FOUND"
	ErrNotAFile         ToolErrorType = "NOT_A_FILE"
	ErrNotADirectory    ToolErrorType = "NOT_A_DIRECTORY"
	ErrInvalidArguments ToolErrorType = "INVALID_ARGUMENTS"
	ErrUnknownTool      ToolErrorType = "UNKNOWN_TOOL"
	ErrPatchRejected    ToolErrorType = "PATCH_REJECTED"
	ErrExecutionFailed  ToolErrorType = "EXECUTION_FAILED"
)

// ToolError provides structured error information.
type ToolError struct {
	Type    ToolErrorType `json:"type"`
	Message string        `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewToolError creates a new ToolError.
func NewToolError(errType ToolErrorType, message string) *ToolError {
	return &ToolError{Type: errType, Message: message}
}

// NewToolErrorf creates a new ToolError with formatted message.
func NewToolErrorf(errType ToolErrorType, format string, args ...interface{}) *ToolError {
	return &ToolError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// ErrorType returns the ToolErrorType carried by err, or ErrExecutionFailed
// for errors that did not originate in this package.
func ErrorType(err error) ToolErrorType {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Type
	}
	return ErrExecutionFailed
}

// Tool names accepted by the dispatcher.
const (
	ListToolName       = "list"
	ReadToolName       = "read"
	WriteToolName      = "write"
	ApplyPatchToolName = "applyPatch"
	GlobToolName       = "glob"
	GrepToolName       = "grep"
)

// AllToolNames returns all valid tool names in dispatch order.
func AllToolNames() []string {
	return []string{
		ListToolName,
		ReadToolName,
		WriteToolName,
		ApplyPatchToolName,
		GlobToolName,
		GrepToolName,
	}
}

// GetToolKind returns the kind of a tool name, or "" for unknown names.
func GetToolKind(name string) ToolKind {
	switch name {
	case ListToolName, ReadToolName:
		return KindRead
	case WriteToolName, ApplyPatchToolName:
		return KindEdit
	case GlobToolName, GrepToolName:
		return KindSearch
	default:
		return ""
	}
}

// Limits bounds the output of read and search tools.
type Limits struct {
	MaxReadBytes int64 // default byte cap for read
	MaxMatches   int   // default match cap for grep
}

const (
	DefaultMaxReadBytes = 200000
	DefaultMaxMatches   = 200
)

// DefaultLimits returns the standard limits.
func DefaultLimits() Limits {
	return Limits{
		MaxReadBytes: DefaultMaxReadBytes,
		MaxMatches:   DefaultMaxMatches,
	}
}

// EntryKind is the type of a directory entry.
type EntryKind string

const (
	EntryFile      EntryKind = "file"
	EntryDirectory EntryKind = "directory"
)

// DirEntry is one child of a listed directory. Size is only set for files.
type DirEntry struct {
	Name string    `json:"name"`
	Kind EntryKind `json:"kind"`
	Size *int64    `json:"size,omitempty"`
}

// FileSnapshot is a bounded view of a file's current bytes.
type FileSnapshot struct {
	Content    string `json:"content"`
	Truncated  bool   `json:"truncated"`
	TotalBytes int64  `json:"totalBytes"`
}

// GrepMatch is a single matching line.
type GrepMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// MutationStatus tags a MutationResult.
type MutationStatus string

const (
	StatusPreview MutationStatus = "preview"
	StatusApplied MutationStatus = "applied"
	StatusFailed  MutationStatus = "failed"
)

// PatchDoesNotApply is the reason reported for every rejected patch.
const PatchDoesNotApply = "patch does not apply"

// MutationResult is the outcome of a write or applyPatch call.
//
//	preview: Diff (write) or Content (applyPatch)
//	applied: BytesWritten
//	failed:  Reason, with Detail naming the offending hunk
type MutationResult struct {
	Status       MutationStatus `json:"status"`
	Path         string         `json:"path"`
	Diff         *string        `json:"diff,omitempty"`
	Content      *string        `json:"content,omitempty"`
	BytesWritten *int           `json:"bytesWritten,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Detail       string         `json:"detail,omitempty"`
}

// DiffPreview builds a preview result carrying a diff.
func DiffPreview(path, diff string) MutationResult {
	return MutationResult{Status: StatusPreview, Path: path, Diff: &diff}
}

// ContentPreview builds a preview result carrying the post-apply content.
func ContentPreview(path, content string) MutationResult {
	return MutationResult{Status: StatusPreview, Path: path, Content: &content}
}

// Applied builds an applied result.
func Applied(path string, n int) MutationResult {
	return MutationResult{Status: StatusApplied, Path: path, BytesWritten: &n}
}

// Failed builds a failed result.
func Failed(path, reason, detail string) MutationResult {
	return MutationResult{Status: StatusFailed, Path: path, Reason: reason, Detail: detail}
}

// Envelope is the uniform tool-call response.
type Envelope struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success wraps a tool result.
func Success(result any) Envelope {
	return Envelope{OK: true, Result: result}
}

// Failure wraps an error message.
func Failure(err error) Envelope {
	return Envelope{OK: false, Error: err.Error()}
}
