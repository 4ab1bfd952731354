// Package llm streams chat completions from OpenAI-compatible, Anthropic or
// Gemini backends and relays them as ordered token/done/error events.
package llm

import (
	"errors"
	"fmt"
)

// Role identifies a message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the backend accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemText creates a system message.
func SystemText(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserText creates a user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolSpec describes a callable tool.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"input_schema"`
}

// ChatRequest is a single streaming completion request. Empty Model and nil
// Temperature fall back to the proxy defaults.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Chunk is one increment received from a backend.
type Chunk struct {
	Content  string
	Finished bool // backend sent a finish marker
}

// EventType tags a StreamEvent.
type EventType string

const (
	EventToken EventType = "token"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// StreamEvent is one unit of the streaming protocol. For token events Text is
// the increment, for done the full accumulated text, for error the message.
type StreamEvent struct {
	Type EventType
	Text string
}

// Terminal reports whether e ends a stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Err returns the error carried by an error event, or nil.
func (e StreamEvent) Err() error {
	if e.Type != EventError {
		return nil
	}
	return errors.New(e.Text)
}

var (
	ErrInvalidRequest     = errors.New("INVALID_REQUEST")
	ErrBackendUnavailable = errors.New("BACKEND_UNAVAILABLE")
	ErrBackendStream      = errors.New("BACKEND_STREAM_ERROR")
)

// ValidateRequest checks that req carries a non-empty list of well-formed
// messages.
func ValidateRequest(req ChatRequest) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", ErrInvalidRequest)
	}
	for i, msg := range req.Messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("%w: message %d has invalid role %q", ErrInvalidRequest, i, msg.Role)
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidRequest)
	}
	return nil
}
