// Package client talks to a running `workbench serve` instance.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samsaffron/workbench/internal/llm"
	"github.com/samsaffron/workbench/internal/tools"
)

// Client calls the workbench HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for baseURL (e.g. http://127.0.0.1:8765). token may be
// empty when the server runs without auth.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Status is the server's self description.
type Status struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Workspace string   `json:"workspace"`
	Backend   Backend  `json:"backend"`
	Tools     []string `json:"tools"`
}

// Backend identifies the model backend behind a server.
type Backend struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// Status fetches GET /v1/status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	resp, err := c.do(ctx, http.MethodGet, "/v1/status", nil)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return st, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

// Invoke calls a tool through POST /v1/tools/invoke.
func (c *Client) Invoke(ctx context.Context, name string, args json.RawMessage) (tools.Envelope, error) {
	var env tools.Envelope
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	body, err := json.Marshal(map[string]any{"name": name, "args": args})
	if err != nil {
		return env, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/tools/invoke", body)
	if err != nil {
		return env, err
	}
	defer resp.Body.Close()

	// Envelopes come back with 200 or 400; anything else is transport trouble.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return env, checkStatus(resp)
	}
	var raw struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	env.OK = raw.OK
	env.Error = raw.Error
	if len(raw.Result) > 0 {
		env.Result = raw.Result
	}
	return env, nil
}

// Stream posts a chat request to /v1/chat/stream and calls onEvent for each
// event in order. At most one terminal event is delivered. A stream that
// ends without one yields ErrBackendStream. A non-nil error from onEvent
// stops reading and is returned.
func (c *Client) Stream(ctx context.Context, req llm.ChatRequest, onEvent func(llm.StreamEvent) error) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/chat/stream", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var eventType string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "":
			if eventType == "" && data.Len() == 0 {
				continue
			}
			ev, err := decodeEvent(eventType, data.String())
			eventType = ""
			data.Reset()
			if err != nil {
				return err
			}
			if err := onEvent(ev); err != nil {
				return err
			}
			if ev.Terminal() {
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", llm.ErrBackendStream, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: stream ended without a terminal event", llm.ErrBackendStream)
}

// decodeEvent maps one SSE frame onto a StreamEvent.
func decodeEvent(eventType, data string) (llm.StreamEvent, error) {
	var payload struct {
		Content string `json:"content"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return llm.StreamEvent{}, fmt.Errorf("%w: malformed %q event: %v", llm.ErrBackendStream, eventType, err)
	}
	switch llm.EventType(eventType) {
	case llm.EventToken:
		return llm.StreamEvent{Type: llm.EventToken, Text: payload.Content}, nil
	case llm.EventDone:
		return llm.StreamEvent{Type: llm.EventDone, Text: payload.Message}, nil
	case llm.EventError:
		return llm.StreamEvent{Type: llm.EventError, Text: payload.Error}, nil
	default:
		return llm.StreamEvent{}, fmt.Errorf("%w: unknown event %q", llm.ErrBackendStream, eventType)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload struct {
		Error any `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != nil {
		switch v := payload.Error.(type) {
		case string:
			msg = v
		case map[string]any:
			if m, ok := v["message"].(string); ok {
				msg = m
			}
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
