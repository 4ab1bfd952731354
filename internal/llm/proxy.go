package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Proxy relays a backend's streamed output as StreamEvents.
type Proxy struct {
	backend     Backend
	model       string
	temperature *float64
}

// NewProxy creates a proxy. model and temperature are used when a request
// leaves them unset.
func NewProxy(backend Backend, model string, temperature *float64) *Proxy {
	return &Proxy{backend: backend, model: model, temperature: temperature}
}

// Backend returns the wrapped backend.
func (p *Proxy) Backend() Backend {
	return p.backend
}

// Model returns the default model.
func (p *Proxy) Model() string {
	return p.model
}

// Stream validates req and starts relaying. An invalid request fails here,
// before any backend call. Otherwise the returned channel carries zero or
// more token events followed by exactly one done or error event, then
// closes. Cancelling ctx stops the producer and releases the backend stream;
// in that case the terminal event may be dropped.
func (p *Proxy) Stream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = p.model
	}
	if req.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	if req.Temperature == nil {
		req.Temperature = p.temperature
	}

	events := make(chan StreamEvent)
	go p.run(ctx, req, events)
	return events, nil
}

func (p *Proxy) run(ctx context.Context, req ChatRequest, events chan<- StreamEvent) {
	defer close(events)
	start := time.Now()

	emit := func(ev StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(kind error, err error) {
		slog.Warn("chat stream failed", "backend", p.backend.Name(), "model", req.Model, "error", err)
		emit(StreamEvent{Type: EventError, Text: fmt.Errorf("%w: %v", kind, err).Error()})
	}

	stream, err := p.backend.Stream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Backends that reject the request shape already carry a kind.
		if errors.Is(err, ErrInvalidRequest) {
			slog.Warn("chat request rejected", "backend", p.backend.Name(), "model", req.Model, "error", err)
			emit(StreamEvent{Type: EventError, Text: err.Error()})
			return
		}
		fail(ErrBackendUnavailable, err)
		return
	}
	defer stream.Close()

	var full strings.Builder
	tokens := 0
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fail(ErrBackendStream, err)
			return
		}
		if chunk.Content != "" {
			full.WriteString(chunk.Content)
			tokens++
			if !emit(StreamEvent{Type: EventToken, Text: chunk.Content}) {
				return
			}
		}
		if chunk.Finished {
			break
		}
	}

	slog.Debug("chat stream done", "model", req.Model, "tokens", tokens, "duration", time.Since(start))
	emit(StreamEvent{Type: EventDone, Text: full.String()})
}
