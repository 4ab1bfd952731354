package llm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicConfig configures an AnthropicBackend.
type AnthropicConfig struct {
	BaseURL   string // empty uses api.anthropic.com
	APIKey    string
	MaxTokens int64
	Timeout   time.Duration
}

// AnthropicBackend streams from the Anthropic Messages API.
type AnthropicBackend struct {
	client    anthropic.Client
	maxTokens int64
}

func NewAnthropicBackend(cfg AnthropicConfig) *AnthropicBackend {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(cfg.APIKey),
		anthropicoption.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, anthropicoption.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicBackend{
		client:    anthropic.NewClient(opts...),
		maxTokens: maxTokens,
	}
}

func (b *AnthropicBackend) Name() string {
	return "anthropic"
}

func (b *AnthropicBackend) Stream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	system, messages := buildAnthropicMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: b.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		// Anthropic accepts 0..1.
		params.Temperature = anthropic.Float(min(*req.Temperature, 1))
	}

	stream := b.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, err
	}
	return &anthropicChunkStream{stream: stream}, nil
}

// buildAnthropicMessages lifts system messages into the separate system
// prompt the Messages API expects.
func buildAnthropicMessages(messages []Message) (string, []anthropic.MessageParam) {
	var system []string
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return strings.Join(system, "\n\n"), out
}

type anthropicChunkStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

func (s *anthropicChunkStream) Recv() (Chunk, error) {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return Chunk{}, err
		}
		return Chunk{}, io.EOF
	}

	var chunk Chunk
	switch event := s.stream.Current().AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		if delta, ok := event.Delta.AsAny().(anthropic.TextDelta); ok {
			chunk.Content = delta.Text
		}
	case anthropic.MessageStopEvent:
		chunk.Finished = true
	}
	return chunk, nil
}

func (s *anthropicChunkStream) Close() error {
	return s.stream.Close()
}
