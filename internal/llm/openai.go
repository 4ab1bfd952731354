package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIConfig configures an OpenAIBackend.
type OpenAIConfig struct {
	BaseURL string // empty uses api.openai.com
	APIKey  string
	Timeout time.Duration
}

// OpenAIBackend streams chat completions from any OpenAI-compatible
// /chat/completions endpoint.
type OpenAIBackend struct {
	client  openai.Client
	baseURL string
}

// NewOpenAIBackend creates a backend. Retries are disabled; callers decide
// whether to try again.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return &OpenAIBackend{
		client:  openai.NewClient(opts...),
		baseURL: cfg.BaseURL,
	}
}

func (b *OpenAIBackend) Name() string {
	if b.baseURL != "" {
		return fmt.Sprintf("openai-compatible (%s)", b.baseURL)
	}
	return "openai"
}

func (b *OpenAIBackend) Stream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: buildOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	stream := b.client.Chat.Completions.NewStreaming(ctx, params)
	// The request is sent eagerly; a failed handshake shows up here.
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, err
	}
	return &openAIChunkStream{stream: stream}, nil
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

type openAIChunkStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *openAIChunkStream) Recv() (Chunk, error) {
	if !s.stream.Next() {
		if err := s.stream.Err(); err != nil {
			return Chunk{}, err
		}
		return Chunk{}, io.EOF
	}

	var chunk Chunk
	for _, choice := range s.stream.Current().Choices {
		chunk.Content += choice.Delta.Content
		if choice.FinishReason != "" {
			chunk.Finished = true
		}
	}
	return chunk, nil
}

func (s *openAIChunkStream) Close() error {
	return s.stream.Close()
}
