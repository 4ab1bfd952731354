package llm

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures a GeminiBackend.
type GeminiConfig struct {
	BaseURL   string // empty uses the public Gemini API
	APIKey    string
	MaxTokens int32
	Timeout   time.Duration
}

// GeminiBackend streams from the Gemini API.
type GeminiBackend struct {
	cfg GeminiConfig
}

func NewGeminiBackend(cfg GeminiConfig) *GeminiBackend {
	return &GeminiBackend{cfg: cfg}
}

func (b *GeminiBackend) Name() string {
	return "gemini"
}

func (b *GeminiBackend) newClient(ctx context.Context) (*genai.Client, error) {
	cc := &genai.ClientConfig{APIKey: b.cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if b.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: b.cfg.BaseURL}
	}
	if b.cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: b.cfg.Timeout}
	}
	return genai.NewClient(ctx, cc)
}

func (b *GeminiBackend) Stream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	system, contents := buildGeminiContents(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: gemini needs at least one user or assistant message", ErrInvalidRequest)
	}

	client, err := b.newClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		config.Temperature = &t
	}
	if b.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = b.cfg.MaxTokens
	}

	next, stop := iter.Pull2(client.Models.GenerateContentStream(ctx, req.Model, contents, config))
	// The first pull performs the request.
	first, err, ok := next()
	if !ok {
		stop()
		return nil, fmt.Errorf("gemini returned an empty stream")
	}
	if err != nil {
		stop()
		return nil, err
	}
	return &geminiChunkStream{next: next, stop: stop, pending: first}, nil
}

func buildGeminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	return strings.Join(system, "\n\n"), contents
}

type geminiChunkStream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	pending *genai.GenerateContentResponse
}

func (s *geminiChunkStream) Recv() (Chunk, error) {
	resp := s.pending
	s.pending = nil
	if resp == nil {
		var err error
		var ok bool
		resp, err, ok = s.next()
		if !ok {
			return Chunk{}, io.EOF
		}
		if err != nil {
			return Chunk{}, err
		}
	}

	chunk := Chunk{Content: resp.Text()}
	for _, cand := range resp.Candidates {
		if cand.FinishReason != "" {
			chunk.Finished = true
		}
	}
	return chunk, nil
}

func (s *geminiChunkStream) Close() error {
	s.stop()
	return nil
}
