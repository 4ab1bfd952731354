package llm

import "context"

// Backend opens streaming completions against a model endpoint.
type Backend interface {
	Name() string
	// Stream opens the stream. An error here means nothing was received.
	Stream(ctx context.Context, req ChatRequest) (ChunkStream, error)
}

// ChunkStream yields chunks until io.EOF.
type ChunkStream interface {
	Recv() (Chunk, error)
	Close() error
}
