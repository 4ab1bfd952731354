package llm

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// MockBackend replays scripted chunks. It is used by tests and by
// `workbench serve --mock` to exercise clients without a real model.
type MockBackend struct {
	name string

	mu       sync.Mutex
	chunks   []Chunk
	openErr  error
	recvErr  error // returned after all chunks are sent
	endless  bool  // keep sending the last chunk until cancelled
	requests []ChatRequest

	opened atomic.Int32
	closed atomic.Int32
	recvs  atomic.Int32
}

// NewMockBackend creates a mock that streams the given text pieces followed
// by a finish marker.
func NewMockBackend(name string, pieces ...string) *MockBackend {
	m := &MockBackend{name: name}
	for _, p := range pieces {
		m.chunks = append(m.chunks, Chunk{Content: p})
	}
	m.chunks = append(m.chunks, Chunk{Finished: true})
	return m
}

// WithChunks replaces the scripted chunks.
func (m *MockBackend) WithChunks(chunks ...Chunk) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = chunks
	return m
}

// FailOpen makes Stream fail with err.
func (m *MockBackend) FailOpen(err error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
	return m
}

// FailAfterChunks makes Recv return err once the chunks are exhausted.
func (m *MockBackend) FailAfterChunks(err error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recvErr = err
	return m
}

// Endless repeats the last scripted chunk until the context is cancelled.
func (m *MockBackend) Endless() *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endless = true
	return m
}

// Requests returns the requests seen so far.
func (m *MockBackend) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Opened, Closed and Recvs count stream lifecycle calls.
func (m *MockBackend) Opened() int { return int(m.opened.Load()) }
func (m *MockBackend) Closed() int { return int(m.closed.Load()) }
func (m *MockBackend) Recvs() int  { return int(m.recvs.Load()) }

func (m *MockBackend) Name() string {
	return m.name
}

func (m *MockBackend) Stream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	chunks := append([]Chunk(nil), m.chunks...)
	openErr, recvErr, endless := m.openErr, m.recvErr, m.endless
	m.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}
	m.opened.Add(1)
	return &mockStream{ctx: ctx, owner: m, chunks: chunks, recvErr: recvErr, endless: endless}, nil
}

type mockStream struct {
	ctx     context.Context
	owner   *MockBackend
	chunks  []Chunk
	pos     int
	recvErr error
	endless bool
	closed  bool
}

func (s *mockStream) Recv() (Chunk, error) {
	s.owner.recvs.Add(1)
	if err := s.ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		if !s.endless || s.pos < len(s.chunks)-1 {
			s.pos++
		}
		return c, nil
	}
	if s.recvErr != nil {
		return Chunk{}, s.recvErr
	}
	return Chunk{}, io.EOF
}

func (s *mockStream) Close() error {
	if !s.closed {
		s.closed = true
		s.owner.closed.Add(1)
	}
	return nil
}
