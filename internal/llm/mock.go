package llm

import (
	"context"
	"sync"

	"sceneforge/internal/ports"
)

// MockClient is a scripted LLM client for tests and for running the CLI
// without credentials. Responses are served from a queue; when the queue is
// empty, Handler decides, and when neither is set a canned reply comes back.
type MockClient struct {
	mu        sync.Mutex
	model     string
	queue     []ports.CompletionResponse
	handler   func(req ports.CompletionRequest) (*ports.CompletionResponse, error)
	requests  []ports.CompletionRequest
	callCount int
}

// NewMockClient builds a mock for the given model name.
func NewMockClient(model string) *MockClient {
	if model == "" {
		model = "mock-model"
	}
	return &MockClient{model: model}
}

// Enqueue adds a plain-text reply to the response queue.
func (m *MockClient) Enqueue(content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, ports.CompletionResponse{Content: content, StopReason: "stop"})
	return m
}

// EnqueueResponse adds a full response to the queue.
func (m *MockClient) EnqueueResponse(resp ports.CompletionResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
	return m
}

// SetHandler installs a fallback invoked when the queue is empty.
func (m *MockClient) SetHandler(fn func(req ports.CompletionRequest) (*ports.CompletionResponse, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Requests returns a copy of every request seen so far.
func (m *MockClient) Requests() []ports.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount reports how many completions were requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.callCount++
	if len(m.queue) > 0 {
		resp := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return &resp, nil
	}
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	return &ports.CompletionResponse{
		Content:    "mock response: no scripted reply was queued",
		StopReason: "stop",
	}, nil
}

func (m *MockClient) Model() string {
	return m.model
}
