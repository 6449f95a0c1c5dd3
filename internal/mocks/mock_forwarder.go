package mocks

import (
	"context"
	"sync"

	"github.com/you/tradegate/domain"
)

// ForwardedCall records one request that went through the mock forwarder.
type ForwardedCall struct {
	Method string
	Path   string
	Body   map[string]any
	Bearer string
}

// MockForwarder implements domain.UpstreamForwarder for testing. Every call
// is recorded so tests can assert exactly what would have reached the
// upstream.
type MockForwarder struct {
	mu    sync.Mutex
	calls []ForwardedCall

	PostFunc func(ctx context.Context, path string, body map[string]any) (*domain.ForwardResult, error)
	GetFunc  func(ctx context.Context, path, bearer string) (*domain.ForwardResult, error)
}

// NewMockForwarder creates a new MockForwarder with default behaviors.
func NewMockForwarder() *MockForwarder {
	return &MockForwarder{}
}

// Post records the call and delegates to PostFunc.
func (m *MockForwarder) Post(ctx context.Context, path string, body map[string]any) (*domain.ForwardResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ForwardedCall{Method: "POST", Path: path, Body: body})
	m.mu.Unlock()

	if m.PostFunc != nil {
		return m.PostFunc(ctx, path, body)
	}
	// Default behavior: success envelope relay
	return &domain.ForwardResult{StatusCode: 200, Success: true}, nil
}

// Get records the call and delegates to GetFunc.
func (m *MockForwarder) Get(ctx context.Context, path, bearer string) (*domain.ForwardResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ForwardedCall{Method: "GET", Path: path, Bearer: bearer})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, path, bearer)
	}
	return &domain.ForwardResult{StatusCode: 200, Success: true}, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockForwarder) Calls() []ForwardedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ForwardedCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns the recorded calls that hit the given upstream path.
func (m *MockForwarder) CallsTo(path string) []ForwardedCall {
	var out []ForwardedCall
	for _, c := range m.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Compile-time interface compliance verification
var _ domain.UpstreamForwarder = (*MockForwarder)(nil)
