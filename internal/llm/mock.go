package llm

import (
	"context"
	"sync"
	"time"
)

// MockClient is a test double for the LLM Client interface.
// It can also be used for dry-run mode.
type MockClient struct {
	Response *Response
	Err      error
	Delay    time.Duration // wait this long (or until ctx is done) before answering

	mu    sync.Mutex
	Calls []*Request // records requests sent
}

// Complete records the call and returns the mock response.
func (m *MockClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.Response, m.Err
}

// CallCount returns how many requests the mock has received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
