package llm

import (
	"context"
	"sync"
)

// MockClient is a scriptable Client for tests. Responses are returned in
// order; the last one repeats once the script is exhausted.
type MockClient struct {
	mu        sync.Mutex
	responses []Result
	errs      []error
	calls     []Request
	index     int
}

// NewMockClient creates a mock that replies with the given results.
func NewMockClient(responses ...Result) *MockClient {
	return &MockClient{responses: responses}
}

// QueueError appends an error reply to the script.
func (m *MockClient) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, Result{})
	m.errs = append(m.errs, err)
}

// QueueResponse appends a successful reply to the script.
func (m *MockClient) QueueResponse(result Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, result)
	m.errs = append(m.errs, nil)
}

// Chat implements the Client interface.
func (m *MockClient) Chat(_ context.Context, in Request) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, in)
	if len(m.responses) == 0 {
		return Result{}, nil
	}

	idx := m.index
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	} else {
		m.index++
	}

	var err error
	if idx < len(m.errs) {
		err = m.errs[idx]
	}
	if err != nil {
		return Result{}, err
	}
	return m.responses[idx], nil
}

// ModelName returns a fixed mock identifier.
func (m *MockClient) ModelName() string {
	return "mock-model"
}

// Calls returns the requests received so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}
