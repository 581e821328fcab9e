package llm

import (
	"context"
	"sync"
)

// MockProvider is a test double for Provider.
// CompleteFunc can be overridden; otherwise Complete returns an empty
// layouts object. Thread-safe for use in concurrent tests.
type MockProvider struct {
	NameValue    string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

	mu sync.Mutex

	// Calls tracks all method invocations for assertions
	Calls []MockCall
}

// MockCall records a method call for test assertions.
type MockCall struct {
	Method string
	Args   []any
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Complete", Args: []any{req}})
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &Completion{Text: `{"layouts": []}`, Model: req.Model}, nil
}

// Requests returns the requests passed to Complete so far.
func (m *MockProvider) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reqs []CompletionRequest
	for _, c := range m.Calls {
		if c.Method == "Complete" {
			reqs = append(reqs, c.Args[0].(CompletionRequest))
		}
	}
	return reqs
}
