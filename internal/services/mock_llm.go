package services

import (
	"context"
	"sync"

	"github.com/mlundquist/saga-engine/pkg/chat"
)

// MockLLM is a function-field mock of LLMService for tests.
type MockLLM struct {
	ChatFunc func(ctx context.Context, messages []chat.Message) (*chat.Completion, error)

	// ChatCalls records the messages of every Chat invocation.
	ChatCalls [][]chat.Message

	mu sync.Mutex
}

var _ LLMService = (*MockLLM)(nil)

// NewMockLLM creates a mock that, by default, echoes an empty completion.
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Name() string {
	return "mock"
}

func (m *MockLLM) Chat(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, messages)
	fn := m.ChatFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages)
	}
	return &chat.Completion{Text: ""}, nil
}

// CallCount returns how many Chat calls the mock has seen.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls)
}
