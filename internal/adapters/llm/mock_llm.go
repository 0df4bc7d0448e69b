package llm

import (
	"context"
	"fmt"
	"sync"

	"inkwell/internal/domain"
)

// MockCall records one Complete invocation for assertions.
type MockCall struct {
	System      string
	Messages    []domain.PromptMessage
	Temperature float32
}

// MockCompleter is the in-process stand-in for a generation backend.
// By default it echoes the prompt; set ReplyFunc to script outcomes.
type MockCompleter struct {
	mu    sync.Mutex
	calls []MockCall

	// ReplyFunc overrides the canned reply when set.
	ReplyFunc func(call MockCall) (string, error)
}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

func (m *MockCompleter) Complete(ctx context.Context, systemPrompt string, messages []domain.PromptMessage, temperature float32) (string, error) {
	call := MockCall{
		System:      systemPrompt,
		Messages:    append([]domain.PromptMessage(nil), messages...),
		Temperature: temperature,
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	reply := m.ReplyFunc
	m.mu.Unlock()

	if reply != nil {
		return reply(call)
	}

	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	if len(last) > 48 {
		last = last[:48] + "..."
	}
	return fmt.Sprintf("Here is a thought building on %q.", last), nil
}

// Calls returns every recorded invocation in order.
func (m *MockCompleter) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
