package ai

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/crew/pkg/domain/ai"
)

// MockProvider echoes prompts. It backs the "mock" provider setting and
// most tests.
type MockProvider struct {
	Model string

	// FailTimes makes the first N calls fail with Err.
	FailTimes int
	Err       error

	// Respond overrides the echo behaviour when set.
	Respond func(req ai.CompletionRequest) string

	mu      sync.Mutex
	calls   int
	prompts []string
}

// ID returns the provider identifier.
func (m *MockProvider) ID() string {
	if m.Model == "" {
		return "mock"
	}
	return "mock:" + m.Model
}

// Complete returns "response for: <prompt>" unless Respond is set.
func (m *MockProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, req.Prompt)
	fail := m.calls <= m.FailTimes
	m.mu.Unlock()

	if fail {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, errors.New("mock provider failure")
	}

	text := "response for: " + req.Prompt
	if m.Respond != nil {
		text = m.Respond(req)
	}
	return &ai.CompletionResponse{
		Text:  text,
		Model: m.Model,
		Usage: ai.TokenUsage{InputTokens: len(req.Prompt) / 4, OutputTokens: len(text) / 4},
	}, nil
}

// Calls returns the number of Complete invocations.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns every prompt received, in order.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
