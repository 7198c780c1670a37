package ai

import (
	"context"
	"errors"
)

var (
	// ErrProviderNotInitialized is returned when a generation call is made
	// before a provider has been set on the service.
	ErrProviderNotInitialized = errors.New("llm provider not initialized")

	// ErrInvalidCredential is returned by Initialize for empty or malformed keys.
	ErrInvalidCredential = errors.New("invalid llm credential")
)

// CompletionRequest represents a prompt to the AI.
type CompletionRequest struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
}

// CompletionResponse represents the AI's answer.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

// TokenUsage tracks costs.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the interface for all AI backends.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Streamer is implemented by providers with native token streaming.
type Streamer interface {
	Stream(ctx context.Context, req CompletionRequest, onToken func(token string)) error
}

// Initializer is implemented by providers that need a credential before use.
type Initializer interface {
	Initialize(apiKey string) error
}
