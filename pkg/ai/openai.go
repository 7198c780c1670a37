package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/felixgeelhaar/crew/pkg/domain/ai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIProvider talks to OpenAI or any OpenAI-compatible endpoint (Groq,
// local gateways) through go-openai.
type OpenAIProvider struct {
	Model   string
	name    string
	baseURL string

	mu     sync.RWMutex
	client *openai.Client
}

// NewOpenAIProvider creates a provider. An empty apiKey leaves it
// uninitialized until Initialize is called.
func NewOpenAIProvider(model, apiKey, baseURL string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o"
	}
	p := &OpenAIProvider{Model: model, name: "openai", baseURL: baseURL}
	if apiKey != "" {
		_ = p.Initialize(apiKey)
	}
	return p
}

// NewGroqProvider points the OpenAI adapter at Groq.
func NewGroqProvider(model, apiKey string) *OpenAIProvider {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	p := NewOpenAIProvider(model, "", groqBaseURL)
	p.name = "groq"
	if apiKey != "" {
		_ = p.Initialize(apiKey)
	}
	return p
}

func (p *OpenAIProvider) ID() string {
	return p.name + ":" + p.Model
}

// Initialize builds the API client for apiKey.
func (p *OpenAIProvider) Initialize(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ai.ErrInvalidCredential
	}
	cfg := openai.DefaultConfig(apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	p.mu.Lock()
	p.client = openai.NewClientWithConfig(cfg)
	p.mu.Unlock()
	return nil
}

func (p *OpenAIProvider) getClient() (*openai.Client, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil, fmt.Errorf("%s: %w", p.name, ai.ErrProviderNotInitialized)
	}
	return p.client, nil
}

func (p *OpenAIProvider) chatRequest(req ai.CompletionRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	out := openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		out.MaxCompletionTokens = req.MaxTokens
	}
	return out
}

func (p *OpenAIProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	client, err := p.getClient()
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateChatCompletion(ctx, p.chatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%s API call failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s API returned no choices", p.name)
	}

	return &ai.CompletionResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: p.Model,
		Usage: ai.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Stream forwards content deltas as they arrive.
func (p *OpenAIProvider) Stream(ctx context.Context, req ai.CompletionRequest, onToken func(string)) error {
	client, err := p.getClient()
	if err != nil {
		return err
	}

	chatReq := p.chatRequest(req)
	chatReq.Stream = true
	stream, err := client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return fmt.Errorf("%s stream failed: %w", p.name, err)
	}
	defer stream.Close() //nolint:errcheck // best-effort close on stream

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s stream receive failed: %w", p.name, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			onToken(delta)
		}
	}
}
