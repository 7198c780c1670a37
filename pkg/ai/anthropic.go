package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/felixgeelhaar/crew/pkg/domain/ai"
)

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider calls the Messages API directly over HTTP.
type AnthropicProvider struct {
	Model      string
	endpoint   string
	httpClient *http.Client

	mu     sync.RWMutex
	apiKey string
}

func NewAnthropicProvider(model, apiKey string) *AnthropicProvider {
	return NewAnthropicProviderWithClient(model, apiKey, "", nil)
}

// NewAnthropicProviderWithClient overrides endpoint and HTTP client (for testing).
func NewAnthropicProviderWithClient(model, apiKey, endpoint string, client *http.Client) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	if endpoint == "" {
		endpoint = anthropicMessagesURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &AnthropicProvider{
		Model:      model,
		endpoint:   endpoint,
		httpClient: client,
		apiKey:     strings.TrimSpace(apiKey),
	}
}

func (p *AnthropicProvider) ID() string {
	return "anthropic:" + p.Model
}

// Initialize stores the API key.
func (p *AnthropicProvider) Initialize(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ai.ErrInvalidCredential
	}
	p.mu.Lock()
	p.apiKey = apiKey
	p.mu.Unlock()
	return nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	p.mu.RLock()
	apiKey := p.apiKey
	p.mu.RUnlock()
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w (set ANTHROPIC_API_KEY)", ai.ErrProviderNotInitialized)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       p.Model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on read body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Anthropic API returned status: %s", resp.Status)
	}

	var anthroResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthroResp); err != nil {
		return nil, err
	}
	if len(anthroResp.Content) == 0 {
		return nil, fmt.Errorf("Anthropic API returned no content")
	}

	return &ai.CompletionResponse{
		Text:  anthroResp.Content[0].Text,
		Model: p.Model,
		Usage: ai.TokenUsage{
			InputTokens:  anthroResp.Usage.InputTokens,
			OutputTokens: anthroResp.Usage.OutputTokens,
		},
	}, nil
}
