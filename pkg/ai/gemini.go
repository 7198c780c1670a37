package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/felixgeelhaar/crew/pkg/domain/ai"
)

// GeminiProvider uses the Google GenAI SDK against the Gemini API backend.
type GeminiProvider struct {
	Model string

	mu     sync.RWMutex
	client *genai.Client
}

// NewGeminiProvider creates a provider. An empty apiKey leaves it
// uninitialized until Initialize is called.
func NewGeminiProvider(model, apiKey string) (*GeminiProvider, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	p := &GeminiProvider{Model: model}
	if apiKey != "" {
		if err := p.Initialize(apiKey); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *GeminiProvider) ID() string {
	return "gemini:" + p.Model
}

// Initialize creates the GenAI client.
func (p *GeminiProvider) Initialize(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ai.ErrInvalidCredential
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

func (p *GeminiProvider) getClient() (*genai.Client, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil, fmt.Errorf("gemini: %w", ai.ErrProviderNotInitialized)
	}
	return p.client, nil
}

func generateConfig(req ai.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := req.Temperature
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

func (p *GeminiProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	client, err := p.getClient()
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateContent(ctx, p.Model, genai.Text(req.Prompt), generateConfig(req))
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	out := &ai.CompletionResponse{Text: resp.Text(), Model: p.Model}
	if resp.UsageMetadata != nil {
		out.Usage = ai.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// Stream forwards each streamed chunk's text.
func (p *GeminiProvider) Stream(ctx context.Context, req ai.CompletionRequest, onToken func(string)) error {
	client, err := p.getClient()
	if err != nil {
		return err
	}

	for resp, err := range client.Models.GenerateContentStream(ctx, p.Model, genai.Text(req.Prompt), generateConfig(req)) {
		if err != nil {
			return fmt.Errorf("GenAI stream failed: %w", err)
		}
		if text := resp.Text(); text != "" {
			onToken(text)
		}
	}
	return nil
}
