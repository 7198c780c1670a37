// Package ai implements the LLM service the agents call and the concrete
// provider adapters behind it.
package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/crew/pkg/domain/ai"
)

// ServiceConfig tunes the bounded retry around a single provider call.
type ServiceConfig struct {
	MaxAttempts       int
	RetryDelay        time.Duration
	Timeout           time.Duration
	RequestsPerMinute int
}

// DefaultServiceConfig returns three attempts with a fixed one second delay.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxAttempts: 3,
		RetryDelay:  time.Second,
		Timeout:     300 * time.Second,
	}
}

// GenerateOption adjusts a single request.
type GenerateOption func(*ai.CompletionRequest)

// WithSystem sets the system prompt.
func WithSystem(system string) GenerateOption {
	return func(r *ai.CompletionRequest) { r.System = system }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GenerateOption {
	return func(r *ai.CompletionRequest) { r.Temperature = t }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) GenerateOption {
	return func(r *ai.CompletionRequest) { r.MaxTokens = n }
}

// Service is the facade the agents talk to. The provider can be swapped
// at runtime; all calls fail with ai.ErrProviderNotInitialized until one is set.
type Service struct {
	mu       sync.RWMutex
	provider ai.Provider
	cfg      ServiceConfig
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewService creates a service. provider may be nil.
func NewService(provider ai.Provider, cfg ServiceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	s := &Service{
		provider: provider,
		cfg:      cfg,
		logger:   logger.Named("llm"),
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return s
}

// SetProvider replaces the active provider.
func (s *Service) SetProvider(p ai.Provider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
}

// Provider returns the active provider or nil.
func (s *Service) Provider() ai.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// Initialize hands a credential to the active provider.
func (s *Service) Initialize(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ai.ErrInvalidCredential
	}
	p := s.Provider()
	if p == nil {
		return ai.ErrProviderNotInitialized
	}
	if init, ok := p.(ai.Initializer); ok {
		return init.Initialize(apiKey)
	}
	return nil
}

// GenerateText runs one completion, retrying the provider call up to
// MaxAttempts times with a fixed delay. The last error is returned when
// every attempt fails.
func (s *Service) GenerateText(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	p := s.Provider()
	if p == nil {
		return "", ai.ErrProviderNotInitialized
	}
	req := buildRequest(prompt, opts)

	r := retry.New[*ai.CompletionResponse](retry.Config{
		MaxAttempts:   s.cfg.MaxAttempts,
		InitialDelay:  s.cfg.RetryDelay,
		BackoffPolicy: retry.BackoffConstant,
	})

	attempt := 0
	call := func(ctx context.Context) (*ai.CompletionResponse, error) {
		return r.Do(ctx, func(ctx context.Context) (*ai.CompletionResponse, error) {
			attempt++
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return nil, err
				}
			}
			res, err := p.Complete(ctx, req)
			if err != nil {
				s.logger.Warn("provider call failed",
					zap.String("provider", p.ID()),
					zap.Int("attempt", attempt),
					zap.Error(err))
			}
			return res, err
		})
	}

	var (
		res *ai.CompletionResponse
		err error
	)
	if s.cfg.Timeout > 0 {
		t := timeout.New[*ai.CompletionResponse](timeout.Config{DefaultTimeout: s.cfg.Timeout})
		res, err = t.Execute(ctx, s.cfg.Timeout, call)
	} else {
		res, err = call(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("generate text via %s: %w", p.ID(), err)
	}
	if res == nil {
		return "", nil
	}
	s.logger.Debug("completion received",
		zap.String("provider", p.ID()),
		zap.Int("attempts", attempt),
		zap.Int("input_tokens", res.Usage.InputTokens),
		zap.Int("output_tokens", res.Usage.OutputTokens))
	return res.Text, nil
}

// StreamGenerate delivers tokens through onToken. Providers without native
// streaming get a single GenerateText call whose full result is delivered
// in one onToken call.
func (s *Service) StreamGenerate(ctx context.Context, prompt string, onToken func(string), opts ...GenerateOption) error {
	p := s.Provider()
	if p == nil {
		return ai.ErrProviderNotInitialized
	}
	if streamer, ok := p.(ai.Streamer); ok {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return streamer.Stream(ctx, buildRequest(prompt, opts), onToken)
	}

	text, err := s.GenerateText(ctx, prompt, opts...)
	if err != nil {
		return err
	}
	onToken(text)
	return nil
}

func buildRequest(prompt string, opts []GenerateOption) ai.CompletionRequest {
	req := ai.CompletionRequest{Prompt: prompt}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}
