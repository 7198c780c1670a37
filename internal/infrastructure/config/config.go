// Package config loads crew settings from .crew/config.yaml and CREW_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/crew/pkg/ai"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

const (
	envPrefix         = "CREW_"
	maxConfigFileSize = 1024 * 1024
)

// Config is the full settings tree. Field names follow the YAML keys.
type Config struct {
	LLM    LLMConfig    `koanf:"llm" yaml:"llm"`
	Retry  RetryConfig  `koanf:"retry" yaml:"retry"`
	Rate   RateConfig   `koanf:"rate" yaml:"rate"`
	Log    LogConfig    `koanf:"log" yaml:"log"`
	Plan   PlanConfig   `koanf:"plan" yaml:"plan"`
	State  StateConfig  `koanf:"state" yaml:"state"`
	Notify NotifyConfig `koanf:"notify" yaml:"notify,omitempty"`
	Agents AgentsConfig `koanf:"agents" yaml:"agents,omitempty"`
}

type LLMConfig struct {
	Provider   string `koanf:"provider" yaml:"provider"`
	Model      string `koanf:"model" yaml:"model,omitempty"`
	APIKey     string `koanf:"api_key" yaml:"api_key,omitempty"`
	Endpoint   string `koanf:"endpoint" yaml:"endpoint,omitempty"`
	TimeoutSec int    `koanf:"timeout_sec" yaml:"timeout_sec"`
}

type RetryConfig struct {
	MaxAttempts int `koanf:"max_attempts" yaml:"max_attempts"`
	DelayMS     int `koanf:"delay_ms" yaml:"delay_ms"`
}

type RateConfig struct {
	// RequestsPerMinute of 0 disables limiting.
	RequestsPerMinute int `koanf:"requests_per_minute" yaml:"requests_per_minute"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	// File also writes logs to .crew/crew.log.
	File bool `koanf:"file" yaml:"file"`
}

type PlanConfig struct {
	Generate bool `koanf:"generate" yaml:"generate"`
}

type StateConfig struct {
	ClearOnComplete   bool `koanf:"clear_on_complete" yaml:"clear_on_complete"`
	Lock              bool `koanf:"lock" yaml:"lock"`
	LockStaleAfterSec int  `koanf:"lock_stale_after_sec" yaml:"lock_stale_after_sec"`
}

// AgentsConfig lists agent plugin binaries, relative to the workspace root
// or absolute. Each registers under the id it reports.
type AgentsConfig struct {
	Plugins []string `koanf:"plugins" yaml:"plugins,omitempty"`
}

type NotifyConfig struct {
	Webhooks []WebhookConfig `koanf:"webhooks" yaml:"webhooks,omitempty"`
}

// WebhookConfig is one outgoing webhook for pipeline events.
type WebhookConfig struct {
	Name    string `koanf:"name" yaml:"name"`
	URL     string `koanf:"url" yaml:"url"`
	Secret  string `koanf:"secret" yaml:"secret,omitempty"`
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	// Format is json (default) or slack.
	Format string `koanf:"format" yaml:"format,omitempty"`
	// Events limits delivery to these event types; empty sends all.
	Events       []string `koanf:"events" yaml:"events,omitempty"`
	MaxAttempts  int      `koanf:"max_attempts" yaml:"max_attempts,omitempty"`
	RetryDelayMS int      `koanf:"retry_delay_ms" yaml:"retry_delay_ms,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LLM:   LLMConfig{Provider: "mock", TimeoutSec: 300},
		Retry: RetryConfig{MaxAttempts: 3, DelayMS: 1000},
		Log:   LogConfig{Level: "info", Format: "console"},
		Plan:  PlanConfig{Generate: true},
		State: StateConfig{Lock: true, LockStaleAfterSec: 3600},
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate rejects settings the rest of the program cannot honour.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(ai.SupportedProviders(), c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of %s", c.LLM.Provider, strings.Join(ai.SupportedProviders(), ", ")))
	}
	if c.LLM.TimeoutSec < 0 {
		errs = append(errs, errors.New("llm.timeout_sec must not be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.DelayMS < 0 {
		errs = append(errs, errors.New("retry.delay_ms must not be negative"))
	}
	if c.Rate.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("rate.requests_per_minute must not be negative"))
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of %s", c.Log.Level, strings.Join(logLevels, ", ")))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}
	if c.State.LockStaleAfterSec < 0 {
		errs = append(errs, errors.New("state.lock_stale_after_sec must not be negative"))
	}
	for i, w := range c.Notify.Webhooks {
		if w.URL == "" {
			errs = append(errs, fmt.Errorf("notify.webhooks[%d].url is required", i))
		}
		if w.Format != "" && w.Format != "json" && w.Format != "slack" {
			errs = append(errs, fmt.Errorf("notify.webhooks[%d].format %q must be json or slack", i, w.Format))
		}
	}
	for i, p := range c.Agents.Plugins {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("agents.plugins[%d] is empty", i))
		}
	}
	return errors.Join(errs...)
}

// Path returns the config file location for a workspace root.
func Path(root string) string {
	return filepath.Join(root, storage.CrewDir, storage.ConfigFile)
}

// Load reads defaults, then the workspace config file if present, then
// CREW_* variables, and validates the result.
//
//	CREW_LLM_MODEL          -> llm.model
//	CREW_RETRY_DELAY_MS     -> retry.delay_ms
//	CREW_STATE_CLEAR_ON_COMPLETE -> state.clear_on_complete
func Load(root string) (*Config, error) {
	k := koanf.New(".")

	content, err := readConfigFile(Path(root))
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps CREW_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 -- path is derived from the workspace root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes", info.Size())
	}
	return io.ReadAll(f)
}

// Save writes cfg to the workspace config file.
func Save(root string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := storage.NewFilesystemRepository(root).Initialize(); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(Path(root), data, 0600)
}

// ProviderConfig returns the provider selection for the ai factory.
func (c *Config) ProviderConfig() ai.ProviderConfig {
	return ai.ProviderConfig{
		Name:     c.LLM.Provider,
		Model:    c.LLM.Model,
		APIKey:   c.LLM.APIKey,
		Endpoint: c.LLM.Endpoint,
	}
}

// ServiceConfig returns the retry, timeout and rate settings for the LLM service.
func (c *Config) ServiceConfig() ai.ServiceConfig {
	return ai.ServiceConfig{
		MaxAttempts:       c.Retry.MaxAttempts,
		RetryDelay:        time.Duration(c.Retry.DelayMS) * time.Millisecond,
		Timeout:           time.Duration(c.LLM.TimeoutSec) * time.Second,
		RequestsPerMinute: c.Rate.RequestsPerMinute,
	}
}

// LockStaleAfter returns the lock takeover age.
func (c *Config) LockStaleAfter() time.Duration {
	return time.Duration(c.State.LockStaleAfterSec) * time.Second
}
