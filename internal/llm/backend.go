// Package llm provides the language model backends that turn a prompt into
// an answer.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend generates text from a prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	// IsAvailable reports whether the backend service is reachable.
	IsAvailable(ctx context.Context) bool
	ModelName() string
}

// ModelLister is implemented by backends that can enumerate the models
// their service has installed.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// GenerateOptions tunes a single completion.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// DefaultTemperature is the sampling temperature of a loaded configuration
// that does not set one.
const DefaultTemperature = 0.7

// Config configures a backend.
type Config struct {
	// Provider is "ollama" or "openai" (any OpenAI-compatible server such
	// as LM Studio or vLLM). Default: "ollama".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`

	MaxTokens int `koanf:"max_tokens"`
	// Temperature is passed through as is; 0 selects greedy decoding.
	// Loaded configuration starts from DefaultTemperature.
	Temperature float64 `koanf:"temperature"`

	// Timeout bounds one generation call. Default: 120s.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit caps generation calls per second. 0 disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "ollama"
	}
	switch c.Provider {
	case "ollama":
		if c.Model == "" {
			c.Model = "qwen2.5:7b"
		}
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:11434"
		}
	case "openai":
		if c.Model == "" {
			c.Model = "gpt-4o-mini"
		}
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:1234/v1"
		}
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		c.RateBurst = 1
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	switch c.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens must not be negative", ErrInvalidConfig)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2], got %v", ErrInvalidConfig, c.Temperature)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Options returns the configured generation options.
func (c Config) Options() GenerateOptions {
	return GenerateOptions{MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}

// NewBackend creates the backend named by cfg.Provider.
func NewBackend(cfg Config) (*LangchainBackend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return newLangchainBackend(cfg)
}
