// Package config loads docrag configuration from a YAML file and DOCRAG_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/prompt"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/secrets"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Config holds the complete docrag configuration.
type Config struct {
	Chunking    chunker.Config            `koanf:"chunking"`
	Embeddings  EmbeddingsConfig          `koanf:"embeddings"`
	VectorStore vectorstore.ChromemConfig `koanf:"vectorstore"`
	Retrieval   retrieval.Config          `koanf:"retrieval"`
	Prompt      prompt.Config             `koanf:"prompt"`
	LLM         LLMConfig                 `koanf:"llm"`
	Ingestion   ingestion.Config          `koanf:"ingestion"`
	Secrets     secrets.Config            `koanf:"secrets"`
	Logging     logging.Config            `koanf:"logging"`
	Telemetry   telemetry.Config          `koanf:"telemetry"`
}

// EmbeddingsConfig configures the embedding provider and its cache.
type EmbeddingsConfig struct {
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	CacheDir  string `koanf:"cache_dir"`
	Dimension int    `koanf:"dimension"`

	// CacheSize bounds the embedding cache. 0 means unbounded.
	CacheSize int `koanf:"cache_size"`
	// CacheTTL expires cached vectors. 0 disables expiry.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// ProviderConfig returns the provider settings.
func (c EmbeddingsConfig) ProviderConfig() embeddings.ProviderConfig {
	return embeddings.ProviderConfig{
		Provider:  c.Provider,
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey.Value(),
		CacheDir:  c.CacheDir,
		Dimension: c.Dimension,
	}
}

// LLMConfig configures the language model backend.
type LLMConfig struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      Secret        `koanf:"api_key"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	RateLimit   float64       `koanf:"rate_limit"`
	RateBurst   int           `koanf:"rate_burst"`
}

// BackendConfig returns the backend settings.
func (c LLMConfig) BackendConfig() llm.Config {
	return llm.Config{
		Provider:    c.Provider,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey.Value(),
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		RateLimit:   c.RateLimit,
		RateBurst:   c.RateBurst,
	}
}

// newConfig returns the values that cannot be expressed as zero-value
// defaults. Loading decodes on top of it.
func newConfig() *Config {
	return &Config{
		LLM:     LLMConfig{Temperature: llm.DefaultTemperature},
		Secrets: secrets.Config{Enabled: true},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := newConfig()
	applyDefaults(cfg)
	return cfg
}

// Validate validates every section.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Chunking.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chunking: %w", err))
	}
	if c.Embeddings.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("embeddings: cache_size must not be negative"))
	}
	if c.Embeddings.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("embeddings: cache_ttl must not be negative"))
	}
	switch c.Embeddings.Provider {
	case "fastembed", "tei", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("embeddings: unknown provider %q", c.Embeddings.Provider))
	}
	if err := c.VectorStore.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vectorstore: %w", err))
	}
	if err := c.Retrieval.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retrieval: %w", err))
	}
	if _, ok := prompt.Lookup(c.Prompt.DefaultTemplate); !ok {
		errs = append(errs, fmt.Errorf("prompt: unknown default template %q", c.Prompt.DefaultTemplate))
	}
	if err := c.LLM.BackendConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("llm: %w", err))
	}
	if c.Ingestion.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("ingestion: max_file_size must not be negative"))
	}
	if err := c.Secrets.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("secrets: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	cfg.Chunking.ApplyDefaults()

	pc := cfg.Embeddings.ProviderConfig()
	pc.ApplyDefaults()
	cfg.Embeddings.Provider = pc.Provider
	cfg.Embeddings.Model = pc.Model
	cfg.Embeddings.BaseURL = pc.BaseURL
	cfg.Embeddings.Dimension = pc.Dimension
	if cfg.Embeddings.CacheSize == 0 {
		cfg.Embeddings.CacheSize = 10000
	}

	cfg.VectorStore.ApplyDefaults()
	cfg.Retrieval.ApplyDefaults()
	if cfg.Prompt.DefaultTemplate == "" {
		cfg.Prompt.DefaultTemplate = prompt.TemplateStandard
	}

	bc := cfg.LLM.BackendConfig()
	bc.ApplyDefaults()
	cfg.LLM.Provider = bc.Provider
	cfg.LLM.Model = bc.Model
	cfg.LLM.BaseURL = bc.BaseURL
	cfg.LLM.MaxTokens = bc.MaxTokens
	cfg.LLM.Temperature = bc.Temperature
	cfg.LLM.Timeout = bc.Timeout
	cfg.LLM.RateBurst = bc.RateBurst

	cfg.Ingestion.ApplyDefaults()
	cfg.Secrets.ApplyDefaults()
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyLoggingDefaults(c *logging.Config) {
	def := logging.NewDefaultConfig()
	if c.Level == "" {
		c.Level = def.Level
	}
	if c.Format == "" {
		c.Format = def.Format
	}
	if !c.Output.Stderr && !c.Output.OTEL {
		c.Output = def.Output
	}
	if c.Sampling.Tick == 0 {
		c.Sampling.Tick = def.Sampling.Tick
	}
	if c.Sampling.Initial == 0 {
		c.Sampling.Initial = def.Sampling.Initial
	}
	if c.Sampling.Thereafter == 0 {
		c.Sampling.Thereafter = def.Sampling.Thereafter
	}
	if len(c.Fields) == 0 {
		c.Fields = def.Fields
	}
	if len(c.Redaction.Fields) == 0 && len(c.Redaction.Patterns) == 0 {
		c.Redaction = def.Redaction
	}
}

func applyTelemetryDefaults(c *telemetry.Config) {
	def := telemetry.NewDefaultConfig()
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
		c.Insecure = true
	}
	if c.Protocol == "" {
		c.Protocol = def.Protocol
	}
	if c.ServiceName == "" {
		c.ServiceName = def.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = def.ServiceVersion
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = def.SamplingRate
	}
	if c.ExportInterval == 0 {
		c.ExportInterval = def.ExportInterval
		c.MetricsEnabled = true
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}
