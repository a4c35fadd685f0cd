package embeddings

import (
	"context"
	"fmt"
)

// Provider produces raw embeddings. Implementations need not cache and may
// be called concurrently.
type Provider interface {
	// EmbedDocuments returns one vector per input text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the length of every vector the provider produces.
	Dimension() int
	// ModelName returns the identifier of the underlying model.
	ModelName() string
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of "fastembed", "tei", "openai" or "ollama".
	Provider string `koanf:"provider"`
	// Model is the embedding model name.
	Model string `koanf:"model"`
	// BaseURL is the service URL (tei, openai, ollama).
	BaseURL string `koanf:"base_url"`
	// APIKey is sent as a bearer token where the provider supports one.
	APIKey string `koanf:"api_key"`
	// CacheDir is the model download directory (fastembed only).
	CacheDir string `koanf:"cache_dir"`
	// Dimension overrides the dimension inferred from Model.
	Dimension int `koanf:"dimension"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ProviderConfig) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "fastembed"
	}
	if c.Model == "" {
		switch c.Provider {
		case "fastembed":
			c.Model = "BAAI/bge-small-en-v1.5"
		case "openai":
			c.Model = "text-embedding-3-small"
		case "ollama":
			c.Model = "nomic-embed-text"
		default:
			c.Model = "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"
		}
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case "tei":
			c.BaseURL = "http://localhost:8080"
		case "openai":
			c.BaseURL = "https://api.openai.com/v1"
		case "ollama":
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.Dimension == 0 {
		c.Dimension = DimensionForModel(c.Model)
	}
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	cfg.ApplyDefaults()
	switch cfg.Provider {
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		return NewTEIProvider(TEIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
		})
	case "openai", "ollama":
		return NewLangchainProvider(LangchainConfig{
			Backend:   cfg.Provider,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			Dimension: cfg.Dimension,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
