package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainConfig configures an embedder backed by a langchaingo client.
type LangchainConfig struct {
	// Backend is "openai" (any OpenAI-compatible endpoint) or "ollama".
	Backend   string
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
}

// LangchainProvider adapts a langchaingo embedder to Provider.
type LangchainProvider struct {
	embedder  lcembeddings.Embedder
	model     string
	dimension int
}

// NewLangchainProvider creates a provider for an OpenAI-compatible or Ollama
// embeddings endpoint.
func NewLangchainProvider(cfg LangchainConfig) (*LangchainProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = DimensionForModel(cfg.Model)
	}

	var client lcembeddings.EmbedderClient
	switch cfg.Backend {
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			// langchaingo requires a token; local servers ignore it
			apiKey = "placeholder"
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(apiKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		client = llm
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating Ollama client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("%w: unknown langchain backend %q", ErrInvalidConfig, cfg.Backend)
	}

	embedder, err := lcembeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &LangchainProvider{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *LangchainProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// Dimension returns the configured embedding dimension.
func (p *LangchainProvider) Dimension() int { return p.dimension }

// ModelName returns the configured model.
func (p *LangchainProvider) ModelName() string { return p.model }

// Close is a no-op; the HTTP clients hold no resources.
func (p *LangchainProvider) Close() error { return nil }
