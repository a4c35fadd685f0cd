package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

// Model is the langchaingo content generation surface used by backends.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangchainBackend generates text through a langchaingo model and probes
// the serving endpoint over HTTP.
type LangchainBackend struct {
	model   Model
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func newLangchainBackend(cfg Config) (*LangchainBackend, error) {
	var (
		model Model
		err   error
	)
	switch cfg.Provider {
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			// Local OpenAI-compatible servers ignore the key, but the
			// client refuses to start without one.
			apiKey = "not-needed"
		}
		model, err = openai.New(
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(apiKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}
	return NewLangchainBackend(model, cfg), nil
}

// NewLangchainBackend wraps model. cfg supplies the provider, model name,
// endpoint and rate limit.
func NewLangchainBackend(model Model, cfg Config) *LangchainBackend {
	b := &LangchainBackend{
		model:  model,
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return b
}

// ModelName returns the configured model.
func (b *LangchainBackend) ModelName() string { return b.config.Model }

// Provider returns the backend provider name.
func (b *LangchainBackend) Provider() string { return b.config.Provider }

// Generate sends prompt as a single user message and returns the first
// choice. A deadline on ctx surfaces as ErrGenerationTimeout.
func (b *LangchainBackend) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return "", b.wrap(ctx, fmt.Errorf("rate limiter: %w", err))
		}
	}

	var callOpts []llms.CallOption
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))

	messages := []llms.MessageContent{{
		Role:  schema.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
	}}
	resp, err := b.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", b.wrap(ctx, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", b.wrap(ctx, errors.New("empty response"))
	}
	return resp.Choices[0].Content, nil
}

func (b *LangchainBackend) wrap(ctx context.Context, err error) error {
	kind := ErrGenerationFailed
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ErrGenerationTimeout
	}
	return &GenerationError{
		Provider: b.config.Provider,
		Model:    b.config.Model,
		Err:      fmt.Errorf("%w: %w", kind, err),
	}
}

// IsAvailable reports whether the serving endpoint answers. Ollama is
// probed at its root, OpenAI-compatible servers at /models.
func (b *LangchainBackend) IsAvailable(ctx context.Context) bool {
	url := b.config.BaseURL
	if b.config.Provider == "openai" {
		url += "/models"
	}
	resp, err := b.get(ctx, url)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the models the serving endpoint reports.
func (b *LangchainBackend) ListModels(ctx context.Context) ([]string, error) {
	if b.config.Provider == "openai" {
		var body struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := b.getJSON(ctx, b.config.BaseURL+"/models", &body); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(body.Data))
		for _, m := range body.Data {
			names = append(names, m.ID)
		}
		return names, nil
	}

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := b.getJSON(ctx, b.config.BaseURL+"/api/tags", &body); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (b *LangchainBackend) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if b.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.config.APIKey)
	}
	return b.client.Do(req)
}

func (b *LangchainBackend) getJSON(ctx context.Context, url string, out any) error {
	resp, err := b.get(ctx, url)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("requesting %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
