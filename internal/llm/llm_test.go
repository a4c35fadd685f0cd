package llm_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

type stubModel struct {
	reply    string
	err      error
	delay    time.Duration
	gotText  string
	gotRole  schema.ChatMessageType
	gotCalls int
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.gotCalls++
	if len(messages) == 1 && len(messages[0].Parts) == 1 {
		m.gotRole = messages[0].Role
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			m.gotText = text.Text
		}
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func ollamaConfig(url string) llm.Config {
	cfg := llm.Config{Provider: "ollama", Model: "qwen2.5:7b", BaseURL: url}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Defaults(t *testing.T) {
	var cfg llm.Config
	cfg.ApplyDefaults()
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Zero(t, cfg.Temperature)
	require.NoError(t, cfg.Validate())

	cfg = llm.Config{Temperature: 0.2}
	cfg.ApplyDefaults()
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)

	cfg = llm.Config{Provider: "openai"}
	cfg.ApplyDefaults()
	assert.Equal(t, "http://localhost:1234/v1", cfg.BaseURL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  llm.Config
	}{
		{"unknown provider", llm.Config{Provider: "bard", Model: "x"}},
		{"missing model", llm.Config{Provider: "ollama"}},
		{"temperature", llm.Config{Provider: "ollama", Model: "x", Temperature: 3}},
		{"negative rate", llm.Config{Provider: "ollama", Model: "x", RateLimit: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), llm.ErrInvalidConfig)
		})
	}
}

func TestNewBackend_Providers(t *testing.T) {
	b, err := llm.NewBackend(llm.Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", b.ModelName())

	b, err = llm.NewBackend(llm.Config{Provider: "openai", BaseURL: "http://localhost:8000/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Provider())

	_, err = llm.NewBackend(llm.Config{Provider: "nope"})
	assert.ErrorIs(t, err, llm.ErrInvalidConfig)
}

func TestGenerate(t *testing.T) {
	model := &stubModel{reply: "Hamburg [Source 1]"}
	b := llm.NewLangchainBackend(model, ollamaConfig("http://unused"))

	out, err := b.Generate(context.Background(), "Wo ist der Sitz?", llm.GenerateOptions{MaxTokens: 64, Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "Hamburg [Source 1]", out)
	assert.Equal(t, "Wo ist der Sitz?", model.gotText)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.gotRole)
}

func TestGenerate_Failure(t *testing.T) {
	b := llm.NewLangchainBackend(&stubModel{err: errors.New("connection refused")}, ollamaConfig("http://unused"))

	_, err := b.Generate(context.Background(), "q", llm.GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrGenerationFailed)
	assert.NotErrorIs(t, err, llm.ErrGenerationTimeout)

	var genErr *llm.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "ollama", genErr.Provider)
	assert.Equal(t, "qwen2.5:7b", genErr.Model)
}

func TestGenerate_Timeout(t *testing.T) {
	b := llm.NewLangchainBackend(&stubModel{delay: time.Second}, ollamaConfig("http://unused"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Generate(ctx, "q", llm.GenerateOptions{})
	assert.ErrorIs(t, err, llm.ErrGenerationTimeout)
}

func TestGenerate_EmptyResponse(t *testing.T) {
	b := llm.NewLangchainBackend(emptyModel{}, ollamaConfig("http://unused"))
	_, err := b.Generate(context.Background(), "q", llm.GenerateOptions{})
	assert.ErrorIs(t, err, llm.ErrGenerationFailed)
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func TestGenerate_RateLimited(t *testing.T) {
	cfg := ollamaConfig("http://unused")
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	model := &stubModel{reply: "ok"}
	b := llm.NewLangchainBackend(model, cfg)

	_, err := b.Generate(context.Background(), "q", llm.GenerateOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Generate(ctx, "q", llm.GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, model.gotCalls)
}

func ollamaServer(t *testing.T, tags string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("Ollama is running"))
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(tags))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckConnection(t *testing.T) {
	tests := []struct {
		name      string
		tags      string
		available bool
		info      string
	}{
		{"exact", `{"models":[{"name":"qwen2.5:7b"}]}`, true, "model qwen2.5:7b found"},
		{"missing", `{"models":[{"name":"llama3:8b"}]}`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := ollamaServer(t, tt.tags)
			b := llm.NewLangchainBackend(&stubModel{}, ollamaConfig(srv.URL))

			status := llm.CheckConnection(context.Background(), b)
			assert.Equal(t, tt.available, status.Available)
			assert.Equal(t, tt.info, status.ModelInfo)
			if !tt.available {
				assert.Contains(t, status.Error, "llama3:8b")
			}
		})
	}
}

func TestCheckConnection_LatestTag(t *testing.T) {
	srv := ollamaServer(t, `{"models":[{"name":"mistral:latest"}]}`)
	cfg := ollamaConfig(srv.URL)
	cfg.Model = "mistral"
	b := llm.NewLangchainBackend(&stubModel{}, cfg)

	status := llm.CheckConnection(context.Background(), b)
	assert.True(t, status.Available)
	assert.Equal(t, "model mistral:latest found", status.ModelInfo)
}

func TestCheckConnection_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	b := llm.NewLangchainBackend(&stubModel{}, ollamaConfig(srv.URL))
	assert.False(t, b.IsAvailable(context.Background()))

	status := llm.CheckConnection(context.Background(), b)
	assert.False(t, status.Available)
	assert.NotEmpty(t, status.Error)
}

func TestListModels_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"local-model"}]}`))
	}))
	defer srv.Close()

	cfg := llm.Config{Provider: "openai", Model: "local-model", BaseURL: srv.URL + "/v1", APIKey: "secret"}
	cfg.ApplyDefaults()
	b := llm.NewLangchainBackend(&stubModel{}, cfg)

	assert.True(t, b.IsAvailable(context.Background()))
	models, err := b.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"local-model"}, models)
}
