package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

type stubStats struct {
	stats *ingestion.Stats
	err   error
}

func (s *stubStats) Stats(context.Context) (*ingestion.Stats, error) {
	return s.stats, s.err
}

func testStats() *ingestion.Stats {
	return &ingestion.Stats{
		Store: vectorstore.Stats{
			Name:       "documents",
			Collection: "documents_minilm",
			Count:      12,
			Dimension:  384,
			Model:      "all-MiniLM-L6-v2",
		},
		Cache:        &embeddings.CacheStats{Hits: 1, Misses: 3, Size: 4},
		ChunkSize:    500,
		ChunkOverlap: 50,
		Extensions:   []string{".md", ".txt"},
	}
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{
			Host: "localhost",
			Port: 9090,
		}

		server, err := NewServer(&stubStats{}, nil, zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
		assert.Equal(t, 5*time.Second, server.config.CheckTimeout)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&stubStats{}, nil, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost:9090", server.Addr())
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&stubStats{}, nil, nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when stats source is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, zap.NewNop(), nil)
		assert.ErrorContains(t, err, "stats source cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("all components healthy", func(t *testing.T) {
		checks := map[string]HealthCheck{
			"llm":       func(context.Context) error { return nil },
			"telemetry": func(context.Context) error { return nil },
		}
		server, err := NewServer(&stubStats{}, checks, zap.NewNop(), nil)
		require.NoError(t, err)

		rec := serve(server, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, map[string]string{"llm": "ok", "telemetry": "ok"}, resp.Components)
	})

	t.Run("unhealthy component degrades status", func(t *testing.T) {
		checks := map[string]HealthCheck{
			"llm":       func(context.Context) error { return errors.New("ollama not reachable") },
			"telemetry": func(context.Context) error { return nil },
		}
		server, err := NewServer(&stubStats{}, checks, zap.NewNop(), nil)
		require.NoError(t, err)

		rec := serve(server, http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, StatusDegraded, resp.Status)
		assert.Equal(t, "ollama not reachable", resp.Components["llm"])
	})

	t.Run("checks are bounded by timeout", func(t *testing.T) {
		checks := map[string]HealthCheck{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}
		server, err := NewServer(&stubStats{}, checks, zap.NewNop(), &Config{CheckTimeout: 10 * time.Millisecond})
		require.NoError(t, err)

		rec := serve(server, http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleStats(t *testing.T) {
	t.Run("returns index stats", func(t *testing.T) {
		server, err := NewServer(&stubStats{stats: testStats()}, nil, zap.NewNop(), nil)
		require.NoError(t, err)

		rec := serve(server, http.MethodGet, "/api/v1/stats")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp StatsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 12, resp.Store.Count)
		assert.Equal(t, "documents_minilm", resp.Store.Collection)
		assert.Equal(t, 500, resp.ChunkSize)
		assert.InDelta(t, 0.25, resp.CacheHitRate, 1e-9)
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		server, err := NewServer(&stubStats{err: errors.New("closed")}, nil, zap.NewNop(), nil)
		require.NoError(t, err)

		rec := serve(server, http.MethodGet, "/api/v1/stats")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleMetrics(t *testing.T) {
	server, err := NewServer(&stubStats{}, nil, zap.NewNop(), nil)
	require.NoError(t, err)

	rec := serve(server, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServerLifecycle(t *testing.T) {
	t.Run("starts and shuts down gracefully", func(t *testing.T) {
		cfg := &Config{
			Host: "localhost",
			Port: 0, // Use random available port
		}

		server, err := NewServer(&stubStats{}, nil, zap.NewNop(), cfg)
		require.NoError(t, err)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		// Give server time to start
		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		assert.NoError(t, server.Shutdown(ctx))

		select {
		case err := <-errChan:
			assert.NoError(t, err)
		case <-time.After(6 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server, err := NewServer(&stubStats{}, nil, zap.NewNop(), nil)
		require.NoError(t, err)

		rec := serve(server, http.MethodGet, "/health")
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server, err := NewServer(&stubStats{}, nil, zap.NewNop(), nil)
		require.NoError(t, err)

		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		var rec *httptest.ResponseRecorder
		assert.NotPanics(t, func() {
			rec = serve(server, http.MethodGet, "/panic")
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}
