package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

func sumByName(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return out
}

func TestToolMetrics_Begin(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newToolMetrics(mp.Meter(meterName), nil)
	ctx := context.Background()

	m.begin(ctx, toolQuery)(nil)
	m.begin(ctx, toolQuery)(fmt.Errorf("%w: question is required", ErrInvalidArgument))

	got := sumByName(t, reader)
	assert.Equal(t, int64(2), got["docrag.mcp.tool.invocations_total"])
	assert.Equal(t, int64(2), got["docrag.mcp.tool.duration_seconds"])
	assert.Equal(t, int64(1), got["docrag.mcp.tool.errors_total"])
	assert.Zero(t, got["docrag.mcp.tool.active_requests"])
}

func TestToolMetrics_InFlight(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newToolMetrics(mp.Meter(meterName), nil)
	ctx := context.Background()

	first := m.begin(ctx, toolIngest)
	m.begin(ctx, toolIngest)
	first(nil)

	got := sumByName(t, reader)
	assert.Equal(t, int64(1), got["docrag.mcp.tool.active_requests"])
	assert.Equal(t, int64(1), got["docrag.mcp.tool.invocations_total"])
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"invalid argument", fmt.Errorf("%w: path is required", ErrInvalidArgument), "validation_error"},
		{"invalid filter", vectorstore.ErrInvalidFilter, "validation_error"},
		{"unsupported format", fmt.Errorf("%w: \".bin\"", ingestion.ErrUnsupportedFormat), "validation_error"},
		{"generation timeout", &llm.GenerationError{Provider: "ollama", Err: llm.ErrGenerationTimeout}, "timeout"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"generation failed", &llm.GenerationError{Provider: "ollama", Err: llm.ErrGenerationFailed}, "llm_error"},
		{"retrieval failed", fmt.Errorf("%w: boom", retrieval.ErrRetrievalFailed), "storage_error"},
		{"embedding failed", fmt.Errorf("%w: boom", embeddings.ErrEmbeddingFailed), "storage_error"},
		{"missing file", fmt.Errorf("stat x: %w", os.ErrNotExist), "ingest_error"},
		{"timeout text", errors.New("dial tcp: i/o timeout"), "timeout"},
		{"generic error", errors.New("something went wrong"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, categorizeError(tt.err))
		})
	}
}
