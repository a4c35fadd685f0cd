package mcp

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const meterName = "github.com/fyrsmithlabs/docrag/internal/mcp"

// toolMetrics tracks tool calls. Instruments that failed to register are nil
// and silently skipped.
type toolMetrics struct {
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
	failures metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

func newToolMetrics(meter metric.Meter, logger *zap.Logger) *toolMetrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create mcp instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &toolMetrics{}
	var err error
	m.calls, err = meter.Int64Counter("docrag.mcp.tool.invocations_total",
		metric.WithDescription("Tool calls by tool name"),
		metric.WithUnit("{invocation}"))
	warn("invocations_total", err)

	// Query calls include generation, so the buckets reach further than the
	// HTTP ones.
	m.latency, err = meter.Float64Histogram("docrag.mcp.tool.duration_seconds",
		metric.WithDescription("Tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60))
	warn("duration_seconds", err)

	m.failures, err = meter.Int64Counter("docrag.mcp.tool.errors_total",
		metric.WithDescription("Failed tool calls by tool name and reason"),
		metric.WithUnit("{error}"))
	warn("errors_total", err)

	m.inflight, err = meter.Int64UpDownCounter("docrag.mcp.tool.active_requests",
		metric.WithDescription("Tool calls currently running"),
		metric.WithUnit("{request}"))
	warn("active_requests", err)

	return m
}

// begin marks a tool call as in flight. The returned function must be called
// exactly once with the call's outcome.
func (m *toolMetrics) begin(ctx context.Context, tool string) func(err error) {
	start := time.Now()
	opt := metric.WithAttributes(attribute.String("tool", tool))
	if m.inflight != nil {
		m.inflight.Add(ctx, 1, opt)
	}

	return func(err error) {
		if m.inflight != nil {
			m.inflight.Add(ctx, -1, opt)
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, opt)
		}
		if m.latency != nil {
			m.latency.Record(ctx, time.Since(start).Seconds(), opt)
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", categorizeError(err))))
		}
	}
}

// categorizeError maps an error to a low-cardinality reason label.
func categorizeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, vectorstore.ErrInvalidFilter),
		errors.Is(err, vectorstore.ErrInvalidTopK),
		errors.Is(err, ingestion.ErrUnsupportedFormat):
		return "validation_error"
	case errors.Is(err, llm.ErrGenerationTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, llm.ErrGenerationFailed):
		return "llm_error"
	case errors.Is(err, retrieval.ErrRetrievalFailed),
		errors.Is(err, vectorstore.ErrVectorStore),
		errors.Is(err, embeddings.ErrEmbeddingFailed),
		errors.Is(err, vectorstore.ErrEmbeddingFailed):
		return "storage_error"
	case errors.Is(err, ingestion.ErrParseFailed),
		errors.Is(err, os.ErrNotExist):
		return "ingest_error"
	}

	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return "timeout"
	}
	return "internal_error"
}
