package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/fyrsmithlabs/docrag/internal/http"

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// requestMetrics records per-request counters for the ops server. A nil
// instrument is skipped so a broken meter never fails a request.
type requestMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	bytes    metric.Int64Histogram
	inflight metric.Int64UpDownCounter
}

func newRequestMetrics(meter metric.Meter, logger *zap.Logger) *requestMetrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create http instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &requestMetrics{}
	var err error
	m.requests, err = meter.Int64Counter("docrag.http.requests_total",
		metric.WithDescription("Ops server requests by method, route and status"),
		metric.WithUnit("{request}"))
	warn("requests_total", err)

	m.latency, err = meter.Float64Histogram("docrag.http.request_duration_seconds",
		metric.WithDescription("Ops server request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))
	warn("request_duration_seconds", err)

	m.bytes, err = meter.Int64Histogram("docrag.http.response_size_bytes",
		metric.WithDescription("Ops server response body size"),
		metric.WithUnit("By"))
	warn("response_size_bytes", err)

	m.inflight, err = meter.Int64UpDownCounter("docrag.http.active_requests",
		metric.WithDescription("Ops server requests currently being served"),
		metric.WithUnit("{request}"))
	warn("active_requests", err)

	return m
}

// middleware records one data point per request once the handler returns.
func (m *requestMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inflight != nil {
				m.inflight.Add(ctx, 1)
				defer m.inflight.Add(ctx, -1)
			}

			err := next(c)

			opt := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", routeLabel(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, opt)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), opt)
			}
			if m.bytes != nil {
				m.bytes.Record(ctx, c.Response().Size, opt)
			}
			return err
		}
	}
}

// routeLabel maps unmatched requests to a single label so unknown URLs
// cannot grow the label set. All registered routes are static.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
