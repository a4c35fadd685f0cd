package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestRequestMetrics_Middleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newRequestMetrics(mp.Meter(meterName), nil)

	e := echo.New()
	e.Use(m.middleware())
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/api/v1/stats", func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]int{"documents": 1}) })

	for _, path := range []string{"/health", "/api/v1/stats", "/nope"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := collect(t, reader)

	requests, ok := got["docrag.http.requests_total"].(metricdata.Sum[int64])
	require.True(t, ok, "requests counter missing")
	endpoints := map[string]int64{}
	for _, dp := range requests.DataPoints {
		v, _ := dp.Attributes.Value("endpoint")
		endpoints[v.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"/health": 1, "/api/v1/stats": 1, "unmatched": 1}, endpoints)

	latency, ok := got["docrag.http.request_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok, "latency histogram missing")
	var count uint64
	for _, dp := range latency.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	assert.Contains(t, got, "docrag.http.response_size_bytes")

	inflight, ok := got["docrag.http.active_requests"].(metricdata.Sum[int64])
	require.True(t, ok, "active requests missing")
	for _, dp := range inflight.DataPoints {
		assert.Zero(t, dp.Value)
	}
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/health", routeLabel("/health"))
	assert.Equal(t, "/api/v1/stats", routeLabel("/api/v1/stats"))
}
