package http

import "github.com/fyrsmithlabs/docrag/internal/ingestion"

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	ingestion.Stats
	CacheHitRate float64 `json:"cache_hit_rate"`
}
