package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations.
	// Labels: operation, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"operation", "result"},
	)

	// OperationDuration tracks how long store operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RecordsTotal is the number of records in the active collection.
	RecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "records",
			Help:      "Number of records in the active collection",
		},
	)
)

// observe records the outcome of one operation.
func observe(operation string, start time.Time, err error) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		OperationsTotal.WithLabelValues(operation, "error").Inc()
		return
	}
	OperationsTotal.WithLabelValues(operation, "success").Inc()
}
