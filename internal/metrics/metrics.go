// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsTotal counts persisted records by outcome: inserted, duplicate, error, skipped.
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquida_import_records_total",
		Help: "Records submitted for persistence, by outcome",
	}, []string{"outcome"})

	// BatchesTotal counts batches by mode: bulk when the bulk insert
	// succeeded, fallback when records were retried one by one.
	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquida_import_batches_total",
		Help: "Persistence batches, by insert mode",
	}, []string{"mode"})

	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquida_imports_total",
		Help: "Completed imports, by terminal status",
	}, []string{"status"})

	BatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liquida_import_batch_duration_seconds",
		Help:    "Time to persist one batch, including fallback",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// QueriesTotal counts transaction queries by path: server or refine.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquida_queries_total",
		Help: "Transaction queries, by execution path",
	}, []string{"path"})

	// RefineTruncatedTotal counts refinements computed over a capped sample.
	RefineTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liquida_query_refine_truncated_total",
		Help: "Time-of-day refinements whose fetch hit the row cap",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquida_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liquida_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)
