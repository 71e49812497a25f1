// Package metrics holds the Prometheus instruments for the graph engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionWrites counts store mutations, labeled by operation
	// ("created", "merged", "updated", "deleted").
	ConnectionWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtgraph_connection_writes_total",
			Help: "Connection store mutations by operation",
		},
		[]string{"op"},
	)

	// StoreErrors counts backend failures surfaced to callers
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtgraph_store_errors_total",
			Help: "Connection backend errors by backend and operation",
		},
		[]string{"backend", "op"},
	)

	// GraphSize tracks the most recent projection
	GraphSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thoughtgraph_graph_elements",
			Help: "Nodes and links in the latest projection",
		},
		[]string{"element"},
	)

	// LayoutTicks counts simulation ticks
	LayoutTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thoughtgraph_layout_ticks_total",
			Help: "Force layout simulation ticks",
		},
	)

	// LayoutRunning is 1 while a simulation is advancing
	LayoutRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thoughtgraph_layout_running",
			Help: "Whether a layout simulation is currently advancing",
		},
	)

	// AnalysisRuns counts explicit pattern and suggestion runs
	AnalysisRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thoughtgraph_analysis_runs_total",
			Help: "Pattern and suggestion analysis runs",
		},
		[]string{"kind"},
	)

	// HTTPRequestDuration measures API response time
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thoughtgraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "status"},
	)
)
