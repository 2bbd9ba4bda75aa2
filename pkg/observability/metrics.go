// Package observability provides Prometheus metrics for granola-mcp.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/granola-mcp/pkg/buildinfo"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	// Tool surface
	ToolCallsTotal *prometheus.CounterVec
	ToolSeconds    *prometheus.HistogramVec

	// Search engine
	SearchesTotal *prometheus.CounterVec

	// Classification
	ClassificationsTotal     *prometheus.CounterVec
	ClassificationQueueDepth prometheus.Gauge

	// Calendar boundary
	CalendarRequestsTotal *prometheus.CounterVec
}

// Default creates metrics on the default registerer.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New creates a new set of server metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ToolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granola_tool_calls_total",
				Help: "Total tool invocations by tool name and outcome",
			},
			[]string{"tool", "status"},
		),
		ToolSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "granola_tool_seconds",
				Help:    "Tool call latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"tool"},
		),
		SearchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granola_searches_total",
				Help: "Search resolutions by kind (date, keyword) and whether the recency fallback fired",
			},
			[]string{"kind", "fallback"},
		),
		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granola_classifications_total",
				Help: "Classification resolutions by tier and outcome",
			},
			[]string{"tier", "status"},
		),
		ClassificationQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "granola_classification_queue_depth",
				Help: "Meetings waiting in the background classification queue",
			},
		),
		CalendarRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granola_calendar_requests_total",
				Help: "Calendar adapter requests by outcome",
			},
			[]string{"status"},
		),
	}
}

// Handler returns the HTTP mux served on the optional metrics listener:
// /metrics plus /buildinfo.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/buildinfo", buildinfo.Handler("granola-mcp"))
	return mux
}
