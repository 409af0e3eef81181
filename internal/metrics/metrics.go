package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// Retention
	RetentionRuns    *prometheus.CounterVec
	RetentionDeleted *prometheus.CounterVec

	// Insights
	InsightLookups   *prometheus.CounterVec
	InsightFallbacks *prometheus.CounterVec
	InsightPersist   *prometheus.CounterVec
	GeneratorLatency prometheus.Histogram

	// Chat
	ChatRequests *prometheus.CounterVec

	// Routes
	RouteRequests  *prometheus.CounterVec
	GeocodeLookups *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RetentionRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unfold_retention_runs_total",
			Help: "Retention evaluations by trigger and outcome",
		}, []string{"trigger", "outcome"}), // trigger: "append" or "sweep"

		RetentionDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unfold_retention_deleted_records_total",
			Help: "Records purged by the retention engine, by policy period",
		}, []string{"period"}),

		InsightLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unfold_insight_lookups_total",
			Help: "Insight cache lookups by category and result (hit/miss)",
		}, []string{"category", "result"}),

		InsightFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unfold_insight_fallbacks_total",
			Help: "Insights replaced by the default result, by reason",
		}, []string{"reason"}), // "generator" or "parse"

		InsightPersist: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unfold_insight_persist_total",
			Help: "Insight cache writes by outcome",
		}, []string{"outcome"}), // "stored", "conflict", "error"

		GeneratorLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "unfold_generator_duration_seconds",
			Help:    "Latency of external generator calls",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		ChatRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unfold_chat_requests_total",
			Help: "Chat requests by status",
		}, []string{"status"}),

		RouteRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unfold_route_requests_total",
			Help: "Route planning requests by outcome",
		}, []string{"outcome"}), // "ok", "invalid", "upstream", "error"

		GeocodeLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "unfold_geocode_lookups_total",
			Help: "Place lookups by source",
		}, []string{"source"}), // "cache", "nominatim", "not_found"
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
