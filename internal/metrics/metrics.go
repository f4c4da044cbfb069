// Package metrics holds the Prometheus instruments shared by both services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "duunikanban"

// Metrics holds all service counters. Each instance owns its registry so
// tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion
	RecordsIngested *prometheus.CounterVec // by region, outcome
	SourceRuns      *prometheus.CounterVec // by source, result
	SourceDuration  *prometheus.HistogramVec
	RecordsFiltered *prometheus.CounterVec // by source, reason

	// Tracker
	HistoryAppends *prometheus.CounterVec // by state
	HTTPRequests   *prometheus.CounterVec // by route, code
}

// New registers every instrument on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Records processed by the reconciler, by region and outcome.",
		}, []string{"region", "outcome"}),
		SourceRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_runs_total",
			Help:      "Discovery source runs, by source and result.",
		}, []string{"source", "result"}),
		SourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_run_duration_seconds",
			Help:      "Wall time of one discovery source run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		RecordsFiltered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_filtered_total",
			Help:      "Fetched postings dropped by eligibility filters, by source and reason.",
		}, []string{"source", "reason"}),
		HistoryAppends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_appends_total",
			Help:      "State history entries written through the API, by state.",
		}, []string{"state"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Tracker API requests, by route and status code.",
		}, []string{"route", "code"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
