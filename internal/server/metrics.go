package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors the server reports on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	IndexBuilds     *prometheus.CounterVec
	IndexBuildTime  *prometheus.HistogramVec
	IndexStations   *prometheus.GaugeVec
}

// NewMetrics registers every collector on a fresh registry so several
// servers can live in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationreach_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stationreach_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"route"}),
		IndexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationreach_index_builds_total",
			Help: "Station index builds by dataset and outcome.",
		}, []string{"dataset", "outcome"}),
		IndexBuildTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stationreach_index_build_seconds",
			Help:    "Time to load stations and build the index.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"dataset"}),
		IndexStations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stationreach_index_stations",
			Help: "Stations held by each built index.",
		}, []string{"dataset"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.IndexBuilds,
		m.IndexBuildTime,
		m.IndexStations,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
