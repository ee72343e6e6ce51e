package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the serving instruments. Each server owns its registry so
// tests can build several servers in one process.
type Metrics struct {
	registry *prometheus.Registry

	predictions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     prometheus.Histogram
	wsClients   prometheus.Gauge
}

// NewMetrics creates and registers the serving instruments
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_predictions_total",
				Help: "Predictions served, by predicted threat type",
			},
			[]string{"threat_type", "model"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_prediction_failures_total",
				Help: "Rejected prediction requests, by reason",
			},
			[]string{"reason"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_prediction_duration_seconds",
			Help:    "Time spent transforming and classifying one record",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_websocket_clients",
			Help: "Connected prediction stream clients",
		}),
	}
	m.registry.MustRegister(
		m.predictions,
		m.failures,
		m.latency,
		m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
