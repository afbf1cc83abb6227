// Package metrics provides Prometheus metrics for the assistant.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "medassist"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	ChatExchanges   *prometheus.CounterVec
	SentinelHits    prometheus.Counter
	ReportsAnalyzed *prometheus.CounterVec
	ModelLatency    *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
}

// DefaultMetrics is registered with the default Prometheus registry.
var DefaultMetrics = New(prometheus.DefaultRegisterer)

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChatExchanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_exchanges_total",
			Help:      "Total number of prompts sent to the model",
		}, []string{"outcome"}),
		SentinelHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentinel_inputs_total",
			Help:      "Chat messages answered with the farewell without calling the model",
		}),
		ReportsAnalyzed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_analyzed_total",
			Help:      "Uploaded reports by extraction strategy",
		}, []string{"strategy"}),
		ModelLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_seconds",
			Help:      "Latency of calls to the generative model",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Conversations currently held in memory",
		}),
	}
}

// RecordExchange records the outcome of one model exchange.
func (m *Metrics) RecordExchange(provider string, seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ChatExchanges.WithLabelValues(outcome).Inc()
	m.ModelLatency.WithLabelValues(provider).Observe(seconds)
}
