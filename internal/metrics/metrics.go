// Package metrics exposes Prometheus instruments for form submissions and the
// preview server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for the submissions counter.
const (
	OutcomeSubmitted    = "submitted"
	OutcomeAPIError     = "api_error"
	OutcomeNetworkError = "network_error"
	OutcomeInvalid      = "invalid"
	OutcomeRejected     = "rejected"
)

const namespace = "contactform"

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics holds the registered collectors.
type Metrics struct {
	Submissions      *prometheus.CounterVec
	SubmitDuration   prometheus.Histogram
	WebSocketClients prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a fresh private
// registry, which keeps tests independent of the global default.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submit attempts by outcome",
		}, []string{"outcome"}),

		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Time spent waiting for the endpoint to respond",
			Buckets:   prometheus.DefBuckets,
		}),

		WebSocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected preview websocket clients",
		}),
	}

	for _, outcome := range []string{OutcomeSubmitted, OutcomeAPIError, OutcomeNetworkError, OutcomeInvalid, OutcomeRejected} {
		m.Submissions.WithLabelValues(outcome)
	}

	return m
}

// ObserveSubmit records one finished attempt. A nil receiver is a no-op so
// callers do not need to guard optional metrics.
func (m *Metrics) ObserveSubmit(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
	if took > 0 {
		m.SubmitDuration.Observe(took.Seconds())
	}
}

// ClientConnected adjusts the websocket gauge by delta.
func (m *Metrics) ClientConnected(delta int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Add(float64(delta))
}
