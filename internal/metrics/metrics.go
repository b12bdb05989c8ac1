// Package metrics exposes Prometheus instruments for the chat hub.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wirechat"

// Metrics groups the hub and persistence instruments.
type Metrics struct {
	registry *prometheus.Registry

	activeConnections  prometheus.Gauge
	messagesTotal      prometheus.Counter
	clearsTotal        prometheus.Counter
	admissionsRejected prometheus.Counter
	evictionsTotal     prometheus.Counter
	persistFailures    prometheus.Counter
	persistWrites      prometheus.Counter
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of admitted WebSocket connections.",
		}),
		messagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Chat messages appended to the log.",
		}),
		clearsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clears_total",
			Help:      "Admin clears of the message log.",
		}),
		admissionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_rejected_total",
			Help:      "Connection attempts rejected for an unknown session.",
		}),
		evictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumer_evictions_total",
			Help:      "Connections closed because their outbound queue was full.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed writes of the message log snapshot.",
		}),
		persistWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_writes_total",
			Help:      "Successful writes of the message log snapshot.",
		}),
	}
	reg.MustRegister(
		m.activeConnections,
		m.messagesTotal,
		m.clearsTotal,
		m.admissionsRejected,
		m.evictionsTotal,
		m.persistFailures,
		m.persistWrites,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(n))
}

func (m *Metrics) MessageAppended() {
	if m == nil {
		return
	}
	m.messagesTotal.Inc()
}

func (m *Metrics) LogCleared() {
	if m == nil {
		return
	}
	m.clearsTotal.Inc()
}

func (m *Metrics) AdmissionRejected() {
	if m == nil {
		return
	}
	m.admissionsRejected.Inc()
}

func (m *Metrics) ConnectionEvicted() {
	if m == nil {
		return
	}
	m.evictionsTotal.Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) PersistSucceeded() {
	if m == nil {
		return
	}
	m.persistWrites.Inc()
}
