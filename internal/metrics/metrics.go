// Package metrics wires the flow bus's operational counters into a
// Prometheus registry, following the provider-wrapper shape used by the
// pack's ariadne telemetry package but trimmed to the handful of series a
// single embedded node needs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the node's Prometheus series. Only FlowsRegistered and
// ClientSessions are updated, by flowbus.Handle; the router, registry and
// recorders do not update any of them.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	FlowsRegistered   prometheus.Gauge
	EventsApplied     *prometheus.CounterVec
	BatchesDelivered  *prometheus.CounterVec
	BatchesDropped    *prometheus.CounterVec
	SubscribersActive prometheus.Gauge
	ProviderSessions  prometheus.Gauge
	ClientSessions    prometheus.Gauge
}

// New constructs a Metrics bundle registered against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		FlowsRegistered: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "flowbus_flows_registered",
			Help: "Number of flows currently present in the registry.",
		}),
		EventsApplied: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "flowbus_events_applied_total",
			Help: "Total events applied to a recorder's state, by stream type.",
		}, []string{"stream_type"}),
		BatchesDelivered: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "flowbus_delta_batches_delivered_total",
			Help: "Total delta batches delivered to subscribers, by stream type.",
		}, []string{"stream_type"}),
		BatchesDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "flowbus_delta_batches_dropped_total",
			Help: "Total delta batches dropped due to subscriber backpressure overflow.",
		}, []string{"stream_type"}),
		SubscribersActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "flowbus_subscribers_active",
			Help: "Current number of active recorder subscriptions.",
		}),
		ProviderSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "flowbus_provider_sessions",
			Help: "Current number of connected provider sessions.",
		}),
		ClientSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "flowbus_client_sessions",
			Help: "Current number of connected dashboard client sessions.",
		}),
	}
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler returns the HTTP handler serving this bundle's /metrics text.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}
