// Package metrics exposes Prometheus instrumentation for the relay: live
// connections, broadcast fan-out, and ignored inbound actions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "partyrelay"

// Relay holds the collectors updated by the registry, broadcaster and
// session loops.
type Relay struct {
	ActiveConnections prometheus.Gauge
	EventsBroadcast   *prometheus.CounterVec
	Deliveries        prometheus.Counter
	DeliveryFailures  prometheus.Counter
	IgnoredMessages   *prometheus.CounterVec
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves the metrics in reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NewRelay creates the relay collectors and registers them on reg.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of connections currently in the registry.",
		}),
		EventsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_total",
			Help:      "Total number of events broadcast, by event type.",
		}, []string{"type"}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "deliveries_total",
			Help:      "Total number of per-connection deliveries handed to a writer.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "delivery_failures_total",
			Help:      "Total number of per-connection deliveries that failed and dropped the connection.",
		}),
		IgnoredMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "ignored_messages_total",
			Help:      "Inbound messages that produced no event, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveConnections, m.EventsBroadcast, m.Deliveries, m.DeliveryFailures, m.IgnoredMessages)
	return m
}

// NewNopRelay returns collectors registered on a throwaway registry, for
// callers that do not export metrics.
func NewNopRelay() *Relay {
	return NewRelay(prometheus.NewRegistry())
}
