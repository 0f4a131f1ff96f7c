// Package metrics holds the Prometheus collectors of the signaling server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rendezvous"

type Metrics struct {
	Registry *prometheus.Registry

	LiveSessions        prometheus.Gauge
	Messages            *prometheus.CounterVec
	LocalCandidates     prometheus.Counter
	SessionsCreated     prometheus.Counter
	SessionsTornDown    *prometheus.CounterVec
	IDExhaustion        prometheus.Counter
	NegotiationFailures prometheus.Counter
}

// New builds collectors on a private registry so several instances can
// coexist in one process (tests).
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Peer sessions currently registered with the coordinator.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Coordinator messages processed, by type.",
		}, []string{"type"}),
		LocalCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_candidates_total",
			Help:      "Local ICE candidates buffered for delivery.",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions registered after a successful negotiation.",
		}),
		SessionsTornDown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_torn_down_total",
			Help:      "Sessions removed, by reason.",
		}, []string{"reason"}),
		IDExhaustion: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "id_exhaustion_total",
			Help:      "Session id allocations that ran out of attempts.",
		}),
		NegotiationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiation_failures_total",
			Help:      "Offers the engine rejected.",
		}),
	}
	m.Registry.MustRegister(
		m.LiveSessions,
		m.Messages,
		m.LocalCandidates,
		m.SessionsCreated,
		m.SessionsTornDown,
		m.IDExhaustion,
		m.NegotiationFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
