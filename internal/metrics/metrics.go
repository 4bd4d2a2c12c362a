// Package metrics exposes the server's operational counters over
// Prometheus via github.com/prometheus/client_golang.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the collectors the broker updates as it accepts
// connections and routes messages. Metrics are observation-only: they never
// inspect or influence routing decisions.
type Registry struct {
	reg *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	HandshakeFailures   prometheus.Counter
	LiveHubs            prometheus.Gauge
	MessagesRouted      prometheus.Counter
	SlowSubscriberEvict prometheus.Counter
}

// New constructs a Registry with all collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "selium",
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "Total QUIC connections accepted.",
		}),
		HandshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "selium",
			Subsystem: "server",
			Name:      "handshake_failures_total",
			Help:      "Total substreams that failed the session handshake.",
		}),
		LiveHubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "selium",
			Subsystem: "broker",
			Name:      "live_hubs",
			Help:      "Current number of topics with at least one attached publisher or subscriber.",
		}),
		MessagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "selium",
			Subsystem: "broker",
			Name:      "messages_routed_total",
			Help:      "Total Message frames queued for delivery to a subscriber.",
		}),
		SlowSubscriberEvict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "selium",
			Subsystem: "broker",
			Name:      "slow_subscriber_evictions_total",
			Help:      "Total subscribers evicted for failing to drain within the per-send timeout.",
		}),
	}

	reg.MustRegister(
		r.ConnectionsAccepted,
		r.HandshakeFailures,
		r.LiveHubs,
		r.MessagesRouted,
		r.SlowSubscriberEvict,
	)
	return r
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
