// Package metrics defines the Prometheus gauges the admin plane
// exposes on /metrics, grounded on the fxtun-style pack repos that
// wire prometheus/client_golang directly into their status surface.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tunnelbroker",
		Name:      "online_tunnel_users",
		Help:      "Number of tunnel users currently holding an open control connection.",
	})

	PendingSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tunnelbroker",
		Name:      "pending_sessions",
		Help:      "Number of external connections awaiting a client dial-back.",
	})

	ActiveListeners = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tunnelbroker",
		Name:      "active_tunnel_listeners",
		Help:      "Number of bound public tunnel-listener ports across all online users.",
	})
)

func init() {
	prometheus.MustRegister(OnlineUsers, PendingSessions, ActiveListeners)
}
