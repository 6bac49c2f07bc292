// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_rooms",
		Help: "Rooms created since process start.",
	})
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_connections",
		Help: "Live member connections across all rooms.",
	})
	ControlTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_control_total",
		Help: "Host control actions by action and result.",
	}, []string{"action", "result"})
	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_broadcast_failures_total",
		Help: "Sends that failed during fan-out and evicted the member.",
	})
	LivenessDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_liveness_drops_total",
		Help: "Members dropped by the liveness sweep.",
	})
	ProtocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_protocol_errors_total",
		Help: "Error frames sent to clients by code.",
	}, []string{"code"})
	HandshakeRejects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_handshake_rejects_total",
		Help: "Websocket upgrades refused by the per-address limiter.",
	})
)
