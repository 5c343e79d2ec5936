package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "callme",
		Subsystem: "gateway",
		Name:      "connections",
		Help:      "Open websocket connections",
	})

	// inboundEvents counts client frames.
	// Labels: type (event name), result (ok, rejected, rate_limited)
	inboundEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callme",
		Subsystem: "gateway",
		Name:      "inbound_events_total",
		Help:      "Inbound websocket events by type and result",
	}, []string{"type", "result"})
)
