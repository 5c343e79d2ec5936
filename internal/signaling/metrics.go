package signaling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// channelAttempts counts channel invocations.
	// Labels: channel (realtime, voip, standard), result (delivered, not_applicable, failed)
	channelAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callme",
		Subsystem: "signaling",
		Name:      "channel_attempts_total",
		Help:      "Notification channel attempts by channel and result",
	}, []string{"channel", "result"})

	// callOutcomes counts resolved call requests.
	// Labels: result (delivered, unreachable), via (channel name, empty when unreachable)
	callOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callme",
		Subsystem: "signaling",
		Name:      "call_outcomes_total",
		Help:      "Resolved call requests by result and delivering channel",
	}, []string{"result", "via"})

	credentialInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callme",
		Subsystem: "signaling",
		Name:      "credential_invalidations_total",
		Help:      "Push credentials removed after a provider reported them dead",
	}, []string{"kind"})

	presenceEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "callme",
		Subsystem: "presence",
		Name:      "registered_users",
		Help:      "Users with a registered realtime connection",
	})
)
