// Package metrics defines the Prometheus metrics exported by the account service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gigauth"

// AuthOperationsTotal counts lifecycle operations handled over HTTP.
// Labels:
//   - operation: register, login, get_user, logout, update_profile
//   - outcome: success, invalid_input, conflict, unauthorized, not_found, internal
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Total number of account lifecycle operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// TokensSweptTotal counts expired tokens removed by the background sweeper.
var TokensSweptTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_swept_total",
		Help:      "Total number of expired session tokens removed by the sweeper.",
	},
)

// AccountEventsConsumedTotal counts account events read back from the queue.
var AccountEventsConsumedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_events_consumed_total",
		Help:      "Total number of account events consumed, by event type.",
	},
	[]string{"type"},
)
