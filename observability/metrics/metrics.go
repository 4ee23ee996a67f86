package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenOperations counts tokenizer calls by operation and result.
	TokenOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "token_operations_total",
		Help:      "Token issue/verify/rotate operations by result.",
	}, []string{"operation", "result"})

	// AuthenticationAttempts counts authentication outcomes by strategy.
	AuthenticationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "authentication_attempts_total",
		Help:      "Authentication attempts by strategy and result.",
	}, []string{"strategy", "result"})

	// Ceremonies counts WebAuthn ceremony phases by result.
	Ceremonies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "ceremonies_total",
		Help:      "WebAuthn ceremony phases by kind and result.",
	}, []string{"kind", "phase", "result"})
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Observe increments vec with result derived from err.
func Observe(vec *prometheus.CounterVec, err error, labels ...string) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	vec.WithLabelValues(append(labels, result)...).Inc()
}
