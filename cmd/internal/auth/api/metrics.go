package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts auth operation outcomes. Label values are bounded: op is
// one of register/login/refresh/logout, result one of ok/rejected/error.
type Metrics struct {
	attempts  *prometheus.CounterVec
	throttled prometheus.Counter
}

// NewMetrics registers auth counters on reg. A nil registerer yields nil
// Metrics, and all record methods are nil-safe.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flock",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Auth operations by operation and result.",
		}, []string{"op", "result"}),
		throttled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flock",
			Subsystem: "auth",
			Name:      "login_throttled_total",
			Help:      "Login attempts rejected by the failure throttle.",
		}),
	}
}

func (m *Metrics) record(op, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(op, result).Inc()
}

func (m *Metrics) recordThrottled() {
	if m == nil {
		return
	}
	m.throttled.Inc()
}
