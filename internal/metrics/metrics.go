package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты для auth_login_total / auth_register_total
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

type Metrics struct {
	// Traffic: попытки входа по исходу
	LoginTotal *prometheus.CounterVec

	// Traffic: попытки регистрации по исходу
	RegisterTotal *prometheus.CounterVec

	// Исходы Request Gate (no_header, bad_token, authenticated, ...)
	GateOutcomes *prometheus.CounterVec

	// Latency: bcrypt намеренно медленный, следим за cost factor
	PasswordHashDuration prometheus.Histogram

	// Saturation: состояние Circuit Breaker кэша (0 - ок, 1 - выбило)
	CacheBreakerState prometheus.Gauge

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		LoginTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Total number of login attempts by result.",
		}, []string{"result"}),

		RegisterTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_register_total",
			Help: "Total number of registration attempts by result.",
		}, []string{"result"}),

		GateOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "auth_gate_outcomes_total",
			Help: "Request gate outcomes.",
		}, []string{"outcome"}),

		PasswordHashDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "auth_password_hash_seconds",
			Help:    "Histogram of bcrypt hash and verify latencies.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),

		CacheBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "auth_identity_cache_breaker_state",
			Help: "Current state of the identity cache circuit breaker (0=closed, 1=open).",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "auth_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}

// ObserveGate - наблюдатель для auth.WithOutcomeObserver
func (m *Metrics) ObserveGate(outcome string) {
	m.GateOutcomes.WithLabelValues(outcome).Inc()
}
