package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

// IdempotencyCleanupMetrics — метрики очистки ключей идемпотентности по драйверу.
type IdempotencyCleanupMetrics struct {
	runs        *prometheus.CounterVec
	deleted     *prometheus.CounterVec
	lastDeleted *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
}

// NewIdempotencyCleanupMetrics регистрирует метрики в default registry.
func NewIdempotencyCleanupMetrics() *IdempotencyCleanupMetrics {
	return NewIdempotencyCleanupMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewIdempotencyCleanupMetricsWithRegisterer регистрирует метрики в registerer.
func NewIdempotencyCleanupMetricsWithRegisterer(registerer prometheus.Registerer) *IdempotencyCleanupMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &IdempotencyCleanupMetrics{
		runs: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_runs_total",
			Help: "Idempotency cleanup runs grouped by driver and result.",
		}, []string{"driver", "result"}),
		deleted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_deleted_total",
			Help: "Expired idempotency keys removed, by driver.",
		}, []string{"driver"}),
		lastDeleted: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "storefront_idempotency_cleanup_last_deleted",
			Help: "Keys removed by the last successful cleanup run.",
		}, []string{"driver"}),
		lastSuccess: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "storefront_idempotency_cleanup_last_success_timestamp_seconds",
			Help: "Cutoff time of the last successful cleanup run.",
		}, []string{"driver"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_idempotency_cleanup_duration_seconds",
			Help:    "Idempotency cleanup run duration.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"driver"}),
	}
}

// ObserveCleanup реализует idempotency.CleanupObserver.
func (m *IdempotencyCleanupMetrics) ObserveCleanup(result idempotency.CleanupResult, err error) {
	if m == nil {
		return
	}
	// Частично выполненный проход тоже удалил ключи.
	if result.Deleted > 0 {
		m.deleted.WithLabelValues(result.Driver).Add(float64(result.Deleted))
	}
	m.duration.WithLabelValues(result.Driver).Observe(result.Duration.Seconds())
	if err != nil {
		m.runs.WithLabelValues(result.Driver, "error").Inc()
		return
	}
	m.runs.WithLabelValues(result.Driver, "ok").Inc()
	m.lastDeleted.WithLabelValues(result.Driver).Set(float64(result.Deleted))
	m.lastSuccess.WithLabelValues(result.Driver).Set(float64(result.Cutoff.Unix()))
}

var _ idempotency.CleanupObserver = (*IdempotencyCleanupMetrics)(nil)
