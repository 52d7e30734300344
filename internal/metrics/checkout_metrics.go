package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы оформления заказа (лейбл outcome).
const (
	OutcomeCreated           = "created"
	OutcomeInvalid           = "invalid"
	OutcomeNoInventory       = "no_inventory"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeFailed            = "failed"
	// OutcomePartial — заказ создан, но часть позиций или списаний не выполнена.
	OutcomePartial = "partial"
)

// CheckoutMetrics содержит метрики оформления заказов.
// Все методы безопасно вызывать на nil.
type CheckoutMetrics struct {
	checkouts *prometheus.CounterVec
	inFlight  prometheus.Gauge

	checkoutDuration prometheus.Histogram
	phaseDuration    *prometheus.HistogramVec

	stockDecrements    prometheus.Counter
	decrementsSkipped  prometheus.Counter
	statusChanges      *prometheus.CounterVec
	outboxEnqueued     prometheus.Counter
	outboxEnqueueFails prometheus.Counter
}

// NewCheckoutMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в указанном реестре.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		checkouts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Total number of checkout attempts by outcome",
		}, []string{"outcome"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_checkouts_in_flight",
			Help: "Number of checkouts currently being processed",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		phaseDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_phase_duration_seconds",
			Help:    "Duration of individual checkout phases in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"phase"}),
		stockDecrements: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_decrements_total",
			Help: "Total number of inventory decrements applied by checkouts",
		}),
		decrementsSkipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_decrements_skipped_total",
			Help: "Total number of decrements skipped because the inventory record disappeared",
		}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_changes_total",
			Help: "Total number of order status changes by target status",
		}, []string{"status"}),
		outboxEnqueued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_enqueued_total",
			Help: "Total number of order events written to the outbox",
		}),
		outboxEnqueueFails: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_enqueue_failures_total",
			Help: "Total number of order events that could not be written to the outbox",
		}),
	}
}

// CheckoutStarted отмечает начало оформления.
func (m *CheckoutMetrics) CheckoutStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// CheckoutFinished фиксирует исход и длительность оформления.
func (m *CheckoutMetrics) CheckoutFinished(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.checkouts.WithLabelValues(outcome).Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordPhaseDuration записывает длительность фазы оформления.
func (m *CheckoutMetrics) RecordPhaseDuration(phase string, duration time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordStockDecrement увеличивает счётчик списаний остатков.
func (m *CheckoutMetrics) RecordStockDecrement() {
	if m == nil {
		return
	}
	m.stockDecrements.Inc()
}

// RecordDecrementSkipped увеличивает счётчик пропущенных списаний.
func (m *CheckoutMetrics) RecordDecrementSkipped() {
	if m == nil {
		return
	}
	m.decrementsSkipped.Inc()
}

// RecordStatusChange увеличивает счётчик смен статуса.
func (m *CheckoutMetrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordOutboxEnqueue фиксирует результат записи события в outbox.
func (m *CheckoutMetrics) RecordOutboxEnqueue(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.outboxEnqueueFails.Inc()
		return
	}
	m.outboxEnqueued.Inc()
}
