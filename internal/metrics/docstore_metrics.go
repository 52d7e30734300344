package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/storefront/internal/docstore"
)

// DocstoreMetrics считает обращения к документному хранилищу.
type DocstoreMetrics struct {
	backend  string
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewDocstoreMetrics регистрирует метрики в default registry.
func NewDocstoreMetrics(backend string) *DocstoreMetrics {
	return NewDocstoreMetricsWithRegisterer(prometheus.DefaultRegisterer, backend)
}

// NewDocstoreMetricsWithRegisterer регистрирует метрики в registerer.
func NewDocstoreMetricsWithRegisterer(registerer prometheus.Registerer, backend string) *DocstoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &DocstoreMetrics{
		backend: backend,
		requests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_docstore_requests_total",
			Help: "Document store requests grouped by backend, operation, collection and result.",
		}, []string{"backend", "operation", "collection", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_docstore_request_duration_seconds",
			Help:    "Document store request latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"backend", "operation"}),
	}
}

// ObserveRequest реализует docstore.Observer.
func (m *DocstoreMetrics) ObserveRequest(operation, collection string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(m.backend, operation, collection, requestResult(err)).Inc()
	m.duration.WithLabelValues(m.backend, operation).Observe(duration.Seconds())
}

func requestResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, docstore.ErrNotFound):
		return "not_found"
	case errors.Is(err, docstore.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

var _ docstore.Observer = (*DocstoreMetrics)(nil)
