package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for factory calls. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	validationErrors *prometheus.CounterVec
	documentsIndexed *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmfactory_requests_total",
			Help: "Completion and embedding calls by provider and outcome.",
		}, []string{"kind", "provider", "model", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmfactory_request_duration_seconds",
			Help:    "Latency of completion and embedding calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind", "provider", "model"}),
		validationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmfactory_validation_failures_total",
			Help: "Completions that never matched their response model.",
		}, []string{"provider", "model"}),
		documentsIndexed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmfactory_documents_indexed_total",
			Help: "Documents embedded and written to the vector store.",
		}, []string{"backend"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRequest records one call of the given kind ("completion" or "embedding").
func (m *Metrics) ObserveRequest(kind, provider, model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, provider, model, status(err)).Inc()
	m.duration.WithLabelValues(kind, provider, model).Observe(d.Seconds())
}

// ObserveValidationFailure counts a completion that exhausted its attempts.
func (m *Metrics) ObserveValidationFailure(provider, model string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(provider, model).Inc()
}

// ObserveIndexed counts documents written to a vector backend.
func (m *Metrics) ObserveIndexed(backend string, n int) {
	if m == nil {
		return
	}
	m.documentsIndexed.WithLabelValues(backend).Add(float64(n))
}
