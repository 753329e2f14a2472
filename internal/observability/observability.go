// Package observability provides Prometheus metrics for the preview server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkivisto/fieldlog/internal/errors"
)

// Metrics holds the metric collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry
	HTTP     *HTTPMetrics
	Journal  *JournalMetrics
}

// NewMetrics creates a registry with all collectors registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	httpMetrics, err := NewHTTPMetrics(registry)
	if err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Build()
	}

	journalMetrics, err := NewJournalMetrics(registry)
	if err != nil {
		return nil, errors.New(err).
			Component("observability").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &Metrics{
		registry: registry,
		HTTP:     httpMetrics,
		Journal:  journalMetrics,
	}, nil
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
