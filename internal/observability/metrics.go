// Package observability provides metrics collection for the carplate registry service.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carplateapi/carplate-go/internal/observability/metrics"
)

// Metrics holds all the metrics collectors for the application.
type Metrics struct {
	registry      *prometheus.Registry
	ImageResolver *metrics.ImageResolverMetrics
	Registry      *metrics.RegistryMetrics
}

// NewMetrics creates a new instance of Metrics with all collectors registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	imageResolverMetrics, err := metrics.NewImageResolverMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create image resolver metrics: %w", err)
	}

	registryMetrics, err := metrics.NewRegistryMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry metrics: %w", err)
	}

	return &Metrics{
		registry:      registry,
		ImageResolver: imageResolverMetrics,
		Registry:      registryMetrics,
	}, nil
}

// Handler returns an HTTP handler serving the metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
