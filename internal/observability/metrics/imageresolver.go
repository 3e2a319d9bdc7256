// Package metrics provides custom Prometheus metrics for various components of the carplate registry service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ImageResolverMetrics contains all Prometheus metrics related to image resolution.
type ImageResolverMetrics struct {
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	ImageDownloads   prometheus.Counter
	DownloadErrors   prometheus.Counter
	DefaultFallbacks prometheus.Counter
	DownloadDuration prometheus.Histogram
	registry         *prometheus.Registry
}

// NewImageResolverMetrics creates a new instance of ImageResolverMetrics.
// It requires a Prometheus registry to register the metrics.
// It returns an error if metric registration fails.
func NewImageResolverMetrics(registry *prometheus.Registry) (*ImageResolverMetrics, error) {
	m := &ImageResolverMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize ImageResolver metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ImageResolver metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for ImageResolverMetrics.
func (m *ImageResolverMetrics) initMetrics() error {
	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_resolver_cache_hits_total",
		Help: "Total number of image cache hits.",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_resolver_cache_misses_total",
		Help: "Total number of image cache misses.",
	})

	m.ImageDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_resolver_downloads_total",
		Help: "Total number of image downloads from the external source.",
	})

	m.DownloadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_resolver_download_errors_total",
		Help: "Total number of image download errors.",
	})

	m.DefaultFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_resolver_default_fallbacks_total",
		Help: "Total number of resolutions that fell back to the default image.",
	})

	m.DownloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_resolver_download_duration_seconds",
		Help:    "Duration of image downloads in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	return nil
}

// IncrementCacheHits increments the cache hits counter.
func (m *ImageResolverMetrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// IncrementCacheMisses increments the cache misses counter.
func (m *ImageResolverMetrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

// IncrementImageDownloads increments the image downloads counter.
func (m *ImageResolverMetrics) IncrementImageDownloads() {
	m.ImageDownloads.Inc()
}

// IncrementDownloadErrors increments the download errors counter.
func (m *ImageResolverMetrics) IncrementDownloadErrors() {
	m.DownloadErrors.Inc()
}

// IncrementDefaultFallbacks increments the default fallback counter.
func (m *ImageResolverMetrics) IncrementDefaultFallbacks() {
	m.DefaultFallbacks.Inc()
}

// ObserveDownloadDuration records the duration of an image download.
func (m *ImageResolverMetrics) ObserveDownloadDuration(durationSeconds float64) {
	m.DownloadDuration.Observe(durationSeconds)
}

// Collect implements the prometheus.Collector interface.
func (m *ImageResolverMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CacheHits.Collect(ch)
	m.CacheMisses.Collect(ch)
	m.ImageDownloads.Collect(ch)
	m.DownloadErrors.Collect(ch)
	m.DefaultFallbacks.Collect(ch)
	m.DownloadDuration.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *ImageResolverMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.CacheHits.Desc()
	ch <- m.CacheMisses.Desc()
	ch <- m.ImageDownloads.Desc()
	ch <- m.DownloadErrors.Desc()
	ch <- m.DefaultFallbacks.Desc()
	m.DownloadDuration.Describe(ch)
}
