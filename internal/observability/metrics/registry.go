package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RegistryMetrics contains Prometheus metrics for registration operations.
type RegistryMetrics struct {
	RegistrationsCreated prometheus.Counter
	RegistrationsUpdated prometheus.Counter
	RegistrationsDeleted prometheus.Counter
	ValidationFailures   prometheus.Counter
	ImageTasksEnqueued   prometheus.Counter
	ImageTasksCompleted  prometheus.Counter
	ImageTasksFailed     prometheus.Counter
	registry             *prometheus.Registry
}

// NewRegistryMetrics creates a new instance of RegistryMetrics.
func NewRegistryMetrics(registry *prometheus.Registry) (*RegistryMetrics, error) {
	m := &RegistryMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize Registry metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Registry metrics: %w", err)
	}
	return m, nil
}

func (m *RegistryMetrics) initMetrics() error {
	m.RegistrationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_registrations_created_total",
		Help: "Total number of registrations created.",
	})

	m.RegistrationsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_registrations_updated_total",
		Help: "Total number of registrations updated.",
	})

	m.RegistrationsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_registrations_deleted_total",
		Help: "Total number of registrations deleted.",
	})

	m.ValidationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_validation_failures_total",
		Help: "Total number of registrations rejected by validation.",
	})

	m.ImageTasksEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_image_tasks_enqueued_total",
		Help: "Total number of image resolution tasks enqueued.",
	})

	m.ImageTasksCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_image_tasks_completed_total",
		Help: "Total number of image resolution tasks completed successfully.",
	})

	m.ImageTasksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_image_tasks_failed_total",
		Help: "Total number of image resolution tasks that failed.",
	})

	return nil
}

// IncrementRegistrationsCreated increments the created counter.
func (m *RegistryMetrics) IncrementRegistrationsCreated() {
	m.RegistrationsCreated.Inc()
}

// IncrementRegistrationsUpdated increments the updated counter.
func (m *RegistryMetrics) IncrementRegistrationsUpdated() {
	m.RegistrationsUpdated.Inc()
}

// IncrementRegistrationsDeleted increments the deleted counter.
func (m *RegistryMetrics) IncrementRegistrationsDeleted() {
	m.RegistrationsDeleted.Inc()
}

// IncrementValidationFailures increments the validation failure counter.
func (m *RegistryMetrics) IncrementValidationFailures() {
	m.ValidationFailures.Inc()
}

// IncrementImageTasksEnqueued increments the enqueued task counter.
func (m *RegistryMetrics) IncrementImageTasksEnqueued() {
	m.ImageTasksEnqueued.Inc()
}

// IncrementImageTasksCompleted increments the completed task counter.
func (m *RegistryMetrics) IncrementImageTasksCompleted() {
	m.ImageTasksCompleted.Inc()
}

// IncrementImageTasksFailed increments the failed task counter.
func (m *RegistryMetrics) IncrementImageTasksFailed() {
	m.ImageTasksFailed.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *RegistryMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RegistrationsCreated.Collect(ch)
	m.RegistrationsUpdated.Collect(ch)
	m.RegistrationsDeleted.Collect(ch)
	m.ValidationFailures.Collect(ch)
	m.ImageTasksEnqueued.Collect(ch)
	m.ImageTasksCompleted.Collect(ch)
	m.ImageTasksFailed.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *RegistryMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.RegistrationsCreated.Desc()
	ch <- m.RegistrationsUpdated.Desc()
	ch <- m.RegistrationsDeleted.Desc()
	ch <- m.ValidationFailures.Desc()
	ch <- m.ImageTasksEnqueued.Desc()
	ch <- m.ImageTasksCompleted.Desc()
	ch <- m.ImageTasksFailed.Desc()
}
