// Package registry implements the registration save pipeline: validation,
// normalization, persistence and the post-save hook that schedules image
// resolution.
package registry

import (
	"context"
	"log/slog"

	"github.com/carplateapi/carplate-go/internal/datastore"
	"github.com/carplateapi/carplate-go/internal/errors"
	"github.com/carplateapi/carplate-go/internal/imageresolver"
	"github.com/carplateapi/carplate-go/internal/jobqueue"
	"github.com/carplateapi/carplate-go/internal/logging"
	"github.com/carplateapi/carplate-go/internal/observability/metrics"
	"github.com/carplateapi/carplate-go/internal/registration"
)

// Input carries the client supplied registration fields. Image related
// fields are never accepted from clients; they are owned by the image
// pipeline.
type Input struct {
	Plate    string
	Owner    string
	CarModel string
}

// Registry coordinates registration writes and reads. Every write runs
// through the same pipeline: validate, normalize, persist, post-save hooks.
type Registry struct {
	store    datastore.Interface
	resolver *imageresolver.Resolver
	queue    *jobqueue.JobQueue
	metrics  *metrics.RegistryMetrics
	logger   *slog.Logger
}

// New creates a Registry. The metrics parameter may be nil, in which case
// metric collection is skipped.
func New(store datastore.Interface, resolver *imageresolver.Resolver, queue *jobqueue.JobQueue, m *metrics.RegistryMetrics) *Registry {
	return &Registry{
		store:    store,
		resolver: resolver,
		queue:    queue,
		metrics:  m,
		logger:   logging.ForService("registry"),
	}
}

// validate applies the field rules to a registration input. The first
// failing rule wins.
func (r *Registry) validate(input *Input) error {
	if err := registration.ValidatePlate(input.Plate); err != nil {
		r.incrementValidationFailures()
		return err
	}
	if err := registration.ValidateNameShape("owner", input.Owner); err != nil {
		r.incrementValidationFailures()
		return err
	}
	if err := registration.ValidateNameShape("car model", input.CarModel); err != nil {
		r.incrementValidationFailures()
		return err
	}
	return nil
}

// Create validates, normalizes and persists a new registration. New records
// always start without an image and with image resolution pending.
func (r *Registry) Create(ctx context.Context, input *Input) (datastore.Registration, error) {
	if err := r.validate(input); err != nil {
		return datastore.Registration{}, err
	}

	reg := datastore.Registration{
		Plate:      registration.NormalizePlate(input.Plate),
		Owner:      registration.NormalizeOwner(input.Owner),
		CarModel:   registration.NormalizeModel(input.CarModel),
		NeedsImage: true,
	}

	if err := r.store.Create(&reg); err != nil {
		return datastore.Registration{}, err
	}

	r.logger.Info("Registration created",
		"id", reg.ID,
		"plate", reg.Plate,
		"car_model", reg.CarModel)
	if r.metrics != nil {
		r.metrics.IncrementRegistrationsCreated()
	}

	r.postSave(ctx, &reg)
	return reg, nil
}

// Update validates, normalizes and persists changes to an existing
// registration. When the car model changes after an image has already been
// resolved, image resolution is re-armed so the new model gets a fresh
// lookup.
func (r *Registry) Update(ctx context.Context, id uint, input *Input) (datastore.Registration, error) {
	if err := r.validate(input); err != nil {
		return datastore.Registration{}, err
	}

	stored, err := r.store.GetByID(id)
	if err != nil {
		return datastore.Registration{}, err
	}

	reg := datastore.Registration{
		ID:         id,
		Plate:      registration.NormalizePlate(input.Plate),
		Owner:      registration.NormalizeOwner(input.Owner),
		CarModel:   registration.NormalizeModel(input.CarModel),
		NeedsImage: stored.NeedsImage,
	}

	if !stored.NeedsImage && reg.CarModel != stored.CarModel {
		reg.NeedsImage = true
	}

	if err := r.store.Update(&reg); err != nil {
		return datastore.Registration{}, err
	}

	updated, err := r.store.GetByID(id)
	if err != nil {
		return datastore.Registration{}, err
	}

	r.logger.Info("Registration updated",
		"id", updated.ID,
		"plate", updated.Plate,
		"car_model", updated.CarModel,
		"needs_image", updated.NeedsImage)
	if r.metrics != nil {
		r.metrics.IncrementRegistrationsUpdated()
	}

	r.postSave(ctx, &updated)
	return updated, nil
}

// Delete removes a registration by ID.
func (r *Registry) Delete(ctx context.Context, id uint) error {
	if err := r.store.Delete(id); err != nil {
		return err
	}

	r.logger.Info("Registration deleted", "id", id)
	if r.metrics != nil {
		r.metrics.IncrementRegistrationsDeleted()
	}
	return nil
}

// GetByID returns a single registration by its numeric ID.
func (r *Registry) GetByID(ctx context.Context, id uint) (datastore.Registration, error) {
	return r.store.GetByID(id)
}

// GetByPlate returns a single registration by plate, case-insensitively.
func (r *Registry) GetByPlate(ctx context.Context, plate string) (datastore.Registration, error) {
	return r.store.GetByPlate(plate)
}

// List returns registrations matching the filter, ordered by creation time.
func (r *Registry) List(ctx context.Context, filter *datastore.RegistrationFilter) ([]datastore.Registration, error) {
	return r.store.List(filter)
}

// postSave runs after a write has committed. When the saved registration
// still needs an image, an image retrieval task is enqueued. A full queue or
// stopped queue only degrades the image pipeline; the write itself already
// succeeded, so failures here are logged and swallowed.
func (r *Registry) postSave(ctx context.Context, reg *datastore.Registration) {
	if !reg.NeedsImage || r.queue == nil {
		return
	}

	action := NewImageRetrievalAction(r.store, r.resolver, r.metrics)
	job, err := r.queue.Enqueue(action, reg.Plate, jobqueue.NoRetry())
	if err != nil {
		enhancedErr := errors.New(err).
			Component("registry").
			Category(errors.CategoryJobQueue).
			Context("operation", "enqueue_image_task").
			Context("plate", reg.Plate).
			Build()
		r.logger.Warn("Failed to enqueue image retrieval task",
			"plate", reg.Plate,
			"error", enhancedErr)
		return
	}

	r.logger.Info("Image retrieval task enqueued",
		"job_id", job.ID,
		"plate", reg.Plate,
		"car_model", reg.CarModel)
	if r.metrics != nil {
		r.metrics.IncrementImageTasksEnqueued()
	}
}

func (r *Registry) incrementValidationFailures() {
	if r.metrics != nil {
		r.metrics.IncrementValidationFailures()
	}
}
