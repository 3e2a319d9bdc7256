package registry

import (
	"context"

	"github.com/carplateapi/carplate-go/internal/datastore"
	"github.com/carplateapi/carplate-go/internal/errors"
	"github.com/carplateapi/carplate-go/internal/imageresolver"
	"github.com/carplateapi/carplate-go/internal/logging"
	"github.com/carplateapi/carplate-go/internal/observability/metrics"
)

// ImageRetrievalAction resolves an image for the car model behind a plate
// and persists the resulting reference. It implements jobqueue.Action and
// runs with retries disabled: any failure is terminal and the registration
// keeps its pending image state until the next write re-enqueues it.
type ImageRetrievalAction struct {
	store    datastore.Interface
	resolver *imageresolver.Resolver
	metrics  *metrics.RegistryMetrics
}

// NewImageRetrievalAction creates an image retrieval action bound to the
// given store and resolver.
func NewImageRetrievalAction(store datastore.Interface, resolver *imageresolver.Resolver, m *metrics.RegistryMetrics) *ImageRetrievalAction {
	return &ImageRetrievalAction{
		store:    store,
		resolver: resolver,
		metrics:  m,
	}
}

// GetDescription returns a human-readable description of the action.
func (a *ImageRetrievalAction) GetDescription() string {
	return "Resolve and persist car model image"
}

// Execute looks up the registration by plate, resolves an image for its
// current car model and stores the reference. A registration deleted
// between enqueue and execution is discarded silently.
func (a *ImageRetrievalAction) Execute(ctx context.Context, data any) error {
	logger := logging.ForService("registry").With("task", "image_retrieval")

	plate, ok := data.(string)
	if !ok {
		err := errors.Newf("image retrieval task expects a plate string, got %T", data).
			Component("registry").
			Category(errors.CategoryJobQueue).
			Context("operation", "image_task_payload").
			Build()
		a.incrementFailed()
		return err
	}

	logger = logger.With("plate", plate)
	logger.Info("Image retrieval started")

	reg, err := a.store.GetByPlate(plate)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			logger.Warn("Registration disappeared before image retrieval, discarding task")
			return nil
		}
		a.incrementFailed()
		return err
	}

	if !reg.NeedsImage {
		logger.Info("Registration no longer needs an image, discarding task")
		return nil
	}

	ref, err := a.resolver.Resolve(ctx, reg.CarModel)
	if err != nil {
		logger.Error("Image resolution failed",
			"car_model", reg.CarModel,
			"error", err)
		a.incrementFailed()
		return err
	}

	if err := a.store.SetImage(reg.Plate, ref); err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			logger.Warn("Registration deleted during image retrieval, discarding task")
			return nil
		}
		a.incrementFailed()
		return err
	}

	logger.Info("Image retrieval completed",
		"car_model", reg.CarModel,
		"image", ref)
	if a.metrics != nil {
		a.metrics.IncrementImageTasksCompleted()
	}
	return nil
}

func (a *ImageRetrievalAction) incrementFailed() {
	if a.metrics != nil {
		a.metrics.IncrementImageTasksFailed()
	}
}
