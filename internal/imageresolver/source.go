// Package imageresolver provides functionality for fetching and caching car model images.
package imageresolver

import (
	"context"

	"github.com/carplateapi/carplate-go/internal/logging"
)

// CarImage represents an image fetched for a car model.
type CarImage struct {
	URL  string
	Data []byte
	Ext  string
}

// ImageSource defines the interface for fetching car model images from an
// external service. Implementations return (nil, nil) when the search
// produced no results, so callers can fall back to the default image
// without treating the empty result as a failure.
type ImageSource interface {
	Fetch(ctx context.Context, model string) (*CarImage, error)
	Name() string
}

var imageResolverLogger = logging.ForService("imageresolver")
