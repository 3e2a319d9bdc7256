package api

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carplateapi/carplate-go/internal/errors"
)

// initMediaRoutes registers the cached image serving endpoint.
func (c *Controller) initMediaRoutes() {
	c.Group.GET("/media/images/:name", c.ServeImage)
}

// ServeImage serves a cached image file by its base name. Only plain file
// names are accepted; path separators and parent references are rejected so
// requests cannot escape the cache directory.
func (c *Controller) ServeImage(ctx echo.Context) error {
	name := ctx.Param("name")

	if name == "" || name != filepath.Base(name) ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		err := errors.Newf("invalid image name: %q", name).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "serve_image").
			Build()
		return c.HandleError(ctx, err, "Invalid image name")
	}

	path := filepath.Join(c.Settings.Images.CacheDir, name)
	if _, err := os.Stat(path); err != nil {
		notFound := errors.New(err).
			Component("api").
			Category(errors.CategoryNotFound).
			Context("operation", "serve_image").
			Context("image", name).
			Build()
		return c.HandleError(ctx, notFound, "Image not found")
	}

	return ctx.File(path)
}
