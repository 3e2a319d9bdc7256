// Package api implements the REST interface of the carplate registry
// service.
package api

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/carplateapi/carplate-go/internal/conf"
	"github.com/carplateapi/carplate-go/internal/errors"
	"github.com/carplateapi/carplate-go/internal/logging"
	"github.com/carplateapi/carplate-go/internal/observability"
	"github.com/carplateapi/carplate-go/internal/registry"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Registry *registry.Registry
	Settings *conf.Settings

	metrics   *observability.Metrics
	apiLogger *slog.Logger
}

// New creates a new API controller and registers all routes on a fresh echo
// instance.
func New(settings *conf.Settings, reg *registry.Registry, metrics *observability.Metrics) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:      e,
		Registry:  reg,
		Settings:  settings,
		metrics:   metrics,
		apiLogger: logging.ForService("api"),
	}

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v1")

	c.initRegistrationRoutes()
	c.initMediaRoutes()

	c.Echo.GET("/healthz", c.Healthz)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// Start runs the HTTP server on the configured port. It blocks until the
// server stops.
func (c *Controller) Start() error {
	addr := ":" + c.Settings.WebServer.Port
	c.apiLogger.Info("Starting API server", "addr", addr)
	return c.Echo.Start(addr)
}

// Shutdown gracefully stops the HTTP server.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.apiLogger.Info("Shutting down API server")
	return c.Echo.Shutdown(ctx)
}

// Healthz reports service liveness.
func (c *Controller) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a unique identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// statusForError maps an error's category to an HTTP status code.
func statusForError(err error) int {
	switch errors.GetCategory(err) {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// HandleError constructs and returns an error response for the request,
// deriving the status code from the error's category.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	code := statusForError(err)
	errorResp := NewErrorResponse(err, message, code)

	c.apiLogger.Error("API Error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorResp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, errorResp)
}
