package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/carplateapi/carplate-go/internal/datastore"
	"github.com/carplateapi/carplate-go/internal/errors"
	"github.com/carplateapi/carplate-go/internal/registry"
)

// RegistrationRequest is the accepted write payload. Image fields are not
// part of the request surface; the image pipeline owns them.
type RegistrationRequest struct {
	Plate    string `json:"plate"`
	Owner    string `json:"owner"`
	CarModel string `json:"car_model"`
}

// initRegistrationRoutes registers the registration CRUD endpoints.
func (c *Controller) initRegistrationRoutes() {
	g := c.Group.Group("/registrations")

	g.GET("", c.ListRegistrations)
	g.POST("", c.CreateRegistration)

	g.GET("/:id", c.GetRegistration)
	g.PUT("/:id", c.UpdateRegistration)
	g.DELETE("/:id", c.DeleteRegistration)

	g.GET("/plate/:plate", c.GetRegistrationByPlate)
	g.PUT("/plate/:plate", c.UpdateRegistrationByPlate)
	g.DELETE("/plate/:plate", c.DeleteRegistrationByPlate)
}

func (c *Controller) bindRequest(ctx echo.Context) (*registry.Input, error) {
	var req RegistrationRequest
	if err := ctx.Bind(&req); err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "bind_request").
			Build()
	}
	return &registry.Input{
		Plate:    req.Plate,
		Owner:    req.Owner,
		CarModel: req.CarModel,
	}, nil
}

func (c *Controller) pathID(ctx echo.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "parse_path_id").
			Context("id", ctx.Param("id")).
			Build()
	}
	return uint(id), nil
}

// ListRegistrations returns registrations matching the optional query
// filters plate, owner and search.
func (c *Controller) ListRegistrations(ctx echo.Context) error {
	filter := &datastore.RegistrationFilter{
		Plate:  ctx.QueryParam("plate"),
		Owner:  ctx.QueryParam("owner"),
		Search: ctx.QueryParam("search"),
	}

	regs, err := c.Registry.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list registrations")
	}
	return ctx.JSON(http.StatusOK, regs)
}

// CreateRegistration creates a new registration.
func (c *Controller) CreateRegistration(ctx echo.Context) error {
	input, err := c.bindRequest(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid request body")
	}

	reg, err := c.Registry.Create(ctx.Request().Context(), input)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create registration")
	}
	return ctx.JSON(http.StatusCreated, reg)
}

// GetRegistration returns a single registration by numeric ID.
func (c *Controller) GetRegistration(ctx echo.Context) error {
	id, err := c.pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid registration ID")
	}

	reg, err := c.Registry.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

// UpdateRegistration updates a registration by numeric ID.
func (c *Controller) UpdateRegistration(ctx echo.Context) error {
	id, err := c.pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid registration ID")
	}

	input, err := c.bindRequest(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid request body")
	}

	reg, err := c.Registry.Update(ctx.Request().Context(), id, input)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

// DeleteRegistration deletes a registration by numeric ID.
func (c *Controller) DeleteRegistration(ctx echo.Context) error {
	id, err := c.pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid registration ID")
	}

	if err := c.Registry.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete registration")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetRegistrationByPlate returns a single registration by plate. The lookup
// is case-insensitive.
func (c *Controller) GetRegistrationByPlate(ctx echo.Context) error {
	reg, err := c.Registry.GetByPlate(ctx.Request().Context(), ctx.Param("plate"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

// UpdateRegistrationByPlate updates a registration addressed by plate.
func (c *Controller) UpdateRegistrationByPlate(ctx echo.Context) error {
	stored, err := c.Registry.GetByPlate(ctx.Request().Context(), ctx.Param("plate"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get registration")
	}

	input, err := c.bindRequest(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid request body")
	}

	reg, err := c.Registry.Update(ctx.Request().Context(), stored.ID, input)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update registration")
	}
	return ctx.JSON(http.StatusOK, reg)
}

// DeleteRegistrationByPlate deletes a registration addressed by plate.
func (c *Controller) DeleteRegistrationByPlate(ctx echo.Context) error {
	stored, err := c.Registry.GetByPlate(ctx.Request().Context(), ctx.Param("plate"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get registration")
	}

	if err := c.Registry.Delete(ctx.Request().Context(), stored.ID); err != nil {
		return c.HandleError(ctx, err, "Failed to delete registration")
	}
	return ctx.NoContent(http.StatusNoContent)
}
