package handlers

import (
	"errors"

	"crewdispatch/internal/app"
	"crewdispatch/internal/handlers/middleware"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) error {
	api := router.Group("/api",
		app.Middleware.TraceID(),
		app.Middleware.ResolveIdentity(),
	)

	HealthHandler(api, app.Config)
	NewRegistrationHandler(*app, api).Register()
	NewJobHandler(*app, api).Register()
	NewQuoteHandler(*app, api).Register()
	NewAvailabilityHandler(*app, api).Register()
	NewAdminHandler(*app, api).Register()

	return nil
}

// respondError translates service errors into HTTP statuses. Sentinel
// wrapping survives the logger, so errors.Is sees through the context the
// services add.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, models.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}
