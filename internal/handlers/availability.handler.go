package handlers

import (
	"strings"
	"time"

	"crewdispatch/internal/app"
	"crewdispatch/internal/handlers/middleware"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/services"

	"github.com/gofiber/fiber/v2"
)

type AvailabilityHandler struct {
	Handler
	availabilityService *services.AvailabilityService
}

func NewAvailabilityHandler(app app.App, router fiber.Router) *AvailabilityHandler {
	log := logger.New("handlers").File("availability_handler")
	return &AvailabilityHandler{
		availabilityService: app.Services.Availability,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *AvailabilityHandler) Register() {
	availability := h.router.Group("/availability", h.middleware.RequireUser())
	availability.Get("/", h.status)
	availability.Put("/", h.setStatus)

	surveys := h.router.Group("/surveys", h.middleware.RequireUser())
	surveys.Get("/:week", h.get)
	surveys.Post("/:week/toggle/:day", h.toggleDay)
	surveys.Post("/:week/notes", h.addNotes)
	surveys.Post("/:week/finalize", h.finalize)
}

func (h *AvailabilityHandler) status(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	status, err := h.availabilityService.Status(c.UserContext(), user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"availability": status})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *AvailabilityHandler) setStatus(c *fiber.Ctx) error {
	var req setStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	updated, err := h.availabilityService.SetStatus(
		c.UserContext(), user.ChatID, models.AvailabilityStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"user": updated})
}

func (h *AvailabilityHandler) get(c *fiber.Ctx) error {
	weekStart, err := parseWeek(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	survey, err := h.availabilityService.SurveyForWeek(c.UserContext(), user.ChatID, weekStart)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"survey": survey})
}

func (h *AvailabilityHandler) toggleDay(c *fiber.Ctx) error {
	weekStart, err := parseWeek(c)
	if err != nil {
		return err
	}

	day, ok := parseWeekday(c.Params("day"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid weekday"})
	}

	user := middleware.GetUser(c)
	survey, err := h.availabilityService.ToggleDay(c.UserContext(), user.ChatID, weekStart, day)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"survey": survey})
}

type surveyNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *AvailabilityHandler) addNotes(c *fiber.Ctx) error {
	weekStart, err := parseWeek(c)
	if err != nil {
		return err
	}

	var req surveyNotesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	survey, err := h.availabilityService.AddSurveyNotes(
		c.UserContext(), user.ChatID, weekStart, req.Notes)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"survey": survey})
}

func (h *AvailabilityHandler) finalize(c *fiber.Ctx) error {
	weekStart, err := parseWeek(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	survey, err := h.availabilityService.Finalize(c.UserContext(), user.ChatID, weekStart)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"survey": survey})
}

// parseWeek reads the :week parameter as a YYYY-MM-DD Monday in UTC.
func parseWeek(c *fiber.Ctx) (time.Time, error) {
	weekStart, err := time.ParseInLocation("2006-01-02", c.Params("week"), time.UTC)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid week date")
	}
	return weekStart, nil
}

func parseWeekday(raw string) (time.Weekday, bool) {
	switch strings.ToLower(raw) {
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	default:
		return time.Sunday, false
	}
}
