package handlers

import (
	"time"

	"crewdispatch/config"
	"crewdispatch/internal/app"
	"crewdispatch/internal/handlers/middleware"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AdminHandler struct {
	Handler
	archiveService      *services.ArchiveService
	registrationService *services.RegistrationService
	schedulerService    *services.SchedulerService
	config              config.Config
}

func NewAdminHandler(app app.App, router fiber.Router) *AdminHandler {
	log := logger.New("handlers").File("admin_handler")
	return &AdminHandler{
		archiveService:      app.Services.Archive,
		registrationService: app.Services.Registration,
		schedulerService:    app.Services.Scheduler,
		config:              app.Config,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *AdminHandler) Register() {
	admin := h.router.Group("/admin",
		h.middleware.RequireUser(),
		h.middleware.RequireRole(models.RoleAdmin),
	)

	admin.Post("/access-codes", h.createAccessCode)
	admin.Post("/archive/sweep", h.sweepArchive)
	admin.Get("/archive", h.listArchived)
	admin.Post("/scheduler/trigger/:name", h.triggerJob)
}

type createAccessCodeRequest struct {
	Role      string     `json:"role"`
	TeamName  *string    `json:"teamName"`
	MaxUses   int        `json:"maxUses"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (h *AdminHandler) createAccessCode(c *fiber.Ctx) error {
	var req createAccessCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	code, err := h.registrationService.CreateAccessCode(
		c.UserContext(), user.ChatID, services.CreateAccessCodeInput{
			Role:      models.UserRole(req.Role),
			TeamName:  req.TeamName,
			MaxUses:   req.MaxUses,
			ExpiresAt: req.ExpiresAt,
		})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"accessCode": code})
}

type sweepRequest struct {
	OlderThanDays int `json:"olderThanDays"`
}

func (h *AdminHandler) sweepArchive(c *fiber.Ctx) error {
	var req sweepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	days := req.OlderThanDays
	if days <= 0 {
		days = h.config.ArchiveAfterDays
	}

	user := middleware.GetUser(c)
	archived, err := h.archiveService.SweepArchive(
		c.UserContext(), user.ChatID, time.Duration(days)*24*time.Hour)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"archived": archived})
}

func (h *AdminHandler) listArchived(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var teamID *uuid.UUID
	if raw := c.Query("teamId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid team id"})
		}
		teamID = &parsed
	}

	jobs, err := h.archiveService.ListArchived(
		c.UserContext(), user.ChatID, teamID, c.QueryInt("limit"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"jobs": jobs})
}

func (h *AdminHandler) triggerJob(c *fiber.Ctx) error {
	if err := h.schedulerService.TriggerJobByName(c.UserContext(), c.Params("name")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"triggered": c.Params("name")})
}
