package handlers

import (
	"crewdispatch/internal/app"
	"crewdispatch/internal/handlers/middleware"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/services"

	"github.com/gofiber/fiber/v2"
)

type RegistrationHandler struct {
	Handler
	registrationService *services.RegistrationService
}

func NewRegistrationHandler(app app.App, router fiber.Router) *RegistrationHandler {
	log := logger.New("handlers").File("registration_handler")
	return &RegistrationHandler{
		registrationService: app.Services.Registration,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *RegistrationHandler) Register() {
	register := h.router.Group("/register")
	register.Post("/validate", h.validateCode)
	register.Post("/", h.register)

	me := h.router.Group("/me", h.middleware.RequireUser())
	me.Get("/", h.me)
}

type validateCodeRequest struct {
	Code string `json:"code"`
}

func (h *RegistrationHandler) validateCode(c *fiber.Ctx) error {
	var req validateCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	accessCode, err := h.registrationService.ValidateCode(c.UserContext(), req.Code)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"role": accessCode.Role, "valid": true})
}

type registerRequest struct {
	Code      string  `json:"code"`
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
}

func (h *RegistrationHandler) register(c *fiber.Ctx) error {
	chatID, ok := middleware.GetChatID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "chat id header required",
		})
	}

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user, err := h.registrationService.Register(c.UserContext(), services.RegisterInput{
		ChatID:    chatID,
		Code:      req.Code,
		Username:  req.Username,
		FirstName: req.FirstName,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

func (h *RegistrationHandler) me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": middleware.GetUser(c)})
}
