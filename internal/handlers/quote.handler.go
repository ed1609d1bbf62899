package handlers

import (
	"crewdispatch/internal/app"
	"crewdispatch/internal/handlers/middleware"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/services"

	"github.com/gofiber/fiber/v2"
)

type QuoteHandler struct {
	Handler
	quoteService *services.QuoteService
	notifier     services.Notifier
}

func NewQuoteHandler(app app.App, router fiber.Router) *QuoteHandler {
	log := logger.New("handlers").File("quote_handler")
	return &QuoteHandler{
		quoteService: app.Services.Quote,
		notifier:     app.Services.Notifier,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *QuoteHandler) Register() {
	jobs := h.router.Group("/jobs", h.middleware.RequireUser())
	jobs.Post("/:id/quotes", h.submit)
	jobs.Get("/:id/quotes", h.list)
	jobs.Get("/:id/quotes/mine", h.mine)

	quotes := h.router.Group("/quotes", h.middleware.RequireUser())
	quotes.Post("/:id/accept", h.accept)
	quotes.Post("/:id/decline", h.decline)
}

type submitQuoteRequest struct {
	Amount string  `json:"amount"`
	Notes  *string `json:"notes"`
}

func (h *QuoteHandler) submit(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	var req submitQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	quote, err := h.quoteService.Submit(c.UserContext(), jobID, user.ChatID, req.Amount, req.Notes)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"quote": quote})
}

func (h *QuoteHandler) list(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	quotes, err := h.quoteService.ListForJob(c.UserContext(), jobID, user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"quotes": quotes})
}

func (h *QuoteHandler) mine(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	quote, err := h.quoteService.ActiveQuote(c.UserContext(), jobID, user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"quote": quote})
}

func (h *QuoteHandler) accept(c *fiber.Ctx) error {
	quoteID, err := parseID(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	result, err := h.quoteService.Accept(c.UserContext(), quoteID, user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	// Bidder notifications ride the outbound bus; arbitration already
	// committed, so failures here only cost a message.
	ctx := c.UserContext()
	h.notifier.Send(ctx, result.WinnerChatID, "Your quote was accepted: "+result.Job.Title)
	for _, loser := range result.LoserChatIDs {
		h.notifier.Send(ctx, loser, "Another quote was chosen for: "+result.Job.Title)
	}

	return c.JSON(fiber.Map{"job": result.Job, "quote": result.Quote})
}

func (h *QuoteHandler) decline(c *fiber.Ctx) error {
	quoteID, err := parseID(c)
	if err != nil {
		return err
	}

	var req declineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	quote, err := h.quoteService.Decline(c.UserContext(), quoteID, user.ChatID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"quote": quote})
}
