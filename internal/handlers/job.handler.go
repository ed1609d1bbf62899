package handlers

import (
	"time"

	"crewdispatch/internal/app"
	"crewdispatch/internal/handlers/middleware"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type JobHandler struct {
	Handler
	jobService *services.JobService
}

func NewJobHandler(app app.App, router fiber.Router) *JobHandler {
	log := logger.New("handlers").File("job_handler")
	return &JobHandler{
		jobService: app.Services.Job,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *JobHandler) Register() {
	jobs := h.router.Group("/jobs", h.middleware.RequireUser())

	jobs.Post("/", h.create)
	jobs.Get("/open", h.open)
	jobs.Get("/history", h.history)
	jobs.Get("/:id", h.get)
	jobs.Post("/:id/dispatch", h.dispatch)
	jobs.Post("/:id/accept", h.accept)
	jobs.Post("/:id/decline", h.decline)
	jobs.Post("/:id/start", h.start)
	jobs.Post("/:id/submit", h.submit)
	jobs.Post("/:id/complete", h.complete)
	jobs.Post("/:id/cancel", h.cancel)
	jobs.Post("/:id/revision", h.revision)
}

type createJobRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Address     *string    `json:"address"`
	JobType     string     `json:"jobType"`
	PresetPrice *string    `json:"presetPrice"`
	TeamID      *uuid.UUID `json:"teamId"`
	Photos      []string   `json:"photos"`
	Deadline    *time.Time `json:"deadline"`
}

func (h *JobHandler) create(c *fiber.Ctx) error {
	var req createJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	job, err := h.jobService.Create(c.UserContext(), user.ChatID, services.CreateJobInput{
		Title:       req.Title,
		Description: req.Description,
		Address:     req.Address,
		JobType:     models.JobType(req.JobType),
		PresetPrice: req.PresetPrice,
		TeamID:      req.TeamID,
		Photos:      req.Photos,
		Deadline:    req.Deadline,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"job": job})
}

type dispatchRequest struct {
	SubcontractorID *uuid.UUID `json:"subcontractorId"`
	TeamID          *uuid.UUID `json:"teamId"`
	All             bool       `json:"all"`
}

func (h *JobHandler) dispatch(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	var req dispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	result, err := h.jobService.Dispatch(c.UserContext(), jobID, user.ChatID, services.DispatchTarget{
		SubcontractorID: req.SubcontractorID,
		TeamID:          req.TeamID,
		All:             req.All,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": result.Job, "notified": result.Notified})
}

func (h *JobHandler) accept(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	result, err := h.jobService.Accept(c.UserContext(), jobID, user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": result.Job})
}

type declineRequest struct {
	Reason *string `json:"reason"`
}

func (h *JobHandler) decline(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	var req declineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	result, err := h.jobService.Decline(c.UserContext(), jobID, user.ChatID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": result.Job})
}

func (h *JobHandler) start(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	job, err := h.jobService.Start(c.UserContext(), jobID, user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": job})
}

type submitRequest struct {
	Notes    *string  `json:"notes"`
	Evidence []string `json:"evidence"`
}

func (h *JobHandler) submit(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	result, err := h.jobService.Submit(c.UserContext(), jobID, user.ChatID, req.Notes, req.Evidence)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": result.Job})
}

type completeRequest struct {
	Rating        *int    `json:"rating"`
	RatingComment *string `json:"ratingComment"`
}

func (h *JobHandler) complete(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	var req completeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	result, err := h.jobService.Complete(
		c.UserContext(), jobID, user.ChatID, req.Rating, req.RatingComment)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": result.Job})
}

func (h *JobHandler) cancel(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	job, err := h.jobService.Cancel(c.UserContext(), jobID, user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": job})
}

type revisionRequest struct {
	Reason string `json:"reason"`
}

func (h *JobHandler) revision(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	var req revisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user := middleware.GetUser(c)
	result, err := h.jobService.RequestRevision(c.UserContext(), jobID, user.ChatID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": result.Job})
}

func (h *JobHandler) get(c *fiber.Ctx) error {
	jobID, err := parseID(c)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	job, err := h.jobService.Get(c.UserContext(), jobID, user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"job": job})
}

func (h *JobHandler) open(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	jobs, err := h.jobService.OpenJobs(c.UserContext(), user.ChatID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"jobs": jobs})
}

func (h *JobHandler) history(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var teamID *uuid.UUID
	if raw := c.Query("teamId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid team id"})
		}
		teamID = &parsed
	}

	jobs, err := h.jobService.History(c.UserContext(), user.ChatID, teamID, c.QueryInt("limit"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"jobs": jobs})
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}
