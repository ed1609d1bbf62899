package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// JobService owns the job state machine: creation, dispatch, the
// accept/decline cycle, start/submit/complete and cancellation. Every
// transition is authorized here and applied as a conditional write, so two
// interleaved handlers (or a handler racing the scheduler) can never both
// move the same job.
type JobService struct {
	jobRepo  repositories.JobRepository
	userRepo repositories.UserRepository
	notifier Notifier
	log      logger.Logger
}

func NewJobService(repos repositories.Repository, notifier Notifier) *JobService {
	return &JobService{
		jobRepo:  repos.Job,
		userRepo: repos.User,
		notifier: notifier,
		log:      logger.New("JobService"),
	}
}

type CreateJobInput struct {
	Title       string
	Description *string
	Address     *string
	JobType     models.JobType
	PresetPrice *string
	TeamID      *uuid.UUID
	Photos      []string
	Deadline    *time.Time
}

// DispatchTarget selects the recipients of a dispatch: a single
// subcontractor, a team broadcast, or a bot-wide broadcast.
type DispatchTarget struct {
	SubcontractorID *uuid.UUID
	TeamID          *uuid.UUID
	All             bool
}

func (t DispatchTarget) valid() bool {
	set := 0
	if t.SubcontractorID != nil {
		set++
	}
	if t.TeamID != nil {
		set++
	}
	if t.All {
		set++
	}
	return set == 1
}

type DispatchResult struct {
	Job      *models.Job
	Notified int
}

type AcceptResult struct {
	Job *models.Job
	// SupervisorChatID is who the caller should tell about the acceptance;
	// the engine computes the recipient but does not deliver.
	SupervisorChatID int64
}

type DeclineResult struct {
	Job              *models.Job
	SupervisorChatID int64
}

type SubmitResult struct {
	Job              *models.Job
	SupervisorChatID int64
}

type CompleteResult struct {
	Job *models.Job
	// NotifyChatID is the counterparty to inform, when one is bound.
	NotifyChatID *int64
}

type RevisionResult struct {
	Job                 *models.Job
	SubcontractorChatID int64
}

func (s *JobService) Create(
	ctx context.Context,
	supervisorChatID int64,
	input CreateJobInput,
) (*models.Job, error) {
	log := s.log.TraceFromContext(ctx).Function("Create")

	supervisor, err := s.requireRole(ctx, supervisorChatID, models.RoleSupervisor)
	if err != nil {
		return nil, err
	}

	if input.Title == "" {
		return nil, log.ErrorWithType(models.ErrInvalidState, "job title is required")
	}

	switch input.JobType {
	case models.JobTypeQuote:
		if input.PresetPrice != nil {
			return nil, log.ErrorWithType(models.ErrInvalidState,
				"quote jobs cannot carry a preset price")
		}
	case models.JobTypePresetPrice:
		if input.PresetPrice == nil {
			return nil, log.ErrorWithType(models.ErrInvalidState,
				"preset price jobs require a price")
		}
		if _, err := parseAmount(*input.PresetPrice); err != nil {
			return nil, log.ErrorWithType(models.ErrInvalidState,
				"preset price is not a valid amount")
		}
	default:
		return nil, log.ErrorWithType(models.ErrInvalidState, "unknown job type")
	}

	photos, err := toJSONList(input.Photos)
	if err != nil {
		return nil, log.Err("failed to encode photos", err)
	}

	teamID := input.TeamID
	if teamID == nil {
		teamID = supervisor.TeamID
	}

	job := &models.Job{
		Title:        input.Title,
		Description:  input.Description,
		Address:      input.Address,
		JobType:      input.JobType,
		PresetPrice:  input.PresetPrice,
		Status:       models.JobStatusCreated,
		TeamID:       teamID,
		SupervisorID: supervisor.ID,
		Photos:       photos,
		Deadline:     input.Deadline,
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	log.Info("Job created", "jobID", job.ID, "type", job.JobType)
	return job, nil
}

// Dispatch makes a CREATED job visible to its recipients. Broadcast dispatch
// leaves the job unbound; the first acceptor wins. Targeted dispatch binds
// the subcontractor up front so the reminder scan knows who to nudge.
func (s *JobService) Dispatch(
	ctx context.Context,
	jobID uuid.UUID,
	supervisorChatID int64,
	target DispatchTarget,
) (*DispatchResult, error) {
	log := s.log.TraceFromContext(ctx).Function("Dispatch")

	if !target.valid() {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"dispatch target must be exactly one of subcontractor, team or all")
	}

	job, _, err := s.requireOwnedJob(ctx, jobID, supervisorChatID)
	if err != nil {
		return nil, err
	}

	var recipients []*models.User
	updates := map[string]any{
		"status":  models.JobStatusSent,
		"sent_at": time.Now().UTC(),
	}

	switch {
	case target.SubcontractorID != nil:
		sub, err := s.userRepo.GetByID(ctx, *target.SubcontractorID)
		if err != nil {
			return nil, err
		}
		if sub.Role != models.RoleSubcontractor || !sub.IsActive {
			return nil, log.ErrorWithType(models.ErrInvalidState,
				"dispatch target is not an active subcontractor")
		}
		updates["subcontractor_id"] = sub.ID
		recipients = []*models.User{sub}
	case target.TeamID != nil:
		recipients, err = s.userRepo.ListEligibleSubcontractors(ctx, target.TeamID)
		if err != nil {
			return nil, err
		}
	default:
		recipients, err = s.userRepo.ListEligibleSubcontractors(ctx, nil)
		if err != nil {
			return nil, err
		}
	}

	applied, err := s.jobRepo.Transition(ctx, nil, job.ID, models.JobStatusCreated, updates)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job has already been dispatched", "jobID", job.ID)
	}

	// Fan-out is best effort: a failed delivery never unwinds the dispatch.
	notified := 0
	text := fmt.Sprintf("New job available: %s", job.Title)
	for _, recipient := range recipients {
		if s.notifier.Send(ctx, recipient.ChatID, text) {
			notified++
		} else {
			log.Warn("failed to notify recipient", "jobID", job.ID, "chatID", recipient.ChatID)
		}
	}

	job, err = s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	log.Info("Job dispatched", "jobID", job.ID, "recipients", len(recipients), "notified", notified)
	return &DispatchResult{Job: job, Notified: notified}, nil
}

func (s *JobService) Accept(
	ctx context.Context,
	jobID uuid.UUID,
	subcontractorChatID int64,
) (*AcceptResult, error) {
	log := s.log.TraceFromContext(ctx).Function("Accept")

	sub, err := s.requireRole(ctx, subcontractorChatID, models.RoleSubcontractor)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.JobType == models.JobTypeQuote {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"quote jobs are assigned by accepting a quote", "jobID", jobID)
	}

	applied, err := s.jobRepo.AcceptBind(ctx, job.ID, sub.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the broadcast race, or the job left SENT in the meantime.
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job is no longer available for acceptance", "jobID", jobID)
	}

	supervisor, err := s.userRepo.GetByID(ctx, job.SupervisorID)
	if err != nil {
		return nil, err
	}

	job, err = s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	log.Info("Job accepted", "jobID", job.ID, "subcontractorID", sub.ID)
	return &AcceptResult{Job: job, SupervisorChatID: supervisor.ChatID}, nil
}

// Decline records the refusal and reopens the job: it stays SENT with the
// subcontractor unbound so others may still accept. Declines never kill a
// job; only cancellation and the auto-close sweep do.
func (s *JobService) Decline(
	ctx context.Context,
	jobID uuid.UUID,
	subcontractorChatID int64,
	reason *string,
) (*DeclineResult, error) {
	log := s.log.TraceFromContext(ctx).Function("Decline")

	sub, err := s.requireRole(ctx, subcontractorChatID, models.RoleSubcontractor)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != models.JobStatusSent {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job is not open for decline", "jobID", jobID, "status", job.Status)
	}
	if job.SubcontractorID != nil && *job.SubcontractorID != sub.ID {
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			"job is assigned to another subcontractor", "jobID", jobID)
	}

	applied, err := s.jobRepo.Transition(ctx, nil, job.ID, models.JobStatusSent, map[string]any{
		"subcontractor_id": nil,
		"decline_reason":   reason,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job is no longer open for decline", "jobID", jobID)
	}

	supervisor, err := s.userRepo.GetByID(ctx, job.SupervisorID)
	if err != nil {
		return nil, err
	}

	job, err = s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	log.Info("Job declined", "jobID", job.ID, "subcontractorID", sub.ID)
	return &DeclineResult{Job: job, SupervisorChatID: supervisor.ChatID}, nil
}

func (s *JobService) Start(
	ctx context.Context,
	jobID uuid.UUID,
	subcontractorChatID int64,
) (*models.Job, error) {
	log := s.log.TraceFromContext(ctx).Function("Start")

	job, _, err := s.requireBoundJob(ctx, jobID, subcontractorChatID)
	if err != nil {
		return nil, err
	}

	applied, err := s.jobRepo.Transition(ctx, nil, job.ID, models.JobStatusAccepted, map[string]any{
		"status":     models.JobStatusInProgress,
		"started_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job cannot be started", "jobID", jobID, "status", job.Status)
	}

	log.Info("Job started", "jobID", job.ID)
	return s.jobRepo.GetByID(ctx, job.ID)
}

func (s *JobService) Submit(
	ctx context.Context,
	jobID uuid.UUID,
	subcontractorChatID int64,
	notes *string,
	evidence []string,
) (*SubmitResult, error) {
	log := s.log.TraceFromContext(ctx).Function("Submit")

	if len(evidence) == 0 {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"submission requires at least one evidence item")
	}

	job, _, err := s.requireBoundJob(ctx, jobID, subcontractorChatID)
	if err != nil {
		return nil, err
	}

	evidenceJSON, err := toJSONList(evidence)
	if err != nil {
		return nil, log.Err("failed to encode evidence", err)
	}

	applied, err := s.jobRepo.Transition(ctx, nil, job.ID, models.JobStatusInProgress, map[string]any{
		"status":           models.JobStatusSubmitted,
		"submitted_at":     time.Now().UTC(),
		"evidence":         evidenceJSON,
		"submission_notes": notes,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job is not in progress", "jobID", jobID, "status", job.Status)
	}

	supervisor, err := s.userRepo.GetByID(ctx, job.SupervisorID)
	if err != nil {
		return nil, err
	}

	job, err = s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	log.Info("Work submitted", "jobID", job.ID)
	return &SubmitResult{Job: job, SupervisorChatID: supervisor.ChatID}, nil
}

// Complete closes the job out. The owning supervisor may complete from
// SUBMITTED (review) or shortcut from ACCEPTED/IN_PROGRESS, optionally
// rating the work; the bound subcontractor may mark done from
// ACCEPTED/IN_PROGRESS but a rating from them is rejected.
func (s *JobService) Complete(
	ctx context.Context,
	jobID uuid.UUID,
	callerChatID int64,
	rating *int,
	ratingComment *string,
) (*CompleteResult, error) {
	log := s.log.TraceFromContext(ctx).Function("Complete")

	caller, err := s.userRepo.GetByChatID(ctx, callerChatID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	asSupervisor := caller.ID == job.SupervisorID
	asSubcontractor := job.SubcontractorID != nil && caller.ID == *job.SubcontractorID

	switch {
	case asSupervisor:
		if job.Status != models.JobStatusSubmitted &&
			job.Status != models.JobStatusInProgress &&
			job.Status != models.JobStatusAccepted {
			return nil, log.ErrorWithType(models.ErrInvalidState,
				"job cannot be completed", "jobID", jobID, "status", job.Status)
		}
	case asSubcontractor:
		if job.Status != models.JobStatusAccepted && job.Status != models.JobStatusInProgress {
			return nil, log.ErrorWithType(models.ErrInvalidState,
				"job cannot be marked done", "jobID", jobID, "status", job.Status)
		}
		if rating != nil {
			return nil, log.ErrorWithType(models.ErrUnauthorized,
				"only the supervisor may rate a job", "jobID", jobID)
		}
	default:
		log.Warn("unauthorized completion attempt", "jobID", jobID, "chatID", callerChatID)
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			"caller may not complete this job")
	}

	updates := map[string]any{
		"status":       models.JobStatusCompleted,
		"completed_at": time.Now().UTC(),
	}
	if asSupervisor && rating != nil {
		if *rating < 1 || *rating > 5 {
			return nil, log.ErrorWithType(models.ErrInvalidState, "rating must be between 1 and 5")
		}
		updates["rating"] = *rating
		updates["rating_comment"] = ratingComment
	}

	applied, err := s.jobRepo.Transition(ctx, nil, job.ID, job.Status, updates)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job changed before completion could apply", "jobID", jobID)
	}

	var notifyChatID *int64
	if asSupervisor && job.SubcontractorID != nil {
		if sub, err := s.userRepo.GetByID(ctx, *job.SubcontractorID); err == nil {
			notifyChatID = &sub.ChatID
		}
	} else if asSubcontractor {
		if supervisor, err := s.userRepo.GetByID(ctx, job.SupervisorID); err == nil {
			notifyChatID = &supervisor.ChatID
		}
	}

	job, err = s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	log.Info("Job completed", "jobID", job.ID, "bySupervisor", asSupervisor)
	return &CompleteResult{Job: job, NotifyChatID: notifyChatID}, nil
}

func (s *JobService) Cancel(
	ctx context.Context,
	jobID uuid.UUID,
	supervisorChatID int64,
) (*models.Job, error) {
	log := s.log.TraceFromContext(ctx).Function("Cancel")

	job, _, err := s.requireOwnedJob(ctx, jobID, supervisorChatID)
	if err != nil {
		return nil, err
	}

	if job.Status != models.JobStatusCreated && job.Status != models.JobStatusSent {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"only unanswered jobs can be cancelled", "jobID", jobID, "status", job.Status)
	}

	applied, err := s.jobRepo.Transition(ctx, nil, job.ID, job.Status, map[string]any{
		"status":       models.JobStatusCancelled,
		"cancelled_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"job changed before cancellation could apply", "jobID", jobID)
	}

	log.Info("Job cancelled", "jobID", job.ID)
	return s.jobRepo.GetByID(ctx, job.ID)
}

func (s *JobService) RequestRevision(
	ctx context.Context,
	jobID uuid.UUID,
	supervisorChatID int64,
	reason string,
) (*RevisionResult, error) {
	log := s.log.TraceFromContext(ctx).Function("RequestRevision")

	if reason == "" {
		return nil, log.ErrorWithType(models.ErrInvalidState, "revision reason is required")
	}

	job, _, err := s.requireOwnedJob(ctx, jobID, supervisorChatID)
	if err != nil {
		return nil, err
	}

	applied, err := s.jobRepo.Transition(ctx, nil, job.ID, models.JobStatusSubmitted, map[string]any{
		"status":        models.JobStatusInProgress,
		"revision_note": reason,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"only submitted work can be sent back for revision",
			"jobID", jobID, "status", job.Status)
	}

	if job.SubcontractorID == nil {
		return nil, log.Error("submitted job has no bound subcontractor", "jobID", jobID)
	}
	sub, err := s.userRepo.GetByID(ctx, *job.SubcontractorID)
	if err != nil {
		return nil, err
	}

	job, err = s.jobRepo.GetByID(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	log.Info("Revision requested", "jobID", job.ID)
	return &RevisionResult{Job: job, SubcontractorChatID: sub.ChatID}, nil
}

// Get returns the job when the caller may see it: the owning supervisor,
// the bound subcontractor, any admin, or any subcontractor while the job is
// an unbound broadcast.
func (s *JobService) Get(
	ctx context.Context,
	jobID uuid.UUID,
	callerChatID int64,
) (*models.Job, error) {
	caller, err := s.userRepo.GetByChatID(ctx, callerChatID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.Role == models.RoleAdmin:
	case caller.ID == job.SupervisorID:
	case job.SubcontractorID != nil && caller.ID == *job.SubcontractorID:
	case caller.Role == models.RoleSubcontractor &&
		job.Status == models.JobStatusSent && job.SubcontractorID == nil:
	default:
		return nil, s.log.Function("Get").
			ErrorWithType(models.ErrUnauthorized, "job is not visible to the caller")
	}

	return job, nil
}

// OpenJobs lists SENT jobs visible to the subcontractor: jobs bound to them
// plus unbound broadcasts.
func (s *JobService) OpenJobs(
	ctx context.Context,
	subcontractorChatID int64,
) ([]*models.Job, error) {
	sub, err := s.requireRole(ctx, subcontractorChatID, models.RoleSubcontractor)
	if err != nil {
		return nil, err
	}

	return s.jobRepo.ListOpenForSubcontractor(ctx, sub.ID)
}

func (s *JobService) History(
	ctx context.Context,
	callerChatID int64,
	teamID *uuid.UUID,
	limit int,
) ([]*models.Job, error) {
	caller, err := s.userRepo.GetByChatID(ctx, callerChatID)
	if err != nil {
		return nil, err
	}
	if caller.Role != models.RoleSupervisor && caller.Role != models.RoleAdmin {
		return nil, s.log.Function("History").
			ErrorWithType(models.ErrUnauthorized, "history is limited to supervisors")
	}

	if limit <= 0 {
		limit = 50
	}

	return s.jobRepo.ListHistory(ctx, teamID, limit)
}

// requireRole loads the caller and checks their role; admins pass every check.
func (s *JobService) requireRole(
	ctx context.Context,
	chatID int64,
	role models.UserRole,
) (*models.User, error) {
	user, err := s.userRepo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if user.Role != role && user.Role != models.RoleAdmin {
		log := s.log.TraceFromContext(ctx).Function("requireRole")
		log.Warn("role check failed", "chatID", chatID, "role", user.Role, "required", role)
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			fmt.Sprintf("operation requires the %s role", role))
	}

	return user, nil
}

func (s *JobService) requireOwnedJob(
	ctx context.Context,
	jobID uuid.UUID,
	supervisorChatID int64,
) (*models.Job, *models.User, error) {
	supervisor, err := s.requireRole(ctx, supervisorChatID, models.RoleSupervisor)
	if err != nil {
		return nil, nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	if job.SupervisorID != supervisor.ID && supervisor.Role != models.RoleAdmin {
		log := s.log.TraceFromContext(ctx).Function("requireOwnedJob")
		log.Warn("ownership check failed", "jobID", jobID, "chatID", supervisorChatID)
		return nil, nil, log.ErrorWithType(models.ErrUnauthorized,
			"job belongs to another supervisor")
	}

	return job, supervisor, nil
}

func (s *JobService) requireBoundJob(
	ctx context.Context,
	jobID uuid.UUID,
	subcontractorChatID int64,
) (*models.Job, *models.User, error) {
	sub, err := s.requireRole(ctx, subcontractorChatID, models.RoleSubcontractor)
	if err != nil {
		return nil, nil, err
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	if job.SubcontractorID == nil || *job.SubcontractorID != sub.ID {
		log := s.log.TraceFromContext(ctx).Function("requireBoundJob")
		log.Warn("assignment check failed", "jobID", jobID, "chatID", subcontractorChatID)
		return nil, nil, log.ErrorWithType(models.ErrUnauthorized,
			"job is not assigned to the caller")
	}

	return job, sub, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(trimCurrency(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("amount must be positive: %s", raw)
	}
	return amount, nil
}

// trimCurrency strips a leading currency symbol and grouping commas so
// operator-typed prices like "$1,500" validate.
func trimCurrency(raw string) string {
	out := make([]rune, 0, len(raw))
	for i, r := range raw {
		if i == 0 && (r == '$' || r == '€' || r == '£') {
			continue
		}
		if r == ',' || r == ' ' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func toJSONList(items []string) (datatypes.JSON, error) {
	if len(items) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
