package services

import (
	"context"
	"time"

	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/google/uuid"
)

// AvailabilityService tracks each subcontractor's dispatch eligibility and
// runs the weekly availability survey. Availability gates broadcast fan-out
// only; it never blocks a targeted dispatch.
type AvailabilityService struct {
	userRepo   repositories.UserRepository
	surveyRepo repositories.SurveyRepository
	log        logger.Logger
}

func NewAvailabilityService(repos repositories.Repository) *AvailabilityService {
	return &AvailabilityService{
		userRepo:   repos.User,
		surveyRepo: repos.Survey,
		log:        logger.New("AvailabilityService"),
	}
}

func (s *AvailabilityService) SetStatus(
	ctx context.Context,
	chatID int64,
	status models.AvailabilityStatus,
) (*models.User, error) {
	log := s.log.TraceFromContext(ctx).Function("SetStatus")

	switch status {
	case models.AvailabilityAvailable, models.AvailabilityBusy, models.AvailabilityAway:
	default:
		return nil, log.ErrorWithType(models.ErrInvalidState, "unknown availability status")
	}

	user, err := s.userRepo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleSubcontractor {
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			"availability applies to subcontractors only")
	}

	if err := s.userRepo.SetAvailability(ctx, user.ID, status); err != nil {
		return nil, err
	}

	log.Info("Availability changed", "userID", user.ID, "status", status)
	return s.userRepo.GetByChatID(ctx, chatID)
}

func (s *AvailabilityService) Status(
	ctx context.Context,
	chatID int64,
) (models.AvailabilityStatus, error) {
	user, err := s.userRepo.GetByChatID(ctx, chatID)
	if err != nil {
		return "", err
	}
	if user.Availability == nil {
		return models.AvailabilityAvailable, nil
	}
	return *user.Availability, nil
}

// EligibleForBroadcast lists the subcontractors a broadcast dispatch would
// reach right now.
func (s *AvailabilityService) EligibleForBroadcast(
	ctx context.Context,
	teamID *uuid.UUID,
) ([]*models.User, error) {
	return s.userRepo.ListEligibleSubcontractors(ctx, teamID)
}

// OpenSurveys creates next week's survey for every active subcontractor and
// returns the newly created ones so the caller can prompt their owners.
// Subcontractors already holding a survey for that week are skipped, which
// keeps a re-run of the weekly tick from double-prompting anyone.
func (s *AvailabilityService) OpenSurveys(
	ctx context.Context,
	now time.Time,
) ([]*models.WeeklyAvailabilitySurvey, error) {
	log := s.log.TraceFromContext(ctx).Function("OpenSurveys")

	subs, err := s.userRepo.ListActiveSubcontractors(ctx)
	if err != nil {
		return nil, err
	}

	weekStart := models.NextWeekStart(now)
	created := make([]*models.WeeklyAvailabilitySurvey, 0, len(subs))
	for _, sub := range subs {
		survey := &models.WeeklyAvailabilitySurvey{
			SubcontractorID: sub.ID,
			WeekStart:       weekStart,
			Subcontractor:   sub,
		}
		inserted, err := s.surveyRepo.CreateIfMissing(ctx, survey)
		if err != nil {
			log.Warn("failed to open survey", "subcontractorID", sub.ID, "error", err)
			continue
		}
		if inserted {
			created = append(created, survey)
		}
	}

	log.Info("Weekly surveys opened", "weekStart", weekStart, "created", len(created))
	return created, nil
}

// ToggleDay flips one weekday on the caller's survey for the given week.
// Toggling is only allowed before the survey is finalized.
func (s *AvailabilityService) ToggleDay(
	ctx context.Context,
	chatID int64,
	weekStart time.Time,
	day time.Weekday,
) (*models.WeeklyAvailabilitySurvey, error) {
	log := s.log.TraceFromContext(ctx).Function("ToggleDay")

	survey, err := s.ownSurvey(ctx, chatID, weekStart)
	if err != nil {
		return nil, err
	}
	if survey.Answered() {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"survey has already been submitted")
	}

	switch day {
	case time.Monday:
		survey.Monday = !survey.Monday
	case time.Tuesday:
		survey.Tuesday = !survey.Tuesday
	case time.Wednesday:
		survey.Wednesday = !survey.Wednesday
	case time.Thursday:
		survey.Thursday = !survey.Thursday
	case time.Friday:
		survey.Friday = !survey.Friday
	default:
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"surveys cover weekdays only")
	}

	if err := s.surveyRepo.Update(ctx, survey); err != nil {
		return nil, err
	}
	return survey, nil
}

func (s *AvailabilityService) AddSurveyNotes(
	ctx context.Context,
	chatID int64,
	weekStart time.Time,
	notes string,
) (*models.WeeklyAvailabilitySurvey, error) {
	log := s.log.TraceFromContext(ctx).Function("AddSurveyNotes")

	survey, err := s.ownSurvey(ctx, chatID, weekStart)
	if err != nil {
		return nil, err
	}
	if survey.Answered() {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"survey has already been submitted")
	}

	survey.Notes = &notes
	if err := s.surveyRepo.Update(ctx, survey); err != nil {
		return nil, err
	}
	return survey, nil
}

// Finalize stamps the survey as answered. A subcontractor reporting no
// available weekdays is flipped to BUSY so broadcasts skip them next week.
func (s *AvailabilityService) Finalize(
	ctx context.Context,
	chatID int64,
	weekStart time.Time,
) (*models.WeeklyAvailabilitySurvey, error) {
	log := s.log.TraceFromContext(ctx).Function("Finalize")

	survey, err := s.ownSurvey(ctx, chatID, weekStart)
	if err != nil {
		return nil, err
	}
	if survey.Answered() {
		return survey, nil
	}

	now := time.Now().UTC()
	survey.RespondedAt = &now
	if err := s.surveyRepo.Update(ctx, survey); err != nil {
		return nil, err
	}

	anyDay := survey.Monday || survey.Tuesday || survey.Wednesday ||
		survey.Thursday || survey.Friday
	status := models.AvailabilityAvailable
	if !anyDay {
		status = models.AvailabilityBusy
	}
	if err := s.userRepo.SetAvailability(ctx, survey.SubcontractorID, status); err != nil {
		log.Warn("failed to sync availability from survey",
			"subcontractorID", survey.SubcontractorID, "error", err)
	}

	log.Info("Survey finalized", "surveyID", survey.ID, "anyDay", anyDay)
	return survey, nil
}

func (s *AvailabilityService) SurveyForWeek(
	ctx context.Context,
	chatID int64,
	weekStart time.Time,
) (*models.WeeklyAvailabilitySurvey, error) {
	return s.ownSurvey(ctx, chatID, weekStart)
}

func (s *AvailabilityService) ownSurvey(
	ctx context.Context,
	chatID int64,
	weekStart time.Time,
) (*models.WeeklyAvailabilitySurvey, error) {
	user, err := s.userRepo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	survey, err := s.surveyRepo.GetForWeek(ctx, user.ID, weekStart)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, s.log.Function("ownSurvey").
			ErrorWithType(models.ErrNotFound, "no survey open for that week")
	}
	return survey, nil
}
