package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crewdispatch/config"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"
	"crewdispatch/internal/services"
)

// FollowUpJob is the periodic sweep over open jobs: nudge unanswered
// dispatches, close out the ones nobody ever took, warn about imminent
// deadlines, and open the weekly availability surveys. The scans run in
// that order and a failing scan never blocks the ones after it.
type FollowUpJob struct {
	jobRepo      repositories.JobRepository
	userRepo     repositories.UserRepository
	availability *services.AvailabilityService
	notifier     services.Notifier
	config       config.Config
	log          logger.Logger
	schedule     services.Schedule
}

func NewFollowUpJob(
	repos repositories.Repository,
	availability *services.AvailabilityService,
	notifier services.Notifier,
	cfg config.Config,
	schedule services.Schedule,
) *FollowUpJob {
	return &FollowUpJob{
		jobRepo:      repos.Job,
		userRepo:     repos.User,
		availability: availability,
		notifier:     notifier,
		config:       cfg,
		log:          logger.New("followUpJob"),
		schedule:     schedule,
	}
}

func (j *FollowUpJob) Name() string {
	return "JobFollowUps"
}

func (j *FollowUpJob) Schedule() services.Schedule {
	return j.schedule
}

func (j *FollowUpJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	now := time.Now().UTC()
	var failures []error

	if err := j.scanReminders(ctx, now); err != nil {
		failures = append(failures, log.Err("reminder scan failed", err))
	}
	if err := j.scanAutoClose(ctx, now); err != nil {
		failures = append(failures, log.Err("auto-close scan failed", err))
	}
	if err := j.scanDeadlines(ctx, now); err != nil {
		failures = append(failures, log.Err("deadline scan failed", err))
	}
	if j.surveyDue(now) {
		if err := j.scanSurveys(ctx, now); err != nil {
			failures = append(failures, log.Err("survey scan failed", err))
		}
	}

	return errors.Join(failures...)
}

// scanReminders nudges jobs that have sat in SENT past the reminder window.
// The sent-flag mark is a conditional write, so overlapping ticks cannot
// double-remind the same job.
func (j *FollowUpJob) scanReminders(ctx context.Context, now time.Time) error {
	log := j.log.Function("scanReminders")

	cutoff := now.Add(-time.Duration(j.config.ReminderHours) * time.Hour)
	due, err := j.jobRepo.ListReminderDue(ctx, cutoff)
	if err != nil {
		return err
	}

	reminded := 0
	for _, job := range due {
		applied, err := j.jobRepo.MarkReminderSent(ctx, job.ID)
		if err != nil {
			log.Warn("failed to mark reminder", "jobID", job.ID, "error", err)
			continue
		}
		if !applied {
			continue
		}

		text := fmt.Sprintf("Still waiting on a response for job: %s", job.Title)
		if job.SubcontractorID != nil {
			if sub, err := j.userRepo.GetByID(ctx, *job.SubcontractorID); err == nil {
				j.notifier.Send(ctx, sub.ChatID, text)
			}
		}
		if supervisor, err := j.userRepo.GetByID(ctx, job.SupervisorID); err == nil {
			j.notifier.Send(ctx, supervisor.ChatID,
				fmt.Sprintf("No response yet on job: %s", job.Title))
		}
		reminded++
	}

	if reminded > 0 {
		log.Info("Reminders sent", "count", reminded)
	}
	return nil
}

// scanAutoClose cancels jobs nobody accepted within the auto-close window.
func (j *FollowUpJob) scanAutoClose(ctx context.Context, now time.Time) error {
	log := j.log.Function("scanAutoClose")

	cutoff := now.Add(-time.Duration(j.config.AutoCloseHours) * time.Hour)
	due, err := j.jobRepo.ListAutoCloseDue(ctx, cutoff)
	if err != nil {
		return err
	}

	closed := 0
	for _, job := range due {
		applied, err := j.jobRepo.Transition(ctx, nil, job.ID, models.JobStatusSent, map[string]any{
			"status":       models.JobStatusCancelled,
			"cancelled_at": now,
		})
		if err != nil {
			log.Warn("failed to auto-close job", "jobID", job.ID, "error", err)
			continue
		}
		if !applied {
			// Someone accepted between the list and the write; leave it be.
			continue
		}

		if supervisor, err := j.userRepo.GetByID(ctx, job.SupervisorID); err == nil {
			j.notifier.Send(ctx, supervisor.ChatID,
				fmt.Sprintf("Job closed automatically with no takers: %s", job.Title))
		}
		closed++
	}

	if closed > 0 {
		log.Info("Jobs auto-closed", "count", closed)
	}
	return nil
}

// scanDeadlines warns the bound subcontractor when a deadline falls within
// the next 24 hours. One warning per job.
func (j *FollowUpJob) scanDeadlines(ctx context.Context, now time.Time) error {
	log := j.log.Function("scanDeadlines")

	due, err := j.jobRepo.ListDeadlineApproaching(ctx, now.Add(24*time.Hour))
	if err != nil {
		return err
	}

	warned := 0
	for _, job := range due {
		applied, err := j.jobRepo.MarkDeadlineReminderSent(ctx, job.ID)
		if err != nil {
			log.Warn("failed to mark deadline warning", "jobID", job.ID, "error", err)
			continue
		}
		if !applied || job.SubcontractorID == nil || job.Deadline == nil {
			continue
		}

		if sub, err := j.userRepo.GetByID(ctx, *job.SubcontractorID); err == nil {
			j.notifier.Send(ctx, sub.ChatID, fmt.Sprintf(
				"Deadline approaching for job %s: due %s",
				job.Title, job.Deadline.Format("Mon Jan 2 15:04"),
			))
		}
		warned++
	}

	if warned > 0 {
		log.Info("Deadline warnings sent", "count", warned)
	}
	return nil
}

// scanSurveys opens next week's availability surveys and prompts their owners.
func (j *FollowUpJob) scanSurveys(ctx context.Context, now time.Time) error {
	log := j.log.Function("scanSurveys")

	created, err := j.availability.OpenSurveys(ctx, now)
	if err != nil {
		return err
	}

	for _, survey := range created {
		if survey.Subcontractor == nil {
			continue
		}
		j.notifier.Send(ctx, survey.Subcontractor.ChatID, fmt.Sprintf(
			"Which days are you available for the week of %s?",
			survey.WeekStart.Format("Jan 2"),
		))
	}

	if len(created) > 0 {
		log.Info("Survey prompts sent", "count", len(created))
	}
	return nil
}

func (j *FollowUpJob) surveyDue(now time.Time) bool {
	return now.Weekday() == j.config.SurveyDay()
}
