package repositories

import (
	"context"
	"errors"
	"time"

	"crewdispatch/internal/database"
	"crewdispatch/internal/logger"
	. "crewdispatch/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// Transition applies updates to the job only if its status still equals
	// from, as a single conditional UPDATE. It reports whether the write was
	// applied; false means another transition won the race or the job does
	// not exist. Pass a tx to make the transition part of a larger atomic
	// unit, or nil to run standalone.
	Transition(
		ctx context.Context,
		tx *gorm.DB,
		jobID uuid.UUID,
		from JobStatus,
		updates map[string]any,
	) (bool, error)

	// AcceptBind atomically claims a SENT job for the subcontractor. The
	// guard covers both the broadcast race (first acceptor wins, the loser
	// sees zero rows) and targeted dispatch (a job pre-bound to someone else
	// is not claimable).
	AcceptBind(ctx context.Context, jobID, subcontractorID uuid.UUID) (bool, error)

	ListOpenForSubcontractor(ctx context.Context, subcontractorID uuid.UUID) ([]*Job, error)
	ListHistory(ctx context.Context, teamID *uuid.UUID, limit int) ([]*Job, error)
	ListArchived(ctx context.Context, teamID *uuid.UUID, limit int) ([]*Job, error)

	ListReminderDue(ctx context.Context, cutoff time.Time) ([]*Job, error)
	ListAutoCloseDue(ctx context.Context, cutoff time.Time) ([]*Job, error)
	ListDeadlineApproaching(ctx context.Context, until time.Time) ([]*Job, error)
	ListArchivable(ctx context.Context, cutoff time.Time) ([]*Job, error)

	MarkReminderSent(ctx context.Context, jobID uuid.UUID) (bool, error)
	MarkDeadlineReminderSent(ctx context.Context, jobID uuid.UUID) (bool, error)
	Archive(ctx context.Context, jobID uuid.UUID) (bool, error)
}

// archivableStatuses mirrors the sweep condition the original system used:
// accepted-but-stalled, completed and cancelled jobs age out; open sent jobs
// are handled by the auto-close scan instead.
var archivableStatuses = []JobStatus{
	JobStatusAccepted,
	JobStatusCompleted,
	JobStatusCancelled,
}

type jobRepository struct {
	db  database.DB
	log logger.Logger
}

func NewJobRepository(db database.DB) JobRepository {
	return &jobRepository{
		db:  db,
		log: logger.New("jobRepository"),
	}
}

func (r *jobRepository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.SQL.WithContext(ctx)
}

func (r *jobRepository) Create(ctx context.Context, job *Job) error {
	log := r.log.Function("Create")

	if err := r.conn(ctx, nil).Create(job).Error; err != nil {
		return log.Err("failed to create job", err, "title", job.Title)
	}

	log.Info("Job created", "jobID", job.ID, "supervisorID", job.SupervisorID)
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	log := r.log.Function("GetByID")

	var job Job
	err := r.conn(ctx, nil).
		Preload("Supervisor").
		Preload("Subcontractor").
		First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get job", err, "jobID", id)
	}

	return &job, nil
}

func (r *jobRepository) Transition(
	ctx context.Context,
	tx *gorm.DB,
	jobID uuid.UUID,
	from JobStatus,
	updates map[string]any,
) (bool, error) {
	log := r.log.Function("Transition")

	result := r.conn(ctx, tx).
		Model(&Job{}).
		Where("id = ? AND status = ?", jobID, from).
		Updates(updates)
	if result.Error != nil {
		return false, log.Err("failed to transition job", result.Error,
			"jobID", jobID, "from", from)
	}

	return result.RowsAffected > 0, nil
}

func (r *jobRepository) AcceptBind(
	ctx context.Context,
	jobID, subcontractorID uuid.UUID,
) (bool, error) {
	log := r.log.Function("AcceptBind")

	result := r.conn(ctx, nil).
		Model(&Job{}).
		Where("id = ? AND status = ? AND (subcontractor_id IS NULL OR subcontractor_id = ?)",
			jobID, JobStatusSent, subcontractorID).
		Updates(map[string]any{
			"status":           JobStatusAccepted,
			"subcontractor_id": subcontractorID,
			"accepted_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, log.Err("failed to accept job", result.Error,
			"jobID", jobID, "subcontractorID", subcontractorID)
	}

	return result.RowsAffected > 0, nil
}

func (r *jobRepository) ListOpenForSubcontractor(
	ctx context.Context,
	subcontractorID uuid.UUID,
) ([]*Job, error) {
	log := r.log.Function("ListOpenForSubcontractor")

	var jobs []*Job
	err := r.conn(ctx, nil).
		Where("status = ? AND (subcontractor_id = ? OR subcontractor_id IS NULL)",
			JobStatusSent, subcontractorID).
		Order("sent_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, log.Err("failed to list open jobs", err, "subcontractorID", subcontractorID)
	}

	return jobs, nil
}

func (r *jobRepository) ListHistory(
	ctx context.Context,
	teamID *uuid.UUID,
	limit int,
) ([]*Job, error) {
	log := r.log.Function("ListHistory")

	query := r.conn(ctx, nil).Where("status != ?", JobStatusArchived)
	if teamID != nil {
		query = query.Where("team_id = ?", teamID)
	}

	var jobs []*Job
	if err := query.Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, log.Err("failed to list job history", err)
	}

	return jobs, nil
}

func (r *jobRepository) ListArchived(
	ctx context.Context,
	teamID *uuid.UUID,
	limit int,
) ([]*Job, error) {
	log := r.log.Function("ListArchived")

	query := r.conn(ctx, nil).Where("status = ?", JobStatusArchived)
	if teamID != nil {
		query = query.Where("team_id = ?", teamID)
	}

	var jobs []*Job
	if err := query.Order("archived_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, log.Err("failed to list archived jobs", err)
	}

	return jobs, nil
}

func (r *jobRepository) ListReminderDue(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	log := r.log.Function("ListReminderDue")

	var jobs []*Job
	err := r.conn(ctx, nil).
		Preload("Subcontractor").
		Where("status = ? AND subcontractor_id IS NOT NULL AND sent_at < ? AND reminder_sent = ?",
			JobStatusSent, cutoff, false).
		Find(&jobs).Error
	if err != nil {
		return nil, log.Err("failed to list reminder-due jobs", err)
	}

	return jobs, nil
}

func (r *jobRepository) ListAutoCloseDue(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	log := r.log.Function("ListAutoCloseDue")

	var jobs []*Job
	err := r.conn(ctx, nil).
		Preload("Supervisor").
		Where("status = ? AND sent_at < ?", JobStatusSent, cutoff).
		Find(&jobs).Error
	if err != nil {
		return nil, log.Err("failed to list auto-close-due jobs", err)
	}

	return jobs, nil
}

func (r *jobRepository) ListDeadlineApproaching(
	ctx context.Context,
	until time.Time,
) ([]*Job, error) {
	log := r.log.Function("ListDeadlineApproaching")

	var jobs []*Job
	err := r.conn(ctx, nil).
		Preload("Subcontractor").
		Where("status IN ? AND deadline IS NOT NULL AND deadline <= ? AND deadline_reminder_sent = ?",
			[]JobStatus{JobStatusAccepted, JobStatusInProgress}, until, false).
		Find(&jobs).Error
	if err != nil {
		return nil, log.Err("failed to list deadline-approaching jobs", err)
	}

	return jobs, nil
}

func (r *jobRepository) ListArchivable(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	log := r.log.Function("ListArchivable")

	var jobs []*Job
	err := r.conn(ctx, nil).
		Where("status IN ? AND created_at < ? AND archived_at IS NULL",
			archivableStatuses, cutoff).
		Find(&jobs).Error
	if err != nil {
		return nil, log.Err("failed to list archivable jobs", err)
	}

	return jobs, nil
}

func (r *jobRepository) MarkReminderSent(ctx context.Context, jobID uuid.UUID) (bool, error) {
	log := r.log.Function("MarkReminderSent")

	result := r.conn(ctx, nil).
		Model(&Job{}).
		Where("id = ? AND reminder_sent = ?", jobID, false).
		Updates(map[string]any{
			"reminder_sent":    true,
			"reminder_sent_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, log.Err("failed to mark reminder sent", result.Error, "jobID", jobID)
	}

	return result.RowsAffected > 0, nil
}

func (r *jobRepository) MarkDeadlineReminderSent(
	ctx context.Context,
	jobID uuid.UUID,
) (bool, error) {
	log := r.log.Function("MarkDeadlineReminderSent")

	result := r.conn(ctx, nil).
		Model(&Job{}).
		Where("id = ? AND deadline_reminder_sent = ?", jobID, false).
		Update("deadline_reminder_sent", true)
	if result.Error != nil {
		return false, log.Err("failed to mark deadline reminder sent", result.Error, "jobID", jobID)
	}

	return result.RowsAffected > 0, nil
}

func (r *jobRepository) Archive(ctx context.Context, jobID uuid.UUID) (bool, error) {
	log := r.log.Function("Archive")

	result := r.conn(ctx, nil).
		Model(&Job{}).
		Where("id = ? AND archived_at IS NULL AND status IN ?", jobID, archivableStatuses).
		Updates(map[string]any{
			"status":      JobStatusArchived,
			"archived_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, log.Err("failed to archive job", result.Error, "jobID", jobID)
	}

	return result.RowsAffected > 0, nil
}
