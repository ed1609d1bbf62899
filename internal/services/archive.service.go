package services

import (
	"context"
	"time"

	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/google/uuid"
)

// ArchiveService sweeps stale finished jobs into the archive on demand.
// Archiving only hides jobs from the working lists; rows are never deleted.
type ArchiveService struct {
	jobRepo  repositories.JobRepository
	userRepo repositories.UserRepository
	log      logger.Logger
}

func NewArchiveService(repos repositories.Repository) *ArchiveService {
	return &ArchiveService{
		jobRepo:  repos.Job,
		userRepo: repos.User,
		log:      logger.New("ArchiveService"),
	}
}

// SweepArchive archives every sweepable job older than the given age and
// returns how many moved. Each job is archived with a per-status guard, so a
// sweep racing a concurrent transition (or another sweep) simply skips the
// row; re-running the sweep is a no-op.
func (s *ArchiveService) SweepArchive(
	ctx context.Context,
	callerChatID int64,
	olderThan time.Duration,
) (int, error) {
	log := s.log.TraceFromContext(ctx).Function("SweepArchive")

	caller, err := s.userRepo.GetByChatID(ctx, callerChatID)
	if err != nil {
		return 0, err
	}
	if caller.Role != models.RoleAdmin {
		return 0, log.ErrorWithType(models.ErrUnauthorized,
			"archive sweep is limited to admins")
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	candidates, err := s.jobRepo.ListArchivable(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, job := range candidates {
		applied, err := s.jobRepo.Archive(ctx, job.ID)
		if err != nil {
			log.Warn("failed to archive job", "jobID", job.ID, "error", err)
			continue
		}
		if applied {
			archived++
		}
	}

	log.Info("Archive sweep finished",
		"cutoff", cutoff, "candidates", len(candidates), "archived", archived)
	return archived, nil
}

func (s *ArchiveService) ListArchived(
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
		return nil, s.log.Function("ListArchived").
			ErrorWithType(models.ErrUnauthorized, "archive is limited to supervisors")
	}

	if limit <= 0 {
		limit = 50
	}
	return s.jobRepo.ListArchived(ctx, teamID, limit)
}
