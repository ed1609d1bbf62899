package services

import (
	"context"
	"testing"
	"time"

	"crewdispatch/internal/database"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ageJob rewinds a job's creation time so the sweep sees it as stale.
func ageJob(t *testing.T, db database.DB, jobID uuid.UUID, daysAgo int) {
	t.Helper()
	past := time.Now().UTC().AddDate(0, 0, -daysAgo)
	err := db.SQL.Model(&models.Job{}).
		Where("id = ?", jobID).
		Update("created_at", past).Error
	require.NoError(t, err)
}

func finishJob(
	t *testing.T,
	jobSvc *JobService,
	repos repositories.Repository,
	supervisor, sub *models.User,
) *models.Job {
	t.Helper()
	ctx := context.Background()

	job := createDispatchedJob(t, jobSvc, supervisor, DispatchTarget{All: true})
	_, err := jobSvc.Accept(ctx, job.ID, sub.ChatID)
	require.NoError(t, err)
	_, err = jobSvc.Complete(ctx, job.ID, sub.ChatID, nil, nil)
	require.NoError(t, err)

	fresh, err := repos.Job.GetByID(ctx, job.ID)
	require.NoError(t, err)
	return fresh
}

func TestSweepArchive_MovesOnlyStaleFinishedJobs(t *testing.T) {
	db, repos := newTestDB(t)
	jobSvc := NewJobService(repos, &fakeNotifier{})
	svc := NewArchiveService(repos)
	ctx := context.Background()

	admin := createUser(t, repos, 9001, models.RoleAdmin)
	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)

	stale := finishJob(t, jobSvc, repos, supervisor, sub)
	recent := finishJob(t, jobSvc, repos, supervisor, sub)
	open := createDispatchedJob(t, jobSvc, supervisor, DispatchTarget{All: true})

	// Age one finished job past the cutoff.
	ageJob(t, db, stale.ID, 120)

	archived, err := svc.SweepArchive(ctx, admin.ChatID, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	check, err := repos.Job.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusArchived, check.Status)
	assert.NotNil(t, check.ArchivedAt)

	check, err = repos.Job.GetByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, check.Status)

	check, err = repos.Job.GetByID(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSent, check.Status)
}

func TestSweepArchive_RerunIsNoOp(t *testing.T) {
	db, repos := newTestDB(t)
	jobSvc := NewJobService(repos, &fakeNotifier{})
	svc := NewArchiveService(repos)
	ctx := context.Background()

	admin := createUser(t, repos, 9001, models.RoleAdmin)
	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)

	job := finishJob(t, jobSvc, repos, supervisor, sub)
	ageJob(t, db, job.ID, 120)

	first, err := svc.SweepArchive(ctx, admin.ChatID, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := svc.SweepArchive(ctx, admin.ChatID, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestSweepArchive_AdminOnly(t *testing.T) {
	_, repos := newTestDB(t)
	svc := NewArchiveService(repos)

	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)

	_, err := svc.SweepArchive(context.Background(), supervisor.ChatID, 90*24*time.Hour)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestListArchived_VisibleToSupervisors(t *testing.T) {
	db, repos := newTestDB(t)
	jobSvc := NewJobService(repos, &fakeNotifier{})
	svc := NewArchiveService(repos)
	ctx := context.Background()

	admin := createUser(t, repos, 9001, models.RoleAdmin)
	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)

	job := finishJob(t, jobSvc, repos, supervisor, sub)
	ageJob(t, db, job.ID, 120)

	_, err := svc.SweepArchive(ctx, admin.ChatID, 90*24*time.Hour)
	require.NoError(t, err)

	jobs, err := svc.ListArchived(ctx, supervisor.ChatID, nil, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	_, err = svc.ListArchived(ctx, sub.ChatID, nil, 0)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
