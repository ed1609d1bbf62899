package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crewdispatch/config"
	"crewdispatch/internal/database"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"
	"crewdispatch/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var testDBCounter atomic.Int64

func newTestDB(t *testing.T) (database.DB, repositories.Repository) {
	t.Helper()

	dsn := fmt.Sprintf("file:jobs_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := database.DB{SQL: gdb}
	require.NoError(t, db.MigrateModels())
	require.NoError(t, db.CreateIndexes())

	return db, repositories.New(db)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: map[int64][]string{}}
}

func (r *recordingNotifier) Send(ctx context.Context, chatID int64, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[chatID] = append(r.sent[chatID], text)
	return true
}

func (r *recordingNotifier) count(chatID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent[chatID])
}

type followUpEnv struct {
	db       database.DB
	repos    repositories.Repository
	notifier *recordingNotifier
	job      *FollowUpJob

	supervisor *models.User
	sub        *models.User
}

func newFollowUpEnv(t *testing.T) *followUpEnv {
	t.Helper()

	db, repos := newTestDB(t)
	notifier := newRecordingNotifier()
	cfg := config.Config{
		ReminderHours:  24,
		AutoCloseHours: 72,
		SurveyWeekday:  "Sunday",
	}

	env := &followUpEnv{
		db:       db,
		repos:    repos,
		notifier: notifier,
		job: NewFollowUpJob(
			repos,
			services.NewAvailabilityService(repos),
			notifier,
			cfg,
			services.Tick,
		),
	}

	ctx := context.Background()
	env.supervisor = &models.User{ChatID: 1001, Role: models.RoleSupervisor, IsActive: true}
	require.NoError(t, repos.User.Create(ctx, nil, env.supervisor))
	env.sub = &models.User{ChatID: 2001, Role: models.RoleSubcontractor, IsActive: true}
	require.NoError(t, repos.User.Create(ctx, nil, env.sub))

	return env
}

// sentJob inserts a job already in SENT, dispatched hoursAgo hours in the
// past, optionally bound to the env's subcontractor.
func (e *followUpEnv) sentJob(t *testing.T, hoursAgo int, bound bool) *models.Job {
	t.Helper()

	sentAt := time.Now().UTC().Add(-time.Duration(hoursAgo) * time.Hour)
	job := &models.Job{
		Title:        "Gutter cleaning",
		JobType:      models.JobTypePresetPrice,
		PresetPrice:  func() *string { s := "80"; return &s }(),
		Status:       models.JobStatusSent,
		SupervisorID: e.supervisor.ID,
		SentAt:       &sentAt,
	}
	if bound {
		job.SubcontractorID = &e.sub.ID
	}
	require.NoError(t, e.repos.Job.Create(context.Background(), job))
	return job
}

func TestScanReminders_NudgesOnceAndOnlyOnce(t *testing.T) {
	env := newFollowUpEnv(t)
	ctx := context.Background()

	stale := env.sentJob(t, 30, true)
	env.sentJob(t, 2, true) // inside the window, left alone

	now := time.Now().UTC()
	require.NoError(t, env.job.scanReminders(ctx, now))

	assert.Equal(t, 1, env.notifier.count(env.sub.ChatID))
	assert.Equal(t, 1, env.notifier.count(env.supervisor.ChatID))

	fresh, err := env.repos.Job.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, fresh.ReminderSent)
	assert.NotNil(t, fresh.ReminderSentAt)

	// The next tick finds nothing to do.
	require.NoError(t, env.job.scanReminders(ctx, now))
	assert.Equal(t, 1, env.notifier.count(env.sub.ChatID))
}

func TestScanAutoClose_CancelsAbandonedJobs(t *testing.T) {
	env := newFollowUpEnv(t)
	ctx := context.Background()

	abandoned := env.sentJob(t, 100, false)
	recent := env.sentJob(t, 10, false)

	require.NoError(t, env.job.scanAutoClose(ctx, time.Now().UTC()))

	fresh, err := env.repos.Job.GetByID(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, fresh.Status)
	assert.NotNil(t, fresh.CancelledAt)

	fresh, err = env.repos.Job.GetByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSent, fresh.Status)

	assert.Equal(t, 1, env.notifier.count(env.supervisor.ChatID))
}

func TestScanAutoClose_SkipsJobAcceptedMidScan(t *testing.T) {
	env := newFollowUpEnv(t)
	ctx := context.Background()

	job := env.sentJob(t, 100, false)

	// Simulate an acceptance landing between the list and the write.
	applied, err := env.repos.Job.AcceptBind(ctx, job.ID, env.sub.ID)
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, env.job.scanAutoClose(ctx, time.Now().UTC()))

	fresh, err := env.repos.Job.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusAccepted, fresh.Status)
}

func TestScanDeadlines_WarnsBoundSubcontractorOnce(t *testing.T) {
	env := newFollowUpEnv(t)
	ctx := context.Background()

	job := env.sentJob(t, 1, true)
	applied, err := env.repos.Job.AcceptBind(ctx, job.ID, env.sub.ID)
	require.NoError(t, err)
	require.True(t, applied)

	deadline := time.Now().UTC().Add(6 * time.Hour)
	require.NoError(t, env.db.SQL.Model(&models.Job{}).
		Where("id = ?", job.ID).
		Update("deadline", deadline).Error)

	now := time.Now().UTC()
	require.NoError(t, env.job.scanDeadlines(ctx, now))
	assert.Equal(t, 1, env.notifier.count(env.sub.ChatID))

	require.NoError(t, env.job.scanDeadlines(ctx, now))
	assert.Equal(t, 1, env.notifier.count(env.sub.ChatID))
}

func TestScanDeadlines_IgnoresDistantDeadlines(t *testing.T) {
	env := newFollowUpEnv(t)
	ctx := context.Background()

	job := env.sentJob(t, 1, true)
	applied, err := env.repos.Job.AcceptBind(ctx, job.ID, env.sub.ID)
	require.NoError(t, err)
	require.True(t, applied)

	deadline := time.Now().UTC().Add(72 * time.Hour)
	require.NoError(t, env.db.SQL.Model(&models.Job{}).
		Where("id = ?", job.ID).
		Update("deadline", deadline).Error)

	require.NoError(t, env.job.scanDeadlines(ctx, time.Now().UTC()))
	assert.Zero(t, env.notifier.count(env.sub.ChatID))
}

func TestScanSurveys_PromptsEachSubcontractorOnce(t *testing.T) {
	env := newFollowUpEnv(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, env.job.scanSurveys(ctx, now))
	assert.Equal(t, 1, env.notifier.count(env.sub.ChatID))

	// Re-running the weekly tick does not double-prompt.
	require.NoError(t, env.job.scanSurveys(ctx, now))
	assert.Equal(t, 1, env.notifier.count(env.sub.ChatID))
}

func TestSurveyDue_MatchesConfiguredWeekday(t *testing.T) {
	env := newFollowUpEnv(t)

	sunday := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	assert.True(t, env.job.surveyDue(sunday))
	assert.False(t, env.job.surveyDue(sunday.Add(24*time.Hour)))
}

func TestExecute_ScanFailureDoesNotBlockOthers(t *testing.T) {
	env := newFollowUpEnv(t)

	// Closing the pool makes every scan fail; Execute must still surface an
	// error rather than panic.
	sqlDB, err := env.db.SQL.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.Error(t, env.job.Execute(context.Background()))
}

func TestFollowUpJob_Name(t *testing.T) {
	env := newFollowUpEnv(t)
	assert.Equal(t, "JobFollowUps", env.job.Name())
	assert.Equal(t, services.Tick, env.job.Schedule())
}
