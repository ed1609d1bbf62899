package services

import (
	"context"
	"testing"

	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuoteHarness(t *testing.T) (*QuoteService, *JobService, repositories.Repository) {
	t.Helper()
	db, repos := newTestDB(t)
	transaction := NewTransactionService(db)
	return NewQuoteService(repos, transaction), NewJobService(repos, &fakeNotifier{}), repos
}

func createQuoteJob(
	t *testing.T,
	jobSvc *JobService,
	supervisor *models.User,
) *models.Job {
	t.Helper()
	ctx := context.Background()

	job, err := jobSvc.Create(ctx, supervisor.ChatID, CreateJobInput{
		Title:   "Bathroom renovation",
		JobType: models.JobTypeQuote,
	})
	require.NoError(t, err)

	result, err := jobSvc.Dispatch(ctx, job.ID, supervisor.ChatID, DispatchTarget{All: true})
	require.NoError(t, err)
	return result.Job
}

func TestQuoteSubmit_RecordsBid(t *testing.T) {
	quoteSvc, jobSvc, repos := newQuoteHarness(t)
	ctx := context.Background()

	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)
	job := createQuoteJob(t, jobSvc, supervisor)

	notes := "materials included"
	quote, err := quoteSvc.Submit(ctx, job.ID, sub.ChatID, "$2,500", &notes)
	require.NoError(t, err)
	assert.Equal(t, "2500.00", quote.Amount)
	assert.False(t, quote.IsAccepted)
	assert.False(t, quote.IsDeclined)
}

func TestQuoteSubmit_RejectsInvalidAmounts(t *testing.T) {
	quoteSvc, jobSvc, repos := newQuoteHarness(t)
	ctx := context.Background()

	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)
	job := createQuoteJob(t, jobSvc, supervisor)

	for _, amount := range []string{"", "abc", "-50", "0"} {
		_, err := quoteSvc.Submit(ctx, job.ID, sub.ChatID, amount, nil)
		assert.ErrorIs(t, err, models.ErrInvalidState, "amount %q", amount)
	}
}

func TestQuoteSubmit_SecondActiveBidRejected(t *testing.T) {
	quoteSvc, jobSvc, repos := newQuoteHarness(t)
	ctx := context.Background()

	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)
	job := createQuoteJob(t, jobSvc, supervisor)

	_, err := quoteSvc.Submit(ctx, job.ID, sub.ChatID, "100", nil)
	require.NoError(t, err)

	// The bidder uniqueness index rejects the duplicate at write time.
	_, err = quoteSvc.Submit(ctx, job.ID, sub.ChatID, "90", nil)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestQuoteDecline_FreesBidderToResubmit(t *testing.T) {
	quoteSvc, jobSvc, repos := newQuoteHarness(t)
	ctx := context.Background()

	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)
	job := createQuoteJob(t, jobSvc, supervisor)

	quote, err := quoteSvc.Submit(ctx, job.ID, sub.ChatID, "100", nil)
	require.NoError(t, err)

	reason := "too high"
	declined, err := quoteSvc.Decline(ctx, quote.ID, supervisor.ChatID, &reason)
	require.NoError(t, err)
	assert.True(t, declined.IsDeclined)

	// Job stays open and the bidder may try again at a new price.
	fresh, err := repos.Job.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSent, fresh.Status)

	recovered, err := quoteSvc.Submit(ctx, job.ID, sub.ChatID, "80", nil)
	require.NoError(t, err)
	assert.Equal(t, "80.00", recovered.Amount)
}

func TestQuoteAccept_BindsWinnerAndClosesArbitration(t *testing.T) {
	quoteSvc, jobSvc, repos := newQuoteHarness(t)
	ctx := context.Background()

	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	winner := createUser(t, repos, 2001, models.RoleSubcontractor)
	loser := createUser(t, repos, 2002, models.RoleSubcontractor)
	job := createQuoteJob(t, jobSvc, supervisor)

	winningQuote, err := quoteSvc.Submit(ctx, job.ID, winner.ChatID, "100", nil)
	require.NoError(t, err)
	losingQuote, err := quoteSvc.Submit(ctx, job.ID, loser.ChatID, "120", nil)
	require.NoError(t, err)

	result, err := quoteSvc.Accept(ctx, winningQuote.ID, supervisor.ChatID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusAccepted, result.Job.Status)
	require.NotNil(t, result.Job.SubcontractorID)
	assert.Equal(t, winner.ID, *result.Job.SubcontractorID)
	require.NotNil(t, result.Job.AcceptedQuoteID)
	assert.Equal(t, winningQuote.ID, *result.Job.AcceptedQuoteID)
	assert.True(t, result.Quote.IsAccepted)
	assert.Equal(t, winner.ChatID, result.WinnerChatID)
	assert.Equal(t, []int64{loser.ChatID}, result.LoserChatIDs)

	// Arbitration is closed; the sibling quote can no longer win.
	_, err = quoteSvc.Accept(ctx, losingQuote.ID, supervisor.ChatID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestQuoteAccept_RequiresOwningSupervisor(t *testing.T) {
	quoteSvc, jobSvc, repos := newQuoteHarness(t)
	ctx := context.Background()

	owner := createUser(t, repos, 1001, models.RoleSupervisor)
	intruder := createUser(t, repos, 1002, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)
	job := createQuoteJob(t, jobSvc, owner)

	quote, err := quoteSvc.Submit(ctx, job.ID, sub.ChatID, "100", nil)
	require.NoError(t, err)

	_, err = quoteSvc.Accept(ctx, quote.ID, intruder.ChatID)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestQuoteSubmit_RejectedForPresetPriceJobs(t *testing.T) {
	quoteSvc, jobSvc, repos := newQuoteHarness(t)
	ctx := context.Background()

	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)

	job, err := jobSvc.Create(ctx, supervisor.ChatID, CreateJobInput{
		Title:       "Fixed price work",
		JobType:     models.JobTypePresetPrice,
		PresetPrice: presetPrice("75"),
	})
	require.NoError(t, err)
	_, err = jobSvc.Dispatch(ctx, job.ID, supervisor.ChatID, DispatchTarget{All: true})
	require.NoError(t, err)

	_, err = quoteSvc.Submit(ctx, job.ID, sub.ChatID, "60", nil)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestActiveQuote_NilWhenNoneOutstanding(t *testing.T) {
	quoteSvc, jobSvc, repos := newQuoteHarness(t)
	ctx := context.Background()

	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)
	sub := createUser(t, repos, 2001, models.RoleSubcontractor)
	job := createQuoteJob(t, jobSvc, supervisor)

	quote, err := quoteSvc.ActiveQuote(ctx, job.ID, sub.ChatID)
	require.NoError(t, err)
	assert.Nil(t, quote)

	submitted, err := quoteSvc.Submit(ctx, job.ID, sub.ChatID, "42", nil)
	require.NoError(t, err)

	quote, err = quoteSvc.ActiveQuote(ctx, job.ID, sub.ChatID)
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, submitted.ID, quote.ID)
}
