package services

import (
	"context"
	"testing"
	"time"

	"crewdispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetStatus_GatesBroadcastEligibility(t *testing.T) {
	_, repos := newTestDB(t)
	svc := NewAvailabilityService(repos)
	ctx := context.Background()

	first := createUser(t, repos, 2001, models.RoleSubcontractor)
	second := createUser(t, repos, 2002, models.RoleSubcontractor)

	// Unset availability counts as available.
	eligible, err := svc.EligibleForBroadcast(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, eligible, 2)

	_, err = svc.SetStatus(ctx, first.ChatID, models.AvailabilityBusy)
	require.NoError(t, err)

	eligible, err = svc.EligibleForBroadcast(ctx, nil)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, second.ID, eligible[0].ID)

	_, err = svc.SetStatus(ctx, first.ChatID, models.AvailabilityAvailable)
	require.NoError(t, err)

	eligible, err = svc.EligibleForBroadcast(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, eligible, 2)
}

func TestSetStatus_RejectsUnknownStatusAndWrongRole(t *testing.T) {
	_, repos := newTestDB(t)
	svc := NewAvailabilityService(repos)
	ctx := context.Background()

	sub := createUser(t, repos, 2001, models.RoleSubcontractor)
	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)

	_, err := svc.SetStatus(ctx, sub.ChatID, models.AvailabilityStatus("sleeping"))
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = svc.SetStatus(ctx, supervisor.ChatID, models.AvailabilityBusy)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestOpenSurveys_IdempotentAcrossTicks(t *testing.T) {
	_, repos := newTestDB(t)
	svc := NewAvailabilityService(repos)
	ctx := context.Background()

	createUser(t, repos, 2001, models.RoleSubcontractor)
	createUser(t, repos, 2002, models.RoleSubcontractor)

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	created, err := svc.OpenSurveys(ctx, now)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	// A rerun of the same tick creates nothing new.
	created, err = svc.OpenSurveys(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, created)

	// Another run later in the same week still targets the same Monday.
	created, err = svc.OpenSurveys(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestSurveyFlow_ToggleNotesFinalize(t *testing.T) {
	_, repos := newTestDB(t)
	svc := NewAvailabilityService(repos)
	ctx := context.Background()

	sub := createUser(t, repos, 2001, models.RoleSubcontractor)

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	weekStart := models.NextWeekStart(now)

	_, err := svc.OpenSurveys(ctx, now)
	require.NoError(t, err)

	survey, err := svc.ToggleDay(ctx, sub.ChatID, weekStart, time.Monday)
	require.NoError(t, err)
	assert.True(t, survey.Monday)

	survey, err = svc.ToggleDay(ctx, sub.ChatID, weekStart, time.Wednesday)
	require.NoError(t, err)
	assert.True(t, survey.Wednesday)

	// A second toggle flips the day back off.
	survey, err = svc.ToggleDay(ctx, sub.ChatID, weekStart, time.Wednesday)
	require.NoError(t, err)
	assert.False(t, survey.Wednesday)

	_, err = svc.ToggleDay(ctx, sub.ChatID, weekStart, time.Saturday)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	survey, err = svc.AddSurveyNotes(ctx, sub.ChatID, weekStart, "out on Friday")
	require.NoError(t, err)
	require.NotNil(t, survey.Notes)

	survey, err = svc.Finalize(ctx, sub.ChatID, weekStart)
	require.NoError(t, err)
	assert.True(t, survey.Answered())

	// Finalizing twice is a no-op and edits are locked out.
	again, err := svc.Finalize(ctx, sub.ChatID, weekStart)
	require.NoError(t, err)
	assert.Equal(t, survey.RespondedAt.Unix(), again.RespondedAt.Unix())

	_, err = svc.ToggleDay(ctx, sub.ChatID, weekStart, time.Monday)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestFinalize_NoDaysMarksSubcontractorBusy(t *testing.T) {
	_, repos := newTestDB(t)
	svc := NewAvailabilityService(repos)
	ctx := context.Background()

	sub := createUser(t, repos, 2001, models.RoleSubcontractor)

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	weekStart := models.NextWeekStart(now)
	_, err := svc.OpenSurveys(ctx, now)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, sub.ChatID, weekStart)
	require.NoError(t, err)

	status, err := svc.Status(ctx, sub.ChatID)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityBusy, status)

	eligible, err := svc.EligibleForBroadcast(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestSurveyForWeek_MissingWeekIsNotFound(t *testing.T) {
	_, repos := newTestDB(t)
	svc := NewAvailabilityService(repos)

	sub := createUser(t, repos, 2001, models.RoleSubcontractor)

	weekStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	_, err := svc.SurveyForWeek(context.Background(), sub.ChatID, weekStart)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestNextWeekStart_AlwaysStrictlyAhead(t *testing.T) {
	// A Monday rolls to the following Monday rather than itself.
	monday := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), models.NextWeekStart(monday))

	sunday := time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), models.NextWeekStart(sunday))
}
