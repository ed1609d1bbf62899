package services

import (
	"context"
	"testing"
	"time"

	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistrationService(t *testing.T) (*RegistrationService, repositories.Repository) {
	t.Helper()
	db, repos := newTestDB(t)
	return NewRegistrationService(repos, NewTransactionService(db)), repos
}

func seedCode(
	t *testing.T,
	repos repositories.Repository,
	code string,
	role models.UserRole,
	maxUses int,
) *models.AccessCode {
	t.Helper()
	accessCode := &models.AccessCode{
		Code:     code,
		Role:     role,
		IsActive: true,
		MaxUses:  maxUses,
	}
	require.NoError(t, repos.AccessCode.Create(context.Background(), accessCode))
	return accessCode
}

func TestRegister_CreatesUserWithCodeRole(t *testing.T) {
	svc, repos := newRegistrationService(t)
	ctx := context.Background()

	seedCode(t, repos, "CREW01", models.RoleSubcontractor, 2)

	username := "bob"
	user, err := svc.Register(ctx, RegisterInput{
		ChatID:   555001,
		Code:     "crew01", // codes are case-insensitive
		Username: &username,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSubcontractor, user.Role)
	assert.True(t, user.IsActive)
	require.NotNil(t, user.AccessCodeID)

	stored, err := repos.AccessCode.GetByCode(ctx, nil, "CREW01")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses)
}

func TestRegister_LiveUserCannotRegisterTwice(t *testing.T) {
	svc, repos := newRegistrationService(t)
	ctx := context.Background()

	seedCode(t, repos, "CREW01", models.RoleSubcontractor, 5)

	_, err := svc.Register(ctx, RegisterInput{ChatID: 555001, Code: "CREW01"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{ChatID: 555001, Code: "CREW01"})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	// The failed attempt must not burn a use.
	stored, err := repos.AccessCode.GetByCode(ctx, nil, "CREW01")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses)
}

func TestRegister_ReactivatesDeactivatedUser(t *testing.T) {
	svc, repos := newRegistrationService(t)
	ctx := context.Background()

	seedCode(t, repos, "SUPER1", models.RoleSupervisor, 1)

	user := createUser(t, repos, 555001, models.RoleSubcontractor)
	user.IsActive = false
	require.NoError(t, repos.User.Update(ctx, nil, user))

	revived, err := svc.Register(ctx, RegisterInput{ChatID: 555001, Code: "SUPER1"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, revived.ID)
	assert.True(t, revived.IsActive)
	assert.Equal(t, models.RoleSupervisor, revived.Role)
}

func TestRegister_ExhaustedCodeRejected(t *testing.T) {
	svc, repos := newRegistrationService(t)
	ctx := context.Background()

	seedCode(t, repos, "ONCE", models.RoleSubcontractor, 1)

	_, err := svc.Register(ctx, RegisterInput{ChatID: 555001, Code: "ONCE"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{ChatID: 555002, Code: "ONCE"})
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestValidateCode_ChecksWithoutConsuming(t *testing.T) {
	svc, repos := newRegistrationService(t)
	ctx := context.Background()

	seedCode(t, repos, "CREW01", models.RoleSubcontractor, 1)

	code, err := svc.ValidateCode(ctx, " crew01 ")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSubcontractor, code.Role)

	stored, err := repos.AccessCode.GetByCode(ctx, nil, "CREW01")
	require.NoError(t, err)
	assert.Zero(t, stored.CurrentUses)

	_, err = svc.ValidateCode(ctx, "UNKNOWN")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestValidateCode_ExpiredCodeRejected(t *testing.T) {
	svc, repos := newRegistrationService(t)
	ctx := context.Background()

	expired := time.Now().UTC().Add(-time.Hour)
	accessCode := &models.AccessCode{
		Code:      "OLD001",
		Role:      models.RoleSubcontractor,
		IsActive:  true,
		MaxUses:   5,
		ExpiresAt: &expired,
	}
	require.NoError(t, repos.AccessCode.Create(ctx, accessCode))

	_, err := svc.ValidateCode(ctx, "OLD001")
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = svc.Register(ctx, RegisterInput{ChatID: 555001, Code: "OLD001"})
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestCreateAccessCode_AdminMintsTeamCode(t *testing.T) {
	svc, repos := newRegistrationService(t)
	ctx := context.Background()

	admin := createUser(t, repos, 9001, models.RoleAdmin)
	supervisor := createUser(t, repos, 1001, models.RoleSupervisor)

	teamName := "South Crew"
	code, err := svc.CreateAccessCode(ctx, admin.ChatID, CreateAccessCodeInput{
		Role:     models.RoleSubcontractor,
		TeamName: &teamName,
		MaxUses:  10,
	})
	require.NoError(t, err)
	assert.Len(t, code.Code, 8)
	assert.Equal(t, 10, code.MaxUses)
	require.NotNil(t, code.TeamID)

	team, err := repos.Team.GetByName(ctx, teamName)
	require.NoError(t, err)
	assert.Equal(t, team.ID, *code.TeamID)

	// Registering through the code lands the user on the team.
	user, err := svc.Register(ctx, RegisterInput{ChatID: 555001, Code: code.Code})
	require.NoError(t, err)
	require.NotNil(t, user.TeamID)
	assert.Equal(t, team.ID, *user.TeamID)

	_, err = svc.CreateAccessCode(ctx, supervisor.ChatID, CreateAccessCodeInput{
		Role: models.RoleSubcontractor,
	})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
