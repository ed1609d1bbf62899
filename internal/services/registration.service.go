package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"crewdispatch/config"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
	"crewdispatch/internal/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegistrationService turns access codes into user accounts. Codes carry a
// role and optional team; redeeming one inside a transaction keeps the use
// counter and the new account consistent even when two people redeem the
// last slot at once.
type RegistrationService struct {
	userRepo       repositories.UserRepository
	accessCodeRepo repositories.AccessCodeRepository
	teamRepo       repositories.TeamRepository
	transaction    *TransactionService
	log            logger.Logger
}

func NewRegistrationService(
	repos repositories.Repository,
	transaction *TransactionService,
) *RegistrationService {
	return &RegistrationService{
		userRepo:       repos.User,
		accessCodeRepo: repos.AccessCode,
		teamRepo:       repos.Team,
		transaction:    transaction,
		log:            logger.New("RegistrationService"),
	}
}

type RegisterInput struct {
	ChatID    int64
	Code      string
	Username  *string
	FirstName *string
}

// ValidateCode checks a code without consuming it, for the pre-registration
// prompt flow.
func (s *RegistrationService) ValidateCode(ctx context.Context, code string) (*models.AccessCode, error) {
	log := s.log.TraceFromContext(ctx).Function("ValidateCode")

	accessCode, err := s.accessCodeRepo.GetByCode(ctx, nil, normalizeCode(code))
	if err != nil {
		return nil, err
	}
	if !accessCode.Usable(time.Now().UTC()) {
		return nil, log.ErrorWithType(models.ErrInvalidState,
			"access code is expired or used up")
	}
	return accessCode, nil
}

// Register redeems a code for the chat identity. A previously deactivated
// user is reactivated under the code's role rather than duplicated; a live
// user cannot register twice.
func (s *RegistrationService) Register(
	ctx context.Context,
	input RegisterInput,
) (*models.User, error) {
	log := s.log.TraceFromContext(ctx).Function("Register")

	var user *models.User
	err := s.transaction.Execute(ctx, func(ctx context.Context, tx *gorm.DB) error {
		accessCode, err := s.accessCodeRepo.GetByCode(ctx, tx, normalizeCode(input.Code))
		if err != nil {
			return err
		}
		if !accessCode.Usable(time.Now().UTC()) {
			return log.ErrorWithType(models.ErrInvalidState,
				"access code is expired or used up")
		}

		consumed, err := s.accessCodeRepo.IncrementUse(ctx, tx, accessCode)
		if err != nil {
			return err
		}
		if !consumed {
			return log.ErrorWithType(models.ErrInvalidState,
				"access code was used up concurrently")
		}

		existing, err := s.userRepo.GetAnyByChatID(ctx, tx, input.ChatID)
		if err != nil && !isNotFound(err) {
			return err
		}

		if existing != nil {
			if existing.IsActive {
				return log.ErrorWithType(models.ErrInvalidState,
					"chat is already registered", "chatID", input.ChatID)
			}
			existing.IsActive = true
			existing.Role = accessCode.Role
			existing.TeamID = accessCode.TeamID
			existing.AccessCodeID = &accessCode.ID
			existing.Username = input.Username
			existing.FirstName = input.FirstName
			if err := s.userRepo.Update(ctx, tx, existing); err != nil {
				return err
			}
			user = existing
			return nil
		}

		user = &models.User{
			ChatID:       input.ChatID,
			Username:     input.Username,
			FirstName:    input.FirstName,
			Role:         accessCode.Role,
			TeamID:       accessCode.TeamID,
			AccessCodeID: &accessCode.ID,
			IsActive:     true,
		}
		return s.userRepo.Create(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}

	log.Info("User registered", "userID", user.ID, "role", user.Role)
	return user, nil
}

type CreateAccessCodeInput struct {
	Role      models.UserRole
	TeamName  *string
	MaxUses   int
	ExpiresAt *time.Time
}

// CreateAccessCode mints a random code for the given role; admin callers only.
func (s *RegistrationService) CreateAccessCode(
	ctx context.Context,
	adminChatID int64,
	input CreateAccessCodeInput,
) (*models.AccessCode, error) {
	log := s.log.TraceFromContext(ctx).Function("CreateAccessCode")

	admin, err := s.userRepo.GetByChatID(ctx, adminChatID)
	if err != nil {
		return nil, err
	}
	if admin.Role != models.RoleAdmin {
		return nil, log.ErrorWithType(models.ErrUnauthorized,
			"access codes are minted by admins only")
	}

	switch input.Role {
	case models.RoleSupervisor, models.RoleSubcontractor, models.RoleAdmin:
	default:
		return nil, log.ErrorWithType(models.ErrInvalidState, "unknown role for access code")
	}

	var teamID *uuid.UUID
	if input.TeamName != nil && *input.TeamName != "" {
		team, err := s.teamRepo.GetOrCreateByName(ctx, *input.TeamName)
		if err != nil {
			return nil, err
		}
		teamID = &team.ID
	}

	maxUses := input.MaxUses
	if maxUses <= 0 {
		maxUses = 1
	}

	code := &models.AccessCode{
		Code:      generateCode(),
		Role:      input.Role,
		TeamID:    teamID,
		IsActive:  true,
		MaxUses:   maxUses,
		ExpiresAt: input.ExpiresAt,
	}
	if err := s.accessCodeRepo.Create(ctx, code); err != nil {
		return nil, err
	}

	log.Info("Access code created", "codeID", code.ID, "role", code.Role, "maxUses", code.MaxUses)
	return code, nil
}

// EnsureBootstrapCodes seeds the fixed admin codes from configuration so a
// fresh deployment has a way in. Codes already present are left untouched.
func (s *RegistrationService) EnsureBootstrapCodes(ctx context.Context, cfg config.Config) error {
	log := s.log.TraceFromContext(ctx).Function("EnsureBootstrapCodes")

	for _, raw := range cfg.BootstrapCodes() {
		code := normalizeCode(raw)
		if code == "" {
			continue
		}

		existing, err := s.accessCodeRepo.GetByCode(ctx, nil, code)
		if err != nil && !isNotFound(err) {
			return err
		}
		if existing != nil {
			continue
		}

		err = s.accessCodeRepo.Create(ctx, &models.AccessCode{
			Code:     code,
			Role:     models.RoleAdmin,
			IsActive: true,
			MaxUses:  1,
		})
		if err != nil {
			return err
		}
		log.Info("Bootstrap admin code seeded")
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateCode() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the host is broken; fall back to a uuid.
		return strings.ToUpper(uuid.NewString()[:8])
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}
