package repositories

import (
	"context"
	"errors"

	"crewdispatch/internal/database"
	"crewdispatch/internal/logger"
	. "crewdispatch/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByChatID(ctx context.Context, chatID int64) (*User, error)

	// GetAnyByChatID also returns deactivated users; registration uses it to
	// reactivate a returning user instead of creating a duplicate row.
	GetAnyByChatID(ctx context.Context, tx *gorm.DB, chatID int64) (*User, error)
	Update(ctx context.Context, tx *gorm.DB, user *User) error
	SetAvailability(ctx context.Context, userID uuid.UUID, status AvailabilityStatus) error

	// ListEligibleSubcontractors returns active subcontractors whose
	// availability is AVAILABLE or unset, optionally narrowed to a team.
	// Unset counts as available: legacy rows predate the availability column.
	ListEligibleSubcontractors(ctx context.Context, teamID *uuid.UUID) ([]*User, error)

	ListActiveSubcontractors(ctx context.Context) ([]*User, error)
}

type userRepository struct {
	db  database.DB
	log logger.Logger
}

func NewUserRepository(db database.DB) UserRepository {
	return &userRepository{
		db:  db,
		log: logger.New("userRepository"),
	}
}

func (r *userRepository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.SQL.WithContext(ctx)
}

func (r *userRepository) Create(ctx context.Context, tx *gorm.DB, user *User) error {
	log := r.log.Function("Create")

	if err := r.conn(ctx, tx).Create(user).Error; err != nil {
		return log.Err("failed to create user", err, "chatID", user.ChatID)
	}

	log.Info("User created", "userID", user.ID, "role", user.Role)
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	log := r.log.Function("GetByID")

	var user User
	if err := r.conn(ctx, nil).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get user", err, "userID", id)
	}

	return &user, nil
}

func (r *userRepository) GetByChatID(ctx context.Context, chatID int64) (*User, error) {
	log := r.log.Function("GetByChatID")

	var user User
	err := r.conn(ctx, nil).
		Where("chat_id = ? AND is_active = ?", chatID, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get user by chat id", err, "chatID", chatID)
	}

	return &user, nil
}

func (r *userRepository) GetAnyByChatID(
	ctx context.Context,
	tx *gorm.DB,
	chatID int64,
) (*User, error) {
	log := r.log.Function("GetAnyByChatID")

	var user User
	if err := r.conn(ctx, tx).Where("chat_id = ?", chatID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get user by chat id", err, "chatID", chatID)
	}

	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, tx *gorm.DB, user *User) error {
	log := r.log.Function("Update")

	if err := r.conn(ctx, tx).Save(user).Error; err != nil {
		return log.Err("failed to update user", err, "userID", user.ID)
	}

	return nil
}

func (r *userRepository) SetAvailability(
	ctx context.Context,
	userID uuid.UUID,
	status AvailabilityStatus,
) error {
	log := r.log.Function("SetAvailability")

	result := r.conn(ctx, nil).
		Model(&User{}).
		Where("id = ?", userID).
		Update("availability", status)
	if result.Error != nil {
		return log.Err("failed to set availability", result.Error, "userID", userID)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *userRepository) ListEligibleSubcontractors(
	ctx context.Context,
	teamID *uuid.UUID,
) ([]*User, error) {
	log := r.log.Function("ListEligibleSubcontractors")

	query := r.conn(ctx, nil).
		Where("role = ? AND is_active = ?", RoleSubcontractor, true).
		Where("availability IS NULL OR availability = ?", AvailabilityAvailable)
	if teamID != nil {
		query = query.Where("team_id = ?", teamID)
	}

	var users []*User
	if err := query.Find(&users).Error; err != nil {
		return nil, log.Err("failed to list eligible subcontractors", err)
	}

	return users, nil
}

func (r *userRepository) ListActiveSubcontractors(ctx context.Context) ([]*User, error) {
	log := r.log.Function("ListActiveSubcontractors")

	var users []*User
	err := r.conn(ctx, nil).
		Where("role = ? AND is_active = ?", RoleSubcontractor, true).
		Find(&users).Error
	if err != nil {
		return nil, log.Err("failed to list active subcontractors", err)
	}

	return users, nil
}
