package repositories

import (
	"context"
	"errors"

	"crewdispatch/internal/database"
	"crewdispatch/internal/logger"
	. "crewdispatch/internal/models"

	"gorm.io/gorm"
)

type AccessCodeRepository interface {
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*AccessCode, error)
	Create(ctx context.Context, accessCode *AccessCode) error

	// IncrementUse bumps current_uses only while the code is active and still
	// under its limit; false means the code was exhausted concurrently.
	IncrementUse(ctx context.Context, tx *gorm.DB, code *AccessCode) (bool, error)
}

type accessCodeRepository struct {
	db  database.DB
	log logger.Logger
}

func NewAccessCodeRepository(db database.DB) AccessCodeRepository {
	return &accessCodeRepository{
		db:  db,
		log: logger.New("accessCodeRepository"),
	}
}

func (r *accessCodeRepository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.SQL.WithContext(ctx)
}

func (r *accessCodeRepository) GetByCode(
	ctx context.Context,
	tx *gorm.DB,
	code string,
) (*AccessCode, error) {
	log := r.log.Function("GetByCode")

	var accessCode AccessCode
	if err := r.conn(ctx, tx).Where("code = ?", code).First(&accessCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get access code", err)
	}

	return &accessCode, nil
}

func (r *accessCodeRepository) Create(ctx context.Context, accessCode *AccessCode) error {
	log := r.log.Function("Create")

	if err := r.conn(ctx, nil).Create(accessCode).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrInvalidState
		}
		return log.Err("failed to create access code", err)
	}

	log.Info("Access code created", "role", accessCode.Role, "maxUses", accessCode.MaxUses)
	return nil
}

func (r *accessCodeRepository) IncrementUse(
	ctx context.Context,
	tx *gorm.DB,
	code *AccessCode,
) (bool, error) {
	log := r.log.Function("IncrementUse")

	result := r.conn(ctx, tx).
		Model(&AccessCode{}).
		Where("id = ? AND is_active = ? AND (max_uses <= 0 OR current_uses < max_uses)",
			code.ID, true).
		Update("current_uses", gorm.Expr("current_uses + 1"))
	if result.Error != nil {
		return false, log.Err("failed to increment access code use", result.Error, "codeID", code.ID)
	}

	return result.RowsAffected > 0, nil
}
