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

type QuoteRepository interface {
	// Create persists a new quote. The partial unique index on
	// (job_id, subcontractor_id) over non-declined rows rejects a second
	// active quote from the same bidder at write time; that case surfaces as
	// ErrInvalidState.
	Create(ctx context.Context, quote *Quote) error

	GetByID(ctx context.Context, id uuid.UUID) (*Quote, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*Quote, error)
	GetActiveForBidder(ctx context.Context, jobID, subcontractorID uuid.UUID) (*Quote, error)

	MarkAccepted(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID) error
	MarkDeclined(ctx context.Context, quoteID uuid.UUID, reason string) (bool, error)
}

type quoteRepository struct {
	db  database.DB
	log logger.Logger
}

func NewQuoteRepository(db database.DB) QuoteRepository {
	return &quoteRepository{
		db:  db,
		log: logger.New("quoteRepository"),
	}
}

func (r *quoteRepository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.SQL.WithContext(ctx)
}

func (r *quoteRepository) Create(ctx context.Context, quote *Quote) error {
	log := r.log.Function("Create")

	if err := r.conn(ctx, nil).Create(quote).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrInvalidState
		}
		return log.Err("failed to create quote", err,
			"jobID", quote.JobID, "subcontractorID", quote.SubcontractorID)
	}

	log.Info("Quote created", "quoteID", quote.ID, "jobID", quote.JobID)
	return nil
}

func (r *quoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*Quote, error) {
	log := r.log.Function("GetByID")

	var quote Quote
	err := r.conn(ctx, nil).
		Preload("Subcontractor").
		First(&quote, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get quote", err, "quoteID", id)
	}

	return &quote, nil
}

func (r *quoteRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*Quote, error) {
	log := r.log.Function("ListByJob")

	// Submission order, oldest first: no automatic ranking of bids.
	var quotes []*Quote
	err := r.conn(ctx, nil).
		Preload("Subcontractor").
		Where("job_id = ?", jobID).
		Order("submitted_at ASC").
		Find(&quotes).Error
	if err != nil {
		return nil, log.Err("failed to list quotes", err, "jobID", jobID)
	}

	return quotes, nil
}

func (r *quoteRepository) GetActiveForBidder(
	ctx context.Context,
	jobID, subcontractorID uuid.UUID,
) (*Quote, error) {
	log := r.log.Function("GetActiveForBidder")

	var quote Quote
	err := r.conn(ctx, nil).
		Where("job_id = ? AND subcontractor_id = ? AND is_declined = ?",
			jobID, subcontractorID, false).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, log.Err("failed to get active quote", err,
			"jobID", jobID, "subcontractorID", subcontractorID)
	}

	return &quote, nil
}

func (r *quoteRepository) MarkAccepted(
	ctx context.Context,
	tx *gorm.DB,
	quoteID uuid.UUID,
) error {
	log := r.log.Function("MarkAccepted")

	result := r.conn(ctx, tx).
		Model(&Quote{}).
		Where("id = ? AND is_accepted = ? AND is_declined = ?", quoteID, false, false).
		Update("is_accepted", true)
	if result.Error != nil {
		return log.Err("failed to mark quote accepted", result.Error, "quoteID", quoteID)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidState
	}

	return nil
}

func (r *quoteRepository) MarkDeclined(
	ctx context.Context,
	quoteID uuid.UUID,
	reason string,
) (bool, error) {
	log := r.log.Function("MarkDeclined")

	result := r.conn(ctx, nil).
		Model(&Quote{}).
		Where("id = ? AND is_accepted = ? AND is_declined = ?", quoteID, false, false).
		Updates(map[string]any{
			"is_declined":    true,
			"decline_reason": reason,
		})
	if result.Error != nil {
		return false, log.Err("failed to mark quote declined", result.Error, "quoteID", quoteID)
	}

	return result.RowsAffected > 0, nil
}
