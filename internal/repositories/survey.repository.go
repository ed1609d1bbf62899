package repositories

import (
	"context"
	"errors"
	"time"

	"crewdispatch/internal/database"
	"crewdispatch/internal/logger"
	. "crewdispatch/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SurveyRepository interface {
	// CreateIfMissing inserts a survey for (subcontractor, week_start) unless
	// one already exists, reporting whether a row was created. Backed by
	// ON CONFLICT DO NOTHING so repeated scheduler ticks stay idempotent.
	CreateIfMissing(ctx context.Context, survey *WeeklyAvailabilitySurvey) (bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (*WeeklyAvailabilitySurvey, error)
	GetForWeek(
		ctx context.Context,
		subcontractorID uuid.UUID,
		weekStart time.Time,
	) (*WeeklyAvailabilitySurvey, error)
	Update(ctx context.Context, survey *WeeklyAvailabilitySurvey) error
}

type surveyRepository struct {
	db  database.DB
	log logger.Logger
}

func NewSurveyRepository(db database.DB) SurveyRepository {
	return &surveyRepository{
		db:  db,
		log: logger.New("surveyRepository"),
	}
}

func (r *surveyRepository) CreateIfMissing(
	ctx context.Context,
	survey *WeeklyAvailabilitySurvey,
) (bool, error) {
	log := r.log.Function("CreateIfMissing")

	result := r.db.SQL.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subcontractor_id"}, {Name: "week_start"}},
			DoNothing: true,
		}).
		Create(survey)
	if result.Error != nil {
		return false, log.Err("failed to create survey", result.Error,
			"subcontractorID", survey.SubcontractorID, "weekStart", survey.WeekStart)
	}

	created := result.RowsAffected > 0
	if created {
		log.Info("Survey created",
			"surveyID", survey.ID,
			"subcontractorID", survey.SubcontractorID,
			"weekStart", survey.WeekStart,
		)
	}

	return created, nil
}

func (r *surveyRepository) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*WeeklyAvailabilitySurvey, error) {
	log := r.log.Function("GetByID")

	var survey WeeklyAvailabilitySurvey
	if err := r.db.SQL.WithContext(ctx).First(&survey, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get survey", err, "surveyID", id)
	}

	return &survey, nil
}

func (r *surveyRepository) GetForWeek(
	ctx context.Context,
	subcontractorID uuid.UUID,
	weekStart time.Time,
) (*WeeklyAvailabilitySurvey, error) {
	log := r.log.Function("GetForWeek")

	var survey WeeklyAvailabilitySurvey
	err := r.db.SQL.WithContext(ctx).
		Where("subcontractor_id = ? AND week_start = ?", subcontractorID, weekStart).
		First(&survey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, log.Err("failed to get survey for week", err,
			"subcontractorID", subcontractorID, "weekStart", weekStart)
	}

	return &survey, nil
}

func (r *surveyRepository) Update(
	ctx context.Context,
	survey *WeeklyAvailabilitySurvey,
) error {
	log := r.log.Function("Update")

	if err := r.db.SQL.WithContext(ctx).Save(survey).Error; err != nil {
		return log.Err("failed to update survey", err, "surveyID", survey.ID)
	}

	return nil
}
