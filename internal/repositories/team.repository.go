package repositories

import (
	"context"
	"errors"

	"crewdispatch/internal/database"
	"crewdispatch/internal/logger"
	. "crewdispatch/internal/models"

	"gorm.io/gorm"
)

type TeamRepository interface {
	GetByName(ctx context.Context, name string) (*Team, error)
	GetOrCreateByName(ctx context.Context, name string) (*Team, error)
}

type teamRepository struct {
	db  database.DB
	log logger.Logger
}

func NewTeamRepository(db database.DB) TeamRepository {
	return &teamRepository{
		db:  db,
		log: logger.New("teamRepository"),
	}
}

func (r *teamRepository) GetByName(ctx context.Context, name string) (*Team, error) {
	log := r.log.Function("GetByName")

	var team Team
	if err := r.db.SQL.WithContext(ctx).Where("name = ?", name).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, log.Err("failed to get team", err, "name", name)
	}

	return &team, nil
}

func (r *teamRepository) GetOrCreateByName(ctx context.Context, name string) (*Team, error) {
	log := r.log.Function("GetOrCreateByName")

	team, err := r.GetByName(ctx, name)
	if err == nil {
		return team, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	team = &Team{Name: name}
	if err := r.db.SQL.WithContext(ctx).Create(team).Error; err != nil {
		return nil, log.Err("failed to create team", err, "name", name)
	}

	log.Info("Team created", "teamID", team.ID, "name", name)
	return team, nil
}
