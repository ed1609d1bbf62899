package database

import (
	"crewdispatch/internal/logger"
	"crewdispatch/internal/models"
)

// MigrateModels runs GORM AutoMigrate for all models
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	modelsToMigrate := []interface{}{
		&models.Team{},
		&models.AccessCode{},
		&models.User{},
		&models.Job{},
		&models.Quote{},
		&models.WeeklyAvailabilitySurvey{},
	}

	for _, model := range modelsToMigrate {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("failed to migrate model", err, "model", model)
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CreateIndexes creates indexes that GORM doesn't create automatically. The
// partial unique index on quotes enforces the one-active-quote-per-bidder
// rule at write time, which is what closes the check-then-act gap on rapid
// double submission.
func (db *DB) CreateIndexes() error {
	log := logger.New("database").Function("CreateIndexes")
	log.Info("Creating additional database indexes")

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_quotes_active_bidder ON quotes(job_id, subcontractor_id) WHERE is_declined = false AND deleted_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_jobs_status_sent_at ON jobs(status, sent_at)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_status_deadline ON jobs(status, deadline)",
	}

	for _, indexSQL := range indexes {
		if err := db.SQL.Exec(indexSQL).Error; err != nil {
			return log.Err("failed to create index", err, "sql", indexSQL)
		}
	}

	log.Info("Additional database indexes created")
	return nil
}
