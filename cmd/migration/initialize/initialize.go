package initialize

import (
	"strings"

	"crewdispatch/config"
	"crewdispatch/internal/logger"
	. "crewdispatch/internal/models"

	"gorm.io/gorm"
)

func InitializeTables(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("InitializeTables")
	log.Info("Initializing essential production data")

	if err := initializeBootstrapCodes(db, config, log); err != nil {
		return log.Err("failed to initialize bootstrap codes", err)
	}

	log.Info("Table initialization complete")
	return nil
}

// initializeBootstrapCodes seeds the admin access codes from configuration so
// a fresh deployment has a first admin. Existing codes are left alone.
func initializeBootstrapCodes(db *gorm.DB, config config.Config, log logger.Logger) error {
	codes := config.BootstrapCodes()
	if len(codes) == 0 {
		log.Info("No bootstrap codes configured, skipping")
		return nil
	}

	created := 0
	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if code == "" {
			continue
		}

		var existing AccessCode
		if err := db.First(&existing, "code = ?", code).Error; err == nil {
			continue
		}

		accessCode := AccessCode{
			Code:     code,
			Role:     RoleAdmin,
			IsActive: true,
			MaxUses:  1,
		}
		if err := db.Create(&accessCode).Error; err != nil {
			return log.Err("failed to create bootstrap code", err)
		}
		created++
	}

	log.Info("Bootstrap admin codes initialized", "created", created)
	return nil
}
