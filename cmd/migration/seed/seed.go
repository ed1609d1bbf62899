package seed

import (
	"time"

	"crewdispatch/config"
	"crewdispatch/internal/logger"
	. "crewdispatch/internal/models"

	"gorm.io/gorm"
)

func stringPtr(s string) *string {
	return &s
}

// Seed loads development data: a team, one user per role and a handful of
// access codes. Never run against production.
func Seed(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("seed")
	log.Info("Seeding development data")

	team := Team{Name: "North Crew"}
	if err := db.Create(&team).Error; err != nil {
		return log.Err("failed to seed team", err)
	}

	users := []User{
		{
			ChatID:    100001,
			Username:  stringPtr("admin"),
			FirstName: stringPtr("Admin"),
			Role:      RoleAdmin,
			IsActive:  true,
		},
		{
			ChatID:    100002,
			Username:  stringPtr("supervisor"),
			FirstName: stringPtr("Sam"),
			Role:      RoleSupervisor,
			TeamID:    &team.ID,
			IsActive:  true,
		},
		{
			ChatID:    100003,
			Username:  stringPtr("builder"),
			FirstName: stringPtr("Bo"),
			Role:      RoleSubcontractor,
			TeamID:    &team.ID,
			IsActive:  true,
		},
	}
	for i := range users {
		if err := db.Create(&users[i]).Error; err != nil {
			return log.Err("failed to seed user", err, "chatID", users[i].ChatID)
		}
	}

	expires := time.Now().UTC().AddDate(0, 1, 0)
	codes := []AccessCode{
		{Code: "SUPER1", Role: RoleSupervisor, TeamID: &team.ID, IsActive: true, MaxUses: 5},
		{Code: "CREW01", Role: RoleSubcontractor, TeamID: &team.ID, IsActive: true, MaxUses: 20, ExpiresAt: &expires},
	}
	for i := range codes {
		if err := db.Create(&codes[i]).Error; err != nil {
			return log.Err("failed to seed access code", err, "code", codes[i].Code)
		}
	}

	log.Info("Development data seeded")
	return nil
}
