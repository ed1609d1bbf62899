package jobs

import (
	"crewdispatch/config"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/repositories"
	"crewdispatch/internal/services"
)

func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	cfg config.Config,
	service services.Service,
	repos repositories.Repository,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	followUpJob := NewFollowUpJob(
		repos,
		service.Availability,
		service.Notifier,
		cfg,
		services.Tick,
	)
	if err := schedulerService.AddJob(followUpJob); err != nil {
		return log.Err("failed to register follow-up job", err)
	}
	log.Info("Registered follow-up job", "schedule", "tick")

	return nil
}
