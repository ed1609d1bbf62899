package services

import (
	"crewdispatch/config"
	"crewdispatch/internal/database"
	"crewdispatch/internal/events"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/repositories"
)

type Service struct {
	Transaction  *TransactionService
	Scheduler    *SchedulerService
	Job          *JobService
	Quote        *QuoteService
	Availability *AvailabilityService
	Archive      *ArchiveService
	Registration *RegistrationService
	Notifier     Notifier
	log          logger.Logger
}

func New(
	db database.DB,
	cfg config.Config,
	repos repositories.Repository,
	bus *events.EventBus,
) (Service, error) {
	log := logger.New("services")

	transaction := NewTransactionService(db)
	notifier := NewBusNotifier(bus)

	service := Service{
		Transaction:  transaction,
		Scheduler:    NewSchedulerService(cfg.SchedulerTick()),
		Job:          NewJobService(repos, notifier),
		Quote:        NewQuoteService(repos, transaction),
		Availability: NewAvailabilityService(repos),
		Archive:      NewArchiveService(repos),
		Registration: NewRegistrationService(repos, transaction),
		Notifier:     notifier,
		log:          log,
	}

	log.Info("Services initialized")
	return service, nil
}
