package app

import (
	"context"

	"crewdispatch/config"
	"crewdispatch/internal/database"
	"crewdispatch/internal/events"
	"crewdispatch/internal/handlers/middleware"
	"crewdispatch/internal/jobs"
	"crewdispatch/internal/logger"
	"crewdispatch/internal/repositories"
	"crewdispatch/internal/services"
)

type App struct {
	Database   database.DB
	Middleware middleware.Middleware
	EventBus   *events.EventBus
	Config     config.Config
	Repos      repositories.Repository
	Services   services.Service
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.InitConfig()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Bus, config)

	repos := repositories.New(db)

	service, err := services.New(db, config, repos, eventBus)
	if err != nil {
		return &App{}, log.Err("failed to initialize services", err)
	}

	middleware := middleware.New(db, eventBus, config, repos)

	if config.SchedulerEnabled {
		if err := jobs.RegisterAllJobs(service.Scheduler, config, service, repos); err != nil {
			return &App{}, log.Err("failed to register scheduled jobs", err)
		}
		if err := service.Scheduler.Start(context.Background()); err != nil {
			return &App{}, log.Err("failed to start scheduler", err)
		}
	}

	app := &App{
		Database:   db,
		Middleware: middleware,
		EventBus:   eventBus,
		Config:     config,
		Repos:      repos,
		Services:   service,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")
	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.EventBus,
		a.Services.Transaction,
		a.Services.Scheduler,
		a.Services.Job,
		a.Services.Quote,
		a.Services.Availability,
		a.Services.Archive,
		a.Services.Registration,
		a.Services.Notifier,
		a.Repos.User,
		a.Repos.Team,
		a.Repos.Job,
		a.Repos.Quote,
		a.Repos.Survey,
		a.Repos.AccessCode,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

func (a *App) Close() (err error) {
	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
