package main

import (
	"context"

	"github.com/ornus/collector/logger"
	"go.uber.org/zap"
)

type Application struct {
	config           *Config
	databaseService  *DatabaseService
	loggingService   *LoggingService
	dailyJob         *DailyJob
	cleanupScheduler *CleanupScheduler
	logger           *zap.Logger
}

func NewApplication(
	config *Config,
	databaseService *DatabaseService,
	loggingService *LoggingService,
	dailyJob *DailyJob,
	cleanupScheduler *CleanupScheduler,
	log *zap.Logger,
) *Application {
	return &Application{
		config:           config,
		databaseService:  databaseService,
		loggingService:   loggingService,
		dailyJob:         dailyJob,
		cleanupScheduler: cleanupScheduler,
		logger:           logger.Named(log, "app"),
	}
}

// RunOnce runs a single daily collection
func (app *Application) RunOnce(ctx context.Context) (*RunReport, error) {
	return app.dailyJob.Run(ctx)
}

// RunScheduled runs the daily collection at the configured time until ctx is done.
// The log cleanup scheduler runs alongside it.
func (app *Application) RunScheduled(ctx context.Context) error {
	app.cleanupScheduler.Start(ctx)
	defer app.cleanupScheduler.Stop()

	collection := NewDailyScheduler("collection", app.config.ScheduleHour, app.config.ScheduleMinute, func(ctx context.Context) {
		if _, err := app.dailyJob.Run(ctx); err != nil {
			app.logger.Error("Scheduled collection failed", zap.Error(err))
		}
	}, app.logger)
	collection.Start(ctx)
	defer collection.Stop()

	app.logger.Info("Collector is running, waiting for the next scheduled run")
	<-ctx.Done()
	app.logger.Info("Shutdown signal received")
	return nil
}

func (app *Application) Shutdown() {
	app.logger.Info("Shutting down application...")

	if err := app.databaseService.Close(); err != nil {
		app.logger.Warn("Failed to close database", zap.Error(err))
	}
	if err := app.loggingService.Close(); err != nil {
		app.logger.Warn("Failed to close logging database", zap.Error(err))
	}

	app.logger.Info("Application shutdown completed")
}
