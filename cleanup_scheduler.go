package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ornus/collector/logger"
	"go.uber.org/zap"
)

// DailyScheduler runs a task once a day at a fixed local wall-clock time
type DailyScheduler struct {
	name   string
	hour   int
	minute int
	task   func(ctx context.Context)
	logger *zap.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	finished chan struct{}
}

func NewDailyScheduler(name string, hour, minute int, task func(ctx context.Context), log *zap.Logger) *DailyScheduler {
	return &DailyScheduler{
		name:   name,
		hour:   hour,
		minute: minute,
		task:   task,
		logger: logger.Named(log, "scheduler").With(zap.String("schedule", name)),
		now:    time.Now,
		after:  time.After,
	}
}

// nextRun returns the first hour:minute strictly after now
func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// Start launches the loop; it ends when ctx is done or Stop is called
func (s *DailyScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.finished = make(chan struct{})

	s.logger.Info("Starting daily scheduler",
		zap.String("at", time.Date(0, 1, 1, s.hour, s.minute, 0, 0, time.Local).Format("15:04")))

	go s.loop(ctx, s.finished)
}

func (s *DailyScheduler) loop(ctx context.Context, finished chan struct{}) {
	defer close(finished)

	for {
		now := s.now()
		next := nextRun(now, s.hour, s.minute)
		s.logger.Debug("Next run scheduled", zap.Time("next", next))

		select {
		case <-s.after(next.Sub(now)):
			s.logger.Info("Running scheduled task")
			s.task(ctx)
		case <-ctx.Done():
			s.logger.Info("Daily scheduler stopped")
			return
		}
	}
}

// Stop cancels the loop and waits for a running task to return
func (s *DailyScheduler) Stop() {
	s.mu.Lock()
	cancel, finished := s.cancel, s.finished
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-finished
}

// CleanupScheduler prunes the operational log database every midnight
type CleanupScheduler struct {
	*DailyScheduler
	loggingService *LoggingService
	retentionDays  int
	logger         *zap.Logger
}

func NewCleanupScheduler(loggingService *LoggingService, retentionDays int, log *zap.Logger) *CleanupScheduler {
	cs := &CleanupScheduler{
		loggingService: loggingService,
		retentionDays:  retentionDays,
		logger:         logger.Named(log, "cleanup"),
	}
	cs.DailyScheduler = NewDailyScheduler("log-cleanup", 0, 0, func(context.Context) {
		_ = cs.runCleanup()
	}, log)
	return cs
}

func (cs *CleanupScheduler) runCleanup() error {
	cs.logger.Info("Starting scheduled cleanup of old log records")

	if err := cs.loggingService.CleanupOldLogs(cs.retentionDays); err != nil {
		cs.logger.Error("Error during cleanup", zap.Error(err))
		return fmt.Errorf("cleanup old logs: %w", err)
	}

	if err := cs.loggingService.VacuumDatabase(); err != nil {
		cs.logger.Error("Error during VACUUM", zap.Error(err))
		return fmt.Errorf("vacuum: %w", err)
	}

	stats, err := cs.loggingService.GetDatabaseStats()
	if err != nil {
		cs.logger.Error("Error getting database stats", zap.Error(err))
		return fmt.Errorf("database stats: %w", err)
	}

	cs.logger.Info("Cleanup completed successfully", zap.Any("stats", stats))
	return nil
}

func (cs *CleanupScheduler) RunCleanupNow() error {
	cs.logger.Info("Running manual cleanup")
	return cs.runCleanup()
}
