package main

import (
	"fmt"
	"time"

	"github.com/ornus/collector/logger"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type LoggingService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLoggingService opens the operational log database, always sqlite
func NewLoggingService(dbPath string, log *zap.Logger) (*LoggingService, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to logging database: %w", err)
	}

	service := &LoggingService{
		db:     db,
		logger: logger.Named(log, "oplog"),
	}

	if err := service.runMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run logging migrations: %w", err)
	}

	return service, nil
}

func (s *LoggingService) runMigrations() error {
	return s.db.AutoMigrate(
		&CollectionRunModel{},
		&CoinPullLogModel{},
		&KeyRotationLogModel{},
	)
}

// Collection run methods

func (s *LoggingService) StartRun(runUUID string, startedAt time.Time) error {
	run := CollectionRunModel{
		RunUUID:   runUUID,
		StartedAt: startedAt,
		Status:    RUN_STATUS_RUNNING,
	}
	return s.db.Create(&run).Error
}

// FinishRun stores the final counters of a run started with StartRun
func (s *LoggingService) FinishRun(run CollectionRunModel) error {
	if run.ProcessingTime == 0 && !run.StartedAt.IsZero() && !run.FinishedAt.IsZero() {
		run.ProcessingTime = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	}

	updates := map[string]interface{}{
		"finished_at":      run.FinishedAt,
		"tweets_pulled":    run.TweetsPulled,
		"tweets_inserted":  run.TweetsInserted,
		"coins_processed":  run.CoinsProcessed,
		"market_data_rows": run.MarketDataRows,
		"failures":         run.Failures,
		"status":           run.Status,
		"error_message":    run.ErrorMessage,
		"processing_time":  run.ProcessingTime,
	}

	result := s.db.Model(&CollectionRunModel{}).Where("run_uuid = ?", run.RunUUID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("collection run %s not found", run.RunUUID)
	}
	return nil
}

func (s *LoggingService) GetRunByUUID(runUUID string) (*CollectionRunModel, error) {
	var run CollectionRunModel
	err := s.db.Where("run_uuid = ?", runUUID).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RecentRuns returns the latest runs, newest first
func (s *LoggingService) RecentRuns(limit int) ([]CollectionRunModel, error) {
	var runs []CollectionRunModel
	err := s.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// Coin pull methods

func (s *LoggingService) LogCoinPull(runUUID, coin string, tweets int, sentiment float64, pullErr error) error {
	pull := CoinPullLogModel{
		RunUUID:   runUUID,
		Coin:      coin,
		Tweets:    tweets,
		Sentiment: sentiment,
		IsSuccess: pullErr == nil,
	}
	if pullErr != nil {
		pull.ErrorMessage = pullErr.Error()
	}
	return s.db.Create(&pull).Error
}

func (s *LoggingService) GetCoinPullsByRun(runUUID string) ([]CoinPullLogModel, error) {
	var pulls []CoinPullLogModel
	err := s.db.Where("run_uuid = ?", runUUID).Order("coin ASC").Find(&pulls).Error
	return pulls, err
}

// Key rotation methods

func (s *LoggingService) LogKeyRotation(reason string, remainingKeys int) error {
	rotation := KeyRotationLogModel{
		Reason:        reason,
		RemainingKeys: remainingKeys,
		RotatedAt:     time.Now(),
	}
	return s.db.Create(&rotation).Error
}

// GetKeyRotationCountByDay returns rotations logged on the given day
func (s *LoggingService) GetKeyRotationCountByDay(date time.Time) (int64, error) {
	var count int64
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	err := s.db.Model(&KeyRotationLogModel{}).
		Where("rotated_at >= ? AND rotated_at < ?", startOfDay, endOfDay).
		Count(&count).Error

	return count, err
}

// Cleanup methods

// CleanupOldLogs removes logs older than specified days
func (s *LoggingService) CleanupOldLogs(days int) error {
	cutoffDate := time.Now().AddDate(0, 0, -days)

	s.logger.Info("Cleaning up logging database",
		zap.Int("days", days),
		zap.String("before", cutoffDate.Format("2006-01-02")))

	tables := []struct {
		name  string
		model interface{}
	}{
		{"collection runs", &CollectionRunModel{}},
		{"coin pull logs", &CoinPullLogModel{}},
		{"key rotation logs", &KeyRotationLogModel{}},
	}

	for _, table := range tables {
		result := s.db.Where("created_at < ?", cutoffDate).Delete(table.model)
		if result.Error != nil {
			return fmt.Errorf("failed to cleanup %s: %w", table.name, result.Error)
		}
		s.logger.Info("Cleaned up log records",
			zap.String("table", table.name),
			zap.Int64("deleted", result.RowsAffected))
	}

	return nil
}

// VacuumDatabase runs VACUUM command to reclaim space
func (s *LoggingService) VacuumDatabase() error {
	if err := s.db.Exec("VACUUM").Error; err != nil {
		return fmt.Errorf("failed to vacuum logging database: %w", err)
	}
	s.logger.Info("VACUUM completed")
	return nil
}

// GetDatabaseStats returns database statistics
func (s *LoggingService) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var runCount int64
	if err := s.db.Model(&CollectionRunModel{}).Count(&runCount).Error; err != nil {
		return nil, err
	}
	stats["collection_runs"] = runCount

	var pullCount int64
	if err := s.db.Model(&CoinPullLogModel{}).Count(&pullCount).Error; err != nil {
		return nil, err
	}
	stats["coin_pull_logs"] = pullCount

	var rotationCount int64
	if err := s.db.Model(&KeyRotationLogModel{}).Count(&rotationCount).Error; err != nil {
		return nil, err
	}
	stats["key_rotation_logs"] = rotationCount

	var oldestRun CollectionRunModel
	if err := s.db.Order("created_at ASC").Limit(1).Find(&oldestRun).Error; err != nil {
		return nil, err
	}
	if oldestRun.ID != 0 {
		stats["oldest_record"] = oldestRun.CreatedAt.Format("2006-01-02 15:04:05")
	}

	var newestRun CollectionRunModel
	if err := s.db.Order("created_at DESC").Limit(1).Find(&newestRun).Error; err != nil {
		return nil, err
	}
	if newestRun.ID != 0 {
		stats["newest_record"] = newestRun.CreatedAt.Format("2006-01-02 15:04:05")
	}

	return stats, nil
}

// Close closes the logging database connection
func (s *LoggingService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
