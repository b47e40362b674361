package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ornus/collector/logger"
	"go.uber.org/zap"
)

var tweetCSVHeader = []string{"tweet_id", "date", "coin", "sentiment", "retweets", "user_id", "content"}

type TweetCSVExporter struct {
	dbService *DatabaseService
	logger    *zap.Logger
}

func NewTweetCSVExporter(dbService *DatabaseService, log *zap.Logger) *TweetCSVExporter {
	return &TweetCSVExporter{
		dbService: dbService,
		logger:    logger.Named(log, "csv-export"),
	}
}

// Export writes every stored tweet to path and returns the number of rows written
func (e *TweetCSVExporter) Export(path string) (int, error) {
	rows, err := e.dbService.TweetsForExport()
	if err != nil {
		return 0, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tweetCSVHeader); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			strconv.FormatUint(row.ID, 10),
			row.Date.UTC().Format(time.RFC3339),
			row.Coin,
			strconv.FormatFloat(row.Sentiment, 'f', -1, 64),
			strconv.Itoa(row.Retweets),
			strconv.FormatUint(row.UserID, 10),
			row.Content,
		}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write tweet %d: %w", row.ID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}

	e.logger.Info("Exported tweets", zap.String("path", path), zap.Int("rows", len(rows)))
	return len(rows), nil
}
