package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ornus/collector/logger"
	"github.com/ornus/collector/tweetparser"
	"go.uber.org/zap"
)

// Scorer assigns a polarity in [-1, 1] to tweet text
type Scorer interface {
	Polarity(text string) float64
}

type TweetCSVImporter struct {
	dbService *DatabaseService
	scorer    Scorer
	logger    *zap.Logger
}

func NewTweetCSVImporter(dbService *DatabaseService, scorer Scorer, log *zap.Logger) *TweetCSVImporter {
	return &TweetCSVImporter{
		dbService: dbService,
		scorer:    scorer,
		logger:    logger.Named(log, "csv-import"),
	}
}

// Import reads a tweet export and stores every row through InsertTweet.
// Rows without a sentiment value are scored on import.
func (c *TweetCSVImporter) Import(csvFilePath string) (*ImportResult, error) {
	if _, err := os.Stat(csvFilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("CSV file not found: %s", csvFilePath)
	}

	file, err := os.Open(csvFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columnMap := c.mapColumns(header)
	if err := c.validateColumns(columnMap); err != nil {
		return nil, fmt.Errorf("CSV validation failed: %w", err)
	}

	result := &ImportResult{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return result, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		result.TotalProcessed++

		tweet, err := c.parseRecord(record, columnMap)
		if err != nil {
			c.logger.Debug("Skipping invalid row", zap.Int("line", line), zap.Error(err))
			result.InvalidRows++
			continue
		}

		inserted, err := c.dbService.InsertTweet(tweet)
		switch {
		case errors.Is(err, ErrUnknownCoin):
			result.UnknownCoin++
		case err != nil:
			c.logger.Warn("Failed to import tweet", zap.Uint64("tweet_id", tweet.ID), zap.Error(err))
			result.Failed++
		case inserted:
			result.Imported++
		default:
			result.Duplicates++
		}

		if result.TotalProcessed%1000 == 0 {
			c.logger.Info("Import progress", zap.Int("rows", result.TotalProcessed))
		}
	}

	return result, nil
}

func (c *TweetCSVImporter) mapColumns(header []string) map[string]int {
	columnMap := make(map[string]int)

	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		switch col {
		case "tweet_id", "id":
			columnMap["tweet_id"] = i
		case "date", "created_at":
			columnMap["date"] = i
		case "coin", "cryptocurrency":
			columnMap["coin"] = i
		case "sentiment", "polarity":
			columnMap["sentiment"] = i
		case "retweets", "retweet_count":
			columnMap["retweets"] = i
		case "user_id", "author_id":
			columnMap["user_id"] = i
		case "content", "text":
			columnMap["content"] = i
		}
	}

	return columnMap
}

func (c *TweetCSVImporter) validateColumns(columnMap map[string]int) error {
	required := []string{"tweet_id", "date", "coin", "user_id", "content"}

	for _, field := range required {
		if _, exists := columnMap[field]; !exists {
			return fmt.Errorf("required column not found: %s", field)
		}
	}

	return nil
}

func (c *TweetCSVImporter) parseRecord(record []string, columnMap map[string]int) (tweetparser.Tweet, error) {
	field := func(name string) string {
		i, ok := columnMap[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id, err := strconv.ParseUint(field("tweet_id"), 10, 64)
	if err != nil {
		return tweetparser.Tweet{}, fmt.Errorf("invalid tweet_id: %w", err)
	}
	userID, err := strconv.ParseUint(field("user_id"), 10, 64)
	if err != nil {
		return tweetparser.Tweet{}, fmt.Errorf("invalid user_id: %w", err)
	}
	date, err := c.parseDate(field("date"))
	if err != nil {
		return tweetparser.Tweet{}, err
	}
	coin := field("coin")
	if coin == "" {
		return tweetparser.Tweet{}, fmt.Errorf("tweet %d has no coin", id)
	}

	tweet := tweetparser.Tweet{
		ID:        id,
		Text:      field("content"),
		CreatedAt: date,
		User:      tweetparser.User{ID: userID},
		Coin:      coin,
	}

	if retweets := field("retweets"); retweets != "" {
		tweet.Retweets, err = strconv.Atoi(retweets)
		if err != nil {
			return tweetparser.Tweet{}, fmt.Errorf("invalid retweets: %w", err)
		}
	}

	if sentiment := field("sentiment"); sentiment != "" {
		tweet.Sentiment, err = strconv.ParseFloat(sentiment, 64)
		if err != nil {
			return tweetparser.Tweet{}, fmt.Errorf("invalid sentiment: %w", err)
		}
	} else if c.scorer != nil {
		tweet.Sentiment = c.scorer.Polarity(tweet.Text)
	}

	return tweet, nil
}

func (c *TweetCSVImporter) parseDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,                    // export format
		tweetparser.TWITTER_TIME_LAYOUT, // Twitter format
		"2006-01-02 15:04:05",           // SQL format
		"2006-01-02",                    // Date only
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

type ImportResult struct {
	Imported       int
	Duplicates     int
	UnknownCoin    int
	InvalidRows    int
	Failed         int
	TotalProcessed int
}

func (r *ImportResult) String() string {
	return fmt.Sprintf("Import Result:\n  Imported: %d\n  Duplicates: %d\n  Unknown coin: %d\n  Invalid rows: %d\n  Failed: %d\n  Total processed: %d",
		r.Imported, r.Duplicates, r.UnknownCoin, r.InvalidRows, r.Failed, r.TotalProcessed)
}
