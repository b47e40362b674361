package main

import (
	"time"
)

const RUN_STATUS_RUNNING = "running"
const RUN_STATUS_COMPLETED = "completed"
const RUN_STATUS_PARTIAL = "partial" // finished with per-coin failures
const RUN_STATUS_FAILED = "failed"

// CollectionRunModel tracks one daily collection job
type CollectionRunModel struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunUUID        string    `gorm:"column:run_uuid;uniqueIndex" json:"run_uuid"`
	StartedAt      time.Time `gorm:"column:started_at;index" json:"started_at"`
	FinishedAt     time.Time `gorm:"column:finished_at" json:"finished_at"`
	TweetsPulled   int       `gorm:"column:tweets_pulled" json:"tweets_pulled"`
	TweetsInserted int       `gorm:"column:tweets_inserted" json:"tweets_inserted"`
	CoinsProcessed int       `gorm:"column:coins_processed" json:"coins_processed"`
	MarketDataRows int       `gorm:"column:market_data_rows" json:"market_data_rows"`
	Failures       int       `gorm:"column:failures" json:"failures"`
	Status         string    `gorm:"column:status;index" json:"status"`
	ErrorMessage   string    `gorm:"column:error_message" json:"error_message,omitempty"`
	ProcessingTime int64     `gorm:"column:processing_time" json:"processing_time"` // milliseconds
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (CollectionRunModel) TableName() string {
	return "collection_runs"
}

// CoinPullLogModel tracks the tweets pulled for one coin in a run
type CoinPullLogModel struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunUUID      string    `gorm:"column:run_uuid;index" json:"run_uuid"`
	Coin         string    `gorm:"column:coin;index" json:"coin"`
	Tweets       int       `gorm:"column:tweets" json:"tweets"`
	Sentiment    float64   `gorm:"column:sentiment" json:"sentiment"`
	IsSuccess    bool      `gorm:"column:is_success" json:"is_success"`
	ErrorMessage string    `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (CoinPullLogModel) TableName() string {
	return "coin_pull_logs"
}

// KeyRotationLogModel tracks every credential rotation
type KeyRotationLogModel struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Reason        string    `gorm:"column:reason" json:"reason"`
	RemainingKeys int       `gorm:"column:remaining_keys" json:"remaining_keys"`
	RotatedAt     time.Time `gorm:"column:rotated_at;index" json:"rotated_at"`
	CreatedAt     time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (KeyRotationLogModel) TableName() string {
	return "key_rotation_logs"
}
