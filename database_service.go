package main

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ornus/collector/coins"
	"github.com/ornus/collector/logger"
	"github.com/ornus/collector/tweetparser"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const MAX_TWEET_CONTENT = 1120
const MAX_HASHTAG_NAME = 280

var ErrUnknownCoin = errors.New("coin is not in the cryptocurrencies table")

type DatabaseService struct {
	db     *gorm.DB
	logger *zap.Logger

	coinMutex sync.RWMutex
	coinIDs   map[string]uint
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DATABASE_DRIVER_SQLITE:
		return sqlite.Open(dsn), nil
	case DATABASE_DRIVER_MYSQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewDatabaseService connects to the collector database and creates missing tables
func NewDatabaseService(driver, dsn string, log *zap.Logger) (*DatabaseService, error) {
	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	service := &DatabaseService{
		db:      db,
		logger:  logger.Named(log, "database"),
		coinIDs: make(map[string]uint),
	}

	if err := service.CreateTables(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return service, nil
}

// CreateTables is idempotent
func (s *DatabaseService) CreateTables() error {
	return s.db.AutoMigrate(
		&CryptocurrencyModel{},
		&TwitterUserModel{},
		&TweetModel{},
		&HashtagModel{},
		&TweetHashtagModel{},
		&MarketDataModel{},
	)
}

// FillCryptocurrencyTable inserts the coins that are not stored yet and returns how many were added
func (s *DatabaseService) FillCryptocurrencyTable(list []coins.Cryptocurrency) (int64, error) {
	if len(list) == 0 {
		return 0, nil
	}

	models := make([]CryptocurrencyModel, 0, len(list))
	for _, coin := range list {
		models = append(models, CryptocurrencyModel{
			Name:        coin.Name,
			Ticker:      coin.Ticker,
			DateFounded: coin.DateFounded,
		})
	}

	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to fill cryptocurrencies: %w", result.Error)
	}

	s.logger.Debug("Cryptocurrency table filled", zap.Int64("inserted", result.RowsAffected))
	return result.RowsAffected, nil
}

func (s *DatabaseService) GetCoinID(name string) (uint, bool) {
	return s.coinID(s.db, name)
}

func (s *DatabaseService) coinID(tx *gorm.DB, name string) (uint, bool) {
	s.coinMutex.RLock()
	id, ok := s.coinIDs[name]
	s.coinMutex.RUnlock()
	if ok {
		return id, true
	}

	var coin CryptocurrencyModel
	if err := tx.Where("name = ?", name).First(&coin).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Coin lookup failed", zap.String("coin", name), zap.Error(err))
		}
		return 0, false
	}

	s.coinMutex.Lock()
	s.coinIDs[name] = coin.ID
	s.coinMutex.Unlock()
	return coin.ID, true
}

func (s *DatabaseService) GetHashtagID(name string) (uint, bool) {
	var hashtag HashtagModel
	if err := s.db.Where("name = ?", name).First(&hashtag).Error; err != nil {
		return 0, false
	}
	return hashtag.ID, true
}

// InsertTweet stores the author, the tweet and its hashtags in one transaction.
// Rows that already exist are left untouched; inserted reports whether the tweet itself was new.
func (s *DatabaseService) InsertTweet(tweet tweetparser.Tweet) (inserted bool, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		coinID, found := s.coinID(tx, tweet.Coin)
		if !found {
			return fmt.Errorf("tweet %d coin %q: %w", tweet.ID, tweet.Coin, ErrUnknownCoin)
		}

		user := TwitterUserModel{
			ID:          tweet.User.ID,
			DateCreated: tweet.User.CreatedAt,
			Followers:   tweet.User.Followers,
			Friends:     tweet.User.Friends,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			return fmt.Errorf("failed to insert user %d: %w", user.ID, err)
		}

		model := TweetModel{
			ID:        tweet.ID,
			Date:      tweet.CreatedAt,
			Content:   truncateRunes(tweet.Text, MAX_TWEET_CONTENT),
			CoinID:    coinID,
			Sentiment: tweet.Sentiment,
			UserID:    tweet.User.ID,
			Retweets:  tweet.Retweets,
		}
		result := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if result.Error != nil {
			return fmt.Errorf("failed to insert tweet %d: %w", tweet.ID, result.Error)
		}
		inserted = result.RowsAffected > 0

		for _, name := range tweet.Hashtags {
			name = truncateRunes(name, MAX_HASHTAG_NAME)
			hashtag := HashtagModel{Name: name}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&hashtag).Error; err != nil {
				return fmt.Errorf("failed to insert hashtag %q: %w", name, err)
			}
			if err := tx.Where("name = ?", name).First(&hashtag).Error; err != nil {
				return fmt.Errorf("failed to load hashtag %q: %w", name, err)
			}

			link := TweetHashtagModel{TweetID: tweet.ID, HashtagID: hashtag.ID}
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return fmt.Errorf("failed to link hashtag %q: %w", name, err)
			}
		}

		return nil
	})
	if err != nil {
		inserted = false
	}
	return inserted, err
}

// InsertMarketData upserts a coin's daily row
func (s *DatabaseService) InsertMarketData(row MarketDataModel) error {
	row.Date = truncateToDay(row.Date)

	err := s.db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "coin_id"}, {Name: "date"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert market data for coin %d: %w", row.CoinID, err)
	}
	return nil
}

func (s *DatabaseService) TweetCount() (int64, error) {
	var count int64
	err := s.db.Model(&TweetModel{}).Count(&count).Error
	return count, err
}

// TweetsForExport returns every stored tweet with its coin name, oldest first
func (s *DatabaseService) TweetsForExport() ([]TweetExportRow, error) {
	var rows []TweetExportRow
	err := s.db.Table("tweets").
		Select("tweets.id, tweets.date, cryptocurrencies.name AS coin, tweets.sentiment, tweets.retweets, tweets.user_id, tweets.content").
		Joins("JOIN cryptocurrencies ON cryptocurrencies.id = tweets.coin_id").
		Order("tweets.date ASC, tweets.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tweets for export: %w", err)
	}
	return rows, nil
}

// MarketDataFor returns a coin's daily rows, oldest first
func (s *DatabaseService) MarketDataFor(coinName string) ([]MarketDataModel, error) {
	coinID, found := s.GetCoinID(coinName)
	if !found {
		return nil, fmt.Errorf("%q: %w", coinName, ErrUnknownCoin)
	}

	var rows []MarketDataModel
	err := s.db.Where("coin_id = ?", coinID).Order("date ASC").Find(&rows).Error
	return rows, err
}

// Close closes the database connection
func (s *DatabaseService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
