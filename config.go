package main

import (
	"fmt"
	"time"

	"github.com/ornus/collector/coins"
	"github.com/spf13/viper"
)

const ENV_LOG_LEVEL = "log_level"
const ENV_LOG_FILE = "log_file"
const ENV_DATABASE_DRIVER = "database_driver" // "sqlite" or "mysql"
const ENV_DATABASE_NAME = "database_name"     // sqlite file path
const ENV_DATABASE_DSN = "database_dsn"       // mysql dsn
const ENV_LOGGING_DATABASE_PATH = "logging_database_path"
const ENV_API_KEYS_FILE = "api_keys_file"
const ENV_KEY_RESET_WINDOW = "key_reset_window"
const ENV_TWITTER_API_BASE_URL = "twitter_api_base_url"
const ENV_BINANCE_API_BASE_URL = "binance_api_base_url"
const ENV_PROXY_DSN = "proxy_dsn"
const ENV_COINS = "coins" // "Bitcoin:BTC,Ethereum:ETH", empty for the built-in list
const ENV_TWEETS_PER_COIN = "tweets_per_coin"
const ENV_WORKERS = "workers"
const ENV_MAX_TWEETS_PER_WINDOW = "max_tweets_per_window"
const ENV_WINDOW_INTERVAL = "window_interval"
const ENV_MAX_ATTEMPTS = "max_attempts"
const ENV_SCHEDULE_TIME = "schedule_time"
const ENV_LOG_RETENTION_DAYS = "log_retention_days"
const ENV_TELEGRAM_API_KEY = "telegram_api_key"
const ENV_TELEGRAM_ADMIN_CHAT_ID = "tg_admin_chat_id"

const DATABASE_DRIVER_SQLITE = "sqlite"
const DATABASE_DRIVER_MYSQL = "mysql"

type Config struct {
	LogLevel           string
	LogFile            string
	DatabaseDriver     string
	DatabaseName       string
	DatabaseDSN        string
	LoggingDBPath      string
	APIKeysFile        string
	KeyResetWindow     time.Duration
	TwitterAPIBaseURL  string
	BinanceAPIBaseURL  string
	ProxyDSN           string
	Coins              []coins.Cryptocurrency
	TweetsPerCoin      int
	Workers            int
	MaxTweetsPerWindow int
	WindowInterval     time.Duration
	MaxAttempts        int
	ScheduleHour       int
	ScheduleMinute     int
	LogRetentionDays   int
	TelegramAPIKey     string
	TelegramChatID     string
}

var configDefaults = map[string]interface{}{
	ENV_LOG_LEVEL:              "info",
	ENV_LOG_FILE:               "",
	ENV_DATABASE_DRIVER:        DATABASE_DRIVER_SQLITE,
	ENV_DATABASE_NAME:          "ornus.db",
	ENV_DATABASE_DSN:           "",
	ENV_LOGGING_DATABASE_PATH:  "logs.db",
	ENV_API_KEYS_FILE:          "api_keys.json",
	ENV_KEY_RESET_WINDOW:       "900s",
	ENV_TWITTER_API_BASE_URL:   "",
	ENV_BINANCE_API_BASE_URL:   "",
	ENV_PROXY_DSN:              "",
	ENV_COINS:                  "",
	ENV_TWEETS_PER_COIN:        500,
	ENV_WORKERS:                12,
	ENV_MAX_TWEETS_PER_WINDOW:  100,
	ENV_WINDOW_INTERVAL:        "5s",
	ENV_MAX_ATTEMPTS:           3,
	ENV_SCHEDULE_TIME:          "00:30",
	ENV_LOG_RETENTION_DAYS:     30,
	ENV_TELEGRAM_API_KEY:       "",
	ENV_TELEGRAM_ADMIN_CHAT_ID: "",
}

// NewViper registers defaults and binds every setting to its lowercase env name.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
		v.BindEnv(key, key)
	}
	return v
}

func ProvideConfig(v *viper.Viper) (*Config, error) {
	driver := v.GetString(ENV_DATABASE_DRIVER)
	if driver != DATABASE_DRIVER_SQLITE && driver != DATABASE_DRIVER_MYSQL {
		return nil, fmt.Errorf("%s must be %q or %q, got %q", ENV_DATABASE_DRIVER, DATABASE_DRIVER_SQLITE, DATABASE_DRIVER_MYSQL, driver)
	}
	if driver == DATABASE_DRIVER_MYSQL && v.GetString(ENV_DATABASE_DSN) == "" {
		return nil, fmt.Errorf("%s is required for the mysql driver", ENV_DATABASE_DSN)
	}

	coinList := coins.Default()
	if raw := v.GetString(ENV_COINS); raw != "" {
		parsed, err := coins.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ENV_COINS, err)
		}
		coinList = parsed
	}

	positive := map[string]int{
		ENV_TWEETS_PER_COIN:       v.GetInt(ENV_TWEETS_PER_COIN),
		ENV_WORKERS:               v.GetInt(ENV_WORKERS),
		ENV_MAX_TWEETS_PER_WINDOW: v.GetInt(ENV_MAX_TWEETS_PER_WINDOW),
		ENV_MAX_ATTEMPTS:          v.GetInt(ENV_MAX_ATTEMPTS),
		ENV_LOG_RETENTION_DAYS:    v.GetInt(ENV_LOG_RETENTION_DAYS),
	}
	for key, value := range positive {
		if value <= 0 {
			return nil, fmt.Errorf("%s must be greater than 0, got %d", key, value)
		}
	}

	windowInterval, err := time.ParseDuration(v.GetString(ENV_WINDOW_INTERVAL))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ENV_WINDOW_INTERVAL, err)
	}
	keyResetWindow, err := time.ParseDuration(v.GetString(ENV_KEY_RESET_WINDOW))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ENV_KEY_RESET_WINDOW, err)
	}

	hour, minute, err := parseScheduleTime(v.GetString(ENV_SCHEDULE_TIME))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ENV_SCHEDULE_TIME, err)
	}

	return &Config{
		LogLevel:           v.GetString(ENV_LOG_LEVEL),
		LogFile:            v.GetString(ENV_LOG_FILE),
		DatabaseDriver:     driver,
		DatabaseName:       v.GetString(ENV_DATABASE_NAME),
		DatabaseDSN:        v.GetString(ENV_DATABASE_DSN),
		LoggingDBPath:      v.GetString(ENV_LOGGING_DATABASE_PATH),
		APIKeysFile:        v.GetString(ENV_API_KEYS_FILE),
		KeyResetWindow:     keyResetWindow,
		TwitterAPIBaseURL:  v.GetString(ENV_TWITTER_API_BASE_URL),
		BinanceAPIBaseURL:  v.GetString(ENV_BINANCE_API_BASE_URL),
		ProxyDSN:           v.GetString(ENV_PROXY_DSN),
		Coins:              coinList,
		TweetsPerCoin:      positive[ENV_TWEETS_PER_COIN],
		Workers:            positive[ENV_WORKERS],
		MaxTweetsPerWindow: positive[ENV_MAX_TWEETS_PER_WINDOW],
		WindowInterval:     windowInterval,
		MaxAttempts:        positive[ENV_MAX_ATTEMPTS],
		ScheduleHour:       hour,
		ScheduleMinute:     minute,
		LogRetentionDays:   positive[ENV_LOG_RETENTION_DAYS],
		TelegramAPIKey:     v.GetString(ENV_TELEGRAM_API_KEY),
		TelegramChatID:     v.GetString(ENV_TELEGRAM_ADMIN_CHAT_ID),
	}, nil
}

// parseScheduleTime reads "HH:MM" in 24h format.
func parseScheduleTime(value string) (int, int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
