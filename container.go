package main

import (
	"context"
	"fmt"

	"github.com/ornus/collector/coins"
	"github.com/ornus/collector/collector"
	"github.com/ornus/collector/logger"
	"github.com/ornus/collector/marketdata"
	"github.com/ornus/collector/sentiment"
	"github.com/ornus/collector/twitterapi"
	"github.com/spf13/viper"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

func ProvideLogger(config *Config) (*zap.Logger, error) {
	return logger.New(logger.Options{Level: config.LogLevel, File: config.LogFile})
}

func ProvideDatabaseService(config *Config, log *zap.Logger) (*DatabaseService, error) {
	dsn := config.DatabaseName
	if config.DatabaseDriver == DATABASE_DRIVER_MYSQL {
		dsn = config.DatabaseDSN
	}
	return NewDatabaseService(config.DatabaseDriver, dsn, log)
}

func ProvideLoggingService(config *Config, log *zap.Logger) (*LoggingService, error) {
	return NewLoggingService(config.LoggingDBPath, log)
}

func ProvideCredentialPool(config *Config, log *zap.Logger) (*collector.CredentialPool, error) {
	return collector.NewCredentialPool(config.APIKeysFile, config.KeyResetWindow, log)
}

func ProvideClientFactory(config *Config) collector.ClientFactory {
	return func(creds twitterapi.Credentials) (twitterapi.Searcher, error) {
		return twitterapi.NewSearchClient(creds, config.TwitterAPIBaseURL, config.ProxyDSN)
	}
}

func ProvideSentimentAnalyzer() *sentiment.Analyzer {
	return sentiment.NewAnalyzer()
}

func ProvideMarketDataClient(config *Config, log *zap.Logger) (*marketdata.Client, error) {
	return marketdata.NewClient(config.BinanceAPIBaseURL, config.ProxyDSN, log)
}

func ProvideReportFormatter() *ReportFormatter {
	return NewReportFormatter()
}

func ProvideTelegramNotifier(config *Config, formatter *ReportFormatter, log *zap.Logger) (*TelegramNotifier, error) {
	return NewTelegramNotifier(config.TelegramAPIKey, config.TelegramChatID, formatter, log)
}

func ProvideTweetSourceFactory(config *Config, pool *collector.CredentialPool, newClient collector.ClientFactory, analyzer *sentiment.Analyzer, loggingService *LoggingService, log *zap.Logger) TweetSourceFactory {
	opts := collector.Options{
		Workers:            config.Workers,
		MaxTweetsPerWindow: config.MaxTweetsPerWindow,
		WindowInterval:     config.WindowInterval,
		MaxAttempts:        config.MaxAttempts,
		Scorer:             analyzer,
		OnRotate: func(reason string, remaining int) {
			if err := loggingService.LogKeyRotation(reason, remaining); err != nil {
				log.Warn("Failed to log key rotation", zap.Error(err))
			}
		},
	}

	return func(ctx context.Context, coinList []coins.Cryptocurrency) (TweetSource, error) {
		manager, err := collector.NewTweetManager(ctx, coinList, pool, newClient, opts, log)
		if err != nil {
			return nil, err
		}
		return manager, nil
	}
}

func ProvideDailyJob(config *Config, db *DatabaseService, loggingService *LoggingService, newSource TweetSourceFactory, market *marketdata.Client, notifier *TelegramNotifier, log *zap.Logger) *DailyJob {
	return NewDailyJob(db, loggingService, newSource, market, notifier, config.Coins, config.TweetsPerCoin, log)
}

func ProvideCleanupScheduler(config *Config, loggingService *LoggingService, log *zap.Logger) *CleanupScheduler {
	return NewCleanupScheduler(loggingService, config.LogRetentionDays, log)
}

func ProvideCSVExporter(db *DatabaseService, log *zap.Logger) *TweetCSVExporter {
	return NewTweetCSVExporter(db, log)
}

func ProvideCSVImporter(db *DatabaseService, analyzer *sentiment.Analyzer, log *zap.Logger) *TweetCSVImporter {
	return NewTweetCSVImporter(db, analyzer, log)
}

// BuildContainer registers every service; dig only constructs what an Invoke asks for,
// so commands that never touch Twitter do not need the credentials file.
func BuildContainer(v *viper.Viper) (*dig.Container, error) {
	container := dig.New()

	providers := []struct {
		name        string
		constructor interface{}
	}{
		{"viper", func() *viper.Viper { return v }},
		{"config", ProvideConfig},
		{"logger", ProvideLogger},
		{"database service", ProvideDatabaseService},
		{"logging service", ProvideLoggingService},
		{"credential pool", ProvideCredentialPool},
		{"twitter client factory", ProvideClientFactory},
		{"sentiment analyzer", ProvideSentimentAnalyzer},
		{"market data client", ProvideMarketDataClient},
		{"report formatter", ProvideReportFormatter},
		{"telegram notifier", ProvideTelegramNotifier},
		{"tweet source factory", ProvideTweetSourceFactory},
		{"daily job", ProvideDailyJob},
		{"cleanup scheduler", ProvideCleanupScheduler},
		{"csv exporter", ProvideCSVExporter},
		{"csv importer", ProvideCSVImporter},
		{"application", NewApplication},
	}

	for _, p := range providers {
		if err := container.Provide(p.constructor); err != nil {
			return nil, fmt.Errorf("failed to provide %s: %w", p.name, err)
		}
	}

	return container, nil
}
