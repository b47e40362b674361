package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ornus/collector/coins"
	"github.com/ornus/collector/collector"
	"github.com/ornus/collector/logger"
	"github.com/ornus/collector/marketdata"
	"github.com/ornus/collector/sentiment"
	"go.uber.org/zap"
)

const DEFAULT_TWEETS_PER_COIN = 500

// TweetSource is satisfied by *collector.TweetManager
type TweetSource interface {
	GetTweets(ctx context.Context, perCoin int) (*collector.Harvest, error)
}

// TweetSourceFactory builds the tweet source for one run; building it probes the credentials.
type TweetSourceFactory func(ctx context.Context, coinList []coins.Cryptocurrency) (TweetSource, error)

type MarketSource interface {
	DailyMarketData(ctx context.Context, coin coins.Cryptocurrency, day time.Time) (marketdata.Bar, error)
}

type Notifier interface {
	Send(report *RunReport) error
}

type CoinReport struct {
	Coin          string
	Tweets        int
	Average       float64
	PositiveRatio float64
	NegativeRatio float64
	Close         float64
	HasMarketData bool
	Err           error
}

type RunReport struct {
	RunUUID        string
	Day            time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
	TweetsPulled   int
	TweetsInserted int
	Duplicates     int
	UnknownCoin    int
	InsertFailures int
	MarketDataRows int
	Coins          []CoinReport
	Failures       []string
	Status         string
	Err            error
}

func (r *RunReport) fail(format string, args ...interface{}) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type DailyJob struct {
	db             *DatabaseService
	loggingService *LoggingService
	newSource      TweetSourceFactory
	market         MarketSource
	notifier       Notifier
	coins          []coins.Cryptocurrency
	perCoin        int
	logger         *zap.Logger

	now func() time.Time
}

func NewDailyJob(db *DatabaseService, loggingService *LoggingService, newSource TweetSourceFactory, market MarketSource, notifier Notifier, coinList []coins.Cryptocurrency, perCoin int, log *zap.Logger) *DailyJob {
	if perCoin <= 0 {
		perCoin = DEFAULT_TWEETS_PER_COIN
	}
	return &DailyJob{
		db:             db,
		loggingService: loggingService,
		newSource:      newSource,
		market:         market,
		notifier:       notifier,
		coins:          coinList,
		perCoin:        perCoin,
		logger:         logger.Named(log, "job"),
		now:            time.Now,
	}
}

// Run collects one day of tweets and market data. Per-tweet and per-coin failures are
// counted in the report; only setup failures and cancellation abort the run.
func (j *DailyJob) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunUUID:   uuid.New().String(),
		StartedAt: j.now(),
		Status:    RUN_STATUS_RUNNING,
	}
	report.Day = truncateToDay(report.StartedAt)
	log := j.logger.With(zap.String("run", report.RunUUID))

	if err := j.loggingService.StartRun(report.RunUUID, report.StartedAt); err != nil {
		log.Warn("Failed to record run start", zap.Error(err))
	}

	log.Info("Starting daily collection",
		zap.Int("coins", len(j.coins)),
		zap.Int("tweets_per_coin", j.perCoin))

	err := j.collect(ctx, report, log)
	report.FinishedAt = j.now()
	report.Err = err
	switch {
	case err != nil:
		report.Status = RUN_STATUS_FAILED
	case len(report.Failures) > 0:
		report.Status = RUN_STATUS_PARTIAL
	default:
		report.Status = RUN_STATUS_COMPLETED
	}

	j.recordRun(report, log)

	if j.notifier != nil {
		if sendErr := j.notifier.Send(report); sendErr != nil {
			log.Warn("Failed to send run report", zap.Error(sendErr))
		}
	}

	log.Info("Daily collection finished",
		zap.String("status", report.Status),
		zap.Int("tweets_inserted", report.TweetsInserted),
		zap.Int("market_data_rows", report.MarketDataRows),
		zap.Duration("elapsed", report.Duration()))

	return report, err
}

func (j *DailyJob) collect(ctx context.Context, report *RunReport, log *zap.Logger) error {
	if err := j.db.CreateTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := j.db.FillCryptocurrencyTable(j.coins); err != nil {
		return err
	}

	source, err := j.newSource(ctx, j.coins)
	if err != nil {
		return fmt.Errorf("failed to start tweet collection: %w", err)
	}

	harvest, err := source.GetTweets(ctx, j.perCoin)
	if harvest == nil {
		if err == nil {
			err = errors.New("tweet source returned no harvest")
		}
		return err
	}
	for coin, pullErr := range harvest.Failures {
		report.fail("%s tweets: %v", coin, pullErr)
	}

	// keep what was pulled before a cancellation
	j.insertTweets(harvest, report, log)
	if err != nil {
		return err
	}

	summaries := sentiment.Aggregate(harvest.Tweets)
	for _, coin := range j.coins {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		summary := summaries[coin.Name]
		if summary == nil {
			summary = &sentiment.Summary{}
		}
		coinReport := CoinReport{
			Coin:          coin.Name,
			Tweets:        summary.Count,
			Average:       summary.Average(),
			PositiveRatio: summary.PositiveRatio(),
			NegativeRatio: summary.NegativeRatio(),
			Err:           harvest.Failures[coin.Name],
		}

		if err := j.storeMarketData(ctx, coin, report.Day, summary, &coinReport); err != nil {
			log.Warn("Failed to store market data", zap.String("coin", coin.Name), zap.Error(err))
			report.fail("%s market data: %v", coin.Name, err)
			if coinReport.Err == nil {
				coinReport.Err = err
			}
		} else {
			report.MarketDataRows++
		}

		report.Coins = append(report.Coins, coinReport)
	}

	return nil
}

func (j *DailyJob) insertTweets(harvest *collector.Harvest, report *RunReport, log *zap.Logger) {
	report.TweetsPulled = len(harvest.Tweets)

	for _, tweet := range harvest.Tweets {
		inserted, err := j.db.InsertTweet(tweet)
		switch {
		case errors.Is(err, ErrUnknownCoin):
			report.UnknownCoin++
		case err != nil:
			report.InsertFailures++
			log.Debug("Failed to insert tweet", zap.Uint64("tweet_id", tweet.ID), zap.Error(err))
		case inserted:
			report.TweetsInserted++
		default:
			report.Duplicates++
		}
	}

	if report.UnknownCoin > 0 {
		report.fail("%d tweets tagged with unknown coins", report.UnknownCoin)
	}
	if report.InsertFailures > 0 {
		report.fail("%d tweets failed to insert", report.InsertFailures)
	}
}

func (j *DailyJob) storeMarketData(ctx context.Context, coin coins.Cryptocurrency, day time.Time, summary *sentiment.Summary, coinReport *CoinReport) error {
	coinID, found := j.db.GetCoinID(coin.Name)
	if !found {
		return fmt.Errorf("%q: %w", coin.Name, ErrUnknownCoin)
	}

	bar, err := j.market.DailyMarketData(ctx, coin, day)
	if err != nil {
		return err
	}

	err = j.db.InsertMarketData(MarketDataModel{
		CoinID:                 coinID,
		Date:                   day,
		Open:                   bar.Open,
		High:                   bar.High,
		Low:                    bar.Low,
		Close:                  bar.Close,
		Volume:                 bar.Volume,
		NumTrades:              bar.NumTrades,
		PositiveTweetSentiment: summary.PositiveRatio(),
		NegativeTweetSentiment: summary.NegativeRatio(),
		AverageTweetSentiment:  summary.Average(),
		TweetCount:             summary.Count,
	})
	if err != nil {
		return err
	}

	coinReport.Close = bar.Close
	coinReport.HasMarketData = true
	return nil
}

func (j *DailyJob) recordRun(report *RunReport, log *zap.Logger) {
	run := CollectionRunModel{
		RunUUID:        report.RunUUID,
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		TweetsPulled:   report.TweetsPulled,
		TweetsInserted: report.TweetsInserted,
		CoinsProcessed: len(report.Coins),
		MarketDataRows: report.MarketDataRows,
		Failures:       len(report.Failures),
		Status:         report.Status,
	}
	if report.Err != nil {
		run.ErrorMessage = report.Err.Error()
	}
	if err := j.loggingService.FinishRun(run); err != nil {
		log.Warn("Failed to record run", zap.Error(err))
	}

	for _, coinReport := range report.Coins {
		if err := j.loggingService.LogCoinPull(report.RunUUID, coinReport.Coin, coinReport.Tweets, coinReport.Average, coinReport.Err); err != nil {
			log.Warn("Failed to record coin pull", zap.String("coin", coinReport.Coin), zap.Error(err))
		}
	}
}
