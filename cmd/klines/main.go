package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ornus/collector/logger"
	"github.com/ornus/collector/marketdata"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var csvHeader = []string{"open_time", "open", "high", "low", "close", "volume", "num_trades"}

type KlineFetcher interface {
	Klines(ctx context.Context, req marketdata.KlineRequest) ([]marketdata.Bar, error)
}

type downloadOptions struct {
	Symbol   string
	Interval string
	Since    time.Time
	Pause    time.Duration
}

// download pages forward from opts.Since until a short page, writing one row per bar
func download(ctx context.Context, client KlineFetcher, opts downloadOptions, w *csv.Writer, log *zap.Logger) (int, error) {
	if err := w.Write(csvHeader); err != nil {
		return 0, err
	}

	since := opts.Since
	total := 0
	pause := time.NewTimer(0)
	defer pause.Stop()

	for page := 1; ; page++ {
		select {
		case <-ctx.Done():
			w.Flush()
			return total, ctx.Err()
		case <-pause.C:
		}

		bars, err := client.Klines(ctx, marketdata.KlineRequest{
			Symbol:    opts.Symbol,
			Interval:  opts.Interval,
			StartTime: since,
			Limit:     marketdata.MAX_KLINES,
		})
		if err != nil {
			w.Flush()
			return total, err
		}

		for _, bar := range bars {
			record := []string{
				strconv.FormatInt(bar.OpenTime.UnixMilli(), 10),
				strconv.FormatFloat(bar.Open, 'f', 8, 64),
				strconv.FormatFloat(bar.High, 'f', 8, 64),
				strconv.FormatFloat(bar.Low, 'f', 8, 64),
				strconv.FormatFloat(bar.Close, 'f', 8, 64),
				strconv.FormatFloat(bar.Volume, 'f', 8, 64),
				strconv.FormatInt(bar.NumTrades, 10),
			}
			if err := w.Write(record); err != nil {
				return total, err
			}
		}
		w.Flush()
		total += len(bars)

		log.Info("Downloaded page", zap.Int("page", page), zap.Int("bars", len(bars)), zap.Int("total", total))

		if len(bars) < marketdata.MAX_KLINES {
			return total, w.Error()
		}

		since = bars[len(bars)-1].OpenTime.Add(time.Millisecond)
		pause.Reset(opts.Pause)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	symbol := pflag.String("symbol", "BTCUSDT", "Binance symbol")
	interval := pflag.String("interval", marketdata.INTERVAL_DAILY, "Kline interval")
	since := pflag.String("since", "2017-08-17", "First day to download (YYYY-MM-DD, UTC)")
	out := pflag.String("out", "", "Output CSV file (default <symbol>_<interval>.csv)")
	pause := pflag.Duration("pause", 200*time.Millisecond, "Pause between pages")
	configFile := pflag.String("config", ".env", "Configuration file to load")
	pflag.Parse()

	godotenv.Load(*configFile)

	log, err := logger.New(logger.Options{Level: os.Getenv("log_level")})
	if err != nil {
		return err
	}
	defer log.Sync()

	start, err := time.Parse("2006-01-02", *since)
	if err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("%s_%s.csv", *symbol, *interval)
	}

	client, err := marketdata.NewClient(os.Getenv("binance_api_base_url"), os.Getenv("proxy_dsn"), log)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("Begin download klines", zap.String("symbol", *symbol), zap.String("interval", *interval), zap.Time("since", start))
	total, err := download(ctx, client, downloadOptions{
		Symbol:   *symbol,
		Interval: *interval,
		Since:    start,
		Pause:    *pause,
	}, csv.NewWriter(file), log)
	if err != nil {
		return fmt.Errorf("download stopped after %d bars: %w", total, err)
	}

	log.Info("Download finished", zap.String("path", path), zap.Int("bars", total))
	return nil
}
