package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ornus/collector/collector"
	"github.com/ornus/collector/sentiment"
	"github.com/ornus/collector/textclean"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// invoke builds the container and runs fn with its dependencies
func invoke(fn interface{}) error {
	container, err := BuildContainer(settings)
	if err != nil {
		return err
	}
	return container.Invoke(fn)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one daily collection now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		return invoke(func(app *Application, log *zap.Logger) error {
			defer app.Shutdown()
			defer log.Sync()

			report, err := app.RunOnce(ctx)
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s, %d tweets inserted, %d market data rows, %d failures\n",
					report.RunUUID, report.Status, report.TweetsInserted, report.MarketDataRows, len(report.Failures))
			}
			return err
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily collection every day at schedule_time",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		return invoke(func(app *Application, log *zap.Logger) error {
			defer app.Shutdown()
			defer log.Sync()
			return app.RunScheduled(ctx)
		})
	},
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the tables and fill the cryptocurrencies table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(db *DatabaseService, config *Config, log *zap.Logger) error {
			defer db.Close()

			if err := db.CreateTables(); err != nil {
				return err
			}
			inserted, err := db.FillCryptocurrencyTable(config.Coins)
			if err != nil {
				return err
			}
			log.Info("Database initialized", zap.Int("coins", len(config.Coins)), zap.Int64("new_coins", inserted))
			return nil
		})
	},
}

var checkKeysCmd = &cobra.Command{
	Use:   "check-keys",
	Short: "Probe every credential set in the keys file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		return invoke(func(pool *collector.CredentialPool, newClient collector.ClientFactory) error {
			return writeKeyReport(ctx, cmd.OutOrStdout(), pool, newClient)
		})
	},
}

// writeKeyReport probes every key in the pool and prints one row per key
func writeKeyReport(ctx context.Context, out io.Writer, pool *collector.CredentialPool, newClient collector.ClientFactory) error {
	keys := pool.All()

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONSUMER\tSTATUS\tERROR")
	working := 0
	for _, status := range collector.CheckKeys(ctx, keys, newClient) {
		state, errText := "ok", ""
		if status.OK {
			working++
		} else {
			state, errText = "failed", status.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", status.Consumer, state, errText)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d/%d keys working\n", working, len(keys))
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export <file.csv>",
	Short: "Export every stored tweet to CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(db *DatabaseService, exporter *TweetCSVExporter) error {
			defer db.Close()

			written, err := exporter.Export(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d tweets to %s\n", written, args[0])
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import tweets from a CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(db *DatabaseService, config *Config, importer *TweetCSVImporter) error {
			defer db.Close()

			if _, err := db.FillCryptocurrencyTable(config.Coins); err != nil {
				return err
			}
			result, err := importer.Import(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		})
	},
}

var cleanTextCmd = &cobra.Command{
	Use:   "clean-text",
	Short: "Normalize tweets read from stdin, one per line",
	Long: `Reads one tweet per line from stdin and prints, tab separated, the normalized
text, the tf-idf variant and the sentiment polarity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer := sentiment.NewAnalyzer()
		scanner := bufio.NewScanner(cmd.InOrStdin())
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		out := bufio.NewWriter(cmd.OutOrStdout())
		defer out.Flush()

		for scanner.Scan() {
			line := scanner.Text()
			fmt.Fprintf(out, "%s\t%s\t%.4f\n", textclean.Clean(line), textclean.CleanForTFIDF(line), analyzer.Polarity(line))
		}
		return scanner.Err()
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent collection runs from the operational log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(loggingService *LoggingService) error {
			defer loggingService.Close()
			return writeRunsReport(cmd.OutOrStdout(), loggingService, runsLimit, time.Now())
		})
	},
}

// writeRunsReport prints the latest runs and the key rotations logged on now's day
func writeRunsReport(out io.Writer, loggingService *LoggingService, limit int, now time.Time) error {
	runs, err := loggingService.RecentRuns(limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tTWEETS\tINSERTED\tMARKET ROWS\tFAILURES\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.RunUUID,
			run.StartedAt.Format("2006-01-02 15:04"),
			run.Status,
			run.TweetsPulled,
			run.TweetsInserted,
			run.MarketDataRows,
			run.Failures,
			(time.Duration(run.ProcessingTime) * time.Millisecond).String())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	rotations, err := loggingService.GetKeyRotationCountByDay(now)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d key rotations today\n", rotations)
	return nil
}

var cleanupLogsCmd = &cobra.Command{
	Use:   "cleanup-logs",
	Short: "Prune the operational log database now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(scheduler *CleanupScheduler, loggingService *LoggingService) error {
			defer loggingService.Close()
			return scheduler.RunCleanupNow()
		})
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Number of runs to show")
}
