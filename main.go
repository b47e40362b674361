package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const ENV_PROD_CONFIG = ".env"

var configFile string

// settings is shared by every command; flags are bound into it before a command runs
var settings = NewViper()

var rootCmd = &cobra.Command{
	Use:   "ornus",
	Short: "Ornus - daily crypto tweet sentiment and market data collector",
	Long: `Ornus pulls tweets about a fixed list of cryptocurrencies, scores their sentiment,
and stores them next to each coin's daily Binance bar.

Settings come from the environment (lowercase names such as database_name) after the
--config file is loaded; flags override both.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd, settings)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", ENV_PROD_CONFIG, "Configuration file to load (e.g., .env, .dev.env, .prod.env)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Also write JSON logs to this file")
	flags.String("database-driver", "", "Database driver: sqlite or mysql")
	flags.String("database-name", "", "SQLite database file")
	flags.String("coins", "", `Coins to track, e.g. "Bitcoin:BTC,Ethereum:ETH"`)
	flags.Int("tweets-per-coin", 0, "Tweets to pull per coin in one run")
	flags.Int("workers", 0, "Concurrent coin workers")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(initDBCmd)
	rootCmd.AddCommand(checkKeysCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(cleanTextCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(cleanupLogsCmd)
}

var flagSettings = map[string]string{
	"log-level":       ENV_LOG_LEVEL,
	"log-file":        ENV_LOG_FILE,
	"database-driver": ENV_DATABASE_DRIVER,
	"database-name":   ENV_DATABASE_NAME,
	"coins":           ENV_COINS,
	"tweets-per-coin": ENV_TWEETS_PER_COIN,
	"workers":         ENV_WORKERS,
}

// loadSettings loads the --config file into the environment and binds the flags that were set
func loadSettings(cmd *cobra.Command, v *viper.Viper) error {
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config file %s: %v, continuing with environment variables\n", configFile, err)
		}
	}

	for flagName, key := range flagSettings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flagName, err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
