package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/stockdata/config"
	"github.com/rustyeddy/stockdata/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// skipConfig marks commands that run without loading the configuration.
const skipConfig = "skip-config"

var rootCmd = &cobra.Command{
	Use:   "stockdata",
	Short: "Download, cache and query stock series and technical indicators",
	Long: `Stockdata downloads daily, weekly, monthly and intraday price series
together with technical indicators from Alpha Vantage, keeps timestamped
snapshots in a local cache and answers date range queries against them.

It provides tools for:
  - Fetching a symbol and printing the first rows
  - Querying cached history by date range and column
  - Bulk importing a ticker list
  - Refreshing a watch list on a cron schedule
  - Serving cached history over HTTP

Remote calls are throttled to the provider's rate limit.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./stockdata.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	c, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}

	l, err := logging.New(c.Logging.Level, c.Logging.Format)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	cfg, logger = c, l
	return nil
}
