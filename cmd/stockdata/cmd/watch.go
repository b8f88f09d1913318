package cmd

import (
	"fmt"

	"github.com/rustyeddy/stockdata/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch [SYMBOL...]",
	Short: "Refresh the watch list on a cron schedule",
	Long: `Refresh every symbol of the watch list at every configured interval
whenever watch.schedule fires. Symbols given as arguments replace the
configured list. Runs until interrupted.

Example:
  stockdata watch --now IBM MSFT`,
	RunE: runWatch,
}

var (
	watchNow      bool
	watchSchedule string
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "refresh once before waiting for the schedule")
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "override watch.schedule")
}

func runWatch(cmd *cobra.Command, args []string) error {
	symbols := cfg.Watch.Symbols
	if len(args) > 0 {
		symbols = args
	}
	schedule := cfg.Watch.Schedule
	if watchSchedule != "" {
		schedule = watchSchedule
	}
	intervals, err := cfg.Watch.ParsedIntervals()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	w := scheduler.NewWatcher(ctx, a.manager, symbols, intervals, logger)
	if err := w.Register(schedule); err != nil {
		return err
	}

	if watchNow {
		if err := w.RunNow(ctx); err != nil {
			logger.Warn("initial refresh incomplete", zap.Error(err))
		}
	}

	w.Start()
	fmt.Fprintf(cmd.OutOrStdout(), "watching %d symbols, next run %s\n", len(symbols), w.Next().Format("2006-01-02 15:04"))
	<-ctx.Done()
	w.Stop()
	return nil
}
