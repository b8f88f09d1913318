package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/stockdata/manager"
	"github.com/rustyeddy/stockdata/market"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <SYMBOL>",
	Short: "Query historical data from the cache",
	Long: `Print the rows of SYMBOL between --start and --end, one per interval
period. The cache is used unless --fetch is given; a missing snapshot is
downloaded.

Examples:
  stockdata history IBM --interval weekly --start 2024-01-01 --end 2024-03-31
  stockdata history IBM --attrib close,RSI_H --dropna --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var (
	historyInterval string
	historyStart    string
	historyEnd      string
	historyAttrib   []string
	historyFetch    bool
	historyDropNA   bool
	historySave     bool
	historyFormat   string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyInterval, "interval", "i", "daily", "daily, weekly or monthly")
	historyCmd.Flags().StringVar(&historyStart, "start", "", "first day (YYYY-MM-DD), default first stored row")
	historyCmd.Flags().StringVar(&historyEnd, "end", "", "last day (YYYY-MM-DD), default last stored row")
	historyCmd.Flags().StringSliceVarP(&historyAttrib, "attrib", "a", nil, "columns to print, default all")
	historyCmd.Flags().BoolVar(&historyFetch, "fetch", false, "download instead of using the cache")
	historyCmd.Flags().BoolVar(&historyDropNA, "dropna", false, "drop rows with missing values")
	historyCmd.Flags().BoolVar(&historySave, "save", true, "save downloaded data")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "table or csv")
}

func runHistory(cmd *cobra.Command, args []string) error {
	iv, err := market.ParseInterval(historyInterval)
	if err != nil {
		return err
	}
	start, err := parseDay(historyStart)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseDay(historyEnd)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if historyFormat != "table" && historyFormat != "csv" {
		return fmt.Errorf("unknown format %q", historyFormat)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	tb, err := a.manager.GetHistoricalData(cmd.Context(), manager.Query{
		Symbol:   args[0],
		Interval: iv,
		Attrib:   historyAttrib,
		Start:    start,
		End:      end,
		Fetch:    historyFetch,
		DropNA:   historyDropNA,
		Save:     historySave,
	})
	if err != nil {
		return err
	}

	if historyFormat == "csv" {
		return tb.WriteCSV(cmd.OutOrStdout())
	}
	return tb.Fprint(cmd.OutOrStdout())
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
