package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rustyeddy/stockdata/market"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Refresh daily data for every ticker in a CSV file",
	Long: `Read tickers from the "Ticker" column of a CSV file and download and
save daily data for each. Failures are logged and the import continues.

Example:
  stockdata import --tickers sp500.csv`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var (
	importTickers  string
	importInterval string
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importTickers, "tickers", "t", "", "CSV file with a Ticker column (required)")
	importCmd.Flags().StringVarP(&importInterval, "interval", "i", "daily", "interval to refresh")
	importCmd.MarkFlagRequired("tickers")
}

func runImport(cmd *cobra.Command, args []string) error {
	iv, err := market.ParseInterval(importInterval)
	if err != nil {
		return err
	}

	f, err := os.Open(importTickers)
	if err != nil {
		return err
	}
	tickers, err := readTickers(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", importTickers, err)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var failed int
	for i, t := range tickers {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		info, err := a.manager.Refresh(cmd.Context(), t, iv)
		if err != nil {
			failed++
			logger.Error("import failed", zap.String("symbol", t), zap.Error(err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s %s saved (%s)\n", i+1, len(tickers), info.Symbol, iv, info.ID)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d tickers\n", len(tickers)-failed, len(tickers))
	if failed > 0 {
		return fmt.Errorf("%d tickers failed", failed)
	}
	return nil
}

// readTickers returns the non-empty, de-duplicated values of the Ticker
// column in file order.
func readTickers(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty ticker file")
		}
		return nil, err
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "ticker") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, errors.New(`no "Ticker" column`)
	}

	var (
		out  []string
		seen = map[string]bool{}
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if col >= len(rec) {
			continue
		}
		t := strings.ToUpper(strings.TrimSpace(rec[col]))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}
