package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rustyeddy/stockdata/manager"
	"github.com/rustyeddy/stockdata/market"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [SYMBOL]",
	Short: "Fetch daily data for a symbol and print the first rows",
	Long: `Download the daily series and all configured indicators for SYMBOL,
save the snapshot to the cache and print the first rows.

Without SYMBOL the ticker is read from standard input.

Example:
  stockdata fetch IBM`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

var fetchRows int

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().IntVarP(&fetchRows, "rows", "n", 5, "rows to print")
}

func runFetch(cmd *cobra.Command, args []string) error {
	var (
		symbol string
		err    error
	)
	if len(args) == 1 {
		symbol = args[0]
	} else if symbol, err = promptSymbol(os.Stdin, cmd.OutOrStdout()); err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	tb, err := a.manager.GetHistoricalData(cmd.Context(), manager.Query{
		Symbol:   symbol,
		Interval: market.Daily,
		Fetch:    true,
		Save:     true,
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", symbol, err)
	}
	return tb.Head(fetchRows).Fprint(cmd.OutOrStdout())
}

// promptSymbol asks until the answer is longer than two characters.
func promptSymbol(r io.Reader, w io.Writer) (string, error) {
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "Enter ticker symbol: ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", errors.New("no ticker symbol given")
		}
		s := strings.TrimSpace(sc.Text())
		if len(s) > 2 {
			return strings.ToUpper(s), nil
		}
		fmt.Fprintln(w, "Ticker must be longer than 2 characters.")
	}
}
