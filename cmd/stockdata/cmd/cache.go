package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/rustyeddy/stockdata/market"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the snapshot cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list [SYMBOL]",
	Short: "List stored snapshots",
	Long: `List stored snapshots ordered by symbol, interval and fetch time.

Examples:
  stockdata cache list
  stockdata cache list IBM --interval daily`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheList,
}

var cacheInterval string

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheListCmd.Flags().StringVarP(&cacheInterval, "interval", "i", "", "only this interval")
}

func runCacheList(cmd *cobra.Command, args []string) error {
	var iv market.Interval
	if cacheInterval != "" {
		var err error
		if iv, err = market.ParseInterval(cacheInterval); err != nil {
			return err
		}
	}
	var symbol string
	if len(args) == 1 {
		symbol = args[0]
	}

	st, err := openStore(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.List(cmd.Context(), symbol, iv)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tINTERVAL\tFETCHED\tBYTES\tID")
	for _, in := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			in.Symbol, in.Interval, in.FetchedAt.Local().Format("2006-01-02 15:04:05"), in.Size, in.ID)
	}
	return tw.Flush()
}
