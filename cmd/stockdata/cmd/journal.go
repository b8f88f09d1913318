package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/stockdata/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the fetch journal",
	Long: `Query and display the record of remote fetch runs.

Examples:
  stockdata journal list --symbol IBM --limit 10
  stockdata journal list --since 2024-03-01 --org
  stockdata journal show 01HS3Z6Q8M0000000000000000`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded fetch runs, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one fetch run as an org-mode entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var (
	journalSymbol string
	journalSince  string
	journalLimit  int
	journalOrg    bool
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalShowCmd)

	journalListCmd.Flags().StringVarP(&journalSymbol, "symbol", "s", "", "only this symbol")
	journalListCmd.Flags().StringVar(&journalSince, "since", "", "only runs started on or after this day (YYYY-MM-DD)")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 0, "keep only the latest N runs")
	journalListCmd.Flags().BoolVar(&journalOrg, "org", false, "print as org-mode entries")
}

func runJournalList(cmd *cobra.Command, args []string) error {
	f := journal.Filter{
		Symbol: strings.ToUpper(journalSymbol),
		Limit:  journalLimit,
	}
	if journalSince != "" {
		t, err := time.ParseInLocation("2006-01-02", journalSince, time.Local)
		if err != nil {
			return fmt.Errorf("since: %w", err)
		}
		f.Since = t
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	recs, err := j.List(f)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}

	if journalOrg {
		fmt.Fprint(cmd.OutOrStdout(), journal.FormatFetchesOrg(recs))
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSYMBOL\tINTERVAL\tROWS\tCOLS\tCALLS\tDURATION\tSTATUS")
	for _, r := range recs {
		status := "ok"
		if !r.OK() {
			status = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.Started.Local().Format("2006-01-02 15:04:05"), r.Symbol, r.Interval,
			r.Rows, r.Columns, r.Calls, r.Duration().Round(time.Millisecond), status)
	}
	return tw.Flush()
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	rec, err := j.GetFetch(strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), journal.FormatFetchOrg(rec))
	return nil
}
