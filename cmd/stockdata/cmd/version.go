package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version number",
	Long:        `Display the current version of the stockdata CLI.`,
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stockdata version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Alpha Vantage series and indicator cache")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
