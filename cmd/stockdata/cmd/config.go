package cmd

import (
	"fmt"

	"github.com/rustyeddy/stockdata/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, validate or show configuration",
	Long: `Manage stockdata configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file
  show     - Print the effective configuration with secrets masked

Examples:
  stockdata config init -o stockdata.yaml
  stockdata config validate -f stockdata.yaml
  STOCKDATA_THROTTLE_LIMIT=5 stockdata config show`,
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Generate a default configuration file",
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:         "validate",
	Short:       "Validate a configuration file",
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print defaults merged with the config file and STOCKDATA_* environment overrides.`,
	RunE:  runConfigShow,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "stockdata.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nSet provider.api_key (or STOCKDATA_PROVIDER_API_KEY) and run:")
	fmt.Fprintf(out, "  stockdata --config %s fetch IBM\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Throttle: %d calls / %s\n", cfg.Throttle.Limit, cfg.Throttle.Window)
	fmt.Fprintf(out, "  Store: %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
	if cfg.Provider.APIKey == "" {
		fmt.Fprintln(out, "  Warning: provider.api_key is empty")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out, err := cfg.Redacted().YAML()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
