package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/compliance"
	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/strategy"
)

// newConfigValidateCmd creates the config validate command.
func newConfigValidateCmd(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and reference data",
		Long: `Validates the effective configuration (global file, project overlay and
environment overrides) and loads every reference data file it names.`,
		Example: `  carbonscope config validate
  carbonscope config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			ctx := cmd.Context()
			ref := a.cfg.Reference
			if ref.FactorsFile != "" {
				if _, err := factors.LoadFile(ctx, ref.FactorsFile); err != nil {
					return fmt.Errorf("reference.factors_file: %w", err)
				}
			}
			if ref.StrategiesFile != "" {
				if _, err := strategy.LoadFile(ctx, ref.StrategiesFile); err != nil {
					return fmt.Errorf("reference.strategies_file: %w", err)
				}
			}
			if ref.ThresholdsFile != "" {
				if _, err := compliance.LoadFile(ctx, ref.ThresholdsFile); err != nil {
					return fmt.Errorf("reference.thresholds_file: %w", err)
				}
			}

			cmd.Printf("Configuration is valid\n")
			if verbose {
				printVerboseDetails(cmd, a)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")
	return cmd
}

// printVerboseDetails prints the effective settings.
func printVerboseDetails(cmd *cobra.Command, a *app) {
	cfg := a.cfg
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Output format: %s\n", cfg.Output.DefaultFormat)
	cmd.Printf("  Output precision: %d\n", cfg.Output.Precision)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Default jurisdiction: %s\n", cfg.Engine.DefaultJurisdiction)
	cmd.Printf("  Horizon years: %d\n", cfg.Engine.HorizonYears)
	cmd.Printf("  Discount rate: %v\n", cfg.Engine.DiscountRate)
	cmd.Printf("  Store: %s at %s\n", cfg.Store.Driver, cfg.Store.ResolvedPath())
}
