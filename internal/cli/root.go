// Package cli implements the carbonscope command tree.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRootCmd creates the root Cobra command for the carbonscope CLI.
// It wires up configuration, logging and tracing, then the subcommands.
func NewRootCmd(ver string) *cobra.Command {
	a := &app{logger: zerolog.Nop(), baseLogger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:          "carbonscope",
		Short:        "Greenhouse-gas accounting and reduction planning",
		Long:         "carbonscope: build scope 1/2/3 inventories, plan reductions and track compliance scenarios",
		Version:      ver,
		Example:      rootCmdExample,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.cleanup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.carbonscope/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.projectDir, "project-dir", "", "project directory holding .carbonscope/config.yaml")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", "", "output format: table or json (default from config)")

	cmd.AddCommand(
		newInventoryCmd(a),
		newStrategyCmd(a),
		newFinanceCmd(a),
		newComplianceCmd(a),
		newScenarioCmd(a),
		newConfigCmd(a),
		newServeCmd(a),
	)

	return cmd
}

const rootCmdExample = `  # Build an inventory from activity data
  carbonscope inventory compute --jurisdiction AU --input electricity=100000 --input stationaryFuel=5000

  # Evaluate reduction strategies against a 20% target
  carbonscope strategy evaluate --input electricity=100000 --strategies led-lighting,hvac-optimisation --target 20

  # Save a scenario for a footprint
  carbonscope scenario create --footprint acme --name baseline --input electricity=100000

  # Compare two scenarios
  carbonscope scenario compare 01HX... 01HY...

  # Serve the HTTP API
  carbonscope serve --addr 127.0.0.1:8080`

// newInventoryCmd creates the inventory command group.
func newInventoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "inventory", Short: "Emissions inventory commands"}
	cmd.AddCommand(newInventoryComputeCmd(a))
	return cmd
}

// newStrategyCmd creates the strategy command group.
func newStrategyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "strategy", Short: "Reduction strategy commands"}
	cmd.AddCommand(newStrategyListCmd(a), newStrategyEvaluateCmd(a), newStrategyRecommendCmd(a))
	return cmd
}

// newFinanceCmd creates the finance command group.
func newFinanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "finance", Short: "Financial projection commands"}
	cmd.AddCommand(newFinanceProjectCmd(a))
	return cmd
}

// newComplianceCmd creates the compliance command group.
func newComplianceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "compliance", Short: "Mandatory reporting classification"}
	cmd.AddCommand(newComplianceClassifyCmd(a))
	return cmd
}

// newScenarioCmd creates the scenario command group.
func newScenarioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "scenario", Short: "Scenario snapshot commands"}
	cmd.AddCommand(
		newScenarioCreateCmd(a), newScenarioUpdateCmd(a), newScenarioGetCmd(a),
		newScenarioListCmd(a), newScenarioCurrentCmd(a), newScenarioDeleteCmd(a),
		newScenarioRecomputeCmd(a), newScenarioCompareCmd(a), newScenarioMigrateCmd(a),
	)
	return cmd
}

// newConfigCmd creates the config command group.
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(newConfigInitCmd(a), newConfigValidateCmd(a), newConfigShowCmd(a))
	return cmd
}
