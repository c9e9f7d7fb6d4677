package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/greenops"
	"github.com/rshade/carbonscope/internal/inventory"
)

type inventoryOutput struct {
	Inventory     inventory.Inventory        `json:"inventory"`
	Equivalencies greenops.EquivalencyOutput `json:"equivalencies"`
}

// newInventoryComputeCmd creates the inventory compute command.
func newInventoryComputeCmd(a *app) *cobra.Command {
	var (
		jurisdiction string
		year         int
		inputs       []string
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Convert activity quantities into a scope 1/2/3 inventory",
		Example: `  # Electricity and stationary fuel in Australia
  carbonscope inventory compute --jurisdiction AU --input electricity=100000 --input stationaryFuel=5000

  # Machine-readable output
  carbonscope inventory compute --input electricity=100000 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			parsed, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			e, err := a.engine(ctx, false)
			if err != nil {
				return err
			}
			if strings.TrimSpace(jurisdiction) == "" {
				jurisdiction = e.Defaults().Jurisdiction
			}
			if year == 0 {
				year = currentYear()
			}

			inv, err := inventory.Aggregate(e.Factors(), parsed, factors.NormalizeJurisdiction(jurisdiction), year)
			if err != nil {
				return fmt.Errorf("computing inventory: %w", err)
			}
			equiv, err := greenops.Equivalencies(inv.GrandTotal)
			if err != nil {
				return fmt.Errorf("computing equivalencies: %w", err)
			}

			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), inventoryOutput{Inventory: inv, Equivalencies: equiv})
			}
			return renderInventory(cmd, inv, equiv, a.precision())
		},
	}

	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction code or name (default from config)")
	cmd.Flags().IntVar(&year, "year", 0, "reporting year (default current year)")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "activity quantity as category=quantity (repeatable)")

	return cmd
}
