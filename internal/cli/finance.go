package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/finance"
)

type projectionOutput struct {
	finance.Projection
	ROIPercent   finance.Metric `json:"roiPercent"`
	PaybackYears finance.Metric `json:"paybackYears"`
}

// newFinanceProjectCmd creates the finance project command.
func newFinanceProjectCmd(a *app) *cobra.Command {
	var (
		capex   float64
		savings float64
		horizon int
		rate    float64
	)

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project discounted cash flows for an investment",
		Example: `  carbonscope finance project --capex 23000 --savings 7700 --horizon 10 --rate 0.05`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("horizon") {
				horizon = a.cfg.Engine.HorizonYears
			}
			if !cmd.Flags().Changed("rate") {
				rate = a.cfg.Engine.DiscountRate
			}

			p, err := finance.Project(capex, savings, horizon, rate)
			if err != nil {
				return err
			}
			out := projectionOutput{
				Projection:   p,
				ROIPercent:   finance.ROIPercent(capex, savings),
				PaybackYears: finance.PaybackYears(capex, savings),
			}

			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			if err := renderProjection(cmd, p, a.precision()); err != nil {
				return err
			}
			cmd.Printf("ROI: %s%%  Simple payback: %s years\n", out.ROIPercent.String(), out.PaybackYears.String())
			return nil
		},
	}

	cmd.Flags().Float64Var(&capex, "capex", 0, "up-front investment")
	cmd.Flags().Float64Var(&savings, "savings", 0, "annual operating savings")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "projection horizon in years (default from config)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "discount rate as a fraction (default from config)")

	return cmd
}
