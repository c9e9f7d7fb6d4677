package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/strategy"
)

type strategyListOutput struct {
	Industry   string              `json:"industry"`
	Strategies []strategy.Strategy `json:"strategies"`
}

// newStrategyListCmd creates the strategy list command.
func newStrategyListCmd(a *app) *cobra.Command {
	var industry string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List strategies offered to an industry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			if strings.TrimSpace(industry) == "" {
				industry = e.Defaults().Industry
			}
			industry = strategy.NormalizeIndustry(industry)

			list := e.Catalog().ForIndustry(industry)
			if list == nil {
				list = []strategy.Strategy{}
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), strategyListOutput{Industry: industry, Strategies: list})
			}
			return renderStrategies(cmd, industry, list, a.precision())
		},
	}

	cmd.Flags().StringVar(&industry, "industry", "", "industry code (default from config)")
	return cmd
}

// newStrategyEvaluateCmd creates the strategy evaluate command.
func newStrategyEvaluateCmd(a *app) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Rank selected strategies against an inventory and target",
		Example: `  carbonscope strategy evaluate --input electricity=100000 \
    --strategies led-lighting,hvac-optimisation --target 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.build(cmd)
			if err != nil {
				return err
			}
			if len(req.SelectedStrategies) == 0 {
				return errors.New("at least one strategy is required (--strategies)")
			}
			req.Recommend = false

			e, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			report, err := e.Compute(cmd.Context(), req)
			if err != nil {
				return err
			}

			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), report.Evaluation)
			}
			return renderEvaluation(cmd, *report.Evaluation, a.precision())
		},
	}

	flags.bind(cmd)
	return cmd
}

// newStrategyRecommendCmd creates the strategy recommend command.
func newStrategyRecommendCmd(a *app) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Pick strategies in rank order until the target is met",
		Example: `  carbonscope strategy recommend --input electricity=100000 --target 30`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.build(cmd)
			if err != nil {
				return err
			}
			if req.ReductionTargetPercent == nil {
				return errors.New("a reduction target is required (--target)")
			}
			req.Recommend = true

			e, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			report, err := e.Compute(cmd.Context(), req)
			if err != nil {
				return err
			}

			rec := strategy.Recommendation{StrategyIDs: report.SelectedStrategies}
			if report.Evaluation != nil {
				rec.Result = *report.Evaluation
			}
			if rec.StrategyIDs == nil {
				rec.StrategyIDs = []string{}
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			if len(rec.StrategyIDs) == 0 {
				cmd.Println("No strategies needed or available for this target.")
				return nil
			}
			return renderEvaluation(cmd, rec.Result, a.precision())
		},
	}

	flags.bind(cmd)
	return cmd
}
