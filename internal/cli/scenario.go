package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/compare"
	"github.com/rshade/carbonscope/internal/compliance"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/greenops"
	"github.com/rshade/carbonscope/internal/scenario"
)

type scenarioOutput struct {
	Scenario scenario.Scenario  `json:"scenario"`
	Report   *engine.Report     `json:"report,omitempty"`
	Warnings []scenario.Warning `json:"warnings,omitempty"`
}

type scenarioListOutput struct {
	Scenarios []scenario.Scenario `json:"scenarios"`
	Warnings  []scenario.Warning  `json:"warnings,omitempty"`
}

type currentOutput struct {
	Current        scenario.Current          `json:"current"`
	Classification compliance.Classification `json:"classification"`
}

// newScenarioCreateCmd creates the scenario create command.
func newScenarioCreateCmd(a *app) *cobra.Command {
	var (
		flags       requestFlags
		footprintID string
		name        string
		noCompute   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Compute and store a named scenario for a footprint",
		Example: `  # Compute an inventory, evaluate strategies and save the result
  carbonscope scenario create --footprint acme --name baseline \
    --jurisdiction AU --input electricity=100000 --strategies led-lighting --target 20

  # Store the inputs only, without computing anything
  carbonscope scenario create --footprint acme --name draft --input electricity=5000 --no-compute`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			req, err := flags.build(cmd)
			if err != nil {
				return err
			}

			e, err := a.engine(ctx, true)
			if err != nil {
				return err
			}

			var out scenarioOutput
			if noCompute {
				org := req.Organization
				sc, err := e.Scenarios().CreateScenario(ctx, footprintID, name, scenario.Payload{
					Organization:           &org,
					Inputs:                 req.Inputs,
					SelectedStrategies:     req.SelectedStrategies,
					ReductionTargetPercent: req.ReductionTargetPercent,
				})
				if err != nil {
					return err
				}
				out.Scenario = sc
			} else {
				sc, report, err := e.ComputeAndSave(ctx, footprintID, name, req)
				if err != nil {
					return err
				}
				out.Scenario = sc
				out.Report = &report
			}

			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			cmd.Printf("Created scenario %s\n", out.Scenario.ID)
			return renderScenario(cmd, out.Scenario, a.precision())
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&footprintID, "footprint", "", "footprint id (required)")
	cmd.Flags().StringVar(&name, "name", "", "scenario name (required)")
	cmd.Flags().BoolVar(&noCompute, "no-compute", false, "store the inputs without computing derived fields")
	_ = cmd.MarkFlagRequired("footprint")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// newScenarioUpdateCmd creates the scenario update command.
func newScenarioUpdateCmd(a *app) *cobra.Command {
	var (
		name        string
		patchJSON   string
		patchFile   string
		clearFields []string
	)

	cmd := &cobra.Command{
		Use:   "update <scenario-id>",
		Short: "Merge fields into a stored scenario",
		Long: `Merges top-level payload fields into a stored scenario. Fields not named in
the patch keep their stored values. A JSON null, or --clear, resets a field.`,
		Example: `  carbonscope scenario update 01HX... --name "baseline v2"
  carbonscope scenario update 01HX... --patch '{"reductionTargetPercent": 30}'
  carbonscope scenario update 01HX... --clear evaluation,financial`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fields := map[string]json.RawMessage{}

			raw := []byte(patchJSON)
			if patchFile != "" {
				data, err := os.ReadFile(patchFile)
				if err != nil {
					return fmt.Errorf("reading patch file: %w", err)
				}
				raw = data
			}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &fields); err != nil {
					return fmt.Errorf("%w: patch must be a JSON object: %w", scenario.ErrInvalidScenario, err)
				}
			}
			if cmd.Flags().Changed("name") {
				encoded, _ := json.Marshal(name)
				fields["name"] = encoded
			}
			for _, key := range clearFields {
				fields[key] = json.RawMessage("null")
			}

			body, err := json.Marshal(fields)
			if err != nil {
				return err
			}
			patch, err := scenario.ParsePatch(body)
			if err != nil {
				return err
			}

			svc, err := a.scenarios(ctx)
			if err != nil {
				return err
			}
			sc, warnings, err := svc.UpdateScenario(ctx, args[0], patch)
			if err != nil {
				return err
			}

			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), scenarioOutput{Scenario: sc, Warnings: warnings})
			}
			printWarnings(cmd, warnings)
			return renderScenario(cmd, sc, a.precision())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new scenario name")
	cmd.Flags().StringVar(&patchJSON, "patch", "", "JSON object of fields to set")
	cmd.Flags().StringVar(&patchFile, "patch-file", "", "file holding a JSON object of fields to set")
	cmd.Flags().StringSliceVar(&clearFields, "clear", nil, "comma-separated fields to reset")
	cmd.MarkFlagsMutuallyExclusive("patch", "patch-file")

	return cmd
}

// newScenarioGetCmd creates the scenario get command.
func newScenarioGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <scenario-id>",
		Short: "Show a stored scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.scenarios(ctx)
			if err != nil {
				return err
			}
			sc, warnings, err := svc.GetScenario(ctx, args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), scenarioOutput{Scenario: sc, Warnings: warnings})
			}
			printWarnings(cmd, warnings)
			return renderScenario(cmd, sc, a.precision())
		},
	}
}

// newScenarioListCmd creates the scenario list command.
func newScenarioListCmd(a *app) *cobra.Command {
	var footprintID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a footprint's scenarios in creation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.scenarios(ctx)
			if err != nil {
				return err
			}
			list, warnings, err := svc.ListScenarios(ctx, footprintID)
			if err != nil {
				return err
			}
			if list == nil {
				list = []scenario.Scenario{}
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), scenarioListOutput{Scenarios: list, Warnings: warnings})
			}
			printWarnings(cmd, warnings)
			if len(list) == 0 {
				cmd.Printf("No scenarios for footprint %s\n", footprintID)
				return nil
			}
			return renderScenarioList(cmd, list, a.precision())
		},
	}

	cmd.Flags().StringVar(&footprintID, "footprint", "", "footprint id (required)")
	_ = cmd.MarkFlagRequired("footprint")
	return cmd
}

// newScenarioCurrentCmd creates the scenario current command.
func newScenarioCurrentCmd(a *app) *cobra.Command {
	var (
		footprintID string
		asOfFlag    string
	)

	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show a footprint's current emissions and reporting classification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			asOf, err := parseDate(asOfFlag)
			if err != nil {
				return err
			}
			e, err := a.engine(ctx, true)
			if err != nil {
				return err
			}
			c, cur, err := e.ClassifyCurrent(ctx, footprintID, asOf)
			if err != nil {
				return err
			}

			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), currentOutput{Current: cur, Classification: c})
			}
			printWarnings(cmd, cur.Warnings)
			if !cur.HasEmissions {
				cmd.Printf("Footprint %s has no computed emissions yet.\n", footprintID)
			} else {
				cmd.Printf("Current scenario: %s (%s)\n", cur.Scenario.Name, cur.Scenario.ID)
				equiv, err := greenops.Equivalencies(cur.Inventory.GrandTotal)
				if err != nil {
					return err
				}
				if err := renderInventory(cmd, cur.Inventory, equiv, a.precision()); err != nil {
					return err
				}
			}
			return renderClassification(cmd, c)
		},
	}

	cmd.Flags().StringVar(&footprintID, "footprint", "", "footprint id (required)")
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "classification date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("footprint")
	return cmd
}

// newScenarioDeleteCmd creates the scenario delete command.
func newScenarioDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <scenario-id>",
		Short: "Delete a stored scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.scenarios(ctx)
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd.OutOrStdout(), cmd.InOrStdin(), fmt.Sprintf("Delete scenario %s?", args[0])) {
				cmd.Println("Delete cancelled.")
				return nil
			}
			if err := svc.DeleteScenario(ctx, args[0]); err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
			}
			cmd.Printf("Deleted scenario %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without prompting")
	return cmd
}

// newScenarioRecomputeCmd creates the scenario recompute command.
func newScenarioRecomputeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute <scenario-id>",
		Short: "Recompute a scenario's derived fields from its stored inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.engine(ctx, true)
			if err != nil {
				return err
			}
			sc, report, warnings, err := e.Recompute(ctx, args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), scenarioOutput{Scenario: sc, Report: &report, Warnings: warnings})
			}
			printWarnings(cmd, warnings)
			return renderReport(cmd, report, a.precision())
		},
	}
}

// newScenarioCompareCmd creates the scenario compare command.
func newScenarioCompareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <scenario-id> <scenario-id> [scenario-id]",
		Short: "Compare two or three scenarios side by side",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < compare.MinScenarios || len(args) > compare.MaxScenarios {
				return fmt.Errorf("%w: got %d", compare.ErrInvalidComparisonSize, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.scenarios(ctx)
			if err != nil {
				return err
			}
			table, err := compare.Compare(ctx, svc, args)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), table)
			}
			printWarnings(cmd, table.Warnings)
			return renderComparison(cmd, table, a.precision())
		},
	}
}
