package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/migration"
)

// newScenarioMigrateCmd creates the scenario migrate command.
func newScenarioMigrateCmd(a *app) *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade stored scenario payloads to the current schema",
		Long: `Upgrades every stored scenario payload to the current schema version.
Outdated payloads stay readable without migrating, with a warning on each read.
Payloads that cannot be decoded are reported and left untouched.`,
		Example: `  # Show what would change
  carbonscope scenario migrate --dry-run

  # Migrate without prompting
  carbonscope scenario migrate --yes`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			m := migration.New(store)

			switch {
			case dryRun:
				plan, err := m.Plan(ctx)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), plan)
				}
				return renderMigrationPlan(cmd, plan)
			case yes:
				res, err := m.Run(ctx)
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				for _, s := range res.Skipped {
					cmd.Printf("Skipping %s: %s\n", s.ScenarioID, s.Reason)
				}
				cmd.Printf("Migration complete: %d scenario(s) upgraded.\n", len(res.Migrated))
				return nil
			default:
				_, err := migration.RunInteractive(ctx, m, cmd.OutOrStdout(), cmd.InOrStdin())
				return err
			}
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "migrate without prompting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the migration plan without writing")
	cmd.MarkFlagsMutuallyExclusive("yes", "dry-run")

	return cmd
}

func renderMigrationPlan(cmd *cobra.Command, plan migration.Plan) error {
	for _, s := range plan.Skipped {
		cmd.Printf("Skipping %s: %s\n", s.ScenarioID, s.Reason)
	}
	if plan.Empty() {
		cmd.Printf("Nothing to migrate (%d scenario(s) up to date).\n", plan.UpToDate)
		return nil
	}
	rows := make([][]string, 0, len(plan.Changes))
	for _, c := range plan.Changes {
		rows = append(rows, []string{c.ScenarioID, c.FootprintID, c.FromVersion, c.ToVersion})
	}
	return printTable(cmd, "Pending migrations", []string{"SCENARIO", "FOOTPRINT", "FROM", "TO"}, rows)
}
