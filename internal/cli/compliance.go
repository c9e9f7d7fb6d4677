package cli

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/factors"
)

// currentYear is the default reporting year.
func currentYear() int { return time.Now().Year() }

// newComplianceClassifyCmd creates the compliance classify command.
func newComplianceClassifyCmd(a *app) *cobra.Command {
	var (
		jurisdiction string
		emissionsKg  float64
		revenue      float64
		employees    int
		asOfFlag     string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Assign the mandatory reporting group for an organization",
		Example: `  carbonscope compliance classify --jurisdiction AU --emissions-kg 80000 \
    --revenue 600000000 --employees 600`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if emissionsKg < 0 {
				return errors.New("--emissions-kg must be >= 0")
			}
			asOf, err := parseDate(asOfFlag)
			if err != nil {
				return err
			}
			if asOf.IsZero() {
				asOf = time.Now()
			}

			e, err := a.engine(cmd.Context(), false)
			if err != nil {
				return err
			}
			if strings.TrimSpace(jurisdiction) == "" {
				jurisdiction = e.Defaults().Jurisdiction
			}

			var rev *float64
			if cmd.Flags().Changed("revenue") {
				rev = &revenue
			}
			var emp *int
			if cmd.Flags().Changed("employees") {
				emp = &employees
			}

			c := e.Rules().Classify(factors.NormalizeJurisdiction(jurisdiction), emissionsKg, rev, emp, asOf)
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			return renderClassification(cmd, c)
		},
	}

	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction code or name (default from config)")
	cmd.Flags().Float64Var(&emissionsKg, "emissions-kg", 0, "total emissions in kgCO2e")
	cmd.Flags().Float64Var(&revenue, "revenue", 0, "annual revenue")
	cmd.Flags().IntVar(&employees, "employees", 0, "employee count")
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "classification date YYYY-MM-DD (default today)")

	return cmd
}
