package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/compare"
	"github.com/rshade/carbonscope/internal/compliance"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/greenops"
	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/strategy"
)

// tabPadding is the minimum padding between plain-text columns.
const tabPadding = 2

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// styled reports whether command output goes to a terminal.
func styled(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && isTerminal(f)
}

// printTable writes one titled table. Terminals get a lipgloss table,
// anything else a tab-aligned plain table.
func printTable(cmd *cobra.Command, title string, headers []string, rows [][]string) error {
	w := cmd.OutOrStdout()

	if styled(cmd) {
		if title != "" {
			_, _ = fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Render(title))
		}
		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Headers(headers...).
			Rows(rows...)
		_, err := fmt.Fprintln(w, t.Render())
		return err
	}

	if title != "" {
		_, _ = fmt.Fprintln(w, title)
	}
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// printWarnings reports scenario warnings on stderr.
func printWarnings(cmd *cobra.Command, warnings []scenario.Warning) {
	for _, w := range warnings {
		cmd.PrintErrf("Warning: %s\n", w.Error())
	}
}

func mass(kg float64, precision int) string { return greenops.FormatMass(kg, precision) }

func amount(v float64, precision int) string { return greenops.FormatFloat(v, precision) }

func optFloat(v *float64, precision int) string {
	if v == nil {
		return compare.NotAvailable
	}
	return greenops.FormatFloat(*v, precision)
}

func optInt(v *int) string {
	if v == nil {
		return compare.NotAvailable
	}
	return greenops.FormatNumber(int64(*v))
}

func renderInventory(cmd *cobra.Command, inv inventory.Inventory, equiv greenops.EquivalencyOutput, precision int) error {
	var rows [][]string
	for _, s := range []inventory.Scope{inventory.Scope1, inventory.Scope2, inventory.Scope3} {
		st := inv.Scope(s)
		keys := make([]string, 0, len(st.Components))
		for k := range st.Components {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			rows = append(rows, []string{s.String(), k, mass(st.Components[k], precision)})
		}
		rows = append(rows, []string{s.String(), "total", mass(st.Total, precision)})
	}
	rows = append(rows, []string{"all", "grand total", mass(inv.GrandTotal, precision)})

	title := fmt.Sprintf("Inventory (%s, %d)", inv.Jurisdiction, inv.Year)
	if err := printTable(cmd, title, []string{"SCOPE", "CATEGORY", "EMISSIONS"}, rows); err != nil {
		return err
	}
	if !equiv.IsEmpty && equiv.DisplayText != "" {
		cmd.Println(equiv.DisplayText)
	}
	return nil
}

func renderStrategies(cmd *cobra.Command, industry string, list []strategy.Strategy, precision int) error {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			s.ID, s.Name, s.Industry, s.Scope.String(), string(s.Difficulty),
			amount(s.Capex, precision), amount(s.AnnualOpexSavings, precision), mass(s.ReductionPotential, precision),
		})
	}
	return printTable(cmd, "Strategies for "+industry,
		[]string{"ID", "NAME", "INDUSTRY", "SCOPE", "DIFFICULTY", "CAPEX", "ANNUAL SAVINGS", "REDUCTION"}, rows)
}

func renderEvaluation(cmd *cobra.Command, res strategy.Result, precision int) error {
	rows := make([][]string, 0, len(res.Evaluations))
	for i, e := range res.Evaluations {
		rows = append(rows, []string{
			strconv.Itoa(i + 1), e.StrategyID, e.Scope.String(),
			amount(e.Capex, precision), amount(e.AnnualOpexSavings, precision),
			mass(e.ReductionPotential, precision), e.ROIPercent.String(), e.PaybackYears.String(),
			mass(e.CumulativeReduction, precision),
		})
	}
	if err := printTable(cmd, "Ranked strategies",
		[]string{"RANK", "ID", "SCOPE", "CAPEX", "ANNUAL SAVINGS", "REDUCTION", "ROI %", "PAYBACK YRS", "CUMULATIVE"},
		rows); err != nil {
		return err
	}

	b := res.Bundle
	met := "no"
	if b.TargetMet {
		met = "yes"
	}
	return printTable(cmd, "Bundle", []string{"METRIC", "VALUE"}, [][]string{
		{"Total capex", amount(b.TotalCapex, precision)},
		{"Total annual savings", amount(b.TotalAnnualSavings, precision)},
		{"Total reduction", mass(b.TotalReduction, precision)},
		{"Target", amount(b.TargetPercent, precision) + "%"},
		{"Target reduction", mass(b.TargetReduction, precision)},
		{"Target met", met},
		{"Reduction share %", b.ReductionShare.String()},
		{"Residual emissions", mass(b.ResidualEmissions, precision)},
		{"ROI %", b.ROIPercent.String()},
		{"Payback years", b.PaybackYears.String()},
	})
}

func renderProjection(cmd *cobra.Command, p finance.Projection, precision int) error {
	rows := make([][]string, 0, len(p.Years))
	for _, y := range p.Years {
		rows = append(rows, []string{
			strconv.Itoa(y.Year), amount(y.NetCashFlow, precision), amount(y.CumulativeCashFlow, precision),
			amount(y.DiscountedCashFlow, precision), amount(y.CumulativeNPV, precision),
		})
	}
	title := fmt.Sprintf("Projection (%d years at %s%%)", p.HorizonYears, amount(p.DiscountRate*100, precision))
	if err := printTable(cmd, title,
		[]string{"YEAR", "NET CASH FLOW", "CUMULATIVE", "DISCOUNTED", "CUMULATIVE NPV"}, rows); err != nil {
		return err
	}
	cmd.Printf("NPV: %s  Payback year: %s  Discounted payback year: %s\n",
		amount(p.NPV, precision), p.PaybackYear.String(), p.DiscountedPaybackYear.String())
	return nil
}

func renderClassification(cmd *cobra.Command, c compliance.Classification) error {
	effective := compare.NotAvailable
	if c.EffectiveDate != nil {
		effective = c.EffectiveDate.Format(time.DateOnly)
	}
	rows := [][]string{
		{"Jurisdiction", c.Jurisdiction},
		{"Mandatory group", strconv.Itoa(c.MandatoryGroup)},
		{"Label", c.Label},
		{"Effective", effective},
		{"As of", c.AsOf.Format(time.DateOnly)},
	}
	for _, u := range c.Upcoming {
		rows = append(rows, []string{"Upcoming", fmt.Sprintf("%s (group %d) from %s",
			u.Label, u.Group, u.EffectiveDate.Format(time.DateOnly))})
	}
	return printTable(cmd, "Classification", []string{"FIELD", "VALUE"}, rows)
}

func renderReport(cmd *cobra.Command, r engine.Report, precision int) error {
	if err := renderInventory(cmd, r.Inventory, r.Equivalencies, precision); err != nil {
		return err
	}
	if r.Evaluation != nil {
		if err := renderEvaluation(cmd, *r.Evaluation, precision); err != nil {
			return err
		}
	}
	if r.Financial != nil {
		if err := renderProjection(cmd, *r.Financial, precision); err != nil {
			return err
		}
	}
	return renderClassification(cmd, r.Classification)
}

func renderScenario(cmd *cobra.Command, sc scenario.Scenario, precision int) error {
	p := sc.Payload
	rows := [][]string{
		{"ID", sc.ID},
		{"Footprint", sc.FootprintID},
		{"Name", sc.Name},
		{"Created", sc.CreatedAt.Format(time.RFC3339)},
		{"Updated", sc.UpdatedAt.Format(time.RFC3339)},
		{"Schema", p.SchemaVersion},
	}
	if p.Organization != nil {
		rows = append(rows,
			[]string{"Jurisdiction", p.Organization.Jurisdiction},
			[]string{"Industry", p.Organization.Industry},
			[]string{"Employees", optInt(p.Organization.EmployeeCount)},
			[]string{"Annual revenue", optFloat(p.Organization.AnnualRevenue, precision)},
		)
	}
	if p.Inventory != nil {
		rows = append(rows, []string{"Grand total", mass(p.Inventory.GrandTotal, precision)})
	}
	if len(p.SelectedStrategies) > 0 {
		rows = append(rows, []string{"Strategies", strings.Join(p.SelectedStrategies, ", ")})
	}
	rows = append(rows, []string{"Reduction target %", optFloat(p.ReductionTargetPercent, precision)})
	if p.Financial != nil {
		rows = append(rows, []string{"NPV", amount(p.Financial.NPV, precision)})
	}
	return printTable(cmd, "Scenario", []string{"FIELD", "VALUE"}, rows)
}

func renderScenarioList(cmd *cobra.Command, list []scenario.Scenario, precision int) error {
	rows := make([][]string, 0, len(list))
	for _, sc := range list {
		total := compare.NotAvailable
		if sc.Payload.Inventory != nil {
			total = mass(sc.Payload.Inventory.GrandTotal, precision)
		}
		rows = append(rows, []string{sc.ID, sc.Name, sc.UpdatedAt.Format(time.RFC3339), total})
	}
	return printTable(cmd, "", []string{"ID", "NAME", "UPDATED", "GRAND TOTAL"}, rows)
}

func renderComparison(cmd *cobra.Command, t compare.Table, precision int) error {
	headers := []string{"METRIC"}
	for _, c := range t.Columns {
		headers = append(headers, c.Name)
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		label := r.Label
		if r.Unit != "" {
			label += " (" + r.Unit + ")"
		}
		row := []string{label}
		for _, c := range r.Cells {
			row = append(row, c.Format(precision))
		}
		rows = append(rows, row)
	}
	if err := printTable(cmd, "Comparison", headers, rows); err != nil {
		return err
	}

	deltaHeaders := []string{"METRIC"}
	for _, c := range t.Columns[1:] {
		deltaHeaders = append(deltaHeaders, c.Name+" vs "+t.Columns[0].Name)
	}
	deltas := t.Deltas()
	deltaRows := make([][]string, 0, len(deltas))
	for _, r := range deltas {
		row := []string{r.Label}
		for _, c := range r.Cells {
			row = append(row, c.Format(precision))
		}
		deltaRows = append(deltaRows, row)
	}
	return printTable(cmd, "Differences", deltaHeaders, deltaRows)
}
