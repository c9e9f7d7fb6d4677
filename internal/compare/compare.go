// Package compare aligns two or three scenarios on a common metric set.
//
// Values a scenario does not carry are reported as unavailable cells, never
// as zero.
package compare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/carbonscope/internal/greenops"
	"github.com/rshade/carbonscope/internal/logging"
	"github.com/rshade/carbonscope/internal/scenario"
)

// ErrInvalidComparisonSize is returned for fewer than MinScenarios or more
// than MaxScenarios ids.
var ErrInvalidComparisonSize = errors.New("comparison requires 2 or 3 scenarios")

// Comparison size limits.
const (
	MinScenarios = 2
	MaxScenarios = 3
)

// NotAvailable is the display text of an unavailable cell.
const NotAvailable = "n/a"

// Metric identifies a comparison row.
type Metric string

// Tracked metrics in display order.
const (
	GrandTotal             Metric = "grandTotal"
	Scope1Total            Metric = "scope1Total"
	Scope2Total            Metric = "scope2Total"
	Scope3Total            Metric = "scope3Total"
	EmployeeCount          Metric = "employeeCount"
	AnnualRevenue          Metric = "annualRevenue"
	ReductionTargetPercent Metric = "reductionTargetPercent"
	TotalReduction         Metric = "totalReduction"
	NetPresentValue        Metric = "npv"
)

type metricDef struct {
	metric  Metric
	label   string
	unit    string
	extract func(scenario.Payload) (float64, bool)
}

//nolint:gochecknoglobals // Fixed row definitions.
var metricDefs = []metricDef{
	{GrandTotal, "Grand total", greenops.CanonicalUnit, func(p scenario.Payload) (float64, bool) {
		if p.Inventory == nil {
			return 0, false
		}
		return p.Inventory.GrandTotal, true
	}},
	{Scope1Total, "Scope 1", greenops.CanonicalUnit, func(p scenario.Payload) (float64, bool) {
		if p.Inventory == nil {
			return 0, false
		}
		return p.Inventory.Scope1.Total, true
	}},
	{Scope2Total, "Scope 2", greenops.CanonicalUnit, func(p scenario.Payload) (float64, bool) {
		if p.Inventory == nil {
			return 0, false
		}
		return p.Inventory.Scope2.Total, true
	}},
	{Scope3Total, "Scope 3", greenops.CanonicalUnit, func(p scenario.Payload) (float64, bool) {
		if p.Inventory == nil {
			return 0, false
		}
		return p.Inventory.Scope3.Total, true
	}},
	{EmployeeCount, "Employees", "", func(p scenario.Payload) (float64, bool) {
		if p.Organization == nil || p.Organization.EmployeeCount == nil {
			return 0, false
		}
		return float64(*p.Organization.EmployeeCount), true
	}},
	{AnnualRevenue, "Annual revenue", "", func(p scenario.Payload) (float64, bool) {
		if p.Organization == nil || p.Organization.AnnualRevenue == nil {
			return 0, false
		}
		return *p.Organization.AnnualRevenue, true
	}},
	{ReductionTargetPercent, "Reduction target", "%", func(p scenario.Payload) (float64, bool) {
		if p.ReductionTargetPercent == nil {
			return 0, false
		}
		return *p.ReductionTargetPercent, true
	}},
	{TotalReduction, "Planned reduction", greenops.CanonicalUnit, func(p scenario.Payload) (float64, bool) {
		if p.Evaluation == nil {
			return 0, false
		}
		return p.Evaluation.Bundle.TotalReduction, true
	}},
	{NetPresentValue, "NPV", "", func(p scenario.Payload) (float64, bool) {
		if p.Financial == nil {
			return 0, false
		}
		return p.Financial.NPV, true
	}},
}

// Cell is one metric value of one scenario.
type Cell struct {
	Value     float64
	Available bool
}

// Format renders the value, or NotAvailable.
func (c Cell) Format(precision int) string {
	if !c.Available {
		return NotAvailable
	}
	return greenops.FormatFloat(c.Value, precision)
}

// String implements fmt.Stringer.
func (c Cell) String() string { return c.Format(2) }

// MarshalJSON writes the number, or null when unavailable.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Available {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON accepts a number or null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*c = Cell{}
		return nil
	}
	*c = Cell{Value: *v, Available: true}
	return nil
}

// Column identifies one compared scenario.
type Column struct {
	ScenarioID  string `json:"scenarioId"`
	FootprintID string `json:"footprintId"`
	Name        string `json:"name"`
}

// Row is one metric across every column.
type Row struct {
	Metric Metric `json:"metric"`
	Label  string `json:"label"`
	Unit   string `json:"unit,omitempty"`
	Cells  []Cell `json:"cells"`
}

// Table is the aligned comparison. Cells in each row follow Columns order.
type Table struct {
	Columns  []Column           `json:"columns"`
	Rows     []Row              `json:"rows"`
	Warnings []scenario.Warning `json:"warnings,omitempty"`
}

// Row returns the row for m.
func (t Table) Row(m Metric) (Row, bool) {
	for _, r := range t.Rows {
		if r.Metric == m {
			return r, true
		}
	}
	return Row{}, false
}

// Deltas returns, per row, each column's difference from the first column.
// Cells follow Columns[1:]. A delta is unavailable when either side is.
func (t Table) Deltas() []Row {
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		d := Row{Metric: r.Metric, Label: r.Label, Unit: r.Unit}
		if len(r.Cells) > 0 {
			first := r.Cells[0]
			for _, c := range r.Cells[1:] {
				if first.Available && c.Available {
					d.Cells = append(d.Cells, Cell{Value: c.Value - first.Value, Available: true})
				} else {
					d.Cells = append(d.Cells, Cell{})
				}
			}
		}
		out = append(out, d)
	}
	return out
}

// Loader reads one decoded scenario. *scenario.Service implements it.
type Loader interface {
	GetScenario(ctx context.Context, id string) (scenario.Scenario, []scenario.Warning, error)
}

// Compare loads the scenarios concurrently and aligns their metrics. The
// size check runs before any load.
func Compare(ctx context.Context, loader Loader, ids []string) (Table, error) {
	if len(ids) < MinScenarios || len(ids) > MaxScenarios {
		return Table{}, fmt.Errorf("%w: got %d", ErrInvalidComparisonSize, len(ids))
	}

	scenarios := make([]scenario.Scenario, len(ids))
	warnings := make([][]scenario.Warning, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			sc, w, err := loader.GetScenario(gctx, id)
			if err != nil {
				return fmt.Errorf("loading scenario %s: %w", id, err)
			}
			scenarios[i] = sc
			warnings[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, err
	}

	t := Table{Columns: make([]Column, 0, len(ids))}
	for i, sc := range scenarios {
		t.Columns = append(t.Columns, Column{ScenarioID: sc.ID, FootprintID: sc.FootprintID, Name: sc.Name})
		t.Warnings = append(t.Warnings, warnings[i]...)
	}

	for _, def := range metricDefs {
		row := Row{Metric: def.metric, Label: def.label, Unit: def.unit, Cells: make([]Cell, 0, len(scenarios))}
		for _, sc := range scenarios {
			v, ok := def.extract(sc.Payload)
			row.Cells = append(row.Cells, Cell{Value: v, Available: ok})
		}
		t.Rows = append(t.Rows, row)
	}

	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("component", "compare").
		Str("operation", "compare").
		Strs("scenario_ids", ids).
		Int("warnings", len(t.Warnings)).
		Msg("scenarios compared")

	return t, nil
}
