package strategy

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/inventory"
)

// Evaluation is the derived viability of one selected strategy.
type Evaluation struct {
	StrategyID         string          `json:"strategyId"`
	Name               string          `json:"name"`
	Scope              inventory.Scope `json:"scope"`
	Difficulty         Difficulty      `json:"difficulty,omitempty"`
	Timeframe          string          `json:"timeframe,omitempty"`
	Capex              float64         `json:"capex"`
	AnnualOpexSavings  float64         `json:"annualOpexSavings"`
	ReductionPotential float64         `json:"reductionPotential"`
	ROIPercent         finance.Metric  `json:"roiPercent"`
	PaybackYears       finance.Metric  `json:"paybackYears"`
	// CumulativeReduction is the running reduction total in rank order.
	CumulativeReduction float64 `json:"cumulativeReduction"`
}

// Bundle aggregates every selected strategy.
type Bundle struct {
	TotalCapex         float64 `json:"totalCapex"`
	TotalAnnualSavings float64 `json:"totalAnnualSavings"`
	TotalReduction     float64 `json:"totalReduction"`
	TargetPercent      float64 `json:"targetPercent"`
	// TargetReduction is TargetPercent/100 of the inventory grand total.
	TargetReduction float64 `json:"targetReduction"`
	TargetMet       bool    `json:"targetMet"`
	// ReductionShare is TotalReduction as a percentage of the grand total.
	ReductionShare    finance.Metric `json:"reductionShare"`
	ResidualEmissions float64        `json:"residualEmissions"`
	ROIPercent        finance.Metric `json:"roiPercent"`
	PaybackYears      finance.Metric `json:"paybackYears"`
}

// Result is the ranked evaluation of a strategy selection.
type Result struct {
	Industry    string       `json:"industry"`
	Evaluations []Evaluation `json:"evaluations"`
	Bundle      Bundle       `json:"bundle"`
}

// SelectedIDs returns the evaluated strategy ids in rank order.
func (r Result) SelectedIDs() []string {
	ids := make([]string, 0, len(r.Evaluations))
	for _, e := range r.Evaluations {
		ids = append(ids, e.StrategyID)
	}
	return ids
}

// ValidateTarget checks a reduction target percentage.
func ValidateTarget(targetPercent float64) error {
	if targetPercent < 0 || targetPercent > 100 || math.IsNaN(targetPercent) {
		return fmt.Errorf("%w: %v (must be 0..100)", ErrInvalidTarget, targetPercent)
	}
	return nil
}

// Evaluate computes ROI, payback and the aggregate reduction of the selected
// strategies and ranks them.
//
// Every id must be offered to industry. Repeated ids are evaluated once. The
// target is met when the total reduction reaches targetPercent of the grand total.
func Evaluate(c *Catalog, industry string, ids []string, inv inventory.Inventory, targetPercent float64) (Result, error) {
	if err := ValidateTarget(targetPercent); err != nil {
		return Result{}, err
	}

	var (
		selected []Strategy
		missing  []string
		seen     = make(map[string]bool, len(ids))
	)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true

		s, ok := c.Lookup(industry, id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		selected = append(selected, s)
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s (industry %q)",
			ErrStrategyNotFound, strings.Join(missing, ", "), NormalizeIndustry(industry))
	}

	evals := make([]Evaluation, 0, len(selected))
	for _, s := range selected {
		evals = append(evals, evaluateOne(s))
	}
	Rank(evals)

	return Result{
		Industry:    NormalizeIndustry(industry),
		Evaluations: evals,
		Bundle:      bundle(evals, inv.GrandTotal, targetPercent),
	}, nil
}

func evaluateOne(s Strategy) Evaluation {
	return Evaluation{
		StrategyID:         s.ID,
		Name:               s.Name,
		Scope:              s.Scope,
		Difficulty:         s.Difficulty,
		Timeframe:          s.Timeframe,
		Capex:              s.Capex,
		AnnualOpexSavings:  s.AnnualOpexSavings,
		ReductionPotential: s.ReductionPotential,
		ROIPercent:         finance.ROIPercent(s.Capex, s.AnnualOpexSavings),
		PaybackYears:       finance.PaybackYears(s.Capex, s.AnnualOpexSavings),
	}
}

// Rank orders evaluations by reduction potential descending, then capex
// ascending, then id, and fills CumulativeReduction.
func Rank(evals []Evaluation) {
	slices.SortStableFunc(evals, func(a, b Evaluation) int {
		if c := cmp.Compare(b.ReductionPotential, a.ReductionPotential); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Capex, b.Capex); c != 0 {
			return c
		}
		return cmp.Compare(a.StrategyID, b.StrategyID)
	})

	var running float64
	for i := range evals {
		running += evals[i].ReductionPotential
		evals[i].CumulativeReduction = running
	}
}

func bundle(evals []Evaluation, grandTotal, targetPercent float64) Bundle {
	b := Bundle{TargetPercent: targetPercent}
	for _, e := range evals {
		b.TotalCapex += e.Capex
		b.TotalAnnualSavings += e.AnnualOpexSavings
		b.TotalReduction += e.ReductionPotential
	}

	b.TargetReduction = targetPercent / 100 * grandTotal
	b.TargetMet = b.TotalReduction >= b.TargetReduction
	b.ResidualEmissions = math.Max(0, grandTotal-b.TotalReduction)
	b.ROIPercent = finance.ROIPercent(b.TotalCapex, b.TotalAnnualSavings)
	b.PaybackYears = finance.PaybackYears(b.TotalCapex, b.TotalAnnualSavings)

	if grandTotal > 0 {
		b.ReductionShare = finance.Defined(b.TotalReduction / grandTotal * 100)
	} else {
		b.ReductionShare = finance.NotApplicable()
	}
	return b
}
