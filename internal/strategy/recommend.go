package strategy

import "github.com/rshade/carbonscope/internal/inventory"

// Recommendation is a greedy plan for reaching a reduction target.
type Recommendation struct {
	StrategyIDs []string `json:"strategyIds"`
	Result      Result   `json:"result"`
}

// Recommend picks strategies offered to industry in rank order until the
// target is met. When the whole catalog falls short, every candidate is picked
// and Result.Bundle.TargetMet is false.
func Recommend(c *Catalog, industry string, inv inventory.Inventory, targetPercent float64) (Recommendation, error) {
	if err := ValidateTarget(targetPercent); err != nil {
		return Recommendation{}, err
	}

	candidates := c.ForIndustry(industry)
	evals := make([]Evaluation, 0, len(candidates))
	for _, s := range candidates {
		evals = append(evals, evaluateOne(s))
	}
	Rank(evals)

	target := targetPercent / 100 * inv.GrandTotal
	var picked []string
	var reduction float64
	for _, e := range evals {
		if reduction >= target {
			break
		}
		picked = append(picked, e.StrategyID)
		reduction += e.ReductionPotential
	}

	res, err := Evaluate(c, industry, picked, inv, targetPercent)
	if err != nil {
		return Recommendation{}, err
	}
	return Recommendation{StrategyIDs: res.SelectedIDs(), Result: res}, nil
}
