package finance

import (
	"fmt"
	"math"
)

// YearFlow is one year of the projection. Year 0 is the investment year.
type YearFlow struct {
	Year               int     `json:"year"`
	NetCashFlow        float64 `json:"netCashFlow"`
	CumulativeCashFlow float64 `json:"cumulativeCashFlow"`
	DiscountedCashFlow float64 `json:"discountedCashFlow"`
	CumulativeNPV      float64 `json:"cumulativeNPV"`
}

// Projection is a discounted cash-flow series for a strategy bundle.
type Projection struct {
	HorizonYears  int        `json:"horizonYears"`
	DiscountRate  float64    `json:"discountRate"`
	Capex         float64    `json:"capex"`
	AnnualSavings float64    `json:"annualSavings"`
	Years         []YearFlow `json:"years"`
	NPV           float64    `json:"npv"`
	// PaybackYear is the first year after which the cumulative cash flow
	// stays non-negative. It is not applicable without positive savings.
	PaybackYear Metric `json:"paybackYear"`
	// DiscountedPaybackYear applies the same rule to the cumulative NPV.
	DiscountedPaybackYear Metric `json:"discountedPaybackYear"`
}

// Final returns the last year of the series.
func (p Projection) Final() YearFlow {
	if len(p.Years) == 0 {
		return YearFlow{}
	}
	return p.Years[len(p.Years)-1]
}

// Project builds the cash-flow series: year 0 is -capex, years 1..horizon are
// +annualSavings, each discounted by (1+rate)^year.
func Project(capex, annualSavings float64, horizonYears int, discountRate float64) (Projection, error) {
	if discountRate < 0 || math.IsNaN(discountRate) || math.IsInf(discountRate, 0) {
		return Projection{}, fmt.Errorf("%w: %v (must be >= 0)", ErrInvalidDiscountRate, discountRate)
	}
	if horizonYears < 1 || horizonYears > MaxHorizonYears {
		return Projection{}, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidHorizon, horizonYears, MaxHorizonYears)
	}
	if err := ValidateAmounts(capex, annualSavings); err != nil {
		return Projection{}, err
	}

	p := Projection{
		HorizonYears:          horizonYears,
		DiscountRate:          discountRate,
		Capex:                 capex,
		AnnualSavings:         annualSavings,
		Years:                 make([]YearFlow, 0, horizonYears+1),
		PaybackYear:           NotApplicable(),
		DiscountedPaybackYear: NotApplicable(),
	}

	var cumulative, npv float64
	for year := 0; year <= horizonYears; year++ {
		cf := annualSavings
		if year == 0 {
			cf = -capex
		}
		discounted := cf / math.Pow(1+discountRate, float64(year))
		cumulative += cf
		npv += discounted

		p.Years = append(p.Years, YearFlow{
			Year:               year,
			NetCashFlow:        cf,
			CumulativeCashFlow: cumulative,
			DiscountedCashFlow: discounted,
			CumulativeNPV:      npv,
		})

		p.PaybackYear = paybackAt(p.PaybackYear, cumulative, year)
		p.DiscountedPaybackYear = paybackAt(p.DiscountedPaybackYear, npv, year)
	}
	p.NPV = npv

	if annualSavings <= 0 {
		p.PaybackYear = NotApplicable()
		p.DiscountedPaybackYear = NotApplicable()
	}

	return p, nil
}

// paybackAt advances a payback year over one more year of the series. A
// negative balance after an earlier recovery resets it.
func paybackAt(current Metric, balance float64, year int) Metric {
	switch {
	case balance < 0:
		return NotApplicable()
	case current.IsDefined():
		return current
	default:
		return Defined(float64(year))
	}
}
