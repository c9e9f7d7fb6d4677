// Package finance computes financial viability metrics for reduction
// strategies: ROI, simple payback and a multi-year discounted cash flow.
package finance

import (
	"errors"
	"fmt"
	"math"
)

// DefaultHorizonYears is the projection horizon used when none is configured.
const DefaultHorizonYears = 5

// MaxHorizonYears bounds the projection horizon.
const MaxHorizonYears = 100

var (
	// ErrInvalidDiscountRate is returned for a negative or non-finite discount rate.
	ErrInvalidDiscountRate = errors.New("invalid discount rate")

	// ErrInvalidHorizon is returned for a horizon outside [1, MaxHorizonYears].
	ErrInvalidHorizon = errors.New("invalid projection horizon")

	// ErrInvalidAmount is returned for negative capex or non-finite amounts.
	ErrInvalidAmount = errors.New("invalid monetary amount")
)

// ROIPercent is savings / capex * 100.
//
// Savings of zero or less is not applicable. Zero capex with positive savings is unbounded.
func ROIPercent(capex, annualSavings float64) Metric {
	if annualSavings <= 0 {
		return NotApplicable()
	}
	if capex == 0 {
		return Unbounded()
	}
	return Defined(annualSavings / capex * 100)
}

// PaybackYears is capex / savings, not applicable when savings is zero or less.
func PaybackYears(capex, annualSavings float64) Metric {
	if annualSavings <= 0 {
		return NotApplicable()
	}
	return Defined(capex / annualSavings)
}

// ValidateAmounts checks capex and savings before any computation.
func ValidateAmounts(capex, annualSavings float64) error {
	if capex < 0 || math.IsNaN(capex) || math.IsInf(capex, 0) {
		return fmt.Errorf("%w: capex %v", ErrInvalidAmount, capex)
	}
	if math.IsNaN(annualSavings) || math.IsInf(annualSavings, 0) {
		return fmt.Errorf("%w: annual savings %v", ErrInvalidAmount, annualSavings)
	}
	return nil
}
