package greenops

import (
	"fmt"
	"math"
	"strings"
)

// getUnitFactor returns the multiplier converting unit to kilograms.
// Matching is case-insensitive and accepts the bare mass ("kg") or the CO2e form ("kgCO2e").
func getUnitFactor(unit string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "gco2e":
		return GramsToKg, true
	case "kg", "kgco2e":
		return KgToKg, true
	case "t", "tco2e":
		return TonsToKg, true
	case "lb", "lbco2e":
		return PoundsToKg, true
	default:
		return 0, false
	}
}

// NormalizeToKg converts a carbon mass in unit to kilograms.
//
// Returns ErrCalculationOverflow for NaN/Inf input or overflow, ErrNegativeValue
// for negative input and ErrInvalidUnit for unknown units.
func NormalizeToKg(value float64, unit string) (float64, error) {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, ErrCalculationOverflow
	}
	if value < 0 {
		return 0, ErrNegativeValue
	}

	factor, ok := getUnitFactor(unit)
	if !ok {
		return 0, ErrInvalidUnit
	}

	result := value * factor
	if math.IsInf(result, 0) {
		return 0, ErrCalculationOverflow
	}
	return result, nil
}

// IsRecognizedUnit reports whether unit is a supported carbon mass unit.
func IsRecognizedUnit(unit string) bool {
	_, ok := getUnitFactor(unit)
	return ok
}

// FactorUnit is a parsed emission factor unit such as "kgCO2e/kWh".
type FactorUnit struct {
	// MassToKg converts the numerator mass to kilograms.
	MassToKg float64
	// Activity is the denominator, e.g. "kWh", "L", "passenger-km".
	Activity string
}

// String renders the unit in canonical kgCO2e form.
func (u FactorUnit) String() string {
	return CanonicalUnit + "/" + u.Activity
}

// ParseFactorUnit parses "<mass>/<activity>". The activity part is kept verbatim.
func ParseFactorUnit(unit string) (FactorUnit, error) {
	mass, activity, found := strings.Cut(unit, "/")
	activity = strings.TrimSpace(activity)
	if !found || activity == "" {
		return FactorUnit{}, fmt.Errorf("%w: %q", ErrInvalidFactorUnit, unit)
	}

	factor, ok := getUnitFactor(mass)
	if !ok {
		return FactorUnit{}, fmt.Errorf("%w: %q (mass part %q)", ErrInvalidFactorUnit, unit, mass)
	}

	return FactorUnit{MassToKg: factor, Activity: activity}, nil
}
