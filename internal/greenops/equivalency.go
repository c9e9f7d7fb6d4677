// Package greenops holds carbon-mass unit handling shared by the accounting
// engine: unit normalization to kilograms, emission-factor unit parsing,
// locale-aware formatting and EPA equivalencies for report output.
package greenops

import (
	"fmt"
	"math"
)

// EquivalencyType is a category of carbon emission equivalency.
type EquivalencyType int

const (
	// EquivalencyMilesDriven is miles driven in an average passenger vehicle.
	EquivalencyMilesDriven EquivalencyType = iota
	// EquivalencySmartphonesCharged is smartphone full charges.
	EquivalencySmartphonesCharged
	// EquivalencyTreeSeedlings is tree seedlings grown for 10 years.
	EquivalencyTreeSeedlings
	// EquivalencyHomeDays is days of average US home electricity use.
	EquivalencyHomeDays
)

// String returns a human-readable name.
func (e EquivalencyType) String() string {
	switch e {
	case EquivalencyMilesDriven:
		return "MilesDriven"
	case EquivalencySmartphonesCharged:
		return "SmartphonesCharged"
	case EquivalencyTreeSeedlings:
		return "TreeSeedlings"
	case EquivalencyHomeDays:
		return "HomeDays"
	default:
		return fmt.Sprintf("EquivalencyType(%d)", e)
	}
}

type equivalencyDef struct {
	kind    EquivalencyType
	divisor float64
	label   string
}

//nolint:gochecknoglobals // Constant lookup table.
var equivalencyDefs = []equivalencyDef{
	{EquivalencyMilesDriven, EPAMilesDrivenFactor, "miles driven"},
	{EquivalencySmartphonesCharged, EPASmartphoneChargeFactor, "smartphones charged"},
	{EquivalencyTreeSeedlings, EPATreeSeedlingFactor, "tree seedlings grown for 10 years"},
	{EquivalencyHomeDays, EPAHomeDayFactor, "days of home electricity"},
}

// EquivalencyResult is a single calculated equivalency.
type EquivalencyResult struct {
	Type           EquivalencyType `json:"type"`
	Value          float64         `json:"value"`
	FormattedValue string          `json:"formatted_value"`
	Label          string          `json:"label"`
}

// EquivalencyOutput holds all equivalencies for one carbon mass.
type EquivalencyOutput struct {
	InputKg     float64             `json:"input_kg"`
	Results     []EquivalencyResult `json:"results"`
	DisplayText string              `json:"display_text"`
	IsEmpty     bool                `json:"is_empty"`
}

// Equivalencies expresses kg CO2e as relatable real-world quantities.
//
// Values below MinEquivalencyThresholdKg return an empty output with no error.
// Negative and non-finite inputs are rejected.
func Equivalencies(kg float64) (EquivalencyOutput, error) {
	if math.IsInf(kg, 0) || math.IsNaN(kg) {
		return EquivalencyOutput{IsEmpty: true}, ErrCalculationOverflow
	}
	if kg < 0 {
		return EquivalencyOutput{IsEmpty: true}, ErrNegativeValue
	}
	if kg < MinEquivalencyThresholdKg {
		return EquivalencyOutput{InputKg: kg, IsEmpty: true}, nil
	}

	results := make([]EquivalencyResult, 0, len(equivalencyDefs))
	for _, def := range equivalencyDefs {
		v := kg / def.divisor
		results = append(results, EquivalencyResult{
			Type:           def.kind,
			Value:          v,
			FormattedValue: formatEquivalencyValue(v),
			Label:          def.label,
		})
	}

	return EquivalencyOutput{
		InputKg: kg,
		Results: results,
		DisplayText: fmt.Sprintf("Equivalent to driving ~%s miles or charging ~%s smartphones",
			results[0].FormattedValue, results[1].FormattedValue),
	}, nil
}

// formatEquivalencyValue uses large-number notation from a million upward.
func formatEquivalencyValue(v float64) string {
	if v >= LargeNumberThreshold {
		return FormatLarge(v)
	}
	return FormatNumber(int64(math.Round(v)))
}
