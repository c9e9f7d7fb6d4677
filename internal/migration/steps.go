package migration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rshade/carbonscope/internal/scenario"
)

// Top-level keys of 1.0.0 payloads.
const (
	legacyJurisdiction    = "jurisdiction"
	legacyReportingYear   = "reportingYear"
	legacyIndustry        = "industry"
	legacyRevenue         = "revenue"
	legacyEmployees       = "employees"
	legacyReductionTarget = "reductionTarget"
)

const percentScale = 1e9

// liftOrganization moves the 1.0.0 organization attributes under
// "organization" and converts the fractional reductionTarget to a percentage.
// Values already present in the 1.1.0 layout win over legacy ones.
func liftOrganization(fields map[string]json.RawMessage) error {
	var org map[string]json.RawMessage
	if raw, ok := fields[scenario.FieldOrganization]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &org); err != nil {
			return fmt.Errorf("organization: %w", err)
		}
	}
	if org == nil {
		org = make(map[string]json.RawMessage)
	}

	moves := []struct{ from, to string }{
		{legacyJurisdiction, "jurisdiction"},
		{legacyReportingYear, "reportingYear"},
		{legacyIndustry, "industry"},
		{legacyRevenue, "annualRevenue"},
		{legacyEmployees, "employeeCount"},
	}
	for _, mv := range moves {
		raw, ok := fields[mv.from]
		if !ok {
			continue
		}
		delete(fields, mv.from)
		if isNull(raw) {
			continue
		}
		if _, exists := org[mv.to]; !exists {
			org[mv.to] = raw
		}
	}
	if len(org) > 0 {
		data, err := json.Marshal(org)
		if err != nil {
			return fmt.Errorf("organization: %w", err)
		}
		fields[scenario.FieldOrganization] = data
	}

	if raw, ok := fields[legacyReductionTarget]; ok {
		delete(fields, legacyReductionTarget)
		if _, exists := fields[scenario.FieldReductionTargetPercent]; !exists && !isNull(raw) {
			var fraction float64
			if err := json.Unmarshal(raw, &fraction); err != nil {
				return fmt.Errorf("reductionTarget: %w", err)
			}
			// Rounded to drop binary noise such as 0.3*100 = 30.000000000000004.
			percent := math.Round(fraction*100*percentScale) / percentScale
			fields[scenario.FieldReductionTargetPercent] = mustMarshal(percent)
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
