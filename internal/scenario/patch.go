package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/strategy"
)

// Patch is an explicit partial update. Only non-nil fields are written; Clear
// names payload keys to reset to null. An empty, non-nil SelectedStrategies
// slice stores an empty list.
type Patch struct {
	Name                   *string
	Organization           *OrgProfile
	Inputs                 inventory.Inputs
	Inventory              *inventory.Inventory
	SelectedStrategies     []string
	ReductionTargetPercent *float64
	Evaluation             *strategy.Result
	Financial              *finance.Projection
	Clear                  []string
}

// patchableFields are the payload keys a Patch may set or clear.
//
//nolint:gochecknoglobals // Fixed key set.
var patchableFields = []string{
	FieldOrganization,
	FieldInputs,
	FieldInventory,
	FieldSelectedStrategies,
	FieldReductionTargetPercent,
	FieldEvaluation,
	FieldFinancial,
}

// IsEmpty reports whether the patch changes nothing but the timestamp.
func (p Patch) IsEmpty() bool {
	fields, err := p.Fields()
	return err == nil && len(fields) == 0 && p.Name == nil
}

// Fields returns the top-level payload keys the patch sets.
func (p Patch) Fields() (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)

	set := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		fields[key] = data
		return nil
	}

	type entry struct {
		key   string
		isSet bool
		value any
	}
	for _, e := range []entry{
		{FieldOrganization, p.Organization != nil, p.Organization},
		{FieldInputs, p.Inputs != nil, p.Inputs},
		{FieldInventory, p.Inventory != nil, p.Inventory},
		{FieldSelectedStrategies, p.SelectedStrategies != nil, p.SelectedStrategies},
		{FieldReductionTargetPercent, p.ReductionTargetPercent != nil, p.ReductionTargetPercent},
		{FieldEvaluation, p.Evaluation != nil, p.Evaluation},
		{FieldFinancial, p.Financial != nil, p.Financial},
	} {
		if !e.isSet {
			continue
		}
		if err := set(e.key, e.value); err != nil {
			return nil, err
		}
	}

	for _, key := range p.Clear {
		if !slices.Contains(patchableFields, key) {
			return nil, fmt.Errorf("%w: cannot clear unknown field %q", ErrInvalidScenario, key)
		}
		if _, ok := fields[key]; ok {
			return nil, fmt.Errorf("%w: field %q is both set and cleared", ErrInvalidScenario, key)
		}
		fields[key] = json.RawMessage("null")
	}

	return fields, nil
}

// ParsePatch decodes a JSON object of top-level fields into a Patch. A null
// value clears the field. "name" renames the scenario. Unknown keys are rejected.
func ParsePatch(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Patch{}, fmt.Errorf("%w: patch must be a JSON object: %w", ErrInvalidScenario, err)
	}

	var p Patch
	for key, value := range raw {
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			if key == "name" {
				return Patch{}, fmt.Errorf("%w: name cannot be null", ErrInvalidScenario)
			}
			p.Clear = append(p.Clear, key)
			continue
		}

		var target any
		switch key {
		case "name":
			target = &p.Name
		case FieldOrganization:
			target = &p.Organization
		case FieldInputs:
			target = &p.Inputs
		case FieldInventory:
			target = &p.Inventory
		case FieldSelectedStrategies:
			target = &p.SelectedStrategies
		case FieldReductionTargetPercent:
			target = &p.ReductionTargetPercent
		case FieldEvaluation:
			target = &p.Evaluation
		case FieldFinancial:
			target = &p.Financial
		default:
			return Patch{}, fmt.Errorf("%w: unknown field %q", ErrInvalidScenario, key)
		}

		if err := json.Unmarshal(value, target); err != nil {
			return Patch{}, fmt.Errorf("%w: field %q: %w", ErrInvalidScenario, key, err)
		}
	}

	slices.Sort(p.Clear)
	if _, err := p.Fields(); err != nil {
		return Patch{}, err
	}
	return p, nil
}
