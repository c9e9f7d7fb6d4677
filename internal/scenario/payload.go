package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/strategy"
)

// SchemaVersion is the payload schema written by this version.
const SchemaVersion = "1.1.0"

// LegacySchemaVersion is assumed for payloads without a schemaVersion key.
const LegacySchemaVersion = "1.0.0"

// Top-level payload keys.
const (
	FieldSchemaVersion          = "schemaVersion"
	FieldOrganization           = "organization"
	FieldInputs                 = "inputs"
	FieldInventory              = "inventory"
	FieldSelectedStrategies     = "selectedStrategies"
	FieldReductionTargetPercent = "reductionTargetPercent"
	FieldEvaluation             = "evaluation"
	FieldFinancial              = "financial"
)

// OrgProfile holds the organization attributes used for classification.
type OrgProfile struct {
	Jurisdiction  string   `json:"jurisdiction,omitempty"`
	ReportingYear int      `json:"reportingYear,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	AnnualRevenue *float64 `json:"annualRevenue,omitempty"`
	EmployeeCount *int     `json:"employeeCount,omitempty"`
}

// Payload is the typed scenario snapshot.
type Payload struct {
	SchemaVersion          string               `json:"schemaVersion,omitempty"`
	Organization           *OrgProfile          `json:"organization,omitempty"`
	Inputs                 inventory.Inputs     `json:"inputs,omitempty"`
	Inventory              *inventory.Inventory `json:"inventory,omitempty"`
	SelectedStrategies     []string             `json:"selectedStrategies,omitempty"`
	ReductionTargetPercent *float64             `json:"reductionTargetPercent,omitempty"`
	Evaluation             *strategy.Result     `json:"evaluation,omitempty"`
	Financial              *finance.Projection  `json:"financial,omitempty"`
}

// Encode marshals p as a canonical JSON object.
func (p Payload) Encode() (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding scenario payload: %w", err)
	}
	return Canonicalize(data)
}

// Canonicalize rewrites a JSON object with sorted top-level keys and no
// insignificant whitespace.
func Canonicalize(data []byte) (json.RawMessage, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return encodeObject(fields)
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedPayload)
	}
	return fields, nil
}

func encodeObject(fields map[string]json.RawMessage) (json.RawMessage, error) {
	// encoding/json writes map keys sorted and compacts raw values.
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding scenario payload: %w", err)
	}
	return out, nil
}

// MergePayload sets fields on the stored object. With no fields the stored
// bytes are returned unchanged. A stored payload that is not a JSON object is
// replaced by one holding only the current schema version, and replaced is true.
func MergePayload(stored json.RawMessage, fields map[string]json.RawMessage) (merged json.RawMessage, replaced bool, err error) {
	if len(fields) == 0 {
		return stored, false, nil
	}

	base, decodeErr := decodeObject(stored)
	if decodeErr != nil {
		base = map[string]json.RawMessage{
			FieldSchemaVersion: json.RawMessage(`"` + SchemaVersion + `"`),
		}
		replaced = true
	}

	for k, v := range fields {
		if !json.Valid(v) {
			return nil, false, fmt.Errorf("%w: field %q is not valid JSON", ErrInvalidScenario, k)
		}
		base[k] = v
	}

	merged, err = encodeObject(base)
	return merged, replaced, err
}

// DecodePayload parses a stored payload and checks its schema version.
//
// An unparsable payload or an incompatible major version yields an empty
// payload and an error wrapping ErrMalformedPayload. Older compatible versions
// decode normally and report outdated as true.
func DecodePayload(data json.RawMessage) (p Payload, outdated bool, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Payload{}, false, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if _, err := decodeObject(data); err != nil {
		return Payload{}, false, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, false, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	raw := p.SchemaVersion
	if raw == "" {
		raw = LegacySchemaVersion
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return Payload{}, false, fmt.Errorf("%w: schema version %q: %w", ErrMalformedPayload, raw, err)
	}
	current := semver.MustParse(SchemaVersion)
	if v.Major() != current.Major() {
		return Payload{}, false, fmt.Errorf("%w: schema version %s is not compatible with %s",
			ErrMalformedPayload, v, current)
	}

	return p, v.LessThan(current), nil
}
