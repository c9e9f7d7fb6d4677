package scenario

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/carbonscope/internal/inventory"
)

func TestCanonicalize(t *testing.T) {
	got, err := Canonicalize([]byte(`{ "b": 1,
		"a": {"y": 2, "x": 1} }`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":2,"x":1},"b":1}`, string(got))

	_, err = Canonicalize([]byte(`[1,2]`))
	require.ErrorIs(t, err, ErrMalformedPayload)
	_, err = Canonicalize([]byte(`null`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestMergePayload(t *testing.T) {
	stored := json.RawMessage(`{"inputs":{"electricity":10},"schemaVersion":"1.1.0"}`)

	t.Run("empty fields return stored bytes", func(t *testing.T) {
		got, replaced, err := MergePayload(stored, nil)
		require.NoError(t, err)
		assert.False(t, replaced)
		assert.Equal(t, string(stored), string(got))
	})

	t.Run("set and clear", func(t *testing.T) {
		got, replaced, err := MergePayload(stored, map[string]json.RawMessage{
			FieldInputs:                 json.RawMessage(`null`),
			FieldReductionTargetPercent: json.RawMessage(`25`),
		})
		require.NoError(t, err)
		assert.False(t, replaced)
		assert.Equal(t, `{"inputs":null,"reductionTargetPercent":25,"schemaVersion":"1.1.0"}`, string(got))
	})

	t.Run("malformed stored payload is replaced", func(t *testing.T) {
		got, replaced, err := MergePayload(json.RawMessage(`oops`), map[string]json.RawMessage{
			FieldSelectedStrategies: json.RawMessage(`["a"]`),
		})
		require.NoError(t, err)
		assert.True(t, replaced)
		assert.Equal(t, `{"schemaVersion":"1.1.0","selectedStrategies":["a"]}`, string(got))
	})

	t.Run("invalid field value", func(t *testing.T) {
		_, _, err := MergePayload(stored, map[string]json.RawMessage{FieldInputs: json.RawMessage(`{`)})
		assert.ErrorIs(t, err, ErrInvalidScenario)
	})
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantOutdated bool
		wantErr      bool
	}{
		{"current", `{"schemaVersion":"1.1.0","inputs":{"electricity":1}}`, false, false},
		{"legacy without version", `{"inputs":{"electricity":1}}`, true, false},
		{"older minor", `{"schemaVersion":"1.0.3"}`, true, false},
		{"newer minor", `{"schemaVersion":"1.4.0"}`, false, false},
		{"incompatible major", `{"schemaVersion":"2.0.0"}`, false, true},
		{"bad version", `{"schemaVersion":"latest"}`, false, true},
		{"not an object", `[]`, false, true},
		{"truncated", `{"inputs":`, false, true},
		{"empty", ``, false, true},
		{"wrong field type", `{"inputs":"lots"}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, outdated, err := DecodePayload(json.RawMessage(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutdated, outdated)
		})
	}
}

func TestPayloadEncodeRoundTrip(t *testing.T) {
	pct := 40.0
	inv := inventory.Empty("AU", 2025)
	inv.Scope2.Components[inventory.Electricity] = 800
	inv.Scope2.Total = 800
	inv.GrandTotal = 800

	p := Payload{
		SchemaVersion:          SchemaVersion,
		Organization:           &OrgProfile{Jurisdiction: "AU", ReportingYear: 2025},
		Inputs:                 inventory.Inputs{inventory.Electricity: 1000},
		Inventory:              &inv,
		ReductionTargetPercent: &pct,
	}
	data, err := p.Encode()
	require.NoError(t, err)

	got, outdated, err := DecodePayload(data)
	require.NoError(t, err)
	assert.False(t, outdated)
	assert.Equal(t, p, got)
}

func TestParsePatch(t *testing.T) {
	t.Run("fields and clears", func(t *testing.T) {
		p, err := ParsePatch([]byte(`{"name":"Plan B","reductionTargetPercent":30,"inputs":null,"evaluation":null}`))
		require.NoError(t, err)
		require.NotNil(t, p.Name)
		assert.Equal(t, "Plan B", *p.Name)
		require.NotNil(t, p.ReductionTargetPercent)
		assert.InDelta(t, 30.0, *p.ReductionTargetPercent, 0)
		assert.Equal(t, []string{FieldEvaluation, FieldInputs}, p.Clear)

		fields, err := p.Fields()
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage("null"), fields[FieldInputs])
		assert.Equal(t, json.RawMessage("30"), fields[FieldReductionTargetPercent])
		assert.NotContains(t, fields, "name")
	})

	t.Run("empty object", func(t *testing.T) {
		p, err := ParsePatch([]byte(`{}`))
		require.NoError(t, err)
		assert.True(t, p.IsEmpty())
	})

	t.Run("empty strategy list is a set", func(t *testing.T) {
		p, err := ParsePatch([]byte(`{"selectedStrategies":[]}`))
		require.NoError(t, err)
		fields, err := p.Fields()
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage("[]"), fields[FieldSelectedStrategies])
	})

	for name, body := range map[string]string{
		"unknown key":    `{"color":"green"}`,
		"null name":      `{"name":null}`,
		"not an object":  `[1]`,
		"bad value type": `{"selectedStrategies":"led"}`,
		"schema version": `{"schemaVersion":"9.9.9"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePatch([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}

func TestPatchSetAndClearConflict(t *testing.T) {
	pct := 10.0
	_, err := Patch{ReductionTargetPercent: &pct, Clear: []string{FieldReductionTargetPercent}}.Fields()
	require.ErrorIs(t, err, ErrInvalidScenario)

	_, err = Patch{Clear: []string{FieldSchemaVersion}}.Fields()
	assert.ErrorIs(t, err, ErrInvalidScenario)
}
