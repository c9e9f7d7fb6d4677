package greenops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToKg(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		unit    string
		want    float64
		wantErr error
	}{
		{name: "kg identity", value: 150, unit: "kg", want: 150},
		{name: "grams", value: 150000, unit: "gCO2e", want: 150},
		{name: "tonnes", value: 0.15, unit: "t", want: 150},
		{name: "pounds case-insensitive", value: 1, unit: "LBCO2E", want: 0.453592},
		{name: "negative", value: -1, unit: "kg", wantErr: ErrNegativeValue},
		{name: "unknown unit", value: 1, unit: "stone", wantErr: ErrInvalidUnit},
		{name: "nan", value: math.NaN(), unit: "kg", wantErr: ErrCalculationOverflow},
		{name: "overflow", value: math.MaxFloat64, unit: "t", wantErr: ErrCalculationOverflow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeToKg(tc.value, tc.unit)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestParseFactorUnit(t *testing.T) {
	u, err := ParseFactorUnit("tCO2e/t")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, u.MassToKg, 0)
	assert.Equal(t, "t", u.Activity)
	assert.Equal(t, "kgCO2e/t", u.String())

	u, err = ParseFactorUnit("kgCO2e/ passenger-km")
	require.NoError(t, err)
	assert.Equal(t, "passenger-km", u.Activity)

	for _, bad := range []string{"kgCO2e", "kgCO2e/", "stone/kWh", ""} {
		_, err := ParseFactorUnit(bad)
		assert.ErrorIs(t, err, ErrInvalidFactorUnit, bad)
	}
}

func TestEquivalencies(t *testing.T) {
	out, err := Equivalencies(150)
	require.NoError(t, err)
	require.False(t, out.IsEmpty)
	require.Len(t, out.Results, 4)
	assert.InDelta(t, 781.25, out.Results[0].Value, 0.01)
	assert.InDelta(t, 18248.18, out.Results[1].Value, 0.01)
	assert.Equal(t, "781", out.Results[0].FormattedValue)
	assert.Contains(t, out.DisplayText, "18,248 smartphones")

	out, err = Equivalencies(0.5)
	require.NoError(t, err)
	assert.True(t, out.IsEmpty)

	_, err = Equivalencies(-3)
	assert.ErrorIs(t, err, ErrNegativeValue)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "18,248", FormatNumber(18248))
	assert.Equal(t, "1,234.57", FormatFloat(1234.567, 2))
	assert.Equal(t, "1,235", FormatFloat(1234.567, 0))
	assert.Equal(t, "-9,876.5", FormatFloat(-9876.5, 1))
	assert.Equal(t, "~1.5 billion", FormatLarge(1_500_000_000))
	assert.Equal(t, "~2.5 million", FormatLarge(2_500_000))
	assert.Equal(t, "999", FormatLarge(999))
	assert.Equal(t, "800.00 kgCO2e", FormatMass(800, 2))
	assert.Equal(t, "12.35 tCO2e", FormatMass(12345, 2))
}
