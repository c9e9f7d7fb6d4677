package finance

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROIPercent(t *testing.T) {
	tests := []struct {
		name    string
		capex   float64
		savings float64
		want    Metric
	}{
		{name: "defined", capex: 10000, savings: 2500, want: Defined(25)},
		{name: "zero savings", capex: 10000, savings: 0, want: NotApplicable()},
		{name: "negative savings", capex: 10000, savings: -50, want: NotApplicable()},
		{name: "zero capex", capex: 0, savings: 100, want: Unbounded()},
		{name: "zero both", capex: 0, savings: 0, want: NotApplicable()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ROIPercent(tc.capex, tc.savings))
		})
	}
}

func TestPaybackYears(t *testing.T) {
	assert.Equal(t, Defined(4), PaybackYears(10000, 2500))
	assert.Equal(t, Defined(0), PaybackYears(0, 2500))
	assert.Equal(t, NotApplicable(), PaybackYears(10000, 0))
	assert.Equal(t, NotApplicable(), PaybackYears(10000, -1))
}

func TestProject_ZeroRate(t *testing.T) {
	for _, tc := range []struct {
		capex, savings float64
		horizon        int
	}{
		{10000, 2500, 5},
		{0, 100, 1},
		{5000, -10, 3},
		{123.45, 67.89, 100},
	} {
		p, err := Project(tc.capex, tc.savings, tc.horizon, 0)
		require.NoError(t, err)
		require.Len(t, p.Years, tc.horizon+1)

		final := p.Years[tc.horizon]
		assert.Equal(t, tc.horizon, final.Year)
		assert.InDelta(t, -tc.capex+tc.savings*float64(tc.horizon), final.CumulativeCashFlow, 1e-9)
		assert.InDelta(t, final.CumulativeCashFlow, final.CumulativeNPV, 1e-9)
		assert.InDelta(t, final.CumulativeNPV, p.NPV, 0)
	}
}

func TestProject_Discounting(t *testing.T) {
	p, err := Project(10000, 3000, 5, 0.1)
	require.NoError(t, err)

	assert.InDelta(t, -10000, p.Years[0].DiscountedCashFlow, 1e-9)
	assert.InDelta(t, 3000/1.1, p.Years[1].DiscountedCashFlow, 1e-9)
	assert.InDelta(t, 3000/math.Pow(1.1, 5), p.Years[5].DiscountedCashFlow, 1e-9)

	var running float64
	for _, y := range p.Years {
		running += y.DiscountedCashFlow
		assert.InDelta(t, running, y.CumulativeNPV, 1e-9)
	}
	assert.InDelta(t, 1372.36, p.NPV, 0.01)

	assert.Equal(t, Defined(4), p.PaybackYear)
	assert.Equal(t, Defined(5), p.DiscountedPaybackYear)
	assert.Equal(t, p.Years[5], p.Final())
}

func TestProject_NoPayback(t *testing.T) {
	p, err := Project(10000, 0, 5, 0.05)
	require.NoError(t, err)
	assert.Equal(t, NotApplicable(), p.PaybackYear)
	assert.Equal(t, NotApplicable(), p.DiscountedPaybackYear)
	assert.InDelta(t, -10000, p.NPV, 1e-9)
}

func TestProject_PaybackNeedsPositiveSavings(t *testing.T) {
	tests := []struct {
		name           string
		capex, savings float64
		want           Metric
	}{
		{"free but losing money", 0, -2500, NotApplicable()},
		{"free and flat", 0, 0, NotApplicable()},
		{"free and saving", 0, 100, Defined(0)},
		{"capex recovered", 1000, 500, Defined(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Project(tt.capex, tt.savings, 5, 0.05)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.PaybackYear)
			if !tt.want.IsDefined() {
				assert.Equal(t, NotApplicable(), p.DiscountedPaybackYear)
			}
		})
	}
}

func TestProject_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		capex   float64
		savings float64
		horizon int
		rate    float64
		wantErr error
	}{
		{name: "negative rate", capex: 1, savings: 1, horizon: 5, rate: -0.01, wantErr: ErrInvalidDiscountRate},
		{name: "nan rate", capex: 1, savings: 1, horizon: 5, rate: math.NaN(), wantErr: ErrInvalidDiscountRate},
		{name: "zero horizon", capex: 1, savings: 1, horizon: 0, rate: 0.05, wantErr: ErrInvalidHorizon},
		{name: "huge horizon", capex: 1, savings: 1, horizon: 101, rate: 0.05, wantErr: ErrInvalidHorizon},
		{name: "negative capex", capex: -1, savings: 1, horizon: 5, rate: 0.05, wantErr: ErrInvalidAmount},
		{name: "inf savings", capex: 1, savings: math.Inf(1), horizon: 5, rate: 0.05, wantErr: ErrInvalidAmount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Project(tc.capex, tc.savings, tc.horizon, tc.rate)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestMetricJSON(t *testing.T) {
	type wrapper struct {
		ROI     Metric `json:"roi"`
		Payback Metric `json:"payback"`
		Other   Metric `json:"other"`
	}

	in := wrapper{ROI: Defined(12.5), Payback: NotApplicable(), Other: Unbounded()}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"roi":12.5,"payback":"not_applicable","other":"unbounded"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	var m Metric
	assert.Error(t, json.Unmarshal([]byte(`"infinite"`), &m))
	assert.Error(t, json.Unmarshal([]byte(`true`), &m))

	_, err = json.Marshal(Defined(math.Inf(1)))
	assert.Error(t, err)
}

func TestMetricString(t *testing.T) {
	assert.Equal(t, "25.00", Defined(25).String())
	assert.Equal(t, "n/a", NotApplicable().String())
	assert.Equal(t, "unbounded", Unbounded().String())
}
