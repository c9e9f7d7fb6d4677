package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/inventory"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]Strategy{
		{ID: "solar", Industry: "retail", Scope: inventory.Scope2, Name: "Solar", Capex: 10000, AnnualOpexSavings: 0, ReductionPotential: 300},
		{ID: "led", Industry: "general", Scope: inventory.Scope2, Name: "LED", Capex: 2000, AnnualOpexSavings: 500, ReductionPotential: 100},
		{ID: "travel", Industry: "general", Scope: inventory.Scope3, Name: "Travel", Capex: 0, AnnualOpexSavings: 800, ReductionPotential: 100},
		{ID: "sensors", Industry: "Retail", Scope: inventory.Scope2, Name: "Sensors", Capex: 2000, AnnualOpexSavings: 100, ReductionPotential: 100},
		{ID: "boiler", Industry: "manufacturing", Scope: inventory.Scope1, Name: "Boiler", Capex: 50000, AnnualOpexSavings: 7000, ReductionPotential: 5000},
	})
	require.NoError(t, err)
	return c
}

func inventoryOf(total float64) inventory.Inventory {
	inv := inventory.Empty("AU", 2024)
	inv.Scope2.Components[inventory.Electricity] = total
	inv.Scope2.Total = total
	inv.GrandTotal = total
	return inv
}

func TestEvaluate_ZeroSavingsStrategy(t *testing.T) {
	res, err := Evaluate(testCatalog(t), "retail", []string{"solar"}, inventoryOf(800), 30)
	require.NoError(t, err)
	require.Len(t, res.Evaluations, 1)

	e := res.Evaluations[0]
	assert.Equal(t, finance.NotApplicable(), e.ROIPercent)
	assert.Equal(t, finance.NotApplicable(), e.PaybackYears)

	b := res.Bundle
	assert.InDelta(t, 240.0, b.TargetReduction, 1e-9)
	assert.True(t, b.TargetMet, "300 kg reduction meets a 30 percent target of 800 kg")
	assert.InDelta(t, 500.0, b.ResidualEmissions, 1e-9)
	assert.Equal(t, finance.Defined(37.5), b.ReductionShare)
}

func TestEvaluate_TargetMetProperty(t *testing.T) {
	c := testCatalog(t)
	for _, tc := range []struct {
		total, target float64
		ids           []string
	}{
		{800, 30, []string{"led"}},
		{800, 12.5, []string{"led"}},
		{800, 12.5, []string{"led", "travel", "sensors"}},
		{1000, 50, []string{"solar", "led", "travel", "sensors"}},
		{0, 30, nil},
	} {
		res, err := Evaluate(c, "retail", tc.ids, inventoryOf(tc.total), tc.target)
		require.NoError(t, err)
		want := res.Bundle.TotalReduction >= tc.target/100*tc.total
		assert.Equal(t, want, res.Bundle.TargetMet, "%+v", tc)
	}
}

func TestEvaluate_Ranking(t *testing.T) {
	res, err := Evaluate(testCatalog(t), "retail", []string{"sensors", "travel", "led", "solar"}, inventoryOf(1000), 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"solar", "travel", "led", "sensors"}, res.SelectedIDs())

	var cumulative []float64
	for _, e := range res.Evaluations {
		cumulative = append(cumulative, e.CumulativeReduction)
	}
	assert.Equal(t, []float64{300, 400, 500, 600}, cumulative)

	travel := res.Evaluations[1]
	assert.Equal(t, finance.Unbounded(), travel.ROIPercent)
	assert.Equal(t, finance.Defined(0), travel.PaybackYears)

	led := res.Evaluations[2]
	assert.Equal(t, finance.Defined(25), led.ROIPercent)
	assert.Equal(t, finance.Defined(4), led.PaybackYears)

	b := res.Bundle
	assert.InDelta(t, 14000.0, b.TotalCapex, 0)
	assert.InDelta(t, 1400.0, b.TotalAnnualSavings, 0)
	require.True(t, b.ROIPercent.IsDefined())
	assert.InDelta(t, 10.0, b.ROIPercent.Value, 1e-9)
}

func TestEvaluate_Errors(t *testing.T) {
	c := testCatalog(t)

	t.Run("unknown id", func(t *testing.T) {
		_, err := Evaluate(c, "retail", []string{"led", "nope"}, inventoryOf(1), 0)
		require.ErrorIs(t, err, ErrStrategyNotFound)
		assert.Contains(t, err.Error(), "nope")
	})

	t.Run("id from another industry", func(t *testing.T) {
		_, err := Evaluate(c, "retail", []string{"boiler"}, inventoryOf(1), 0)
		assert.ErrorIs(t, err, ErrStrategyNotFound)
	})

	for _, target := range []float64{-1, 100.01} {
		_, err := Evaluate(c, "retail", []string{"led"}, inventoryOf(1), target)
		assert.ErrorIs(t, err, ErrInvalidTarget)
	}
}

func TestEvaluate_DuplicatesCollapse(t *testing.T) {
	res, err := Evaluate(testCatalog(t), "retail", []string{"led", " led", "led"}, inventoryOf(1000), 0)
	require.NoError(t, err)
	assert.Len(t, res.Evaluations, 1)
	assert.InDelta(t, 100.0, res.Bundle.TotalReduction, 0)
}

func TestRecommend(t *testing.T) {
	c := testCatalog(t)

	rec, err := Recommend(c, "retail", inventoryOf(1000), 35)
	require.NoError(t, err)
	assert.Equal(t, []string{"solar", "travel"}, rec.StrategyIDs)
	assert.True(t, rec.Result.Bundle.TargetMet)

	rec, err = Recommend(c, "retail", inventoryOf(1000), 90)
	require.NoError(t, err)
	assert.Len(t, rec.StrategyIDs, 4)
	assert.False(t, rec.Result.Bundle.TargetMet)

	rec, err = Recommend(c, "retail", inventoryOf(1000), 0)
	require.NoError(t, err)
	assert.Empty(t, rec.StrategyIDs)
	assert.True(t, rec.Result.Bundle.TargetMet)

	_, err = Recommend(c, "retail", inventoryOf(1000), 101)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestCatalog(t *testing.T) {
	c := testCatalog(t)

	got := c.ForIndustry(" RETAIL ")
	var ids []string
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"solar", "led", "travel", "sensors"}, ids)

	_, ok := c.Lookup("manufacturing", "led")
	assert.True(t, ok, "general strategies apply to every industry")
	_, ok = c.Lookup("manufacturing", "solar")
	assert.False(t, ok)

	if diff := cmp.Diff([]string{"general", "manufacturing", "retail"}, c.Industries()); diff != "" {
		t.Errorf("Industries() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewCatalog_Validation(t *testing.T) {
	base := Strategy{ID: "a", Industry: "retail", Scope: inventory.Scope1, Name: "A"}

	tests := map[string]func(s *Strategy){
		"missing id":      func(s *Strategy) { s.ID = "" },
		"bad scope":       func(s *Strategy) { s.Scope = 4 },
		"negative capex":  func(s *Strategy) { s.Capex = -1 },
		"negative impact": func(s *Strategy) { s.ReductionPotential = -5 },
		"bad difficulty":  func(s *Strategy) { s.Difficulty = "extreme" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := base
			mutate(&s)
			_, err := NewCatalog([]Strategy{s})
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}

	_, err := NewCatalog([]Strategy{base, base})
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Positive(t, c.Len())

	for _, ind := range c.Industries() {
		for _, s := range c.ForIndustry(ind) {
			assert.NotEmpty(t, s.Name, s.ID)
		}
	}

	renewable, ok := c.Lookup("technology", "renewable-ppa")
	require.True(t, ok)
	assert.Equal(t, finance.NotApplicable(), finance.ROIPercent(renewable.Capex, renewable.AnnualOpexSavings))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 1
strategies:
  - id: x
    industry: mining
    scope: 1
    name: X
    capex: 10
    annual_opex_savings: 5
    reduction_potential_kg: 50
`), 0o600))

	c, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	s, ok := c.Lookup("mining", "x")
	require.True(t, ok)
	assert.InDelta(t, 50.0, s.ReductionPotential, 0)

	_, err = Parse([]byte(`strategies: [{id: y, industry: mining, scope: 9, name: Y}]`))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}
