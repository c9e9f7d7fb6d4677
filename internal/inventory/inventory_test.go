package inventory

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/carbonscope/internal/factors"
)

// countingLookup records how many times Resolve is called.
type countingLookup struct {
	inner factors.Lookup
	calls int
}

func (c *countingLookup) Resolve(category, jurisdiction string, year int) (factors.EmissionFactor, error) {
	c.calls++
	return c.inner.Resolve(category, jurisdiction, year)
}

func defaultTable(t *testing.T) *factors.Table {
	t.Helper()
	tbl, err := factors.Default()
	require.NoError(t, err)
	return tbl
}

func TestAggregate_AUBaseline(t *testing.T) {
	inv, err := Aggregate(defaultTable(t), Inputs{Electricity: 1000}, "AU", 2024)
	require.NoError(t, err)

	assert.InDelta(t, 800.0, inv.Scope2.Total, 1e-9)
	assert.InDelta(t, 800.0, inv.Scope2.Components[Electricity], 1e-9)
	assert.InDelta(t, 800.0, inv.GrandTotal, 1e-9)
	assert.Zero(t, inv.Scope1.Total)
	assert.Zero(t, inv.Scope3.Total)
	assert.Equal(t, "kgCO2e", inv.Unit)
	assert.True(t, inv.Consistent())
}

func TestAggregate_AllZero(t *testing.T) {
	inputs := Inputs{}
	for _, c := range Categories() {
		inputs[c] = 0
	}

	lookup := &countingLookup{inner: defaultTable(t)}
	inv, err := Aggregate(lookup, inputs, "AU", 1900)
	require.NoError(t, err)

	assert.Zero(t, lookup.calls, "zero quantities must not resolve factors")
	assert.Exactly(t, 0.0, inv.Scope1.Total)
	assert.Exactly(t, 0.0, inv.Scope2.Total)
	assert.Exactly(t, 0.0, inv.Scope3.Total)
	assert.Exactly(t, 0.0, inv.GrandTotal)
	assert.False(t, inv.IsEmpty())
}

func TestInventory_IsEmpty(t *testing.T) {
	inv, err := Aggregate(defaultTable(t), Inputs{}, "AU", 2025)
	require.NoError(t, err)
	assert.True(t, inv.IsEmpty())
	assert.True(t, Empty("AU", 2025).IsEmpty())

	inv, err = Aggregate(defaultTable(t), Inputs{Electricity: 1000}, "AU", 2025)
	require.NoError(t, err)
	assert.False(t, inv.IsEmpty())
}

func TestAggregate_GlobalFallback(t *testing.T) {
	inv, err := Aggregate(defaultTable(t), Inputs{BusinessTravel: 2000}, "AU", 2024)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, inv.Scope3.Total, 1e-9)
}

func TestAggregate_Errors(t *testing.T) {
	tbl := defaultTable(t)

	t.Run("unknown categories listed together", func(t *testing.T) {
		_, err := Aggregate(tbl, Inputs{"zeta": 1, Electricity: 5, "alpha": 2}, "AU", 2024)
		require.ErrorIs(t, err, ErrUnknownCategory)
		assert.Contains(t, err.Error(), "alpha, zeta")
	})

	for name, q := range map[string]float64{
		"negative": -1,
		"nan":      math.NaN(),
		"inf":      math.Inf(1),
	} {
		t.Run(name+" quantity", func(t *testing.T) {
			_, err := Aggregate(tbl, Inputs{Electricity: q}, "AU", 2024)
			assert.ErrorIs(t, err, ErrInvalidQuantity)
		})
	}

	t.Run("missing factor", func(t *testing.T) {
		_, err := Aggregate(tbl, Inputs{Electricity: 10}, "AU", 1900)
		require.ErrorIs(t, err, factors.ErrFactorNotFound)
		assert.Contains(t, err.Error(), Electricity)
	})
}

func TestAggregate_TotalsProperty(t *testing.T) {
	tbl := defaultTable(t)
	cats := Categories()
	rng := rand.New(rand.NewPCG(42, 7))

	for i := range 500 {
		inputs := Inputs{}
		for _, c := range cats {
			if rng.IntN(3) == 0 {
				continue
			}
			inputs[c] = rng.Float64() * math.Pow(10, float64(rng.IntN(7)))
		}

		inv, err := Aggregate(tbl, inputs, []string{"AU", "US", "GB", "GLOBAL"}[i%4], 2023+i%4)
		require.NoError(t, err)

		for _, s := range []Scope{Scope1, Scope2, Scope3} {
			st := inv.Scope(s)
			var sum float64
			for _, v := range st.Components {
				sum += v
			}
			require.InDelta(t, sum, st.Total, 1e-9*math.Max(1, sum), "iteration %d %s", i, s)
		}
		require.Equal(t, inv.Scope1.Total+inv.Scope2.Total+inv.Scope3.Total, inv.GrandTotal)
		require.True(t, inv.Consistent())
	}
}

func TestConsistent_DetectsDrift(t *testing.T) {
	inv := Empty("AU", 2024)
	inv.Scope1.Components[MobileFuel] = 10
	inv.Scope1.Total = 10
	inv.GrandTotal = 10
	assert.True(t, inv.Consistent())

	inv.GrandTotal = 11
	assert.False(t, inv.Consistent())

	inv.GrandTotal = 10
	inv.Scope1.Total = 9
	assert.False(t, inv.Consistent())
}

func TestScopeOf(t *testing.T) {
	s, ok := ScopeOf(Refrigerants)
	require.True(t, ok)
	assert.Equal(t, Scope1, s)
	assert.Equal(t, "scope1", s.String())

	s, ok = ScopeOf(PurchasedCooling)
	require.True(t, ok)
	assert.Equal(t, Scope2, s)

	_, ok = ScopeOf("unicorns")
	assert.False(t, ok)

	cats := Categories()
	assert.Len(t, cats, 13)
	assert.Equal(t, MobileFuel, cats[0])
	assert.Equal(t, WaterSupply, cats[len(cats)-1])
}
