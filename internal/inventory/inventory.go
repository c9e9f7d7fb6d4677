// Package inventory converts per-category activity quantities into a
// scope-classified greenhouse-gas inventory.
package inventory

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/greenops"
)

// Tolerance is the absolute tolerance used by Consistent.
const Tolerance = 1e-9

var (
	// ErrUnknownCategory is returned when inputs contain a category outside every scope grouping.
	ErrUnknownCategory = errors.New("unknown activity category")

	// ErrInvalidQuantity is returned for negative, NaN or infinite quantities.
	ErrInvalidQuantity = errors.New("invalid activity quantity")
)

// Inputs maps category names to activity quantities.
type Inputs map[string]float64

// ScopeTotal is one scope's per-category emissions and their sum, in kgCO2e.
type ScopeTotal struct {
	Components map[string]float64 `json:"components"`
	Total      float64            `json:"total"`
}

// Inventory is the derived emissions inventory. It is never edited directly.
type Inventory struct {
	Scope1       ScopeTotal `json:"scope1"`
	Scope2       ScopeTotal `json:"scope2"`
	Scope3       ScopeTotal `json:"scope3"`
	GrandTotal   float64    `json:"grandTotal"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	Year         int        `json:"year,omitempty"`
	Unit         string     `json:"unit"`
}

// Empty returns an inventory with every total zero.
func Empty(jurisdiction string, year int) Inventory {
	return Inventory{
		Scope1:       ScopeTotal{Components: map[string]float64{}},
		Scope2:       ScopeTotal{Components: map[string]float64{}},
		Scope3:       ScopeTotal{Components: map[string]float64{}},
		Jurisdiction: jurisdiction,
		Year:         year,
		Unit:         greenops.CanonicalUnit,
	}
}

// IsEmpty reports whether no category contributed to the inventory. An
// inventory aggregated from zero-quantity inputs is not empty.
func (inv Inventory) IsEmpty() bool {
	return len(inv.Scope1.Components) == 0 &&
		len(inv.Scope2.Components) == 0 &&
		len(inv.Scope3.Components) == 0
}

// Scope returns the total for s. It panics on an invalid scope.
func (inv *Inventory) Scope(s Scope) *ScopeTotal {
	switch s {
	case Scope1:
		return &inv.Scope1
	case Scope2:
		return &inv.Scope2
	case Scope3:
		return &inv.Scope3
	default:
		panic(fmt.Sprintf("inventory: invalid scope %d", s))
	}
}

// Consistent reports whether each scope total equals the sum of its components
// and the grand total equals the sum of the scope totals.
func (inv Inventory) Consistent() bool {
	var sum float64
	for _, st := range []ScopeTotal{inv.Scope1, inv.Scope2, inv.Scope3} {
		var c float64
		for _, k := range sortedKeys(st.Components) {
			c += st.Components[k]
		}
		if math.Abs(c-st.Total) > Tolerance {
			return false
		}
		sum += st.Total
	}
	return math.Abs(sum-inv.GrandTotal) <= Tolerance
}

// Aggregate multiplies each input quantity by its resolved factor and sums the
// results per scope.
//
// All unknown categories are reported together. Zero quantities contribute
// zero without a factor lookup. Categories absent from inputs contribute nothing.
func Aggregate(lookup factors.Lookup, inputs Inputs, jurisdiction string, year int) (Inventory, error) {
	keys := sortedKeys(inputs)

	var unknown []string
	for _, k := range keys {
		if _, ok := ScopeOf(k); !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return Inventory{}, fmt.Errorf("%w: %s", ErrUnknownCategory, strings.Join(unknown, ", "))
	}

	for _, k := range keys {
		q := inputs[k]
		if q < 0 || math.IsNaN(q) || math.IsInf(q, 0) {
			return Inventory{}, fmt.Errorf("%w: %s = %v", ErrInvalidQuantity, k, q)
		}
	}

	inv := Empty(jurisdiction, year)
	for _, k := range keys {
		scope, _ := ScopeOf(k)
		st := inv.Scope(scope)

		q := inputs[k]
		if q == 0 {
			st.Components[k] = 0
			continue
		}

		f, err := lookup.Resolve(k, jurisdiction, year)
		if err != nil {
			return Inventory{}, fmt.Errorf("resolving factor for %s: %w", k, err)
		}

		kg := q * f.ValuePerUnit
		st.Components[k] = kg
		st.Total += kg
	}

	inv.GrandTotal = inv.Scope1.Total + inv.Scope2.Total + inv.Scope3.Total
	return inv, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
