package inventory

import (
	"cmp"
	"fmt"
	"slices"
)

// Scope is a GHG Protocol emissions scope.
type Scope int

const (
	// Scope1 is direct emissions from owned or controlled sources.
	Scope1 Scope = 1
	// Scope2 is indirect emissions from purchased energy.
	Scope2 Scope = 2
	// Scope3 is all other value-chain emissions.
	Scope3 Scope = 3
)

// String returns "scope1", "scope2" or "scope3".
func (s Scope) String() string {
	return fmt.Sprintf("scope%d", int(s))
}

// Valid reports whether s is one of the three scopes.
func (s Scope) Valid() bool {
	return s >= Scope1 && s <= Scope3
}

// Activity categories by scope. The activity unit of each is fixed by convention.
const (
	StationaryFuel   = "stationaryFuel"   // kWh
	MobileFuel       = "mobileFuel"       // L
	Refrigerants     = "refrigerants"     // kg
	ProcessEmissions = "processEmissions" // kgCO2e

	Electricity      = "electricity"      // kWh
	PurchasedHeat    = "purchasedHeat"    // kWh
	PurchasedCooling = "purchasedCooling" // kWh

	BusinessTravel    = "businessTravel"    // passenger-km
	EmployeeCommuting = "employeeCommuting" // passenger-km
	WasteDisposal     = "wasteDisposal"     // kg
	PurchasedGoods    = "purchasedGoods"    // currency units
	Freight           = "freight"           // tonne-km
	WaterSupply       = "waterSupply"       // m3
)

//nolint:gochecknoglobals // Fixed scope groupings.
var categoryScopes = map[string]Scope{
	StationaryFuel:   Scope1,
	MobileFuel:       Scope1,
	Refrigerants:     Scope1,
	ProcessEmissions: Scope1,

	Electricity:      Scope2,
	PurchasedHeat:    Scope2,
	PurchasedCooling: Scope2,

	BusinessTravel:    Scope3,
	EmployeeCommuting: Scope3,
	WasteDisposal:     Scope3,
	PurchasedGoods:    Scope3,
	Freight:           Scope3,
	WaterSupply:       Scope3,
}

// ScopeOf returns the scope a category belongs to.
func ScopeOf(category string) (Scope, bool) {
	s, ok := categoryScopes[category]
	return s, ok
}

// Categories returns every known category, sorted by scope then name.
func Categories() []string {
	out := make([]string, 0, len(categoryScopes))
	for c := range categoryScopes {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b string) int {
		if d := cmp.Compare(categoryScopes[a], categoryScopes[b]); d != 0 {
			return d
		}
		return cmp.Compare(a, b)
	})
	return out
}
