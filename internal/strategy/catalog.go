// Package strategy holds the reduction strategy catalog and evaluates selected
// strategies against an emissions inventory.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rshade/carbonscope/internal/inventory"
)

// GeneralIndustry marks strategies offered to every industry.
const GeneralIndustry = "general"

var (
	// ErrStrategyNotFound is returned for an id unknown to the selected industry.
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrInvalidTarget is returned for a reduction target outside [0, 100].
	ErrInvalidTarget = errors.New("invalid reduction target")

	// ErrInvalidCatalog indicates catalog data that fails validation.
	ErrInvalidCatalog = errors.New("invalid strategy catalog")
)

// Difficulty is an implementation difficulty label.
type Difficulty string

// Difficulty levels.
const (
	DifficultyLow    Difficulty = "low"
	DifficultyMedium Difficulty = "medium"
	DifficultyHigh   Difficulty = "high"
)

// Strategy is a static catalog entry.
type Strategy struct {
	ID          string          `json:"id"`
	Industry    string          `json:"industry"`
	Scope       inventory.Scope `json:"scope"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Timeframe   string          `json:"timeframe,omitempty"`
	Difficulty  Difficulty      `json:"difficulty,omitempty"`
	Capex       float64         `json:"capex"`
	// AnnualOpexSavings may be negative for strategies that raise running costs.
	AnnualOpexSavings float64 `json:"annualOpexSavings"`
	// ReductionPotential is the absolute reduction in kgCO2e.
	ReductionPotential float64 `json:"reductionPotential"`
}

// Catalog is an immutable, industry-scoped set of strategies.
type Catalog struct {
	entries []Strategy
	byID    map[string]int
}

// NormalizeIndustry lower-cases and trims an industry code.
func NormalizeIndustry(industry string) string {
	return strings.ToLower(strings.TrimSpace(industry))
}

// NewCatalog validates entries and builds a catalog. Ids must be unique.
func NewCatalog(entries []Strategy) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Strategy, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}

	for i, s := range entries {
		s.ID = strings.TrimSpace(s.ID)
		s.Industry = NormalizeIndustry(s.Industry)

		if err := validate(s); err != nil {
			return nil, fmt.Errorf("%w: entry %d (%s): %w", ErrInvalidCatalog, i, s.ID, err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate strategy id %q", ErrInvalidCatalog, s.ID)
		}

		c.byID[s.ID] = len(c.entries)
		c.entries = append(c.entries, s)
	}

	return c, nil
}

func validate(s Strategy) error {
	switch {
	case s.ID == "":
		return errors.New("id is required")
	case s.Industry == "":
		return errors.New("industry is required")
	case s.Name == "":
		return errors.New("name is required")
	case !s.Scope.Valid():
		return fmt.Errorf("scope %d is not 1, 2 or 3", s.Scope)
	case s.Capex < 0 || math.IsNaN(s.Capex) || math.IsInf(s.Capex, 0):
		return fmt.Errorf("capex %v must be a non-negative number", s.Capex)
	case math.IsNaN(s.AnnualOpexSavings) || math.IsInf(s.AnnualOpexSavings, 0):
		return fmt.Errorf("annual savings %v must be finite", s.AnnualOpexSavings)
	case s.ReductionPotential < 0 || math.IsNaN(s.ReductionPotential) || math.IsInf(s.ReductionPotential, 0):
		return fmt.Errorf("reduction potential %v must be a non-negative number", s.ReductionPotential)
	}
	switch s.Difficulty {
	case "", DifficultyLow, DifficultyMedium, DifficultyHigh:
		return nil
	default:
		return fmt.Errorf("unknown difficulty %q", s.Difficulty)
	}
}

// ForIndustry returns the strategies offered to industry in catalog order,
// including general strategies.
func (c *Catalog) ForIndustry(industry string) []Strategy {
	industry = NormalizeIndustry(industry)
	var out []Strategy
	for _, s := range c.entries {
		if s.Industry == industry || s.Industry == GeneralIndustry {
			out = append(out, s)
		}
	}
	return out
}

// Lookup finds id among the strategies offered to industry.
func (c *Catalog) Lookup(industry, id string) (Strategy, bool) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Strategy{}, false
	}
	s := c.entries[i]
	if s.Industry != GeneralIndustry && s.Industry != NormalizeIndustry(industry) {
		return Strategy{}, false
	}
	return s, true
}

// Industries returns the distinct industry codes, sorted. General is included.
func (c *Catalog) Industries() []string {
	var out []string
	for _, s := range c.entries {
		if !slices.Contains(out, s.Industry) {
			out = append(out, s.Industry)
		}
	}
	slices.Sort(out)
	return out
}

// All returns every entry in catalog order.
func (c *Catalog) All() []Strategy {
	return slices.Clone(c.entries)
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }
