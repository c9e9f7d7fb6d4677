// Package compliance classifies an organization against jurisdiction-specific
// mandatory climate-reporting thresholds.
//
// A classification is computed at read time and is never stored as a fact.
package compliance

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// VoluntaryLabel is the label of group 0.
const VoluntaryLabel = "Voluntary"

// ErrInvalidRules indicates threshold data that fails validation.
var ErrInvalidRules = errors.New("invalid threshold rules")

// Rule is one threshold rule. Nil thresholds are not part of the rule.
type Rule struct {
	ID           string `json:"id"`
	Jurisdiction string `json:"jurisdiction"`
	// Group is the tier rank; higher is stricter.
	Group              int       `json:"group"`
	Label              string    `json:"label"`
	MinEmissionsTonnes *float64  `json:"minEmissionsTonnes,omitempty"`
	MinRevenue         *float64  `json:"minRevenue,omitempty"`
	MinEmployees       *int      `json:"minEmployees,omitempty"`
	MinCriteria        int       `json:"minCriteria,omitempty"`
	EffectiveDate      time.Time `json:"effectiveDate"`
}

// criteria returns how many thresholds are defined and how many hold.
func (r Rule) criteria(totalKg float64, revenue *float64, employees *int) (defined, held int) {
	if r.MinEmissionsTonnes != nil {
		defined++
		if totalKg >= *r.MinEmissionsTonnes*1000 {
			held++
		}
	}
	if r.MinRevenue != nil {
		defined++
		if revenue != nil && *revenue >= *r.MinRevenue {
			held++
		}
	}
	if r.MinEmployees != nil {
		defined++
		if employees != nil && *employees >= *r.MinEmployees {
			held++
		}
	}
	return defined, held
}

// Matches reports whether the organization meets the rule's thresholds.
// The effective date is not considered.
func (r Rule) Matches(totalKg float64, revenue *float64, employees *int) bool {
	defined, held := r.criteria(totalKg, revenue, employees)
	need := r.MinCriteria
	if need == 0 {
		need = defined
	}
	return defined > 0 && held >= need
}

// Obligation is a tier that applies from a future date.
type Obligation struct {
	RuleID        string    `json:"ruleId"`
	Group         int       `json:"group"`
	Label         string    `json:"label"`
	EffectiveDate time.Time `json:"effectiveDate"`
}

// Classification is the assigned mandatory-reporting tier.
type Classification struct {
	Jurisdiction   string     `json:"jurisdiction"`
	MandatoryGroup int        `json:"mandatoryGroup"`
	Label          string     `json:"label"`
	EffectiveDate  *time.Time `json:"effectiveDate,omitempty"`
	RuleID         string     `json:"ruleId,omitempty"`
	AsOf           time.Time  `json:"asOf"`
	// Upcoming lists stricter tiers the organization will fall into later.
	Upcoming []Obligation `json:"upcoming,omitempty"`
}

// Voluntary reports whether no mandatory tier applies.
func (c Classification) Voluntary() bool { return c.MandatoryGroup == 0 }

// Classifier is satisfied by RuleTable.
type Classifier interface {
	Classify(jurisdiction string, totalEmissionsKg float64, revenue *float64, employees *int, asOf time.Time) Classification
}

// RuleTable is an immutable, validated rule set ordered strictest tier first
// per jurisdiction.
type RuleTable struct {
	byJurisdiction map[string][]Rule
}

// NewRuleTable validates rules and builds a table. Table order breaks ties
// between rules of the same group.
func NewRuleTable(rules []Rule) (*RuleTable, error) {
	t := &RuleTable{byJurisdiction: make(map[string][]Rule)}
	ids := make(map[string]bool, len(rules))

	for i, r := range rules {
		r.Jurisdiction = strings.ToUpper(strings.TrimSpace(r.Jurisdiction))
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): %w", ErrInvalidRules, i, r.ID, err)
		}
		if ids[r.ID] {
			return nil, fmt.Errorf("%w: duplicate rule id %q", ErrInvalidRules, r.ID)
		}
		ids[r.ID] = true
		t.byJurisdiction[r.Jurisdiction] = append(t.byJurisdiction[r.Jurisdiction], r)
	}

	for _, rs := range t.byJurisdiction {
		slices.SortStableFunc(rs, func(a, b Rule) int {
			return cmp.Compare(b.Group, a.Group)
		})
	}
	return t, nil
}

func validateRule(r Rule) error {
	switch {
	case r.ID == "":
		return errors.New("id is required")
	case r.Jurisdiction == "":
		return errors.New("jurisdiction is required")
	case r.Group < 1:
		return fmt.Errorf("group %d must be at least 1", r.Group)
	case r.EffectiveDate.IsZero():
		return errors.New("effective date is required")
	}

	defined := 0
	if r.MinEmissionsTonnes != nil {
		if *r.MinEmissionsTonnes < 0 || math.IsNaN(*r.MinEmissionsTonnes) {
			return errors.New("emissions threshold must be non-negative")
		}
		defined++
	}
	if r.MinRevenue != nil {
		if *r.MinRevenue < 0 || math.IsNaN(*r.MinRevenue) {
			return errors.New("revenue threshold must be non-negative")
		}
		defined++
	}
	if r.MinEmployees != nil {
		if *r.MinEmployees < 0 {
			return errors.New("employee threshold must be non-negative")
		}
		defined++
	}
	if defined == 0 {
		return errors.New("at least one threshold is required")
	}
	if r.MinCriteria < 0 || r.MinCriteria > defined {
		return fmt.Errorf("min criteria %d must be 0..%d", r.MinCriteria, defined)
	}
	return nil
}

// Rules returns the rules for a jurisdiction, strictest first.
func (t *RuleTable) Rules(jurisdiction string) []Rule {
	return slices.Clone(t.byJurisdiction[strings.ToUpper(strings.TrimSpace(jurisdiction))])
}

// Jurisdictions returns the jurisdictions with rules, sorted.
func (t *RuleTable) Jurisdictions() []string {
	out := make([]string, 0, len(t.byJurisdiction))
	for j := range t.byJurisdiction {
		out = append(out, j)
	}
	slices.Sort(out)
	return out
}

// Classify assigns the strictest tier whose thresholds are met and whose rule is
// in effect on asOf. No match yields group 0. Rules that are not yet effective
// but would match a stricter tier are reported as Upcoming, earliest first.
func (t *RuleTable) Classify(jurisdiction string, totalEmissionsKg float64, revenue *float64, employees *int, asOf time.Time) Classification {
	code := strings.ToUpper(strings.TrimSpace(jurisdiction))
	c := Classification{Jurisdiction: code, Label: VoluntaryLabel, AsOf: asOf}

	var future []Rule
	for _, r := range t.byJurisdiction[code] {
		if !r.Matches(totalEmissionsKg, revenue, employees) {
			continue
		}
		if r.EffectiveDate.After(asOf) {
			future = append(future, r)
			continue
		}
		if c.MandatoryGroup == 0 {
			eff := r.EffectiveDate
			c.MandatoryGroup = r.Group
			c.Label = r.Label
			c.EffectiveDate = &eff
			c.RuleID = r.ID
		}
	}

	seen := make(map[int]bool)
	slices.SortStableFunc(future, func(a, b Rule) int {
		return a.EffectiveDate.Compare(b.EffectiveDate)
	})
	for _, r := range future {
		if r.Group <= c.MandatoryGroup || seen[r.Group] {
			continue
		}
		seen[r.Group] = true
		c.Upcoming = append(c.Upcoming, Obligation{
			RuleID:        r.ID,
			Group:         r.Group,
			Label:         r.Label,
			EffectiveDate: r.EffectiveDate,
		})
	}

	return c
}
