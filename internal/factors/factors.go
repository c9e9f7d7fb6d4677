// Package factors resolves emission factors (kgCO2e per unit of activity) for a
// category, jurisdiction and reporting year.
//
// Resolution is exact (category, jurisdiction, year) first and then the GLOBAL
// row for the same category and year. Falling back to GLOBAL is the normal path
// and is not reported as missing data.
package factors

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Global is the jurisdiction code of the fallback factor rows.
const Global = "GLOBAL"

// ErrFactorNotFound is returned when neither a jurisdiction nor a GLOBAL factor exists.
var ErrFactorNotFound = errors.New("emission factor not found")

// ErrInvalidTable indicates reference data that violates the table invariants.
var ErrInvalidTable = errors.New("invalid emission factor table")

// EmissionFactor is one immutable row of reference data.
type EmissionFactor struct {
	Category     string  `json:"category"     yaml:"category"`
	Jurisdiction string  `json:"jurisdiction" yaml:"jurisdiction"`
	Year         int     `json:"year"         yaml:"year"`
	ValuePerUnit float64 `json:"valuePerUnit" yaml:"value"`
	// Unit is always kgCO2e/<activity> after load.
	Unit      string `json:"unit"      yaml:"unit"`
	IsDefault bool   `json:"isDefault" yaml:"is_default"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Lookup resolves a factor for a (category, jurisdiction, year) triple.
type Lookup interface {
	Resolve(category, jurisdiction string, year int) (EmissionFactor, error)
}

type key struct {
	category     string
	jurisdiction string
	year         int
}

// Table is an in-memory, read-only factor table. It is safe for concurrent use.
type Table struct {
	rows  map[key]EmissionFactor
	codes map[string]struct{}
}

// NewTable validates rows and builds a table.
//
// It fails when two rows share (category, jurisdiction, year) or when a
// non-GLOBAL row is marked as a default. GLOBAL rows are always defaults.
func NewTable(rows []EmissionFactor) (*Table, error) {
	t := &Table{
		rows:  make(map[key]EmissionFactor, len(rows)),
		codes: make(map[string]struct{}),
	}

	for i, f := range rows {
		f.Jurisdiction = strings.ToUpper(strings.TrimSpace(f.Jurisdiction))
		f.Category = strings.TrimSpace(f.Category)

		switch {
		case f.Category == "":
			return nil, fmt.Errorf("%w: row %d: category is required", ErrInvalidTable, i)
		case f.Jurisdiction == "":
			return nil, fmt.Errorf("%w: row %d: jurisdiction is required", ErrInvalidTable, i)
		case f.Year <= 0:
			return nil, fmt.Errorf("%w: row %d: year must be positive", ErrInvalidTable, i)
		case f.ValuePerUnit < 0:
			return nil, fmt.Errorf("%w: row %d: negative factor value", ErrInvalidTable, i)
		case f.IsDefault && f.Jurisdiction != Global:
			return nil, fmt.Errorf("%w: row %d: only %s rows may be defaults (got %s)",
				ErrInvalidTable, i, Global, f.Jurisdiction)
		}
		f.IsDefault = f.Jurisdiction == Global

		k := key{f.Category, f.Jurisdiction, f.Year}
		if _, dup := t.rows[k]; dup {
			return nil, fmt.Errorf("%w: duplicate factor for %s/%s/%d",
				ErrInvalidTable, f.Category, f.Jurisdiction, f.Year)
		}
		t.rows[k] = f
		t.codes[f.Jurisdiction] = struct{}{}
	}

	return t, nil
}

// Resolve returns the jurisdiction-specific factor, else the GLOBAL one.
// The jurisdiction code is compared case-insensitively.
func (t *Table) Resolve(category, jurisdiction string, year int) (EmissionFactor, error) {
	code := strings.ToUpper(strings.TrimSpace(jurisdiction))
	if f, ok := t.rows[key{category, code, year}]; ok {
		return f, nil
	}
	if f, ok := t.rows[key{category, Global, year}]; ok {
		return f, nil
	}
	return EmissionFactor{}, fmt.Errorf("%w: category %q, jurisdiction %q, year %d",
		ErrFactorNotFound, category, code, year)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Jurisdictions returns the distinct jurisdiction codes in the table, sorted.
func (t *Table) Jurisdictions() []string {
	out := make([]string, 0, len(t.codes))
	for c := range t.codes {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// All returns every row ordered by category, jurisdiction and year.
func (t *Table) All() []EmissionFactor {
	out := make([]EmissionFactor, 0, len(t.rows))
	for _, f := range t.rows {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b EmissionFactor) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		if c := strings.Compare(a.Jurisdiction, b.Jurisdiction); c != 0 {
			return c
		}
		return a.Year - b.Year
	})
	return out
}
