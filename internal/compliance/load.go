package compliance

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/carbonscope/internal/logging"
)

// FileVersion is the supported threshold file format version.
const FileVersion = 1

//go:embed defaults/thresholds.yaml
var defaultThresholdsYAML []byte

type fileRule struct {
	ID                 string   `yaml:"id"`
	Jurisdiction       string   `yaml:"jurisdiction"`
	Group              int      `yaml:"group"`
	Label              string   `yaml:"label"`
	MinEmissionsTonnes *float64 `yaml:"min_emissions_tonnes"`
	MinRevenue         *float64 `yaml:"min_revenue"`
	MinEmployees       *int     `yaml:"min_employees"`
	MinCriteria        int      `yaml:"min_criteria"`
	EffectiveDate      string   `yaml:"effective_date"`
}

type fileData struct {
	Version int        `yaml:"version"`
	Rules   []fileRule `yaml:"rules"`
}

// Parse decodes a YAML threshold file. Effective dates are YYYY-MM-DD in UTC.
func Parse(data []byte) (*RuleTable, error) {
	var fd fileData
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %w", ErrInvalidRules, err)
	}
	if fd.Version != 0 && fd.Version != FileVersion {
		return nil, fmt.Errorf("%w: unsupported file version %d", ErrInvalidRules, fd.Version)
	}

	rules := make([]Rule, 0, len(fd.Rules))
	for i, fr := range fd.Rules {
		eff, err := time.Parse(time.DateOnly, fr.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): effective_date: %w", ErrInvalidRules, i, fr.ID, err)
		}
		rules = append(rules, Rule{
			ID:                 fr.ID,
			Jurisdiction:       fr.Jurisdiction,
			Group:              fr.Group,
			Label:              fr.Label,
			MinEmissionsTonnes: fr.MinEmissionsTonnes,
			MinRevenue:         fr.MinRevenue,
			MinEmployees:       fr.MinEmployees,
			MinCriteria:        fr.MinCriteria,
			EffectiveDate:      eff,
		})
	}
	return NewRuleTable(rules)
}

// LoadFile reads a YAML threshold file from disk.
func LoadFile(ctx context.Context, path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading threshold file %s: %w", path, err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading threshold file %s: %w", path, err)
	}

	logging.FromContext(ctx).Debug().
		Str("component", "compliance").
		Str("operation", "load_file").
		Str("path", path).
		Strs("jurisdictions", t.Jurisdictions()).
		Msg("threshold rules loaded")

	return t, nil
}

//nolint:gochecknoglobals // Parsed once from embedded data.
var defaultRules = sync.OnceValues(func() (*RuleTable, error) {
	return Parse(defaultThresholdsYAML)
})

// Default returns the table built from the embedded reference data.
func Default() (*RuleTable, error) {
	return defaultRules()
}
