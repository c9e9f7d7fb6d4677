package strategy

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/logging"
)

// FileVersion is the supported catalog file format version.
const FileVersion = 1

//go:embed defaults/strategies.yaml
var defaultStrategiesYAML []byte

type fileEntry struct {
	ID                 string  `yaml:"id"`
	Industry           string  `yaml:"industry"`
	Scope              int     `yaml:"scope"`
	Name               string  `yaml:"name"`
	Description        string  `yaml:"description"`
	Timeframe          string  `yaml:"timeframe"`
	Difficulty         string  `yaml:"difficulty"`
	Capex              float64 `yaml:"capex"`
	AnnualOpexSavings  float64 `yaml:"annual_opex_savings"`
	ReductionPotential float64 `yaml:"reduction_potential_kg"`
}

type fileData struct {
	Version    int         `yaml:"version"`
	Strategies []fileEntry `yaml:"strategies"`
}

// Parse decodes a YAML catalog file.
func Parse(data []byte) (*Catalog, error) {
	var fd fileData
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %w", ErrInvalidCatalog, err)
	}
	if fd.Version != 0 && fd.Version != FileVersion {
		return nil, fmt.Errorf("%w: unsupported file version %d", ErrInvalidCatalog, fd.Version)
	}

	entries := make([]Strategy, 0, len(fd.Strategies))
	for _, e := range fd.Strategies {
		entries = append(entries, Strategy{
			ID:                 e.ID,
			Industry:           e.Industry,
			Scope:              inventory.Scope(e.Scope),
			Name:               e.Name,
			Description:        e.Description,
			Timeframe:          e.Timeframe,
			Difficulty:         Difficulty(e.Difficulty),
			Capex:              e.Capex,
			AnnualOpexSavings:  e.AnnualOpexSavings,
			ReductionPotential: e.ReductionPotential,
		})
	}
	return NewCatalog(entries)
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(ctx context.Context, path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strategy catalog %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading strategy catalog %s: %w", path, err)
	}

	logging.FromContext(ctx).Debug().
		Str("component", "strategy").
		Str("operation", "load_file").
		Str("path", path).
		Int("strategies", c.Len()).
		Msg("strategy catalog loaded")

	return c, nil
}

//nolint:gochecknoglobals // Parsed once from embedded data.
var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultStrategiesYAML)
})

// Default returns the catalog built from the embedded reference data.
func Default() (*Catalog, error) {
	return defaultCatalog()
}
