package factors

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rshade/carbonscope/internal/greenops"
	"github.com/rshade/carbonscope/internal/logging"
)

// FileVersion is the supported reference file format version.
const FileVersion = 1

//go:embed defaults/factors.yaml
var defaultFactorsYAML []byte

// fileEntry is one YAML entry; Years expands it into several rows.
type fileEntry struct {
	Category     string  `yaml:"category"`
	Jurisdiction string  `yaml:"jurisdiction"`
	Year         int     `yaml:"year"`
	Years        []int   `yaml:"years"`
	Value        float64 `yaml:"value"`
	Unit         string  `yaml:"unit"`
	IsDefault    bool    `yaml:"is_default"`
	Source       string  `yaml:"source"`
}

type fileData struct {
	Version int         `yaml:"version"`
	Factors []fileEntry `yaml:"factors"`
}

// Parse decodes a YAML factor file and builds a Table. Values are normalized to
// kgCO2e per activity unit.
func Parse(data []byte) (*Table, error) {
	var fd fileData
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %w", ErrInvalidTable, err)
	}
	if fd.Version != 0 && fd.Version != FileVersion {
		return nil, fmt.Errorf("%w: unsupported file version %d", ErrInvalidTable, fd.Version)
	}

	var rows []EmissionFactor
	for i, e := range fd.Factors {
		unit, err := greenops.ParseFactorUnit(e.Unit)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d (%s): %w", ErrInvalidTable, i, e.Category, err)
		}

		years := e.Years
		if e.Year != 0 {
			years = append([]int{e.Year}, years...)
		}
		if len(years) == 0 {
			return nil, fmt.Errorf("%w: entry %d (%s): year or years is required",
				ErrInvalidTable, i, e.Category)
		}

		for _, y := range years {
			rows = append(rows, EmissionFactor{
				Category:     e.Category,
				Jurisdiction: e.Jurisdiction,
				Year:         y,
				ValuePerUnit: e.Value * unit.MassToKg,
				Unit:         unit.String(),
				IsDefault:    e.IsDefault,
				Source:       e.Source,
			})
		}
	}

	return NewTable(rows)
}

// LoadFile reads a YAML factor file from disk.
func LoadFile(ctx context.Context, path string) (*Table, error) {
	log := logging.FromContext(ctx)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading factor file %s: %w", path, err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading factor file %s: %w", path, err)
	}

	log.Debug().
		Str("component", "factors").
		Str("operation", "load_file").
		Str("path", path).
		Int("rows", t.Len()).
		Msg("emission factor table loaded")

	return t, nil
}

//nolint:gochecknoglobals // Parsed once from embedded data.
var defaultTable = sync.OnceValues(func() (*Table, error) {
	return Parse(defaultFactorsYAML)
})

// Default returns the table built from the embedded reference data.
func Default() (*Table, error) {
	return defaultTable()
}
