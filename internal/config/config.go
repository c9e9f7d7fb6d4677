// Package config loads carbonscope settings from ~/.carbonscope/config.yaml,
// an optional project overlay and CARBONSCOPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate and by Load for bad env overrides.
var ErrInvalidConfig = errors.New("invalid configuration")

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Environment variable names.
const (
	EnvHome         = "CARBONSCOPE_HOME"
	EnvLogLevel     = "CARBONSCOPE_LOG_LEVEL"
	EnvLogFormat    = "CARBONSCOPE_LOG_FORMAT"
	EnvStoreDriver  = "CARBONSCOPE_STORE_DRIVER"
	EnvStorePath    = "CARBONSCOPE_STORE_PATH"
	EnvDiscountRate = "CARBONSCOPE_DISCOUNT_RATE"
	EnvHorizonYears = "CARBONSCOPE_HORIZON_YEARS"
	EnvServerAddr   = "CARBONSCOPE_SERVER_ADDR"
)

const (
	configFileName    = "config.yaml"
	defaultDirName    = ".carbonscope"
	maxHorizonYears   = 100
	maxDiscountRate   = 1.0
	defaultServerAddr = "127.0.0.1:8080"
)

// Config is the full application configuration.
type Config struct {
	Output    OutputConfig    `yaml:"output"    json:"output"`
	Logging   LoggingConfig   `yaml:"logging"   json:"logging"`
	Engine    EngineConfig    `yaml:"engine"    json:"engine"`
	Store     StoreConfig     `yaml:"store"     json:"store"`
	Reference ReferenceConfig `yaml:"reference" json:"reference"`
	Server    ServerConfig    `yaml:"server"    json:"server"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	Precision     int    `yaml:"precision"      json:"precision"`
}

// LoggingConfig controls the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"          json:"level"`
	Format string `yaml:"format"         json:"format"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// EngineConfig holds calculation defaults.
type EngineConfig struct {
	DefaultJurisdiction string  `yaml:"default_jurisdiction" json:"default_jurisdiction"`
	DefaultIndustry     string  `yaml:"default_industry"     json:"default_industry"`
	HorizonYears        int     `yaml:"horizon_years"        json:"horizon_years"`
	DiscountRate        float64 `yaml:"discount_rate"        json:"discount_rate"`
}

// StoreConfig selects the scenario store backend. An empty Path uses a
// driver-specific file under the config directory.
type StoreConfig struct {
	Driver string `yaml:"driver"         json:"driver"`
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
}

// ReferenceConfig points at user-supplied reference data. Empty paths use the
// embedded defaults.
type ReferenceConfig struct {
	FactorsFile    string `yaml:"factors_file,omitempty"    json:"factors_file,omitempty"`
	StrategiesFile string `yaml:"strategies_file,omitempty" json:"strategies_file,omitempty"`
	ThresholdsFile string `yaml:"thresholds_file,omitempty" json:"thresholds_file,omitempty"`
}

// ServerConfig controls `carbonscope serve`.
type ServerConfig struct {
	Addr           string `yaml:"addr"            json:"addr"`
	MetricsEnabled bool   `yaml:"metrics_enabled" json:"metrics_enabled"`
}

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	return &Config{
		Output: OutputConfig{DefaultFormat: FormatTable, Precision: 2},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Engine: EngineConfig{
			DefaultJurisdiction: "GLOBAL",
			DefaultIndustry:     "general",
			HorizonYears:        5,
			DiscountRate:        0.07,
		},
		Store:  StoreConfig{Driver: DriverSQLite},
		Server: ServerConfig{Addr: defaultServerAddr, MetricsEnabled: true},
	}
}

// ResolveConfigDir returns $CARBONSCOPE_HOME, else ~/.carbonscope.
func ResolveConfigDir() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDirName
	}
	return filepath.Join(home, defaultDirName)
}

// DefaultConfigPath returns the global config file path.
func DefaultConfigPath() string {
	return filepath.Join(ResolveConfigDir(), configFileName)
}

// New loads the global config file, tolerating a missing or broken file, and
// applies environment overrides. Invalid overrides are ignored.
func New() *Config {
	cfg, err := Load(DefaultConfigPath())
	if err != nil {
		cfg = Defaults()
		_ = cfg.ApplyEnv()
	}
	return cfg
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays CARBONSCOPE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvDiscountRate); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvDiscountRate, v, err)
		}
		c.Engine.DiscountRate = rate
	}
	if v := os.Getenv(EnvHorizonYears); v != "" {
		years, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvHorizonYears, v, err)
		}
		c.Engine.HorizonYears = years
	}
	return nil
}

// Validate checks every section and reports all problems together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if !slices.Contains([]string{FormatTable, FormatJSON}, c.Output.DefaultFormat) {
		add("output.default_format %q must be table or json", c.Output.DefaultFormat)
	}
	if c.Output.Precision < 0 || c.Output.Precision > 10 {
		add("output.precision %d must be 0..10", c.Output.Precision)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil || c.Logging.Level == "" {
		add("logging.level %q is not a valid level", c.Logging.Level)
	}
	if !slices.Contains([]string{"console", "json", "text"}, c.Logging.Format) {
		add("logging.format %q must be console or json", c.Logging.Format)
	}
	if c.Engine.HorizonYears < 1 || c.Engine.HorizonYears > maxHorizonYears {
		add("engine.horizon_years %d must be 1..%d", c.Engine.HorizonYears, maxHorizonYears)
	}
	if c.Engine.DiscountRate < 0 || c.Engine.DiscountRate > maxDiscountRate {
		add("engine.discount_rate %v must be 0..%v", c.Engine.DiscountRate, maxDiscountRate)
	}
	if !slices.Contains([]string{DriverMemory, DriverFile, DriverSQLite}, c.Store.Driver) {
		add("store.driver %q must be memory, file or sqlite", c.Store.Driver)
	}
	if c.Server.Addr == "" {
		add("server.addr is required")
	}

	return errors.Join(errs...)
}

// Save writes the config as YAML, creating parent directories. The write is
// atomic via a temp file and rename.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming config temp file: %w", err)
	}
	return nil
}

// ResolvedPath returns Path, or the default file for the driver under the
// config directory. The memory driver has no path.
func (s StoreConfig) ResolvedPath() string {
	if s.Path != "" || s.Driver == DriverMemory {
		return s.Path
	}
	if s.Driver == DriverFile {
		return filepath.Join(ResolveConfigDir(), "scenarios.json")
	}
	return filepath.Join(ResolveConfigDir(), "carbonscope.db")
}
