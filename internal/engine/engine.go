// Package engine runs the emissions pipeline: activity inputs are aggregated
// into an inventory, selected strategies are evaluated against a reduction
// target, the bundle is projected over the planning horizon and the
// organization is classified against reporting thresholds. Results can be
// saved to, and recomputed from, scenario snapshots.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rshade/carbonscope/internal/compliance"
	"github.com/rshade/carbonscope/internal/config"
	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/logging"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/strategy"
)

// ErrNoScenarioService is returned by operations that need a scenario store
// when the Engine was built without one.
var ErrNoScenarioService = errors.New("engine has no scenario service")

// ErrConflictingRequest is returned when a request asks for a recommended
// plan and also names its own strategies.
var ErrConflictingRequest = errors.New("recommend cannot be combined with selected strategies")

// Defaults are applied to requests that leave a setting unset.
type Defaults struct {
	Jurisdiction string
	Industry     string
	HorizonYears int
	DiscountRate float64
}

// DefaultsFromConfig copies the engine section of cfg.
func DefaultsFromConfig(cfg config.EngineConfig) Defaults {
	return Defaults{
		Jurisdiction: cfg.DefaultJurisdiction,
		Industry:     cfg.DefaultIndustry,
		HorizonYears: cfg.HorizonYears,
		DiscountRate: cfg.DiscountRate,
	}
}

// Engine wires the reference data and the scenario service together.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	factors   factors.Lookup
	catalog   *strategy.Catalog
	rules     compliance.Classifier
	scenarios *scenario.Service
	defaults  Defaults
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for default reporting years and
// classification dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithScenarios attaches a scenario service.
func WithScenarios(s *scenario.Service) Option {
	return func(e *Engine) { e.scenarios = s }
}

// New creates an Engine. Zero-valued defaults fall back to GLOBAL, the general
// industry, the default horizon and a zero discount rate.
func New(lookup factors.Lookup, catalog *strategy.Catalog, rules compliance.Classifier, d Defaults, opts ...Option) *Engine {
	if d.Jurisdiction == "" {
		d.Jurisdiction = factors.Global
	}
	if d.Industry == "" {
		d.Industry = strategy.GeneralIndustry
	}
	if d.HorizonYears == 0 {
		d.HorizonYears = finance.DefaultHorizonYears
	}
	e := &Engine{
		factors:  lookup,
		catalog:  catalog,
		rules:    rules,
		defaults: d,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig loads reference data named by cfg.Reference, falling back to
// the embedded tables, and builds an Engine over repo. A nil repo leaves the
// scenario operations unavailable.
func NewFromConfig(ctx context.Context, cfg *config.Config, repo scenario.Repository, opts ...Option) (*Engine, error) {
	log := logging.FromContext(ctx)

	factorTable, err := loadOrDefault(ctx, cfg.Reference.FactorsFile, factors.LoadFile, factors.Default)
	if err != nil {
		return nil, fmt.Errorf("loading emission factors: %w", err)
	}
	catalog, err := loadOrDefault(ctx, cfg.Reference.StrategiesFile, strategy.LoadFile, strategy.Default)
	if err != nil {
		return nil, fmt.Errorf("loading strategy catalog: %w", err)
	}
	rules, err := loadOrDefault(ctx, cfg.Reference.ThresholdsFile, compliance.LoadFile, compliance.Default)
	if err != nil {
		return nil, fmt.Errorf("loading reporting thresholds: %w", err)
	}

	log.Debug().
		Str("component", "engine").
		Str("operation", "init").
		Int("factors", factorTable.Len()).
		Int("strategies", catalog.Len()).
		Strs("threshold_jurisdictions", rules.Jurisdictions()).
		Msg("reference data loaded")

	if repo != nil {
		opts = append([]Option{WithScenarios(scenario.NewService(repo))}, opts...)
	}
	return New(factorTable, catalog, rules, DefaultsFromConfig(cfg.Engine), opts...), nil
}

func loadOrDefault[T any](
	ctx context.Context,
	path string,
	load func(context.Context, string) (T, error),
	fallback func() (T, error),
) (T, error) {
	if path != "" {
		return load(ctx, path)
	}
	return fallback()
}

// Catalog returns the strategy catalog.
func (e *Engine) Catalog() *strategy.Catalog { return e.catalog }

// Factors returns the emission factor lookup.
func (e *Engine) Factors() factors.Lookup { return e.factors }

// Rules returns the compliance classifier.
func (e *Engine) Rules() compliance.Classifier { return e.rules }

// Scenarios returns the scenario service, or nil.
func (e *Engine) Scenarios() *scenario.Service { return e.scenarios }

// Defaults returns the applied defaults.
func (e *Engine) Defaults() Defaults { return e.defaults }

func (e *Engine) requireScenarios() (*scenario.Service, error) {
	if e.scenarios == nil {
		return nil, ErrNoScenarioService
	}
	return e.scenarios, nil
}
