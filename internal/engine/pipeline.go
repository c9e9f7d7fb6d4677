package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rshade/carbonscope/internal/compliance"
	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/greenops"
	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/logging"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/strategy"
)

// Request is one pipeline run. Unset organization fields, horizon and
// discount rate take the engine defaults.
type Request struct {
	Organization           scenario.OrgProfile `json:"organization"`
	Inputs                 inventory.Inputs    `json:"inputs"`
	SelectedStrategies     []string            `json:"selectedStrategies,omitempty"`
	ReductionTargetPercent *float64            `json:"reductionTargetPercent,omitempty"`
	// Recommend builds a greedy plan for the target. It excludes SelectedStrategies.
	Recommend    bool     `json:"recommend,omitempty"`
	HorizonYears int      `json:"horizonYears,omitempty"`
	DiscountRate *float64 `json:"discountRate,omitempty"`
	// AsOf is the classification date. Zero means now.
	AsOf time.Time `json:"asOf,omitzero"`
}

// Report is the output of every pipeline stage. Evaluation and Financial are
// nil when no strategies were selected.
type Report struct {
	Organization           scenario.OrgProfile        `json:"organization"`
	Inventory              inventory.Inventory        `json:"inventory"`
	Equivalencies          greenops.EquivalencyOutput `json:"equivalencies"`
	SelectedStrategies     []string                   `json:"selectedStrategies,omitempty"`
	ReductionTargetPercent *float64                   `json:"reductionTargetPercent,omitempty"`
	Evaluation             *strategy.Result           `json:"evaluation,omitempty"`
	Financial              *finance.Projection        `json:"financial,omitempty"`
	Classification         compliance.Classification  `json:"classification"`
}

// Payload converts the report into a scenario snapshot.
func (r Report) Payload(inputs inventory.Inputs) scenario.Payload {
	org := r.Organization
	inv := r.Inventory
	return scenario.Payload{
		Organization:           &org,
		Inputs:                 inputs,
		Inventory:              &inv,
		SelectedStrategies:     r.SelectedStrategies,
		ReductionTargetPercent: r.ReductionTargetPercent,
		Evaluation:             r.Evaluation,
		Financial:              r.Financial,
	}
}

// normalizeOrg fills defaults and canonicalizes codes.
func (e *Engine) normalizeOrg(org scenario.OrgProfile) scenario.OrgProfile {
	if strings.TrimSpace(org.Jurisdiction) == "" {
		org.Jurisdiction = e.defaults.Jurisdiction
	}
	org.Jurisdiction = factors.NormalizeJurisdiction(org.Jurisdiction)
	if org.ReportingYear == 0 {
		org.ReportingYear = e.now().Year()
	}
	if strings.TrimSpace(org.Industry) == "" {
		org.Industry = e.defaults.Industry
	}
	org.Industry = strategy.NormalizeIndustry(org.Industry)
	return org
}

// projectionSettings resolves and validates horizon and rate before any
// computation runs.
func (e *Engine) projectionSettings(req Request) (int, float64, error) {
	horizon := req.HorizonYears
	if horizon == 0 {
		horizon = e.defaults.HorizonYears
	}
	rate := e.defaults.DiscountRate
	if req.DiscountRate != nil {
		rate = *req.DiscountRate
	}
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, 0, fmt.Errorf("%w: %v (must be >= 0)", finance.ErrInvalidDiscountRate, rate)
	}
	if horizon < 1 || horizon > finance.MaxHorizonYears {
		return 0, 0, fmt.Errorf("%w: %d (must be 1..%d)", finance.ErrInvalidHorizon, horizon, finance.MaxHorizonYears)
	}
	return horizon, rate, nil
}

// Compute runs the whole pipeline without persisting anything.
func (e *Engine) Compute(ctx context.Context, req Request) (Report, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	if req.Recommend && len(req.SelectedStrategies) > 0 {
		return Report{}, fmt.Errorf("%w: %s", ErrConflictingRequest, strings.Join(req.SelectedStrategies, ", "))
	}
	horizon, rate, err := e.projectionSettings(req)
	if err != nil {
		return Report{}, err
	}
	var target float64
	if req.ReductionTargetPercent != nil {
		target = *req.ReductionTargetPercent
		if err := strategy.ValidateTarget(target); err != nil {
			return Report{}, err
		}
	}

	org := e.normalizeOrg(req.Organization)

	inv, err := inventory.Aggregate(e.factors, req.Inputs, org.Jurisdiction, org.ReportingYear)
	if err != nil {
		return Report{}, fmt.Errorf("aggregating inventory: %w", err)
	}

	equiv, err := greenops.Equivalencies(inv.GrandTotal)
	if err != nil {
		return Report{}, fmt.Errorf("computing equivalencies: %w", err)
	}

	report := Report{
		Organization:           org,
		Inventory:              inv,
		Equivalencies:          equiv,
		ReductionTargetPercent: req.ReductionTargetPercent,
	}

	switch {
	case req.Recommend:
		rec, err := strategy.Recommend(e.catalog, org.Industry, inv, target)
		if err != nil {
			return Report{}, fmt.Errorf("recommending strategies: %w", err)
		}
		report.SelectedStrategies = rec.StrategyIDs
		if len(rec.StrategyIDs) > 0 {
			report.Evaluation = &rec.Result
		}
	case len(req.SelectedStrategies) > 0:
		result, err := strategy.Evaluate(e.catalog, org.Industry, req.SelectedStrategies, inv, target)
		if err != nil {
			return Report{}, fmt.Errorf("evaluating strategies: %w", err)
		}
		report.SelectedStrategies = result.SelectedIDs()
		report.Evaluation = &result
	}

	if report.Evaluation != nil {
		b := report.Evaluation.Bundle
		projection, err := finance.Project(b.TotalCapex, b.TotalAnnualSavings, horizon, rate)
		if err != nil {
			return Report{}, fmt.Errorf("projecting cash flows: %w", err)
		}
		report.Financial = &projection
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = e.now()
	}
	report.Classification = e.rules.Classify(org.Jurisdiction, inv.GrandTotal,
		org.AnnualRevenue, org.EmployeeCount, asOf)

	evt := log.Debug().
		Str("component", "engine").
		Str("operation", "compute").
		Str("jurisdiction", org.Jurisdiction).
		Int("year", org.ReportingYear).
		Float64("grand_total_kg", inv.GrandTotal).
		Int("strategies", len(report.SelectedStrategies)).
		Int("mandatory_group", report.Classification.MandatoryGroup)
	if report.Evaluation != nil {
		evt = evt.Bool("target_met", report.Evaluation.Bundle.TargetMet)
	}
	evt.Int64("duration_ms", time.Since(start).Milliseconds()).Msg("pipeline computed")

	return report, nil
}

// ComputeAndSave runs the pipeline and stores the result as a new scenario.
func (e *Engine) ComputeAndSave(ctx context.Context, footprintID, name string, req Request) (scenario.Scenario, Report, error) {
	svc, err := e.requireScenarios()
	if err != nil {
		return scenario.Scenario{}, Report{}, err
	}

	report, err := e.Compute(ctx, req)
	if err != nil {
		return scenario.Scenario{}, Report{}, err
	}

	sc, err := svc.CreateScenario(ctx, footprintID, name, report.Payload(req.Inputs))
	if err != nil {
		return scenario.Scenario{}, Report{}, err
	}
	return sc, report, nil
}

// Recompute reruns the pipeline over a stored scenario's inputs and writes
// the derived fields back. The stored horizon and discount rate are reused
// when the scenario has a projection. An unreadable payload or one without
// inputs is rejected and the record is left untouched.
func (e *Engine) Recompute(ctx context.Context, id string) (scenario.Scenario, Report, []scenario.Warning, error) {
	svc, err := e.requireScenarios()
	if err != nil {
		return scenario.Scenario{}, Report{}, nil, err
	}

	stored, warnings, err := svc.GetScenario(ctx, id)
	if err != nil {
		return scenario.Scenario{}, Report{}, nil, err
	}
	for _, w := range warnings {
		if errors.Is(w, scenario.ErrMalformedPayload) {
			return scenario.Scenario{}, Report{}, warnings,
				fmt.Errorf("recomputing scenario %s: %w", id, w.Err)
		}
	}

	p := stored.Payload
	if len(p.Inputs) == 0 {
		return scenario.Scenario{}, Report{}, warnings,
			fmt.Errorf("%w: scenario %s has no inputs to recompute", scenario.ErrInvalidScenario, id)
	}
	req := Request{
		Inputs:                 p.Inputs,
		SelectedStrategies:     p.SelectedStrategies,
		ReductionTargetPercent: p.ReductionTargetPercent,
	}
	if p.Organization != nil {
		req.Organization = *p.Organization
	}
	if p.Financial != nil {
		req.HorizonYears = p.Financial.HorizonYears
		rate := p.Financial.DiscountRate
		req.DiscountRate = &rate
	}

	report, err := e.Compute(ctx, req)
	if err != nil {
		return scenario.Scenario{}, Report{}, warnings, err
	}

	org := report.Organization
	inv := report.Inventory
	patch := scenario.Patch{
		Organization: &org,
		Inventory:    &inv,
		Evaluation:   report.Evaluation,
		Financial:    report.Financial,
	}
	if report.Evaluation == nil && p.Evaluation != nil {
		patch.Clear = append(patch.Clear, scenario.FieldEvaluation)
	}
	if report.Financial == nil && p.Financial != nil {
		patch.Clear = append(patch.Clear, scenario.FieldFinancial)
	}

	updated, more, err := svc.UpdateScenario(ctx, id, patch)
	if err != nil {
		return scenario.Scenario{}, Report{}, warnings, err
	}
	return updated, report, append(warnings, more...), nil
}

// ClassifyCurrent classifies a footprint from its current scenario. A
// footprint without emissions is classified on a zero total in the default
// jurisdiction unless its latest snapshot names one.
func (e *Engine) ClassifyCurrent(ctx context.Context, footprintID string, asOf time.Time) (compliance.Classification, scenario.Current, error) {
	svc, err := e.requireScenarios()
	if err != nil {
		return compliance.Classification{}, scenario.Current{}, err
	}

	cur, err := svc.GetCurrent(ctx, footprintID)
	if err != nil {
		return compliance.Classification{}, scenario.Current{}, err
	}

	var org scenario.OrgProfile
	if cur.Scenario != nil && cur.Scenario.Payload.Organization != nil {
		org = *cur.Scenario.Payload.Organization
	}
	org = e.normalizeOrg(org)

	if asOf.IsZero() {
		asOf = e.now()
	}
	c := e.rules.Classify(org.Jurisdiction, cur.Inventory.GrandTotal, org.AnnualRevenue, org.EmployeeCount, asOf)

	logging.FromContext(ctx).Debug().
		Str("component", "engine").
		Str("operation", "classify_current").
		Str("footprint_id", footprintID).
		Bool("has_emissions", cur.HasEmissions).
		Int("mandatory_group", c.MandatoryGroup).
		Msg("footprint classified")

	return c, cur, nil
}
