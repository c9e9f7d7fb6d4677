package engine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/carbonscope/internal/compliance"
	"github.com/rshade/carbonscope/internal/config"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/storage"
	"github.com/rshade/carbonscope/internal/strategy"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newEngine(t *testing.T, withStore bool) *engine.Engine {
	t.Helper()
	ft, err := factors.Default()
	require.NoError(t, err)
	cat, err := strategy.Default()
	require.NoError(t, err)
	rules, err := compliance.Default()
	require.NoError(t, err)

	opts := []engine.Option{engine.WithClock(func() time.Time { return testNow })}
	if withStore {
		opts = append(opts, engine.WithScenarios(scenario.NewService(storage.NewMemory())))
	}
	return engine.New(ft, cat, rules, engine.Defaults{
		Jurisdiction: "GLOBAL",
		Industry:     "general",
		HorizonYears: 5,
		DiscountRate: 0.07,
	}, opts...)
}

func auRequest() engine.Request {
	return engine.Request{
		Organization: scenario.OrgProfile{
			Jurisdiction:  "Australia",
			AnnualRevenue: ptr(600e6),
			EmployeeCount: ptr(600),
		},
		Inputs:                 inventory.Inputs{inventory.Electricity: 100000},
		SelectedStrategies:     []string{"led-lighting", "hvac-optimisation"},
		ReductionTargetPercent: ptr(20.0),
	}
}

func TestCompute(t *testing.T) {
	e := newEngine(t, false)

	report, err := e.Compute(context.Background(), auRequest())
	require.NoError(t, err)

	assert.Equal(t, "AU", report.Organization.Jurisdiction)
	assert.Equal(t, 2026, report.Organization.ReportingYear)
	assert.Equal(t, "general", report.Organization.Industry)

	assert.InDelta(t, 80000.0, report.Inventory.GrandTotal, 1e-9)
	assert.InDelta(t, 80000.0, report.Inventory.Scope2.Total, 1e-9)
	assert.True(t, report.Inventory.Consistent())
	assert.False(t, report.Equivalencies.IsEmpty)

	require.NotNil(t, report.Evaluation)
	assert.Equal(t, []string{"led-lighting", "hvac-optimisation"}, report.SelectedStrategies)
	assert.InDelta(t, 16500.0, report.Evaluation.Bundle.TotalReduction, 1e-9)
	assert.True(t, report.Evaluation.Bundle.TargetMet)

	require.NotNil(t, report.Financial)
	assert.Equal(t, 5, report.Financial.HorizonYears)
	assert.InDelta(t, 0.07, report.Financial.DiscountRate, 0)
	assert.InDelta(t, 23000.0, report.Financial.Capex, 1e-9)
	assert.InDelta(t, 7700.0, report.Financial.AnnualSavings, 1e-9)

	assert.Equal(t, 3, report.Classification.MandatoryGroup)
	assert.Equal(t, "Group 1", report.Classification.Label)
}

func TestComputeWithoutStrategies(t *testing.T) {
	e := newEngine(t, false)
	report, err := e.Compute(context.Background(), engine.Request{
		Inputs: inventory.Inputs{inventory.Electricity: 1000},
	})
	require.NoError(t, err)
	assert.Equal(t, factors.Global, report.Organization.Jurisdiction)
	assert.InDelta(t, 475.0, report.Inventory.GrandTotal, 1e-9)
	assert.Nil(t, report.Evaluation)
	assert.Nil(t, report.Financial)
	assert.True(t, report.Classification.Voluntary())
}

func TestComputeRecommend(t *testing.T) {
	e := newEngine(t, false)
	req := auRequest()
	req.SelectedStrategies = nil
	req.Recommend = true
	req.ReductionTargetPercent = ptr(50.0)

	report, err := e.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"renewable-ppa"}, report.SelectedStrategies)
	require.NotNil(t, report.Evaluation)
	assert.True(t, report.Evaluation.Bundle.TargetMet)
	require.NotNil(t, report.Financial)
	assert.False(t, report.Financial.PaybackYear.IsDefined())
}

func TestComputePreconditionsFailFirst(t *testing.T) {
	e := newEngine(t, false)
	bad := inventory.Inputs{"unicorns": 1}

	tests := []struct {
		name    string
		req     engine.Request
		wantErr error
	}{
		{"negative rate", engine.Request{Inputs: bad, DiscountRate: ptr(-0.1)}, finance.ErrInvalidDiscountRate},
		{"horizon", engine.Request{Inputs: bad, HorizonYears: 101}, finance.ErrInvalidHorizon},
		{"target", engine.Request{Inputs: bad, ReductionTargetPercent: ptr(120.0)}, strategy.ErrInvalidTarget},
		{"unknown category", engine.Request{Inputs: bad}, inventory.ErrUnknownCategory},
		{"unknown strategy", engine.Request{SelectedStrategies: []string{"teleportation"}}, strategy.ErrStrategyNotFound},
		{
			"recommend with selection",
			engine.Request{Inputs: bad, Recommend: true, SelectedStrategies: []string{"led-lighting"}},
			engine.ErrConflictingRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Compute(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestScenarioOperationsRequireStore(t *testing.T) {
	e := newEngine(t, false)
	ctx := context.Background()

	_, _, err := e.ComputeAndSave(ctx, "fp", "x", engine.Request{})
	require.ErrorIs(t, err, engine.ErrNoScenarioService)
	_, _, _, err = e.Recompute(ctx, "id")
	require.ErrorIs(t, err, engine.ErrNoScenarioService)
	_, _, err = e.ClassifyCurrent(ctx, "fp", time.Time{})
	assert.ErrorIs(t, err, engine.ErrNoScenarioService)
}

func TestComputeAndSaveThenCurrent(t *testing.T) {
	e := newEngine(t, true)
	ctx := context.Background()

	sc, report, err := e.ComputeAndSave(ctx, "acme", "Baseline", auRequest())
	require.NoError(t, err)
	require.NotNil(t, sc.Payload.Inventory)
	assert.InDelta(t, report.Inventory.GrandTotal, sc.Payload.Inventory.GrandTotal, 0)
	assert.Equal(t, scenario.SchemaVersion, sc.Payload.SchemaVersion)

	cur, err := e.Scenarios().GetCurrent(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, cur.HasEmissions)
	assert.Equal(t, sc.ID, cur.Scenario.ID)

	c, _, err := e.ClassifyCurrent(ctx, "acme", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, c.MandatoryGroup)
}

func TestClassifyCurrentWithoutEmissions(t *testing.T) {
	e := newEngine(t, true)
	c, cur, err := e.ClassifyCurrent(context.Background(), "empty", time.Time{})
	require.NoError(t, err)
	assert.False(t, cur.HasEmissions)
	assert.True(t, c.Voluntary())
	assert.Equal(t, factors.Global, c.Jurisdiction)
}

func TestRecompute(t *testing.T) {
	e := newEngine(t, true)
	ctx := context.Background()
	svc := e.Scenarios()

	sc, _, err := e.ComputeAndSave(ctx, "acme", "Baseline", auRequest())
	require.NoError(t, err)

	// Change the inputs and drop the strategies, then rederive.
	_, _, err = svc.UpdateScenario(ctx, sc.ID, scenario.Patch{
		Inputs:             inventory.Inputs{inventory.Electricity: 50000},
		SelectedStrategies: []string{},
	})
	require.NoError(t, err)

	updated, report, warnings, err := e.Recompute(ctx, sc.ID)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.InDelta(t, 40000.0, report.Inventory.GrandTotal, 1e-9)
	require.NotNil(t, updated.Payload.Inventory)
	assert.InDelta(t, 40000.0, updated.Payload.Inventory.GrandTotal, 1e-9)
	assert.Nil(t, updated.Payload.Evaluation, "stale evaluation is cleared")
	assert.Nil(t, updated.Payload.Financial)
}

func TestRecomputeRejectsUnusablePayloads(t *testing.T) {
	e := newEngine(t, true)
	ctx := context.Background()
	svc := e.Scenarios()

	baseline, _, err := e.ComputeAndSave(ctx, "acme", "Baseline", engine.Request{
		Organization: scenario.OrgProfile{Jurisdiction: "AU"},
		Inputs:       inventory.Inputs{inventory.Electricity: 1000},
	})
	require.NoError(t, err)

	broken := scenario.Record{
		ID:          "zz-broken",
		FootprintID: "acme",
		Name:        "Broken",
		CreatedAt:   testNow.Add(time.Hour),
		UpdatedAt:   testNow.Add(time.Hour),
		Payload:     json.RawMessage(`{not json`),
	}
	require.NoError(t, svc.Repository().Create(ctx, broken))

	_, _, warnings, err := e.Recompute(ctx, broken.ID)
	require.ErrorIs(t, err, scenario.ErrMalformedPayload)
	assert.NotEmpty(t, warnings)

	noInputs, err := svc.CreateScenario(ctx, "acme", "Draft", scenario.Payload{})
	require.NoError(t, err)
	_, _, _, err = e.Recompute(ctx, noInputs.ID)
	require.ErrorIs(t, err, scenario.ErrInvalidScenario)

	raw, err := svc.Repository().Get(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, `{not json`, string(raw.Payload))

	cur, err := svc.GetCurrent(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, cur.Scenario)
	assert.Equal(t, baseline.ID, cur.Scenario.ID)
	assert.InDelta(t, 800.0, cur.Inventory.GrandTotal, 1e-9)
}

func TestComputeAndSaveEmptyInputsKeepsBaseline(t *testing.T) {
	e := newEngine(t, true)
	ctx := context.Background()

	baseline, _, err := e.ComputeAndSave(ctx, "acme", "Baseline", engine.Request{
		Organization: scenario.OrgProfile{Jurisdiction: "AU"},
		Inputs:       inventory.Inputs{inventory.Electricity: 1000},
	})
	require.NoError(t, err)
	_, _, err = e.ComputeAndSave(ctx, "acme", "Empty", engine.Request{Inputs: inventory.Inputs{}})
	require.NoError(t, err)

	cur, err := e.Scenarios().GetCurrent(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, baseline.ID, cur.Scenario.ID)
	assert.InDelta(t, 800.0, cur.Inventory.GrandTotal, 1e-9)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Defaults()
	e, err := engine.NewFromConfig(context.Background(), cfg, storage.NewMemory())
	require.NoError(t, err)
	assert.NotNil(t, e.Scenarios())
	assert.Equal(t, "GLOBAL", e.Defaults().Jurisdiction)
	assert.Positive(t, e.Catalog().Len())

	cfg.Reference.FactorsFile = "/does/not/exist.yaml"
	_, err = engine.NewFromConfig(context.Background(), cfg, nil)
	assert.Error(t, err)
}
