package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rshade/carbonscope/internal/api"
	"github.com/rshade/carbonscope/internal/compliance"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/storage"
	"github.com/rshade/carbonscope/internal/strategy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

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
	return engine.New(ft, cat, rules, engine.Defaults{HorizonYears: 5, DiscountRate: 0.07}, opts...)
}

func newRouter(t *testing.T, withStore bool, opts ...api.Option) http.Handler {
	t.Helper()
	opts = append(opts, api.WithClock(func() time.Time { return testNow }))
	return api.NewRouter(newEngine(t, withStore), zerolog.Nop(), opts...)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const auCompute = `{
	"organization": {"jurisdiction": "Australia", "annualRevenue": 600000000, "employeeCount": 600},
	"inputs": {"electricity": 100000},
	"selectedStrategies": ["led-lighting", "hvac-optimisation"],
	"reductionTargetPercent": 20
}`

func TestHealth(t *testing.T) {
	h := newRouter(t, false)
	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get(api.TraceHeader))
}

func TestTraceHeaderEchoed(t *testing.T) {
	h := newRouter(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(api.TraceHeader, "trace-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(api.TraceHeader))
}

func TestCompute(t *testing.T) {
	h := newRouter(t, false)
	rec := do(t, h, http.MethodPost, "/v1/compute", auCompute)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[engine.Report](t, rec)
	assert.Equal(t, "AU", report.Organization.Jurisdiction)
	assert.InDelta(t, 80000.0, report.Inventory.GrandTotal, 1e-9)
	require.NotNil(t, report.Evaluation)
	assert.True(t, report.Evaluation.Bundle.TargetMet)
	require.NotNil(t, report.Financial)
	assert.Equal(t, 3, report.Classification.MandatoryGroup)
}

func TestErrorMapping(t *testing.T) {
	h := newRouter(t, false)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"bad json", http.MethodPost, "/v1/compute", `{`, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, "/v1/compute", `{"bogus":1}`, http.StatusBadRequest, "bad_request"},
		{"unknown category", http.MethodPost, "/v1/compute", `{"inputs":{"unicorns":1}}`,
			http.StatusBadRequest, "unknown_category"},
		{"negative quantity", http.MethodPost, "/v1/inventory", `{"inputs":{"electricity":-1}}`,
			http.StatusBadRequest, "invalid_quantity"},
		{"target out of range", http.MethodPost, "/v1/compute",
			`{"inputs":{"electricity":1},"reductionTargetPercent":150}`, http.StatusBadRequest, "invalid_target"},
		{"negative rate", http.MethodPost, "/v1/projections", `{"capex":1,"annualSavings":1,"discountRate":-0.1}`,
			http.StatusBadRequest, "invalid_discount_rate"},
		{"horizon too long", http.MethodPost, "/v1/projections", `{"capex":1,"annualSavings":1,"horizonYears":101}`,
			http.StatusBadRequest, "invalid_horizon"},
		{"unknown strategy", http.MethodPost, "/v1/compute",
			`{"inputs":{"electricity":1},"selectedStrategies":["teleportation"]}`,
			http.StatusUnprocessableEntity, "strategy_not_found"},
		{"recommend with selection", http.MethodPost, "/v1/compute",
			`{"inputs":{"electricity":1},"recommend":true,"selectedStrategies":["led-lighting"]}`,
			http.StatusBadRequest, "conflicting_request"},
		{"no store", http.MethodGet, "/v1/scenarios/abc", "", http.StatusServiceUnavailable, "scenarios_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[api.ErrorBody](t, rec)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.TraceID)
		})
	}
}

func TestInventoryEndpoint(t *testing.T) {
	h := newRouter(t, false)
	rec := do(t, h, http.MethodPost, "/v1/inventory", `{"jurisdiction":"au","inputs":{"electricity":100000}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Inventory struct {
			GrandTotal   float64 `json:"grandTotal"`
			Jurisdiction string  `json:"jurisdiction"`
			Year         int     `json:"year"`
		} `json:"inventory"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 80000.0, body.Inventory.GrandTotal, 1e-9)
	assert.Equal(t, "AU", body.Inventory.Jurisdiction)
	assert.Equal(t, 2026, body.Inventory.Year)
}

func TestStrategiesAndProjections(t *testing.T) {
	h := newRouter(t, false)

	rec := do(t, h, http.MethodGet, "/v1/strategies?industry=General", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Industry   string              `json:"industry"`
		Strategies []strategy.Strategy `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "general", list.Industry)
	assert.NotEmpty(t, list.Strategies)

	rec = do(t, h, http.MethodPost, "/v1/projections", `{"capex":1000,"annualSavings":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proj struct {
		HorizonYears int             `json:"horizonYears"`
		ROIPercent   json.RawMessage `json:"roiPercent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proj))
	assert.Equal(t, 5, proj.HorizonYears)
	assert.Contains(t, string(proj.ROIPercent), "not_applicable")
}

func TestClassifyEndpoint(t *testing.T) {
	h := newRouter(t, false)

	rec := do(t, h, http.MethodPost, "/v1/compliance/classify",
		`{"jurisdiction":"AU","totalEmissionsKg":80000,"annualRevenue":600000000,"employeeCount":600}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decode[compliance.Classification](t, rec)
	assert.Equal(t, 3, c.MandatoryGroup)

	rec = do(t, h, http.MethodPost, "/v1/compliance/classify", `{"totalEmissionsKg":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type scenarioBody struct {
	Scenario scenario.Scenario  `json:"scenario"`
	Warnings []scenario.Warning `json:"warnings"`
}

func createScenario(t *testing.T, h http.Handler, footprint, name string) scenario.Scenario {
	t.Helper()
	body := `{"name":"` + name + `","request":` + auCompute + `}`
	rec := do(t, h, http.MethodPost, "/v1/footprints/"+footprint+"/scenarios", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[scenarioBody](t, rec).Scenario
}

func TestScenarioLifecycle(t *testing.T) {
	h := newRouter(t, true)

	sc := createScenario(t, h, "fp-1", "baseline")
	require.NotEmpty(t, sc.ID)
	require.NotNil(t, sc.Payload.Inventory)

	rec := do(t, h, http.MethodGet, "/v1/scenarios/"+sc.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "baseline", decode[scenarioBody](t, rec).Scenario.Name)

	rec = do(t, h, http.MethodPatch, "/v1/scenarios/"+sc.ID, `{"name":"renamed","reductionTargetPercent":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[scenarioBody](t, rec).Scenario
	assert.Equal(t, "renamed", updated.Name)
	assert.Nil(t, updated.Payload.ReductionTargetPercent)
	require.NotNil(t, updated.Payload.Organization)
	assert.Equal(t, "AU", updated.Payload.Organization.Jurisdiction)

	rec = do(t, h, http.MethodPatch, "/v1/scenarios/"+sc.ID, `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/footprints/fp-1/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Scenarios []scenario.Scenario `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Scenarios, 1)

	rec = do(t, h, http.MethodPost, "/v1/scenarios/"+sc.ID+"/recompute", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/footprints/fp-1/classification?asOf=2026-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cls struct {
		Classification compliance.Classification `json:"classification"`
		ScenarioID     string                    `json:"scenarioId"`
		HasEmissions   bool                      `json:"hasEmissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cls))
	assert.True(t, cls.HasEmissions)
	assert.Equal(t, sc.ID, cls.ScenarioID)
	assert.Equal(t, 3, cls.Classification.MandatoryGroup)

	rec = do(t, h, http.MethodDelete, "/v1/scenarios/"+sc.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/scenarios/"+sc.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "scenario_not_found", decode[api.ErrorBody](t, rec).Error.Code)
}

func TestCreateScenarioFromPayload(t *testing.T) {
	h := newRouter(t, true)

	rec := do(t, h, http.MethodPost, "/v1/footprints/fp-2/scenarios",
		`{"name":"draft","payload":{"inputs":{"electricity":10}}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/footprints/fp-2/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cur := decode[scenario.Current](t, rec)
	assert.False(t, cur.HasEmissions)
	assert.Nil(t, cur.Scenario)

	rec = do(t, h, http.MethodPost, "/v1/footprints/fp-2/scenarios", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareEndpoint(t *testing.T) {
	h := newRouter(t, true)
	a := createScenario(t, h, "fp-1", "a")
	b := createScenario(t, h, "fp-1", "b")

	rec := do(t, h, http.MethodGet, "/v1/comparisons?ids="+a.ID+","+b.ID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var table struct {
		Columns []struct {
			ScenarioID string `json:"scenarioId"`
		} `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	require.Len(t, table.Columns, 2)
	assert.Equal(t, a.ID, table.Columns[0].ScenarioID)

	rec = do(t, h, http.MethodGet, "/v1/comparisons?ids="+a.ID, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_comparison_size", decode[api.ErrorBody](t, rec).Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := api.NewMetrics()
	h := newRouter(t, false, api.WithMetrics(m))

	do(t, h, http.MethodPost, "/v1/compute", auCompute)
	do(t, h, http.MethodPost, "/v1/compute", `{"inputs":{"unicorns":1}}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `carbonscope_http_requests_total{route="/v1/compute",status="200"} 1`)
	assert.Contains(t, out, `carbonscope_engine_runs_total{operation="compute",outcome="success"} 1`)
	assert.Contains(t, out, `carbonscope_engine_runs_total{operation="compute",outcome="rejected"} 1`)
}

func TestNotFoundRoute(t *testing.T) {
	h := newRouter(t, false)
	rec := do(t, h, http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := api.NewServer(ln.Addr().String(), newRouter(t, false))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Serve(ctx, srv, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestLoggingHandlerWritesAccessLines(t *testing.T) {
	var buf bytes.Buffer
	h := api.NewRouter(newEngine(t, false), zerolog.New(&buf))
	do(t, h, http.MethodGet, "/health", "")
	assert.Contains(t, buf.String(), "GET /health")
}
