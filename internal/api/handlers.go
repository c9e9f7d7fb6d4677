package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/rshade/carbonscope/internal/compare"
	"github.com/rshade/carbonscope/internal/compliance"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/greenops"
	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/strategy"
	"github.com/rshade/carbonscope/pkg/version"
)

// decodeBody reads a single JSON object from the request body. Unknown
// fields are rejected.
func decodeBody(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %w", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetVersion(),
	})
}

func (s *server) compute(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.engine.Compute(r.Context(), req)
	s.metrics.EngineRun("compute", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type inventoryRequest struct {
	Jurisdiction string           `json:"jurisdiction,omitempty"`
	Year         int              `json:"year,omitempty"`
	Inputs       inventory.Inputs `json:"inputs"`
}

type inventoryResponse struct {
	Inventory     inventory.Inventory        `json:"inventory"`
	Equivalencies greenops.EquivalencyOutput `json:"equivalencies"`
}

func (s *server) inventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	jurisdiction := req.Jurisdiction
	if strings.TrimSpace(jurisdiction) == "" {
		jurisdiction = s.engine.Defaults().Jurisdiction
	}
	year := req.Year
	if year == 0 {
		year = s.now().Year()
	}

	inv, err := inventory.Aggregate(s.engine.Factors(), req.Inputs, factors.NormalizeJurisdiction(jurisdiction), year)
	s.metrics.EngineRun("inventory", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	equiv, err := greenops.Equivalencies(inv.GrandTotal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inventoryResponse{Inventory: inv, Equivalencies: equiv})
}

func (s *server) industry(name string) string {
	if strings.TrimSpace(name) == "" {
		name = s.engine.Defaults().Industry
	}
	return strategy.NormalizeIndustry(name)
}

type strategyListResponse struct {
	Industry   string              `json:"industry"`
	Strategies []strategy.Strategy `json:"strategies"`
}

func (s *server) listStrategies(w http.ResponseWriter, r *http.Request) {
	industry := s.industry(r.URL.Query().Get("industry"))
	list := s.engine.Catalog().ForIndustry(industry)
	if list == nil {
		list = []strategy.Strategy{}
	}
	writeJSON(w, http.StatusOK, strategyListResponse{Industry: industry, Strategies: list})
}

type evaluateRequest struct {
	Industry      string              `json:"industry,omitempty"`
	StrategyIDs   []string            `json:"strategyIds"`
	TargetPercent float64             `json:"targetPercent"`
	Inventory     inventory.Inventory `json:"inventory"`
}

func (s *server) evaluateStrategies(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := strategy.Evaluate(s.engine.Catalog(), s.industry(req.Industry), req.StrategyIDs, req.Inventory, req.TargetPercent)
	s.metrics.EngineRun("evaluate", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type recommendRequest struct {
	Industry      string              `json:"industry,omitempty"`
	TargetPercent float64             `json:"targetPercent"`
	Inventory     inventory.Inventory `json:"inventory"`
}

func (s *server) recommendStrategies(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := strategy.Recommend(s.engine.Catalog(), s.industry(req.Industry), req.Inventory, req.TargetPercent)
	s.metrics.EngineRun("recommend", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type projectionRequest struct {
	Capex         float64  `json:"capex"`
	AnnualSavings float64  `json:"annualSavings"`
	HorizonYears  int      `json:"horizonYears,omitempty"`
	DiscountRate  *float64 `json:"discountRate,omitempty"`
}

type projectionResponse struct {
	finance.Projection
	ROIPercent   finance.Metric `json:"roiPercent"`
	PaybackYears finance.Metric `json:"paybackYears"`
}

func (s *server) project(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d := s.engine.Defaults()
	horizon := req.HorizonYears
	if horizon == 0 {
		horizon = d.HorizonYears
	}
	rate := d.DiscountRate
	if req.DiscountRate != nil {
		rate = *req.DiscountRate
	}

	p, err := finance.Project(req.Capex, req.AnnualSavings, horizon, rate)
	s.metrics.EngineRun("project", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectionResponse{
		Projection:   p,
		ROIPercent:   finance.ROIPercent(req.Capex, req.AnnualSavings),
		PaybackYears: finance.PaybackYears(req.Capex, req.AnnualSavings),
	})
}

type classifyRequest struct {
	Jurisdiction     string    `json:"jurisdiction,omitempty"`
	TotalEmissionsKg float64   `json:"totalEmissionsKg"`
	AnnualRevenue    *float64  `json:"annualRevenue,omitempty"`
	EmployeeCount    *int      `json:"employeeCount,omitempty"`
	AsOf             time.Time `json:"asOf,omitzero"`
}

func (s *server) classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TotalEmissionsKg < 0 {
		writeError(w, r, fmt.Errorf("%w: totalEmissionsKg must be >= 0", errBadRequest))
		return
	}
	jurisdiction := req.Jurisdiction
	if strings.TrimSpace(jurisdiction) == "" {
		jurisdiction = s.engine.Defaults().Jurisdiction
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}

	c := s.engine.Rules().Classify(factors.NormalizeJurisdiction(jurisdiction), req.TotalEmissionsKg,
		req.AnnualRevenue, req.EmployeeCount, asOf)
	s.metrics.EngineRun("classify", nil)
	writeJSON(w, http.StatusOK, c)
}

type scenarioResponse struct {
	Scenario scenario.Scenario  `json:"scenario"`
	Report   *engine.Report     `json:"report,omitempty"`
	Warnings []scenario.Warning `json:"warnings,omitempty"`
}

type scenarioListResponse struct {
	Scenarios []scenario.Scenario `json:"scenarios"`
	Warnings  []scenario.Warning  `json:"warnings,omitempty"`
}

func (s *server) recordWarnings(warnings []scenario.Warning) {
	for _, w := range warnings {
		s.metrics.Warning(w.Code)
	}
}

func (s *server) scenarios() (*scenario.Service, error) {
	svc := s.engine.Scenarios()
	if svc == nil {
		return nil, engine.ErrNoScenarioService
	}
	return svc, nil
}

func (s *server) listScenarios(w http.ResponseWriter, r *http.Request) {
	svc, err := s.scenarios()
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, warnings, err := svc.ListScenarios(r.Context(), mux.Vars(r)["footprintID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordWarnings(warnings)
	if list == nil {
		list = []scenario.Scenario{}
	}
	writeJSON(w, http.StatusOK, scenarioListResponse{Scenarios: list, Warnings: warnings})
}

// createScenarioRequest carries either a pipeline request to compute and
// store, or a ready payload to store as is.
type createScenarioRequest struct {
	Name    string            `json:"name"`
	Request *engine.Request   `json:"request,omitempty"`
	Payload *scenario.Payload `json:"payload,omitempty"`
}

func (s *server) createScenario(w http.ResponseWriter, r *http.Request) {
	var req createScenarioRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, r, err)
		return
	}
	footprintID := mux.Vars(r)["footprintID"]

	switch {
	case req.Request != nil && req.Payload != nil:
		writeError(w, r, fmt.Errorf("%w: set either request or payload, not both", errBadRequest))
	case req.Request != nil:
		sc, report, err := s.engine.ComputeAndSave(r.Context(), footprintID, req.Name, *req.Request)
		s.metrics.EngineRun("compute_and_save", err)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, scenarioResponse{Scenario: sc, Report: &report})
	default:
		svc, err := s.scenarios()
		if err != nil {
			writeError(w, r, err)
			return
		}
		var p scenario.Payload
		if req.Payload != nil {
			p = *req.Payload
		}
		sc, err := svc.CreateScenario(r.Context(), footprintID, req.Name, p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, scenarioResponse{Scenario: sc})
	}
}

func (s *server) getScenario(w http.ResponseWriter, r *http.Request) {
	svc, err := s.scenarios()
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc, warnings, err := svc.GetScenario(r.Context(), mux.Vars(r)["scenarioID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordWarnings(warnings)
	writeJSON(w, http.StatusOK, scenarioResponse{Scenario: sc, Warnings: warnings})
}

func (s *server) updateScenario(w http.ResponseWriter, r *http.Request) {
	svc, err := s.scenarios()
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: reading body: %w", errBadRequest, err))
		return
	}
	patch, err := scenario.ParsePatch(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc, warnings, err := svc.UpdateScenario(r.Context(), mux.Vars(r)["scenarioID"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordWarnings(warnings)
	writeJSON(w, http.StatusOK, scenarioResponse{Scenario: sc, Warnings: warnings})
}

func (s *server) deleteScenario(w http.ResponseWriter, r *http.Request) {
	svc, err := s.scenarios()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := svc.DeleteScenario(r.Context(), mux.Vars(r)["scenarioID"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) recompute(w http.ResponseWriter, r *http.Request) {
	sc, report, warnings, err := s.engine.Recompute(r.Context(), mux.Vars(r)["scenarioID"])
	s.metrics.EngineRun("recompute", err)
	s.recordWarnings(warnings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scenarioResponse{Scenario: sc, Report: &report, Warnings: warnings})
}

func (s *server) current(w http.ResponseWriter, r *http.Request) {
	svc, err := s.scenarios()
	if err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := svc.GetCurrent(r.Context(), mux.Vars(r)["footprintID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordWarnings(cur.Warnings)
	writeJSON(w, http.StatusOK, cur)
}

type classificationResponse struct {
	Classification compliance.Classification `json:"classification"`
	ScenarioID     string                    `json:"scenarioId,omitempty"`
	HasEmissions   bool                      `json:"hasEmissions"`
	Warnings       []scenario.Warning        `json:"warnings,omitempty"`
}

func (s *server) classifyCurrent(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if v := r.URL.Query().Get("asOf"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: asOf must be YYYY-MM-DD: %w", errBadRequest, err))
			return
		}
		asOf = t
	}
	if asOf.IsZero() {
		asOf = s.now()
	}

	c, cur, err := s.engine.ClassifyCurrent(r.Context(), mux.Vars(r)["footprintID"], asOf)
	s.metrics.EngineRun("classify_current", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordWarnings(cur.Warnings)
	resp := classificationResponse{Classification: c, HasEmissions: cur.HasEmissions, Warnings: cur.Warnings}
	if cur.Scenario != nil {
		resp.ScenarioID = cur.Scenario.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) compare(w http.ResponseWriter, r *http.Request) {
	svc, err := s.scenarios()
	if err != nil {
		writeError(w, r, err)
		return
	}
	var ids []string
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}

	table, err := compare.Compare(r.Context(), svc, ids)
	s.metrics.EngineRun("compare", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordWarnings(table.Warnings)
	writeJSON(w, http.StatusOK, table)
}
