package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rshade/carbonscope/internal/compare"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/factors"
	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/logging"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/strategy"
)

// errBadRequest marks undecodable request bodies and parameters.
var errBadRequest = errors.New("bad request")

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}

type errorClass struct {
	target error
	status int
	code   string
}

// errorClasses maps sentinels to responses. Precondition failures are 400,
// unknown scenarios 404, unresolvable references 422.
//
//nolint:gochecknoglobals // Fixed lookup table.
var errorClasses = []errorClass{
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{scenario.ErrInvalidScenario, http.StatusBadRequest, "invalid_scenario"},
	{inventory.ErrUnknownCategory, http.StatusBadRequest, "unknown_category"},
	{inventory.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{strategy.ErrInvalidTarget, http.StatusBadRequest, "invalid_target"},
	{finance.ErrInvalidDiscountRate, http.StatusBadRequest, "invalid_discount_rate"},
	{finance.ErrInvalidHorizon, http.StatusBadRequest, "invalid_horizon"},
	{finance.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{compare.ErrInvalidComparisonSize, http.StatusBadRequest, "invalid_comparison_size"},
	{engine.ErrConflictingRequest, http.StatusBadRequest, "conflicting_request"},
	{scenario.ErrNotFound, http.StatusNotFound, "scenario_not_found"},
	{scenario.ErrAlreadyExists, http.StatusConflict, "scenario_exists"},
	{strategy.ErrStrategyNotFound, http.StatusUnprocessableEntity, "strategy_not_found"},
	{factors.ErrFactorNotFound, http.StatusUnprocessableEntity, "factor_not_found"},
	{scenario.ErrMalformedPayload, http.StatusUnprocessableEntity, "malformed_scenario_payload"},
	{engine.ErrNoScenarioService, http.StatusServiceUnavailable, "scenarios_unavailable"},
}

func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	ctx := r.Context()
	log := logging.FromContext(ctx)

	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Str("operation", "write_error").
		Str("path", r.URL.Path).
		Int("status", status).
		Err(err).
		Msg("request failed")

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	traceID, _ := logging.TraceIDFromContext(ctx)
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: msg, TraceID: traceID}})
}
