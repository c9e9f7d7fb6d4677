package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/inventory"
)

// parseInputs turns repeated category=quantity flags into Inputs.
func parseInputs(values []string) (inventory.Inputs, error) {
	inputs := make(inventory.Inputs, len(values))
	for _, v := range values {
		key, raw, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q (want category=quantity)", v)
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in --input %q: %w", v, err)
		}
		inputs[key] += qty
	}
	return inputs, nil
}

// parseDate parses a YYYY-MM-DD flag value. Empty means zero time.
func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", v, err)
	}
	return t, nil
}

// requestFlags builds an engine.Request from flags and an optional file.
type requestFlags struct {
	file         string
	jurisdiction string
	industry     string
	year         int
	inputs       []string
	strategies   []string
	target       float64
	revenue      float64
	employees    int
	recommend    bool
	horizon      int
	rate         float64
	asOf         string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.file, "file", "f", "", "request file (YAML or JSON); flags override its fields")
	fs.StringVar(&f.jurisdiction, "jurisdiction", "", "jurisdiction code or name (default from config)")
	fs.StringVar(&f.industry, "industry", "", "industry code (default from config)")
	fs.IntVar(&f.year, "year", 0, "reporting year (default current year)")
	fs.StringArrayVar(&f.inputs, "input", nil, "activity quantity as category=quantity (repeatable)")
	fs.StringSliceVar(&f.strategies, "strategies", nil, "comma-separated strategy ids")
	fs.Float64Var(&f.target, "target", 0, "reduction target percent (0-100)")
	fs.Float64Var(&f.revenue, "revenue", 0, "annual revenue")
	fs.IntVar(&f.employees, "employees", 0, "employee count")
	fs.BoolVar(&f.recommend, "recommend", false, "pick strategies greedily to meet --target")
	fs.IntVar(&f.horizon, "horizon", 0, "projection horizon in years (default from config)")
	fs.Float64Var(&f.rate, "rate", 0, "discount rate as a fraction (default from config)")
	fs.StringVar(&f.asOf, "as-of", "", "classification date YYYY-MM-DD (default today)")
}

func (f *requestFlags) build(cmd *cobra.Command) (engine.Request, error) {
	var req engine.Request
	if f.file != "" {
		loaded, err := loadRequestFile(f.file)
		if err != nil {
			return engine.Request{}, err
		}
		req = loaded
	}

	changed := cmd.Flags().Changed
	if changed("jurisdiction") {
		req.Organization.Jurisdiction = f.jurisdiction
	}
	if changed("industry") {
		req.Organization.Industry = f.industry
	}
	if changed("year") {
		req.Organization.ReportingYear = f.year
	}
	if changed("revenue") {
		rev := f.revenue
		req.Organization.AnnualRevenue = &rev
	}
	if changed("employees") {
		n := f.employees
		req.Organization.EmployeeCount = &n
	}
	if changed("input") {
		inputs, err := parseInputs(f.inputs)
		if err != nil {
			return engine.Request{}, err
		}
		if req.Inputs == nil {
			req.Inputs = inventory.Inputs{}
		}
		for k, v := range inputs {
			req.Inputs[k] = v
		}
	}
	if changed("strategies") {
		req.SelectedStrategies = f.strategies
	}
	if changed("target") {
		t := f.target
		req.ReductionTargetPercent = &t
	}
	if changed("recommend") {
		req.Recommend = f.recommend
	}
	if changed("horizon") {
		req.HorizonYears = f.horizon
	}
	if changed("rate") {
		r := f.rate
		req.DiscountRate = &r
	}
	if changed("as-of") {
		asOf, err := parseDate(f.asOf)
		if err != nil {
			return engine.Request{}, err
		}
		req.AsOf = asOf
	}
	return req, nil
}

// loadRequestFile reads a request written as YAML or JSON. YAML is converted
// through JSON so both formats share the JSON field names.
func loadRequestFile(path string) (engine.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Request{}, fmt.Errorf("reading request file: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return engine.Request{}, fmt.Errorf("parsing request file %s: %w", path, err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return engine.Request{}, fmt.Errorf("converting request file %s: %w", path, err)
	}
	var req engine.Request
	if err := json.Unmarshal(asJSON, &req); err != nil {
		return engine.Request{}, fmt.Errorf("decoding request file %s: %w", path, err)
	}
	return req, nil
}
