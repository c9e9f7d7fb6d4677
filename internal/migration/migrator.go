// Package migration upgrades stored scenario payloads to the current schema
// version. Migrations rewrite payloads in place through the repository and
// keep each scenario's timestamps.
package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rshade/carbonscope/internal/logging"
	"github.com/rshade/carbonscope/internal/scenario"
)

// ErrNoStep is returned when no migration step accepts a payload version.
var ErrNoStep = errors.New("no migration step for schema version")

// step upgrades payloads whose version satisfies accepts to version to.
type step struct {
	accepts *semver.Constraints
	to      string
	apply   func(fields map[string]json.RawMessage) error
}

//nolint:gochecknoglobals // Ordered migration chain.
var steps = []step{
	{accepts: mustConstraint(">= 1.0.0, < 1.1.0"), to: "1.1.0", apply: liftOrganization},
}

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// Change is one planned payload upgrade.
type Change struct {
	ScenarioID  string `json:"scenarioId"`
	FootprintID string `json:"footprintId"`
	FromVersion string `json:"fromVersion"`
	ToVersion   string `json:"toVersion"`
}

// Skip is a scenario the migrator will not touch.
type Skip struct {
	ScenarioID string `json:"scenarioId"`
	Reason     string `json:"reason"`
}

// Plan lists what Run would do.
type Plan struct {
	Changes  []Change `json:"changes"`
	Skipped  []Skip   `json:"skipped,omitempty"`
	UpToDate int      `json:"upToDate"`
}

// Empty reports whether there is nothing to migrate.
func (p Plan) Empty() bool { return len(p.Changes) == 0 }

// Result summarizes a Run.
type Result struct {
	Migrated []Change `json:"migrated"`
	Skipped  []Skip   `json:"skipped,omitempty"`
	UpToDate int      `json:"upToDate"`
}

// Migrator upgrades every scenario in a repository.
type Migrator struct {
	repo scenario.Repository
}

// New creates a Migrator over repo.
func New(repo scenario.Repository) *Migrator {
	return &Migrator{repo: repo}
}

type planned struct {
	change  Change
	rec     scenario.Record
	payload json.RawMessage
}

func (m *Migrator) scan(ctx context.Context) ([]planned, Plan, error) {
	recs, err := m.repo.ListAll(ctx)
	if err != nil {
		return nil, Plan{}, fmt.Errorf("listing scenarios: %w", err)
	}

	var (
		plan Plan
		work []planned
	)
	for _, rec := range recs {
		upgraded, from, changed, err := Upgrade(rec.Payload)
		switch {
		case err != nil:
			plan.Skipped = append(plan.Skipped, Skip{ScenarioID: rec.ID, Reason: err.Error()})
		case !changed:
			plan.UpToDate++
		default:
			c := Change{ScenarioID: rec.ID, FootprintID: rec.FootprintID, FromVersion: from, ToVersion: scenario.SchemaVersion}
			plan.Changes = append(plan.Changes, c)
			work = append(work, planned{change: c, rec: rec, payload: upgraded})
		}
	}
	return work, plan, nil
}

// Plan reports which scenarios need an upgrade without writing anything.
func (m *Migrator) Plan(ctx context.Context) (Plan, error) {
	_, plan, err := m.scan(ctx)
	return plan, err
}

// Run upgrades every outdated scenario. Unreadable payloads are skipped and
// reported, never rewritten. Running again after success changes nothing.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	log := logging.FromContext(ctx)

	work, plan, err := m.scan(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Skipped: plan.Skipped, UpToDate: plan.UpToDate}
	for _, w := range work {
		rec := w.rec
		rec.Payload = w.payload
		if err := m.repo.Put(ctx, rec); err != nil {
			return res, fmt.Errorf("writing scenario %s: %w", rec.ID, err)
		}
		res.Migrated = append(res.Migrated, w.change)
		log.Info().
			Str("component", "migration").
			Str("operation", "run").
			Str("scenario_id", rec.ID).
			Str("from_version", w.change.FromVersion).
			Str("to_version", w.change.ToVersion).
			Msg("scenario payload migrated")
	}

	for _, s := range res.Skipped {
		log.Warn().
			Str("component", "migration").
			Str("scenario_id", s.ScenarioID).
			Str("reason", s.Reason).
			Msg("scenario payload skipped")
	}
	return res, nil
}

// RunInteractive prints the plan to out and asks for confirmation on in
// before running. A declined or unreadable answer migrates nothing.
func RunInteractive(ctx context.Context, m *Migrator, out io.Writer, in io.Reader) (Result, error) {
	plan, err := m.Plan(ctx)
	if err != nil {
		return Result{}, err
	}

	for _, s := range plan.Skipped {
		fmt.Fprintf(out, "Skipping %s: %s\n", s.ScenarioID, s.Reason)
	}
	if plan.Empty() {
		fmt.Fprintf(out, "All %d scenario(s) are at schema %s.\n", plan.UpToDate, scenario.SchemaVersion)
		return Result{Skipped: plan.Skipped, UpToDate: plan.UpToDate}, nil
	}

	for _, c := range plan.Changes {
		fmt.Fprintf(out, "  %s (%s): %s -> %s\n", c.ScenarioID, c.FootprintID, c.FromVersion, c.ToVersion)
	}
	fmt.Fprintf(out, "Migrate %d scenario(s) to schema %s? [y/N] ", len(plan.Changes), scenario.SchemaVersion)

	var response string
	if _, scanErr := fmt.Fscanln(in, &response); scanErr != nil {
		response = ""
	}
	response = strings.ToLower(strings.TrimSpace(response))

	if response != "y" && response != "yes" {
		fmt.Fprintln(out, "Migration skipped. Outdated scenarios remain readable with a warning.")
		return Result{Skipped: plan.Skipped, UpToDate: plan.UpToDate}, nil
	}

	res, err := m.Run(ctx)
	if err != nil {
		return res, fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(out, "Migration complete: %d scenario(s) upgraded.\n", len(res.Migrated))
	return res, nil
}

// Upgrade applies every step needed to bring payload to the current schema.
// It returns the canonical upgraded payload, the starting version and whether
// anything changed. Payloads that are not JSON objects, or whose version is
// unparsable or from another major, are rejected.
func Upgrade(payload json.RawMessage) (json.RawMessage, string, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, "", false, fmt.Errorf("%w: not a JSON object", scenario.ErrMalformedPayload)
	}

	from, err := versionOf(fields)
	if err != nil {
		return nil, "", false, err
	}
	current := semver.MustParse(scenario.SchemaVersion)
	if from.Major() != current.Major() {
		return nil, from.String(), false, fmt.Errorf("%w: schema version %s is not compatible with %s",
			scenario.ErrMalformedPayload, from, current)
	}
	if !from.LessThan(current) {
		return payload, from.String(), false, nil
	}

	v := from
	for v.LessThan(current) {
		s, ok := findStep(v)
		if !ok {
			return nil, from.String(), false, fmt.Errorf("%w: %s", ErrNoStep, v)
		}
		if err := s.apply(fields); err != nil {
			return nil, from.String(), false, fmt.Errorf("migrating %s to %s: %w", v, s.to, err)
		}
		v = semver.MustParse(s.to)
		fields[scenario.FieldSchemaVersion] = mustMarshal(s.to)
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, from.String(), false, fmt.Errorf("encoding migrated payload: %w", err)
	}
	return out, from.String(), true, nil
}

func versionOf(fields map[string]json.RawMessage) (*semver.Version, error) {
	raw, ok := fields[scenario.FieldSchemaVersion]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return semver.MustParse(scenario.LegacySchemaVersion), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: schema version is not a string", scenario.ErrMalformedPayload)
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: schema version %q: %w", scenario.ErrMalformedPayload, s, err)
	}
	return v, nil
}

func findStep(v *semver.Version) (step, bool) {
	for _, s := range steps {
		if s.accepts.Check(v) {
			return s, true
		}
	}
	return step{}, false
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
