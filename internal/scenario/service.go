package scenario

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/logging"
)

// Service implements the scenario operations over a Repository.
type Service struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides scenario id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a Service. Ids default to ULIDs.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		now:   time.Now,
		newID: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying repository.
func (s *Service) Repository() Repository { return s.repo }

// Current is the resolved current state of a footprint.
type Current struct {
	// Scenario is nil when no scenario has a computed inventory.
	Scenario     *Scenario           `json:"scenario,omitempty"`
	Inventory    inventory.Inventory `json:"inventory"`
	HasEmissions bool                `json:"hasEmissions"`
	Warnings     []Warning           `json:"warnings,omitempty"`
}

func (s *Service) logger(ctx context.Context, operation string) *zerolog.Logger {
	l := logging.FromContext(ctx).With().
		Str("component", "scenario").
		Str("operation", operation).
		Logger()
	return &l
}

// CreateScenario stores a new snapshot stamped with the current schema version.
func (s *Service) CreateScenario(ctx context.Context, footprintID, name string, p Payload) (Scenario, error) {
	footprintID = strings.TrimSpace(footprintID)
	name = strings.TrimSpace(name)
	if footprintID == "" {
		return Scenario{}, fmt.Errorf("%w: footprint id is required", ErrInvalidScenario)
	}
	if name == "" {
		return Scenario{}, fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}

	p.SchemaVersion = SchemaVersion
	data, err := p.Encode()
	if err != nil {
		return Scenario{}, err
	}

	now := s.now().UTC()
	rec := Record{
		ID:          s.newID(),
		FootprintID: footprintID,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
		Payload:     data,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return Scenario{}, fmt.Errorf("creating scenario: %w", err)
	}

	s.logger(ctx, "create").Info().
		Str("scenario_id", rec.ID).
		Str("footprint_id", footprintID).
		Msg("scenario created")

	return Scenario{
		ID:          rec.ID,
		FootprintID: rec.FootprintID,
		Name:        rec.Name,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Payload:     p,
	}, nil
}

// UpdateScenario merges the patch into the stored payload. Keys absent from
// the patch keep their stored values. An empty patch only bumps UpdatedAt.
func (s *Service) UpdateScenario(ctx context.Context, id string, patch Patch) (Scenario, []Warning, error) {
	fields, err := patch.Fields()
	if err != nil {
		return Scenario{}, nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return Scenario{}, nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidScenario)
	}

	rec, err := s.repo.Merge(ctx, id, MergeRequest{
		Name:      patch.Name,
		Fields:    fields,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return Scenario{}, nil, fmt.Errorf("updating scenario %s: %w", id, err)
	}

	log := s.logger(ctx, "update")
	var warnings []Warning
	if rec.ReplacedMalformed {
		w := Warning{
			Code:       WarnMalformedPayload,
			ScenarioID: rec.ID,
			Message:    "stored payload was unreadable and has been replaced by the update",
			Err:        ErrMalformedPayload,
		}
		log.Warn().Str("scenario_id", rec.ID).Str("code", w.Code).Msg(w.Message)
		warnings = append(warnings, w)
	}

	sc, more := s.decode(ctx, rec)
	warnings = append(warnings, more...)

	log.Debug().
		Str("scenario_id", rec.ID).
		Int("fields", len(fields)).
		Msg("scenario updated")

	return sc, warnings, nil
}

// GetScenario reads one scenario.
func (s *Service) GetScenario(ctx context.Context, id string) (Scenario, []Warning, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Scenario{}, nil, fmt.Errorf("getting scenario %s: %w", id, err)
	}
	sc, warnings := s.decode(ctx, rec)
	return sc, warnings, nil
}

// ListScenarios returns a footprint's scenarios in creation order.
func (s *Service) ListScenarios(ctx context.Context, footprintID string) ([]Scenario, []Warning, error) {
	recs, err := s.repo.ListByFootprint(ctx, footprintID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing scenarios for %s: %w", footprintID, err)
	}

	slices.SortStableFunc(recs, func(a, b Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	out := make([]Scenario, 0, len(recs))
	var warnings []Warning
	for _, rec := range recs {
		sc, w := s.decode(ctx, rec)
		out = append(out, sc)
		warnings = append(warnings, w...)
	}
	return out, warnings, nil
}

// GetCurrent selects the most recently updated scenario with a non-empty
// inventory. Ties on UpdatedAt go to the greater id. A footprint without one
// yields a zero inventory and HasEmissions false, not an error.
func (s *Service) GetCurrent(ctx context.Context, footprintID string) (Current, error) {
	scenarios, warnings, err := s.ListScenarios(ctx, footprintID)
	if err != nil {
		return Current{}, err
	}

	var best *Scenario
	for i := range scenarios {
		sc := &scenarios[i]
		if sc.Payload.Inventory == nil || sc.Payload.Inventory.IsEmpty() {
			continue
		}
		if best == nil || sc.UpdatedAt.After(best.UpdatedAt) ||
			(sc.UpdatedAt.Equal(best.UpdatedAt) && sc.ID > best.ID) {
			best = sc
		}
	}

	if best == nil {
		return Current{Inventory: inventory.Empty("", 0), Warnings: warnings}, nil
	}
	return Current{
		Scenario:     best,
		Inventory:    *best.Payload.Inventory,
		HasEmissions: true,
		Warnings:     warnings,
	}, nil
}

// DeleteScenario removes one snapshot.
func (s *Service) DeleteScenario(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting scenario %s: %w", id, err)
	}
	s.logger(ctx, "delete").Info().Str("scenario_id", id).Msg("scenario deleted")
	return nil
}

// decode converts a record. DecodePayload errors always wrap ErrMalformedPayload
// and are downgraded to a warning with an empty payload.
func (s *Service) decode(ctx context.Context, rec Record) (Scenario, []Warning) {
	sc := Scenario{
		ID:          rec.ID,
		FootprintID: rec.FootprintID,
		Name:        rec.Name,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}

	p, outdated, err := DecodePayload(rec.Payload)
	if err != nil {
		s.logger(ctx, "decode").Warn().Err(err).
			Str("scenario_id", rec.ID).
			Str("code", WarnMalformedPayload).
			Msg("scenario payload unreadable, using empty payload")
		return sc, []Warning{{
			Code:       WarnMalformedPayload,
			ScenarioID: rec.ID,
			Message:    err.Error(),
			Err:        err,
		}}
	}

	sc.Payload = p
	if outdated {
		return sc, []Warning{{
			Code:       WarnOutdatedSchema,
			ScenarioID: rec.ID,
			Message:    fmt.Sprintf("payload schema %s predates %s; run scenario migrate", versionOf(p), SchemaVersion),
		}}
	}
	return sc, nil
}

func versionOf(p Payload) string {
	if p.SchemaVersion == "" {
		return LegacySchemaVersion
	}
	return p.SchemaVersion
}
