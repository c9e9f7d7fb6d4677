// Package scenario persists named snapshots of an organization's accounting
// inputs and computed results, and resolves the footprint's current state.
//
// Updates are last-writer-wins with a field-level merge of top-level payload
// keys. There is no optimistic-concurrency token: two concurrent updates that
// set the same field leave whichever was committed last.
package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned for an unknown scenario id.
	ErrNotFound = errors.New("scenario not found")

	// ErrAlreadyExists is returned by Repository.Create for a duplicate id.
	ErrAlreadyExists = errors.New("scenario already exists")

	// ErrInvalidScenario is returned for invalid create or update requests.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrMalformedPayload marks a stored payload that cannot be decoded. It is
	// surfaced as a Warning, never as a failed read.
	ErrMalformedPayload = errors.New("malformed scenario payload")
)

// Record is the persisted form of a scenario. Payload is a canonical JSON object.
type Record struct {
	ID          string          `json:"id"`
	FootprintID string          `json:"footprintId"`
	Name        string          `json:"name"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Payload     json.RawMessage `json:"payload"`

	// ReplacedMalformed is set by Repository.Merge when the stored payload
	// could not be decoded and the merge started from an empty object.
	ReplacedMalformed bool `json:"-"`
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Payload = append(json.RawMessage(nil), r.Payload...)
	return r
}

// MergeRequest is a field-level update of one record.
type MergeRequest struct {
	Name *string
	// Fields are top-level payload keys to set. A JSON null clears a key's value.
	Fields    map[string]json.RawMessage
	UpdatedAt time.Time
}

// Repository is the persistence contract for scenario records.
//
// Merge must apply MergePayload and the timestamp as one atomic step.
// ListByFootprint returns records in creation order.
type Repository interface {
	Create(ctx context.Context, rec Record) error
	Merge(ctx context.Context, id string, req MergeRequest) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	ListByFootprint(ctx context.Context, footprintID string) ([]Record, error)
	Delete(ctx context.Context, id string) error

	// ListAll and Put exist for payload migrations. Put replaces a record wholesale.
	ListAll(ctx context.Context) ([]Record, error)
	Put(ctx context.Context, rec Record) error
}

// Warning codes.
const (
	WarnMalformedPayload = "malformed_scenario_payload"
	WarnOutdatedSchema   = "outdated_scenario_schema"
)

// Warning is a recoverable data-quality issue found while reading a scenario.
type Warning struct {
	Code       string `json:"code"`
	ScenarioID string `json:"scenarioId"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// Error implements error.
func (w Warning) Error() string {
	return fmt.Sprintf("%s: scenario %s: %s", w.Code, w.ScenarioID, w.Message)
}

// Unwrap returns the underlying error.
func (w Warning) Unwrap() error { return w.Err }

// Scenario is a decoded record.
type Scenario struct {
	ID          string    `json:"id"`
	FootprintID string    `json:"footprintId"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Payload     Payload   `json:"payload"`
}
