// Package storage provides scenario.Repository backends: an in-memory map,
// a lock-guarded JSON file and a SQLite database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rshade/carbonscope/internal/config"
	"github.com/rshade/carbonscope/internal/logging"
	"github.com/rshade/carbonscope/internal/scenario"
)

// ErrCorrupted indicates a backing file exists but cannot be read as a store.
var ErrCorrupted = errors.New("scenario store corrupted")

// ErrUnsupportedDriver is returned by Open for an unknown driver name.
var ErrUnsupportedDriver = errors.New("unsupported store driver")

// Store is a scenario repository that owns external resources.
type Store interface {
	scenario.Repository
	io.Closer
}

// Open creates the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	path := cfg.ResolvedPath()
	logger := logging.FromContext(ctx)
	logger.Debug().
		Str("component", "storage").
		Str("operation", "open").
		Str("driver", cfg.Driver).
		Str("path", path).
		Msg("opening scenario store")

	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverFile:
		return NewFile(path)
	case config.DriverSQLite, "":
		return NewSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// applyMerge is the merge step shared by every backend. It must run while the
// backend holds its write lock or transaction.
func applyMerge(rec scenario.Record, req scenario.MergeRequest) (scenario.Record, error) {
	merged, replaced, err := scenario.MergePayload(rec.Payload, req.Fields)
	if err != nil {
		return scenario.Record{}, err
	}
	rec.Payload = merged
	rec.ReplacedMalformed = replaced
	if req.Name != nil {
		rec.Name = *req.Name
	}
	if !req.UpdatedAt.IsZero() {
		rec.UpdatedAt = req.UpdatedAt
	}
	return rec, nil
}

func validateRecord(rec scenario.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record id is required", scenario.ErrInvalidScenario)
	}
	if rec.FootprintID == "" {
		return fmt.Errorf("%w: footprint id is required", scenario.ErrInvalidScenario)
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", scenario.ErrNotFound, id)
}
