package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/rshade/carbonscope/internal/logging"
	"github.com/rshade/carbonscope/internal/scenario"
)

// SQLiteSchemaVersion is the table layout version this build understands.
const SQLiteSchemaVersion = 1

// ErrUnsupportedSchema is returned when the database was written by a newer build.
var ErrUnsupportedSchema = errors.New("unsupported scenario database schema")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scenarios (
	id TEXT PRIMARY KEY,
	footprint_id TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scenarios_footprint ON scenarios(footprint_id, created_at, id);
`

const selectColumns = `SELECT id, footprint_id, name, created_at, updated_at, payload FROM scenarios`

// SQLite is a Store backed by a SQLite database file. A single connection
// serializes writers; Merge runs inside a transaction.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens or creates the database at path. ":memory:" is accepted.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	logger := logging.FromContext(ctx)

	if path == "" {
		return nil, fmt.Errorf("%w: sqlite store path is required", ErrUnsupportedDriver)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logger.Debug().
				Str("component", "storage").
				Err(err).
				Str("pragma", pragma).
				Msg("sqlite pragma not applied")
		}
	}

	s := &SQLite{db: db, path: path}
	if err := s.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating scenario schema: %w", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_version (version) VALUES (?)`, SQLiteSchemaVersion); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case version > SQLiteSchemaVersion:
		return fmt.Errorf("%w: database version %d, supported %d", ErrUnsupportedSchema, version, SQLiteSchemaVersion)
	}
	return nil
}

// Path returns the database path.
func (s *SQLite) Path() string { return s.path }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (scenario.Record, error) {
	var (
		rec              scenario.Record
		created, updated int64
		payload          string
	)
	if err := row.Scan(&rec.ID, &rec.FootprintID, &rec.Name, &created, &updated, &payload); err != nil {
		return scenario.Record{}, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	rec.Payload = json.RawMessage(payload)
	return rec, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create implements scenario.Repository.
func (s *SQLite) Create(ctx context.Context, rec scenario.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, footprint_id, name, created_at, updated_at, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FootprintID, rec.Name, rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(), string(rec.Payload))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", scenario.ErrAlreadyExists, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("inserting scenario: %w", err)
	}
	return nil
}

// Merge implements scenario.Repository.
func (s *SQLite) Merge(ctx context.Context, id string, req scenario.MergeRequest) (scenario.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scenario.Record{}, fmt.Errorf("beginning merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanRecord(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return scenario.Record{}, notFound(id)
	}
	if err != nil {
		return scenario.Record{}, fmt.Errorf("reading scenario: %w", err)
	}

	merged, err := applyMerge(rec, req)
	if err != nil {
		return scenario.Record{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE scenarios SET name = ?, updated_at = ?, payload = ? WHERE id = ?`,
		merged.Name, merged.UpdatedAt.UnixNano(), string(merged.Payload), id); err != nil {
		return scenario.Record{}, fmt.Errorf("updating scenario: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return scenario.Record{}, fmt.Errorf("committing merge: %w", err)
	}
	merged.UpdatedAt = time.Unix(0, merged.UpdatedAt.UnixNano()).UTC()
	return merged, nil
}

// Get implements scenario.Repository.
func (s *SQLite) Get(ctx context.Context, id string) (scenario.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return scenario.Record{}, notFound(id)
	}
	if err != nil {
		return scenario.Record{}, fmt.Errorf("reading scenario: %w", err)
	}
	return rec, nil
}

func (s *SQLite) query(ctx context.Context, query string, args ...any) ([]scenario.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scenarios: %w", err)
	}
	defer rows.Close()

	var out []scenario.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scenario: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scenarios: %w", err)
	}
	return out, nil
}

// ListByFootprint implements scenario.Repository.
func (s *SQLite) ListByFootprint(ctx context.Context, footprintID string) ([]scenario.Record, error) {
	return s.query(ctx, selectColumns+` WHERE footprint_id = ? ORDER BY created_at, id`, footprintID)
}

// ListAll implements scenario.Repository.
func (s *SQLite) ListAll(ctx context.Context) ([]scenario.Record, error) {
	return s.query(ctx, selectColumns+` ORDER BY created_at, id`)
}

// Put implements scenario.Repository.
func (s *SQLite) Put(ctx context.Context, rec scenario.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, footprint_id, name, created_at, updated_at, payload) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET footprint_id = excluded.footprint_id, name = excluded.name,
			created_at = excluded.created_at, updated_at = excluded.updated_at, payload = excluded.payload`,
		rec.ID, rec.FootprintID, rec.Name, rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(), string(rec.Payload))
	if err != nil {
		return fmt.Errorf("writing scenario: %w", err)
	}
	return nil
}

// Delete implements scenario.Repository.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting scenario: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting scenario: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// Close implements io.Closer.
func (s *SQLite) Close() error {
	return s.db.Close()
}
