package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rshade/carbonscope/internal/scenario"
)

// Memory is a process-local Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[string]scenario.Record
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]scenario.Record)}
}

// Create implements scenario.Repository.
func (m *Memory) Create(_ context.Context, rec scenario.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return fmt.Errorf("%w: %s", scenario.ErrAlreadyExists, rec.ID)
	}
	rec.ReplacedMalformed = false
	m.records[rec.ID] = rec.Clone()
	return nil
}

// Merge implements scenario.Repository.
func (m *Memory) Merge(_ context.Context, id string, req scenario.MergeRequest) (scenario.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return scenario.Record{}, notFound(id)
	}
	merged, err := applyMerge(rec, req)
	if err != nil {
		return scenario.Record{}, err
	}
	stored := merged.Clone()
	stored.ReplacedMalformed = false
	m.records[id] = stored
	return merged.Clone(), nil
}

// Get implements scenario.Repository.
func (m *Memory) Get(_ context.Context, id string) (scenario.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return scenario.Record{}, notFound(id)
	}
	return rec.Clone(), nil
}

// ListByFootprint implements scenario.Repository.
func (m *Memory) ListByFootprint(_ context.Context, footprintID string) ([]scenario.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []scenario.Record
	for _, rec := range m.records {
		if rec.FootprintID == footprintID {
			out = append(out, rec.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

// ListAll implements scenario.Repository.
func (m *Memory) ListAll(_ context.Context) ([]scenario.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]scenario.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	sortByCreation(out)
	return out, nil
}

// Put implements scenario.Repository.
func (m *Memory) Put(_ context.Context, rec scenario.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ReplacedMalformed = false
	m.records[rec.ID] = rec.Clone()
	return nil
}

// Delete implements scenario.Repository.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return notFound(id)
	}
	delete(m.records, id)
	return nil
}

// Close implements io.Closer.
func (m *Memory) Close() error { return nil }

func sortByCreation(recs []scenario.Record) {
	slices.SortFunc(recs, func(a, b scenario.Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
