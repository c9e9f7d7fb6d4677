package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rshade/carbonscope/internal/scenario"
)

// FileStoreVersion is the current schema version of the scenario file.
const FileStoreVersion = 1

const (
	lockMaxRetries = 50
	lockRetryDelay = 100 * time.Millisecond
	staleLockAge   = 30 * time.Second
)

// fileRecord keeps the payload as a string so stored bytes survive verbatim,
// including payloads that are not valid JSON.
type fileRecord struct {
	ID          string    `json:"id"`
	FootprintID string    `json:"footprint_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Payload     string    `json:"payload"`
}

type fileData struct {
	Version   int                    `json:"version"`
	Scenarios map[string]*fileRecord `json:"scenarios"`
}

// File is a Store persisted as one JSON document. Every operation re-reads
// the file. Writes hold a cross-process lockfile, so several processes may
// share it.
type File struct {
	mu       sync.RWMutex
	filePath string
}

// NewFile returns a File store at path. The file is created on first write.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: file store path is required", ErrUnsupportedDriver)
	}
	return &File{filePath: path}, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.filePath }

func (f *File) lockFilePath() string {
	return f.filePath + ".lock"
}

// acquireFileLock acquires a cross-process advisory lockfile and returns its
// release function.
func (f *File) acquireFileLock() (func(), error) {
	lockPath := f.lockFilePath()

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for range lockMaxRetries {
		lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(lf, "%d", os.Getpid())
			_ = lf.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}

		if removeStaleLock(lockPath, staleLockAge) {
			continue
		}
		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("could not acquire lock on %s after retries", lockPath)
}

// removeStaleLock removes a lock older than staleLockAge whose owner is gone.
// Returns true if the caller should retry immediately.
func removeStaleLock(lockPath string, age time.Duration) bool {
	info, statErr := os.Stat(lockPath)
	if statErr != nil || time.Since(info.ModTime()) <= age {
		return false
	}
	if isLockHeldByLiveProcess(lockPath) {
		return false
	}
	_ = os.Remove(lockPath)
	return true
}

func isLockHeldByLiveProcess(lockPath string) bool {
	pidData, readErr := os.ReadFile(lockPath)
	if readErr != nil || len(pidData) == 0 {
		return false
	}
	var pid int
	if _, scanErr := fmt.Sscanf(string(pidData), "%d", &pid); scanErr != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence only.
	return proc.Signal(syscall.Signal(0)) == nil
}

// update runs fn on the current file contents under the in-process write
// lock and the cross-process lockfile, then writes the result atomically.
func (f *File) update(fn func(*fileData) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := f.acquireFileLock()
	if err != nil {
		return fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlock()

	data, err := f.read()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return f.write(data)
}

// view runs fn on the last committed file contents. Writers replace the file
// by rename, so readers skip the lockfile and never wait on a writer.
func (f *File) view(fn func(*fileData) error) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := f.read()
	if err != nil {
		return err
	}
	return fn(data)
}

func (f *File) read() (*fileData, error) {
	raw, err := os.ReadFile(f.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &fileData{Version: FileStoreVersion, Scenarios: make(map[string]*fileRecord)}, nil
		}
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, f.filePath, err)
	}
	if data.Version != FileStoreVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (expected %d)",
			ErrCorrupted, data.Version, FileStoreVersion)
	}
	if data.Scenarios == nil {
		data.Scenarios = make(map[string]*fileRecord)
	}
	return &data, nil
}

func (f *File) write(data *fileData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling scenario file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.filePath), 0o750); err != nil {
		return fmt.Errorf("creating scenario file directory: %w", err)
	}

	tmpPath := f.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("writing scenario temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming scenario temp file: %w", err)
	}
	return nil
}

func toFileRecord(rec scenario.Record) *fileRecord {
	return &fileRecord{
		ID:          rec.ID,
		FootprintID: rec.FootprintID,
		Name:        rec.Name,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		Payload:     string(rec.Payload),
	}
}

func (r *fileRecord) record() scenario.Record {
	return scenario.Record{
		ID:          r.ID,
		FootprintID: r.FootprintID,
		Name:        r.Name,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Payload:     json.RawMessage(r.Payload),
	}
}

// Create implements scenario.Repository.
func (f *File) Create(_ context.Context, rec scenario.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	return f.update(func(d *fileData) error {
		if _, ok := d.Scenarios[rec.ID]; ok {
			return fmt.Errorf("%w: %s", scenario.ErrAlreadyExists, rec.ID)
		}
		d.Scenarios[rec.ID] = toFileRecord(rec)
		return nil
	})
}

// Merge implements scenario.Repository.
func (f *File) Merge(_ context.Context, id string, req scenario.MergeRequest) (scenario.Record, error) {
	var out scenario.Record
	err := f.update(func(d *fileData) error {
		fr, ok := d.Scenarios[id]
		if !ok {
			return notFound(id)
		}
		merged, err := applyMerge(fr.record(), req)
		if err != nil {
			return err
		}
		d.Scenarios[id] = toFileRecord(merged)
		out = merged
		return nil
	})
	return out, err
}

// Get implements scenario.Repository.
func (f *File) Get(_ context.Context, id string) (scenario.Record, error) {
	var out scenario.Record
	err := f.view(func(d *fileData) error {
		fr, ok := d.Scenarios[id]
		if !ok {
			return notFound(id)
		}
		out = fr.record()
		return nil
	})
	return out, err
}

// ListByFootprint implements scenario.Repository.
func (f *File) ListByFootprint(_ context.Context, footprintID string) ([]scenario.Record, error) {
	var out []scenario.Record
	err := f.view(func(d *fileData) error {
		for _, fr := range d.Scenarios {
			if fr.FootprintID == footprintID {
				out = append(out, fr.record())
			}
		}
		return nil
	})
	sortByCreation(out)
	return out, err
}

// ListAll implements scenario.Repository.
func (f *File) ListAll(_ context.Context) ([]scenario.Record, error) {
	var out []scenario.Record
	err := f.view(func(d *fileData) error {
		for _, fr := range d.Scenarios {
			out = append(out, fr.record())
		}
		return nil
	})
	sortByCreation(out)
	return out, err
}

// Put implements scenario.Repository.
func (f *File) Put(_ context.Context, rec scenario.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	return f.update(func(d *fileData) error {
		d.Scenarios[rec.ID] = toFileRecord(rec)
		return nil
	})
}

// Delete implements scenario.Repository.
func (f *File) Delete(_ context.Context, id string) error {
	return f.update(func(d *fileData) error {
		if _, ok := d.Scenarios[id]; !ok {
			return notFound(id)
		}
		delete(d.Scenarios, id)
		return nil
	})
}

// Close implements io.Closer.
func (f *File) Close() error { return nil }
