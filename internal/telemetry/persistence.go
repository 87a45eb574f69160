package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrSnapshotLoad classifies a snapshot file that existed but could not be
// read or parsed. The caller receives a usable default snapshot alongside
// it; the error is diagnostic, never fatal.
var ErrSnapshotLoad = errors.New("snapshot load failed")

// ErrSnapshotSave classifies a failed snapshot flush. In-memory state is
// never rolled back because a flush failed; the next cadence retries.
var ErrSnapshotSave = errors.New("snapshot save failed")

// FileStore persists the analytics aggregate as one JSON document.
type FileStore struct {
	path  string
	clock func() time.Time
}

// NewFileStore creates a snapshot store writing to the provided path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, clock: time.Now}
}

// Load recovers the persisted snapshot. A missing file is a fresh start,
// not an error. An unreadable or malformed file returns a default snapshot
// plus an ErrSnapshotLoad classification so callers can log the condition
// and proceed; missing fields inside a well-formed document fall back to
// their zero-value defaults individually.
func (f *FileStore) Load() (*Snapshot, error) {
	now := f.clock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewSnapshot(now), nil
		}
		return NewSnapshot(now), fmt.Errorf("%w: read %s: %v", ErrSnapshotLoad, f.path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return NewSnapshot(now), fmt.Errorf("%w: parse %s: %v", ErrSnapshotLoad, f.path, err)
	}

	snapshot.normalize(now)
	return &snapshot, nil
}

// Save writes the full snapshot, creating the data directory if absent and
// overwriting any previous document.
func (f *FileStore) Save(snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: snapshot is required", ErrSnapshotSave)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrSnapshotSave, dir, err)
		}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", ErrSnapshotSave, err)
	}

	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrSnapshotSave, f.path, err)
	}
	return nil
}
