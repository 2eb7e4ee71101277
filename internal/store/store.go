// Package store persists index snapshots. Two backends exist: a SQLite
// database (default) and a zstd-compressed JSON file. Both round-trip a
// snapshot exactly, mapping for mapping.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peregrinehq/peregrine/internal/index"
)

// Store persists and restores complete index snapshots.
type Store interface {
	// Save replaces the persisted snapshot with snap.
	Save(ctx context.Context, snap *index.Snapshot) error

	// Load returns the persisted snapshot. The bool is false when nothing
	// has been saved yet.
	Load(ctx context.Context) (*index.Snapshot, bool, error)

	// Path returns the backing file path.
	Path() string

	// Close releases the backend. Idempotent.
	Close() error
}

// Backend names a snapshot storage backend.
type Backend string

const (
	// BackendSQLite stores the snapshot in a SQLite database (default).
	// WAL mode keeps concurrent readers safe while one process writes.
	BackendSQLite Backend = "sqlite"

	// BackendFile stores the snapshot as one zstd-compressed JSON file.
	BackendFile Backend = "file"
)

// File names inside the workspace data dir.
const (
	sqliteFileName = "index.db"
	snapFileName   = "index.snap"
)

// NewStore creates a snapshot store inside dataDir using the named
// backend. An empty backend selects SQLite.
func NewStore(dataDir string, backend string) (Store, error) {
	switch backend {
	case string(BackendSQLite), "":
		return NewSQLiteStore(filepath.Join(dataDir, sqliteFileName))
	case string(BackendFile):
		return NewFileStore(filepath.Join(dataDir, snapFileName)), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s (valid options: sqlite, file)", backend)
	}
}

// DetectBackend reports which backend an existing workspace uses, based
// on which snapshot file is present. Returns "" when neither exists.
func DetectBackend(dataDir string) Backend {
	if fileExists(filepath.Join(dataDir, sqliteFileName)) {
		return BackendSQLite
	}
	if fileExists(filepath.Join(dataDir, snapFileName)) {
		return BackendFile
	}
	return ""
}

// IndexPath returns the snapshot file path the named backend uses.
func IndexPath(dataDir string, backend string) string {
	if backend == string(BackendFile) {
		return filepath.Join(dataDir, snapFileName)
	}
	return filepath.Join(dataDir, sqliteFileName)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
