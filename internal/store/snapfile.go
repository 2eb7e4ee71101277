package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/peregrinehq/peregrine/internal/index"
)

// FileStore persists snapshots as a single zstd-compressed JSON file.
// Saves go through a temp file plus rename, so readers never observe a
// half-written snapshot.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the snapshot atomically.
func (s *FileStore) Save(ctx context.Context, snap *index.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}
	compressed := enc.EncodeAll(raw, nil)
	_ = enc.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads and decodes the snapshot file. A missing file means no
// snapshot was saved yet. An undecodable file is cleared with a warning,
// the same way the SQLite backend treats corruption: the snapshot is
// derived state that reindexing rebuilds.
func (s *FileStore) Load(ctx context.Context) (*index.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	compressed, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return s.clearCorrupt(err)
	}

	var snap index.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return s.clearCorrupt(err)
	}
	return &snap, true, nil
}

func (s *FileStore) clearCorrupt(cause error) (*index.Snapshot, bool, error) {
	slog.Warn("snapshot file corrupted",
		slog.String("path", s.path),
		slog.String("error", cause.Error()))

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("snapshot corrupted at %s and cannot remove: %w (original error: %v)", s.path, err, cause)
	}

	slog.Info("snapshot file cleared",
		slog.String("path", s.path),
		slog.String("reason", "corruption detected, please reindex"))
	return nil, false, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Close is a no-op; the file is only open during Save and Load.
func (s *FileStore) Close() error {
	return nil
}
