package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
)

// LockFileName is the workspace write lock inside the data dir.
const LockFileName = "index.lock"

// Lock serializes index writers across processes. Readers never take it:
// WAL mode (sqlite) and atomic rename (file) keep them safe on their own.
type Lock struct {
	path string
	fl   *flock.Flock
	held bool
}

// NewLock creates the write lock for a workspace data dir. Nothing is
// acquired until Acquire.
func NewLock(dataDir string) *Lock {
	path := filepath.Join(dataDir, LockFileName)
	return &Lock{path: path, fl: flock.New(path)}
}

// Acquire takes the lock without blocking. A lock held elsewhere comes
// back as a retryable workspace error.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return perrors.New(perrors.ErrCodeWorkspaceLocked,
			"another peregrine is running against this workspace", nil).
			WithDetail("lock", l.path).
			WithSuggestion("wait for it to finish, or remove the lock file if that process is gone")
	}

	l.held = true
	return nil
}

// Release drops the lock. Safe to call on an unheld lock.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		l.held = false
		return fmt.Errorf("failed to release lock: %w", err)
	}
	l.held = false
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Held reports whether this process holds the lock.
func (l *Lock) Held() bool {
	return l.held
}
