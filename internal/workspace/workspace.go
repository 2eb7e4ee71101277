// Package workspace locates and initializes the peregrine workspace: a
// directory tree rooted where the `.peregrine/peregrinefile` marker
// lives. Everything under the root is indexable; everything under
// `.peregrine/` is derived data.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
)

const (
	// DataDirName is the workspace data directory at the root.
	DataDirName = ".peregrine"
	// MarkerFileName marks a data directory as a real workspace. It
	// lives inside the data dir.
	MarkerFileName = "peregrinefile"
	// HistoryFileName stores interactive shell history.
	HistoryFileName = "shell_history"
)

// ErrNotInitialized matches (via errors.Is) any workspace-not-found
// error raised by Find.
var ErrNotInitialized = perrors.New(perrors.ErrCodeWorkspaceNotFound,
	"workspace not initialized", nil)

// Workspace is a located workspace root.
type Workspace struct {
	Root string
}

// DataDir returns the `.peregrine` directory.
func (w *Workspace) DataDir() string {
	return filepath.Join(w.Root, DataDirName)
}

// MarkerPath returns the marker file path.
func (w *Workspace) MarkerPath() string {
	return filepath.Join(w.DataDir(), MarkerFileName)
}

// LogDir returns the workspace log directory.
func (w *Workspace) LogDir() string {
	return filepath.Join(w.DataDir(), "logs")
}

// HistoryPath returns the shell history file path.
func (w *Workspace) HistoryPath() string {
	return filepath.Join(w.DataDir(), HistoryFileName)
}

// Scope resolves path against the workspace root and rejects anything
// that escapes it. Relative paths are taken relative to the root. It
// returns the cleaned absolute path and the root-relative path.
func (w *Workspace) Scope(path string) (string, string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.Root, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(w.Root, abs)
	if err != nil {
		return "", "", perrors.PathError(perrors.ErrCodePathOutOfScope, path, err).
			WithDetail("root", w.Root)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", perrors.PathError(perrors.ErrCodePathOutOfScope, path, nil).
			WithDetail("root", w.Root)
	}
	return abs, rel, nil
}

// Init creates a workspace at dir. Re-initializing an intact workspace
// needs force, which resets the data dir (index, logs, history) and
// never touches user files. A data dir that lost its marker is reported
// as corrupt unless force rebuilds it.
func Init(dir string, force bool) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	w := &Workspace{Root: abs}
	dataDir := w.DataDir()
	marker := w.MarkerPath()

	switch {
	case fileExists(marker):
		if !force {
			return nil, perrors.New(perrors.ErrCodeWorkspaceExists,
				fmt.Sprintf("workspace already initialized at %s", abs), nil).
				WithSuggestion("pass --force to reset the index data")
		}
	case dirExists(dataDir):
		if !force {
			return nil, perrors.New(perrors.ErrCodeWorkspaceCorrupt,
				fmt.Sprintf("%s exists but its %s marker is missing", dataDir, MarkerFileName), nil).
				WithSuggestion("run init --force to rebuild it")
		}
	}

	if force {
		// Only derived state lives under the data dir.
		if err := os.RemoveAll(dataDir); err != nil {
			return nil, fmt.Errorf("failed to reset %s: %w", dataDir, err)
		}
	}

	if err := os.MkdirAll(w.LogDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dataDir, err)
	}
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", marker, err)
	}
	return w, nil
}

// Find walks upward from start looking for a workspace marker.
func Find(start string) (*Workspace, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	dir := abs
	for {
		if fileExists(filepath.Join(dir, DataDirName, MarkerFileName)) {
			return &Workspace{Root: dir}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, perrors.New(perrors.ErrCodeWorkspaceNotFound,
				fmt.Sprintf("no peregrine workspace found at %s or any parent", abs), nil).
				WithSuggestion("run 'peregrine init' at the directory you want indexed")
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
