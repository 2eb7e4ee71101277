package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.peregrine/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".peregrine", "logs")
	}
	return filepath.Join(home, ".peregrine", "logs")
}

// DefaultLogPath returns the default log path, used before a workspace is
// resolved or when running outside one.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "peregrine.log")
}

// WorkspaceLogPath returns the log path inside a workspace data directory.
// Commands that operate on a workspace log there so diagnostics travel with
// the index.
func WorkspaceLogPath(dataDir string) string {
	return filepath.Join(dataDir, "logs", "peregrine.log")
}
