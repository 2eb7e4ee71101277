package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/peregrinehq/peregrine/internal/config"
	"github.com/peregrinehq/peregrine/internal/extract"
	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/indexer"
	"github.com/peregrinehq/peregrine/internal/logging"
	"github.com/peregrinehq/peregrine/internal/store"
	"github.com/peregrinehq/peregrine/internal/workspace"
)

// openWorkspace locates the workspace containing start. An empty start
// means the current directory.
func openWorkspace(start string) (*workspace.Workspace, error) {
	if start == "" {
		start = "."
	}
	return workspace.Find(start)
}

// loadConfig resolves configuration for the workspace. A broken config
// file must not brick read commands, so failures fall back to defaults;
// the caller decides whether to surface the error.
func loadConfig(ws *workspace.Workspace) (*config.Config, error) {
	cfg, err := config.Load(ws.Root)
	if err != nil {
		return config.NewConfig(), err
	}
	return cfg, nil
}

// resolveBackend picks the snapshot backend. An existing snapshot file
// wins so a configured backend switch cannot orphan saved data; config
// decides for fresh workspaces.
func resolveBackend(ws *workspace.Workspace, cfg *config.Config) string {
	if detected := store.DetectBackend(ws.DataDir()); detected != "" {
		return string(detected)
	}
	return cfg.Store.Backend
}

// openStore opens the workspace snapshot store.
func openStore(ws *workspace.Workspace, cfg *config.Config) (store.Store, error) {
	return store.NewStore(ws.DataDir(), resolveBackend(ws, cfg))
}

// loadTable restores the index table from the store. The bool reports
// whether a saved snapshot existed.
func loadTable(ctx context.Context, st store.Store) (*index.Table, bool, error) {
	snap, found, err := st.Load(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return index.NewTable(), false, nil
	}
	tbl, err := index.FromSnapshot(snap)
	if err != nil {
		return nil, true, fmt.Errorf("restore snapshot: %w", err)
	}
	return tbl, true, nil
}

// errNoIndex reports a workspace that was initialized but never indexed.
func errNoIndex(ws *workspace.Workspace) error {
	return fmt.Errorf("no index found in %s\nRun 'peregrine index' to create one", ws.Root)
}

// acquireLock takes the workspace write lock, failing fast when another
// process holds it. Callers defer Release.
func acquireLock(ws *workspace.Workspace) (*store.Lock, error) {
	lock := store.NewLock(ws.DataDir())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	return lock, nil
}

// workspaceLogFile returns the log path for the workspace, honoring a
// config override.
func workspaceLogFile(ws *workspace.Workspace, cfg *config.Config) string {
	if cfg.Log.File != "" {
		return cfg.Log.File
	}
	return logging.WorkspaceLogPath(ws.DataDir())
}

// newIndexer builds the workspace indexer from the resolved config.
func newIndexer(ws *workspace.Workspace, cfg *config.Config, tbl *index.Table, observe func(rel string, res *indexer.Result, err error)) (*indexer.Indexer, error) {
	return indexer.New(ws.Root, tbl, extract.NewDefault(), indexer.Options{
		ExcludePatterns: cfg.Paths.Exclude,
		MaxFileSize:     cfg.MaxFileSize(),
		DataDirName:     workspace.DataDirName,
		Observe:         observe,
	})
}

// fileSize returns the size of path, zero when it cannot be read.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
