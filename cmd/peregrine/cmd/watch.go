package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/indexer"
	"github.com/peregrinehq/peregrine/internal/logging"
	"github.com/peregrinehq/peregrine/internal/output"
	"github.com/peregrinehq/peregrine/internal/store"
	"github.com/peregrinehq/peregrine/internal/watcher"
	"github.com/peregrinehq/peregrine/internal/workspace"
)

func newWatchCmd() *cobra.Command {
	var poll bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index current as files change",
		Long: `Watch the workspace and fold filesystem changes into the index as
they happen.

The command starts with a catch-up pass over the whole tree, so changes
made while no watch was running are picked up first. After that it
applies debounced event batches: new and edited files are re-indexed,
renames keep their record and user keywords, and deleted files are
pruned. Edits to .peregrineignore take effect immediately.

The snapshot is saved after every batch that changed the index, so a
crash loses at most one debounce window. Stop with Ctrl-C.`,
		Example: `  # Watch the current workspace
  peregrine watch

  # Network or virtual filesystems where inotify is unreliable
  peregrine watch --poll`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, poll)
		},
	}

	cmd.Flags().BoolVar(&poll, "poll", false, "Poll for changes instead of using filesystem notifications")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, poll bool) error {
	out := output.New(cmd.OutOrStdout())

	ws, err := openWorkspace(".")
	if err != nil {
		return err
	}

	cfg, cfgErr := loadConfig(ws)
	if cfgErr != nil {
		out.Warningf("config not loaded, using defaults: %v", cfgErr)
	}

	// File-only logging: the event lines own the terminal.
	logCleanup, logErr := logging.SetupQuiet(workspaceLogFile(ws, cfg), cfg.Log.Level)
	if logErr == nil {
		defer logCleanup()
	}

	lock, err := acquireLock(ws)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(ws, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tbl, existed, err := loadTable(ctx, st)
	if err != nil {
		if !existed {
			return err
		}
		// Same policy as index: a snapshot that cannot be restored is
		// rebuilt from disk rather than blocking every future pass.
		out.Warningf("snapshot restore failed, rebuilding: %v", err)
		slog.Warn("snapshot restore failed, rebuilding index from scratch",
			slog.Any("error", perrors.FormatForLog(err)))
		tbl = index.NewTable()
	}

	ix, err := newIndexer(ws, cfg, tbl, nil)
	if err != nil {
		return err
	}

	// Catch up on everything that changed while no watch was running.
	out.Statusf("", "catching up on %s", ws.Root)
	stats, err := ix.IndexTree(ctx, ws.Root)
	if err != nil {
		return err
	}
	removed, err := ix.Reconcile(ctx, "")
	if err != nil {
		return err
	}
	if err := st.Save(ctx, tbl.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	out.Successf("caught up: %d added, %d updated, %d moved, %d removed",
		stats.Added, stats.Updated, stats.Moved, removed)

	w, err := watcher.New(watcher.Options{
		Debounce:        cfg.DebounceDuration(),
		ExcludePatterns: cfg.Paths.Exclude,
		DataDirName:     workspace.DataDirName,
		Poll:            poll,
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	sess := &watchSession{ws: ws, ix: ix, tbl: tbl, st: st, out: out}

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Start(ctx, ws.Root) }()

	out.Statusf("", "watching %s (Ctrl-C to stop)", ws.Root)
	out.Newline()
	slog.Info("watch started", slog.String("root", ws.Root), slog.Bool("poll", poll))

	events, errs := w.Events(), w.Errors()
	for {
		select {
		case batch, ok := <-events:
			if !ok {
				// The watcher shut down; Start has returned or is about to.
				if err := <-watchErr; err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				slog.Info("watch stopped")
				return sess.finish(context.Background())
			}
			sess.handleBatch(ctx, batch)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			out.Warningf("watch: %v", err)
			slog.Warn("watch error", slog.Any("error", perrors.FormatForLog(err)))
		}
	}
}

// watchSession applies debounced event batches to the index. dirty is
// set while the table holds changes the snapshot does not.
type watchSession struct {
	ws    *workspace.Workspace
	ix    *indexer.Indexer
	tbl   *index.Table
	st    store.Store
	out   *output.Writer
	dirty bool
}

// handleBatch folds one batch into the index and saves the snapshot if
// anything changed. Creates and modifies run before deletes so a rename
// split into delete+create within one batch reaches IndexFile while the
// old record still exists and keeps its id.
func (s *watchSession) handleBatch(ctx context.Context, batch []watcher.FileEvent) {
	changed := 0

	for _, ev := range batch {
		switch ev.Operation {
		case watcher.OpIgnoreChange:
			changed += s.applyIgnoreChange(ctx)
		case watcher.OpConfigChange:
			s.out.Warningf("%s changed; restart watch to apply it", displayPath(ev.Path))
			slog.Info("config file changed", slog.String("path", ev.Path))
		}
	}

	for _, ev := range batch {
		if ev.Operation == watcher.OpCreate || ev.Operation == watcher.OpModify {
			changed += s.applyUpsert(ctx, ev)
		}
	}

	for _, ev := range batch {
		if ev.Operation == watcher.OpDelete || ev.Operation == watcher.OpRename {
			changed += s.applyGone(ctx, ev.Path)
		}
	}

	if changed == 0 {
		return
	}
	s.dirty = true
	if err := s.st.Save(ctx, s.tbl.Snapshot()); err != nil {
		s.out.Warningf("snapshot save failed: %v", err)
		slog.Error("snapshot save failed", slog.Any("error", perrors.FormatForLog(err)))
		return
	}
	s.dirty = false
}

func (s *watchSession) applyUpsert(ctx context.Context, ev watcher.FileEvent) int {
	abs := filepath.Join(s.ws.Root, ev.Path)

	// The watcher only knows the global exclude patterns; ignore files
	// are checked here.
	if ignored, err := s.ix.IgnoredPath(abs, ev.IsDir); err == nil && ignored {
		return 0
	}

	if ev.IsDir {
		// A created directory may already hold files (unpacked archive,
		// tree moved in from outside); walk the whole subtree.
		stats, err := s.ix.IndexTree(ctx, abs)
		if err != nil {
			return 0
		}
		n := stats.Added + stats.Updated + stats.Moved
		if n > 0 {
			s.out.Statusf("+", "%s/ (%d files)", displayPath(ev.Path), n)
		}
		return n
	}

	res, err := s.ix.IndexFile(ctx, abs)
	if err != nil {
		// Created and deleted within one debounce window.
		if perrors.GetCode(err) == perrors.ErrCodePathNotFound {
			return 0
		}
		s.out.Warningf("%s: %v", displayPath(ev.Path), err)
		slog.Warn("index failed",
			slog.String("path", ev.Path),
			slog.Any("error", perrors.FormatForLog(err)))
		return 0
	}

	switch res.Action {
	case indexer.ActionAdded:
		s.out.Statusf("+", "%s (%d keywords)", displayPath(res.Path), res.Keywords)
	case indexer.ActionUpdated:
		s.out.Statusf("~", "%s (%d keywords)", displayPath(res.Path), res.Keywords)
	case indexer.ActionMoved:
		s.out.Statusf(">", "%s", displayPath(res.Path))
	default:
		return 0
	}
	return 1
}

func (s *watchSession) applyGone(ctx context.Context, rel string) int {
	abs := filepath.Join(s.ws.Root, rel)
	if _, err := os.Stat(abs); err == nil {
		// Still on disk: the rename's create half re-indexes it.
		return 0
	}

	if _, ok := s.tbl.IDForPath(rel); ok {
		if _, err := s.ix.Remove(abs); err != nil {
			return 0
		}
		s.out.Statusf("-", "%s", displayPath(rel))
		return 1
	}

	// Directories are not tracked themselves; sweep the records beneath.
	n, err := s.ix.Reconcile(ctx, abs)
	if err != nil || n == 0 {
		return 0
	}
	s.out.Statusf("-", "%s/ (%d files)", displayPath(rel), n)
	return n
}

// applyIgnoreChange re-evaluates every tracked path against the new
// rules, drops the ones now ignored and re-walks the tree for files the
// change un-ignored.
func (s *watchSession) applyIgnoreChange(ctx context.Context) int {
	s.ix.InvalidateIgnoreCache()

	var doomed []string
	s.tbl.ScanPaths(func(rel string, _ index.FileID) {
		ignored, err := s.ix.IgnoredPath(filepath.Join(s.ws.Root, rel), false)
		if err == nil && ignored {
			doomed = append(doomed, rel)
		}
	})
	for _, rel := range doomed {
		s.tbl.RemoveByPath(rel)
	}

	picked := 0
	stats, err := s.ix.IndexTree(ctx, s.ws.Root)
	if err != nil {
		s.out.Warningf("re-walk after ignore change failed: %v", err)
	} else {
		picked = stats.Added + stats.Updated + stats.Moved
	}

	s.out.Statusf("*", "ignore rules changed: %d dropped, %d picked up", len(doomed), picked)
	slog.Info("ignore rules changed",
		slog.Int("dropped", len(doomed)),
		slog.Int("picked_up", picked))
	return len(doomed) + picked
}

// finish writes the snapshot one last time if a per-batch save failed.
func (s *watchSession) finish(ctx context.Context) error {
	if !s.dirty {
		return nil
	}
	if err := s.st.Save(ctx, s.tbl.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func displayPath(rel string) string {
	return filepath.ToSlash(rel)
}
