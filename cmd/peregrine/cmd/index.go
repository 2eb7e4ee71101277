package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/peregrinehq/peregrine/internal/errors"
	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/indexer"
	"github.com/peregrinehq/peregrine/internal/logging"
	"github.com/peregrinehq/peregrine/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		prune bool
		noTUI bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index the workspace",
		Long: `Walk the workspace and bring the index up to date.

Unchanged files (same identity and modification time) are skipped.
Renames detected by identity keep their id and user keywords. Files
listed in .peregrineignore or the configured exclude patterns are
never visited.

With a path argument only that subtree is walked; the workspace is
still found by searching upward from it.`,
		Example: `  # Index the whole workspace
  peregrine index

  # Index one subtree
  peregrine index docs/reports

  # Drop records for files deleted outside of peregrine
  peregrine index --prune`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			return runIndex(ctx, cmd, target, prune, noTUI)
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Remove records for files that no longer exist on disk")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Plain line output instead of the progress TUI")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, target string, prune, noTUI bool) error {
	ws, err := openWorkspace(target)
	if err != nil {
		return err
	}

	cfg, cfgErr := loadConfig(ws)

	// File-only logging: the renderer owns the terminal.
	logCleanup, err := logging.SetupQuiet(workspaceLogFile(ws, cfg), cfg.Log.Level)
	if err == nil {
		defer logCleanup()
	}

	lock, err := acquireLock(ws)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	st, err := openStore(ws, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithWorkspaceDir(ws.Root),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	if cfgErr != nil {
		slog.Warn("config could not be loaded, using defaults", slog.String("error", cfgErr.Error()))
		renderer.AddError(ui.ErrorEvent{File: ".peregrine.yaml", Err: cfgErr, IsWarn: true})
	}

	tbl, existed, err := loadTable(ctx, st)
	if err != nil {
		if !existed {
			return err
		}
		// A snapshot that cannot be restored is rebuilt from disk rather
		// than blocking every future pass.
		slog.Warn("snapshot restore failed, rebuilding index from scratch",
			slog.String("error", err.Error()))
		renderer.AddError(ui.ErrorEvent{File: st.Path(), Err: err, IsWarn: true})
		tbl = index.NewTable()
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	start := time.Now()

	var total, current int
	ix, err := newIndexer(ws, cfg, tbl, func(rel string, res *indexer.Result, err error) {
		current++
		if err != nil {
			renderer.AddError(ui.ErrorEvent{File: rel, Err: err})
			return
		}
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageIndexing,
			Current:     current,
			Total:       total,
			CurrentFile: rel,
		})
	})
	if err != nil {
		return err
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "counting files"})
	total, err = ix.Count(ctx, absTarget)
	if err != nil {
		return err
	}
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Total: total})

	stats, err := ix.IndexTree(ctx, absTarget)
	if err != nil {
		return err
	}

	removed := 0
	if prune {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageIndexing,
			Current: current,
			Total:   total,
			Message: "pruning deleted files",
		})
		removed, err = ix.Reconcile(ctx, absTarget)
		if err != nil {
			return err
		}
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSaving, Message: "saving snapshot"})
	if err := st.Save(ctx, tbl.Snapshot()); err != nil {
		slog.Error("snapshot save failed", slog.Any("error", errors.FormatForLog(err)))
		return err
	}

	renderer.Complete(ui.CompletionStats{
		Files:     stats.Indexed,
		Added:     stats.Added,
		Updated:   stats.Updated,
		Moved:     stats.Moved,
		Unchanged: stats.Unchanged,
		Removed:   removed,
		Keywords:  tbl.Stats().Keywords,
		Duration:  time.Since(start),
		Errors:    stats.Failed,
	})

	slog.Info("index pass complete",
		slog.Int("files", stats.Indexed),
		slog.Int("added", stats.Added),
		slog.Int("updated", stats.Updated),
		slog.Int("moved", stats.Moved),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("removed", removed),
		slog.Int("failed", stats.Failed),
		slog.Duration("took", time.Since(start)))
	return nil
}
