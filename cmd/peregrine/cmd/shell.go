package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/logging"
	"github.com/peregrinehq/peregrine/internal/output"
	"github.com/peregrinehq/peregrine/internal/shell"
	"github.com/peregrinehq/peregrine/internal/ui"
)

func newShellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Explore the index interactively",
		Long: `Start an interactive session over the workspace index.

The shell keeps the index in memory between commands, so repeated
searches skip the snapshot load that each one-shot invocation pays. It
has a cursor for moving around the tree (cd, ls), find for composite
keyword search, and meta/index commands that save the snapshot after
every change.

Type help at the prompt for the command list. Exit with exit, quit or
Ctrl-D.`,
		Example: `  peregrine shell`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runShell(ctx, cmd)
		},
	}

	return cmd
}

func runShell(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	ws, err := openWorkspace(".")
	if err != nil {
		return err
	}

	cfg, cfgErr := loadConfig(ws)
	if cfgErr != nil {
		out.Warningf("config not loaded, using defaults: %v", cfgErr)
	}

	// File-only logging: liner owns the terminal.
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
		// The shell can rebuild from inside (index command), so a broken
		// snapshot starts an empty session instead of refusing to run.
		out.Warningf("snapshot restore failed, starting with an empty index: %v", err)
		slog.Warn("snapshot restore failed",
			slog.Any("error", perrors.FormatForLog(err)))
		tbl = index.NewTable()
	}

	ix, err := newIndexer(ws, cfg, tbl, nil)
	if err != nil {
		return err
	}

	sh := shell.New(ws, tbl, ix, shell.Options{
		HistorySize: cfg.Shell.HistorySize,
		Output:      cmd.OutOrStdout(),
		NoColor:     ui.DetectNoColor(),
		Save: func() error {
			// Background: a Ctrl-C that ends the session must not abort
			// the save of a mutation that already happened.
			return st.Save(context.Background(), tbl.Snapshot())
		},
	})

	return sh.Run(ctx)
}
