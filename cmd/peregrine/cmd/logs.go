package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peregrinehq/peregrine/internal/logging"
	"github.com/peregrinehq/peregrine/internal/ui"
)

type logsOptions struct {
	follow bool
	lines  int
	level  string
	filter string
	file   string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View the workspace log file",
		Long: `Show or follow peregrine's log file.

Commands log to the workspace data directory, so running this inside a
workspace shows that workspace's entries. Outside a workspace it falls
back to the global log file that --debug writes to.`,
		Example: `  peregrine logs                  # last 50 entries
  peregrine logs -n 200           # last 200 entries
  peregrine logs -f               # follow new entries
  peregrine logs --level error    # errors only
  peregrine logs --filter watch   # entries matching a pattern`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow new log entries")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level to show (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show entries matching this pattern (regex)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file to read (overrides workspace resolution)")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	path := opts.file
	if path == "" {
		path = resolveLogFile()
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no log file at %s\nCommands write it on their next run; --debug logs outside a workspace too", path)
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		var err error
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	stdout := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: !ui.IsTTY(stdout) || ui.DetectNoColor(),
	}, stdout)

	// The banner goes to stderr so piped output stays pure entries.
	fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n", path)
	if opts.follow {
		fmt.Fprintln(cmd.ErrOrStderr(), "Following... (Ctrl-C to stop)")
	}

	if opts.follow {
		return followLogs(cmd, viewer, path)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

// resolveLogFile picks the workspace log when run inside one, honoring a
// configured override, and the global default otherwise.
func resolveLogFile() string {
	ws, err := openWorkspace(".")
	if err != nil {
		return logging.DefaultLogPath()
	}
	cfg, _ := loadConfig(ws)
	return workspaceLogFile(ws, cfg)
}

func followLogs(cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.Entry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
