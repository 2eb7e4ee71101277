package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peregrinehq/peregrine/configs"
	"github.com/peregrinehq/peregrine/internal/output"
	"github.com/peregrinehq/peregrine/internal/workspace"
	"github.com/peregrinehq/peregrine/pkg/version"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a peregrine workspace",
		Long: `Initialize a workspace rooted at path (default: current directory).

This command:
1. Creates the .peregrine data directory and workspace marker
2. Writes a .peregrine.yaml configuration template if none exists
3. Keeps .peregrine out of version control via .gitignore
4. Runs the first indexing pass

Re-initializing an existing workspace needs --force, which resets the
index data and never touches your files.`,
		Example: `  # Initialize the current directory
  peregrine init

  # Initialize another directory
  peregrine init ~/notes

  # Reset a broken or stale index
  peregrine init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(ctx, cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reset the index data of an existing workspace")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, dir string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("", "peregrine %s", version.Version)

	ws, err := workspace.Init(dir, force)
	if err != nil {
		return err
	}
	out.Successf("initialized workspace at %s", ws.Root)

	if err := writeConfigTemplate(out, ws.Root); err != nil {
		out.Warningf("could not create .peregrine.yaml: %v", err)
	}

	added, err := ensureGitignore(ws.Root)
	if err != nil {
		out.Warningf("could not update .gitignore: %v", err)
	} else if added {
		out.Success("added .peregrine/ to .gitignore")
	}

	out.Newline()
	if err := runIndex(ctx, cmd, ws.Root, false, false); err != nil {
		return fmt.Errorf("first index failed: %w", err)
	}

	out.Newline()
	out.Success("workspace ready")
	out.Hint("try: peregrine search <keyword>, or peregrine shell")
	return nil
}

// writeConfigTemplate creates a starter .peregrine.yaml from the embedded
// template. An existing project config is never overwritten.
func writeConfigTemplate(out *output.Writer, root string) error {
	yamlPath := filepath.Join(root, ".peregrine.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		out.Hint("existing .peregrine.yaml preserved")
		return nil
	}
	if _, err := os.Stat(filepath.Join(root, ".peregrine.yml")); err == nil {
		out.Hint("existing .peregrine.yml preserved")
		return nil
	}

	if err := os.WriteFile(yamlPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return err
	}
	out.Success("created .peregrine.yaml (optional project configuration)")
	return nil
}

// hasPeregrineIgnore reports whether .gitignore content already covers the
// data dir, in any of its spellings.
func hasPeregrineIgnore(content string) bool {
	patterns := map[string]bool{
		".peregrine":   true,
		".peregrine/":  true,
		"/.peregrine":  true,
		"/.peregrine/": true,
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if patterns[line] {
			return true
		}
	}
	return false
}

// ensureGitignore appends the data dir to .gitignore when missing. Returns
// whether an entry was added. A workspace without a .gitignore gets one.
func ensureGitignore(root string) (bool, error) {
	path := filepath.Join(root, ".gitignore")

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read .gitignore: %w", err)
	}
	if hasPeregrineIgnore(string(content)) {
		return false, nil
	}

	// Match the file's line endings; default to LF.
	ending := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		ending = "\r\n"
	}
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, []byte(ending)...)
	}

	entry := "# peregrine index data" + ending + ".peregrine/" + ending
	if len(content) > 0 {
		entry = ending + entry
	}
	content = append(content, []byte(entry)...)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write .gitignore: %w", err)
	}
	return true, nil
}
