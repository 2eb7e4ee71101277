package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
	"github.com/peregrinehq/peregrine/internal/output"
)

func newMetaCmd() *cobra.Command {
	var (
		add   []string
		rm    []string
		clear bool
	)

	cmd := &cobra.Command{
		Use:   "meta PATH",
		Short: "Manage user keywords on an indexed file",
		Long: `Attach, detach or clear user keywords on a tracked file.

User keywords search exactly like extracted ones but survive re-indexing:
a content change replaces the extracted keywords and leaves these alone.
They follow the file through renames too, as long as the rename is picked
up by identity.`,
		Example: `  # Tag a file
  peregrine meta docs/q3.txt --add urgent,budget

  # Untag
  peregrine meta docs/q3.txt --rm urgent

  # Remove every user keyword
  peregrine meta docs/q3.txt --clear`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeta(cmd.Context(), cmd, args[0], add, rm, clear)
		},
	}

	cmd.Flags().StringSliceVar(&add, "add", nil, "Keywords to attach (comma separated, flag may repeat)")
	cmd.Flags().StringSliceVar(&rm, "rm", nil, "Keywords to detach (comma separated, flag may repeat)")
	cmd.Flags().BoolVar(&clear, "clear", false, "Remove every user keyword from the file")
	cmd.MarkFlagsMutuallyExclusive("add", "rm", "clear")
	cmd.MarkFlagsOneRequired("add", "rm", "clear")

	return cmd
}

func runMeta(ctx context.Context, cmd *cobra.Command, path string, add, rm []string, clear bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	// The workspace is found from the file, not the working directory, so
	// 'peregrine meta ../other/ws/file.txt --add x' tags the right index.
	ws, err := openWorkspace(filepath.Dir(abs))
	if err != nil {
		return err
	}
	cfg, _ := loadConfig(ws)

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

	tbl, existed, err := loadTable(ctx, st)
	if err != nil {
		return err
	}
	if !existed {
		return errNoIndex(ws)
	}

	_, rel, err := ws.Scope(abs)
	if err != nil {
		return err
	}

	id, ok := tbl.IDForPath(rel)
	if !ok {
		return perrors.PathError(perrors.ErrCodePathNotFound, rel, nil).
			WithDetail("reason", "path is not tracked").
			WithSuggestion("index it first: peregrine index")
	}

	out := output.New(cmd.OutOrStdout())
	display := filepath.ToSlash(rel)

	switch {
	case len(add) > 0:
		words := cleanKeywords(add)
		if len(words) == 0 {
			return fmt.Errorf("--add needs at least one keyword")
		}
		tbl.AddUserKeywords(id, words)
		out.Successf("added %d keywords to %s", len(words), display)
	case len(rm) > 0:
		words := cleanKeywords(rm)
		if len(words) == 0 {
			return fmt.Errorf("--rm needs at least one keyword")
		}
		tbl.RemoveUserKeywords(id, words)
		out.Successf("removed %d keywords from %s", len(words), display)
	case clear:
		tbl.ClearUserKeywords(id)
		out.Successf("cleared user keywords from %s", display)
	}

	if kws, ok := tbl.UserKeywordsOf(id); ok && len(kws) > 0 {
		out.Hint("user keywords: " + strings.Join(kws, ", "))
	}

	if err := st.Save(ctx, tbl.Snapshot()); err != nil {
		return err
	}
	return nil
}

// cleanKeywords trims, lowercases and drops empty entries left by stray
// commas. Lowercasing keeps user keywords findable by the same queries
// that hit extracted ones.
func cleanKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
