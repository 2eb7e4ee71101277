package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and statistics",
		Long: `Display the state of the workspace index: record, name and keyword
counts, id allocator state, snapshot backend and size, and a full
consistency verification of every derived mapping.

Exits non-zero when the verification finds violations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	ws, err := openWorkspace(".")
	if err != nil {
		return err
	}
	cfg, _ := loadConfig(ws)

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

	info := collectStatus(ws.Root, resolveBackend(ws, cfg), st.Path(), tbl)

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		err = renderer.RenderJSON(info)
	} else {
		err = renderer.Render(info)
	}
	if err != nil {
		return err
	}

	if !info.Consistent {
		return fmt.Errorf("index has %d consistency violations", len(info.Violations))
	}
	return nil
}

// collectStatus gathers table statistics and runs the full verification.
func collectStatus(root, backend, snapPath string, tbl *index.Table) ui.StatusInfo {
	stats := tbl.Stats()
	check := tbl.Verify()

	violations := make([]string, 0, len(check.Inconsistencies))
	for _, v := range check.Inconsistencies {
		violations = append(violations, fmt.Sprintf("%s id=%d key=%s: %s", v.Type, v.ID, v.Key, v.Details))
	}

	return ui.StatusInfo{
		Root:          root,
		Backend:       backend,
		Records:       stats.Records,
		Names:         stats.Names,
		Keywords:      stats.Keywords,
		LastID:        stats.LastID,
		FreeIDs:       stats.FreeIDs,
		SnapshotPath:  snapPath,
		SnapshotSize:  fileSize(snapPath),
		SnapshotSaved: fileModTime(snapPath),
		Consistent:    len(check.Inconsistencies) == 0,
		Violations:    violations,
	}
}

// fileModTime returns the mtime of path, zero when it cannot be read.
func fileModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
