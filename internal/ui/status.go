package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo is what `peregrine status` reports about a workspace.
type StatusInfo struct {
	Root    string `json:"root"`
	Backend string `json:"backend"`

	Records  int `json:"records"`
	Names    int `json:"names"`
	Keywords int `json:"keywords"`

	LastID  int64 `json:"last_id"`
	FreeIDs int   `json:"free_ids"`

	SnapshotPath  string    `json:"snapshot_path"`
	SnapshotSize  int64     `json:"snapshot_size"`
	SnapshotSaved time.Time `json:"snapshot_saved,omitempty"`

	Consistent bool     `json:"consistent"`
	Violations []string `json:"violations,omitempty"`
}

// StatusRenderer displays workspace status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes the human-readable status report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Workspace: "+info.Root))

	_, _ = fmt.Fprintln(r.out, "  Index:")
	_, _ = fmt.Fprintf(r.out, "    Records:  %d\n", info.Records)
	_, _ = fmt.Fprintf(r.out, "    Names:    %d\n", info.Names)
	_, _ = fmt.Fprintf(r.out, "    Keywords: %d\n", info.Keywords)
	_, _ = fmt.Fprintf(r.out, "    IDs:      last %d, %d free\n", info.LastID, info.FreeIDs)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Snapshot:")
	_, _ = fmt.Fprintf(r.out, "    Backend: %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "    Path:    %s\n", info.SnapshotPath)
	if info.SnapshotSize > 0 {
		_, _ = fmt.Fprintf(r.out, "    Size:    %s\n", FormatBytes(info.SnapshotSize))
	}
	if !info.SnapshotSaved.IsZero() {
		_, _ = fmt.Fprintf(r.out, "    Saved:   %s\n", formatAge(info.SnapshotSaved))
	}
	_, _ = fmt.Fprintln(r.out)

	if info.Consistent {
		_, _ = fmt.Fprintf(r.out, "  Consistency: %s\n", r.styles.Success.Render("ok"))
		return nil
	}
	_, _ = fmt.Fprintf(r.out, "  Consistency: %s\n", r.styles.Error.Render(fmt.Sprintf("%d violations", len(info.Violations))))
	for _, v := range info.Violations {
		_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Error.Render(v))
	}
	return nil
}

// RenderJSON writes the status as indented JSON for scripts.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// formatAge renders how long ago t was, falling back to the date for
// anything older than a week.
func formatAge(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		n := int(diff.Minutes())
		if n == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", n)
	case diff < 24*time.Hour:
		n := int(diff.Hours())
		if n == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", n)
	case diff < 7*24*time.Hour:
		n := int(diff.Hours() / 24)
		if n == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", n)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
