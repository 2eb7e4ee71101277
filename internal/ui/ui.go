// Package ui renders indexing progress and workspace status to the
// terminal. Interactive terminals get a bubbletea TUI; pipes, CI and
// --no-tui get plain line output.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is one phase of an indexing pass.
type Stage int

const (
	// StageScanning is the counting walk that sizes the pass.
	StageScanning Stage = iota
	// StageIndexing is the walk that extracts and stores records.
	StageIndexing
	// StageSaving is the snapshot write at the end of the pass.
	StageSaving
	// StageComplete means the pass is done.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageIndexing:
		return "Indexing"
	case StageSaving:
		return "Saving"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageIndexing:
		return "INDEX"
	case StageSaving:
		return "SAVE"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is one progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent is a per-file error or warning surfaced during a pass.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a finished indexing pass.
type CompletionStats struct {
	Files     int
	Added     int
	Updated   int
	Moved     int
	Unchanged int
	Removed   int
	Keywords  int
	Duration  time.Duration
	Errors    int
	Warnings  int
}

// Renderer displays indexing progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates the progress display.
	UpdateProgress(event ProgressEvent)

	// AddError surfaces a per-file error or warning.
	AddError(event ErrorEvent)

	// Complete shows the final summary.
	Complete(stats CompletionStats)

	// Stop tears the renderer down.
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	WorkspaceDir string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain line output even on a TTY.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithWorkspaceDir sets the workspace path shown in the TUI header.
func WithWorkspaceDir(dir string) ConfigOption {
	return func(c *Config) { c.WorkspaceDir = dir }
}

// NewConfig builds a Config for the given output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the renderer for the environment: a TUI on an
// interactive terminal, plain line output for pipes, CI and --no-tui.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether we are running under a CI system.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
