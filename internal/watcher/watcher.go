// Package watcher turns filesystem activity into debounced batches of
// file events for watch mode. fsnotify is the primary mechanism; a
// polling scanner covers filesystems without change notification.
package watcher

import (
	"context"
	"time"
)

// Operation classifies a file system event.
type Operation int

const (
	// OpCreate is a new file or directory.
	OpCreate Operation = iota
	// OpModify is a content change to an existing file.
	OpModify
	// OpDelete is a removed file or directory.
	OpDelete
	// OpRename is the old path of a rename. The new path arrives as its
	// own OpCreate.
	OpRename
	// OpIgnoreChange is an edit to an ignore file. Consumers should drop
	// cached ignore rules and re-walk.
	OpIgnoreChange
	// OpConfigChange is an edit to the project config file.
	OpConfigChange
)

// String returns the operation name for logs.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpIgnoreChange:
		return "IGNORE_CHANGE"
	case OpConfigChange:
		return "CONFIG_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed filesystem change.
type FileEvent struct {
	// Path is workspace-relative.
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Watcher delivers debounced batches of file events.
type Watcher interface {
	// Start watches root recursively until the context is cancelled or
	// Stop is called. It blocks.
	Start(ctx context.Context, root string) error

	// Stop shuts the watcher down. Safe to call more than once.
	Stop() error

	// Events returns the batch channel, closed on stop.
	Events() <-chan []FileEvent

	// Errors returns non-fatal watcher errors, closed on stop.
	Errors() <-chan error
}

// Options configures a watcher.
type Options struct {
	// Debounce is how long to coalesce events before emitting a batch.
	Debounce time.Duration

	// Poll forces the polling watcher even where fsnotify works.
	Poll bool

	// PollInterval is the scan period for the polling watcher.
	PollInterval time.Duration

	// BufferSize is the batch channel capacity.
	BufferSize int

	// ExcludePatterns filter events, gitignore dialect, matched from the
	// workspace root.
	ExcludePatterns []string

	// DataDirName is the workspace data directory. Its events are always
	// dropped; the index writing into it must not feed itself.
	DataDirName string

	// IgnoreFileName is the per-directory ignore file whose edits become
	// OpIgnoreChange events.
	IgnoreFileName string

	// ConfigFileNames are project config basenames whose edits become
	// OpConfigChange events.
	ConfigFileNames []string
}

// WithDefaults fills zero fields with defaults.
func (o Options) WithDefaults() Options {
	if o.Debounce == 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.PollInterval == 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.BufferSize == 0 {
		o.BufferSize = 1000
	}
	if o.IgnoreFileName == "" {
		o.IgnoreFileName = ".peregrineignore"
	}
	if len(o.ConfigFileNames) == 0 {
		o.ConfigFileNames = []string{".peregrine.yaml", ".peregrine.yml"}
	}
	return o
}

// New picks a watcher for the platform: fsnotify when it initializes,
// the polling scanner otherwise or when Options.Poll asks for it.
func New(opts Options) (Watcher, error) {
	if opts.Poll {
		return NewPollingWatcher(opts), nil
	}
	w, err := NewFSWatcher(opts)
	if err != nil {
		return NewPollingWatcher(opts), nil
	}
	return w, nil
}
