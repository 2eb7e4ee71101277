package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/peregrinehq/peregrine/internal/ignore"
)

// FSWatcher is the fsnotify-backed Watcher. New directories are added to
// the watch set as they appear; excluded directories are never watched at
// all, which keeps the inotify footprint off node_modules-sized trees.
type FSWatcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	excludes  *ignore.Matcher
	opts      Options

	events  chan []FileEvent
	errs    chan error
	stopCh  chan struct{}
	root    string
	mu      sync.Mutex
	stopped bool
	dropped atomic.Uint64
}

var _ Watcher = (*FSWatcher)(nil)

// NewFSWatcher creates an fsnotify watcher. It fails where the platform
// offers no change notification; callers fall back to NewPollingWatcher.
func NewFSWatcher(opts Options) (*FSWatcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	excludes := ignore.New()
	for _, p := range opts.ExcludePatterns {
		excludes.AddPattern(p)
	}

	return &FSWatcher{
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce),
		excludes:  excludes,
		opts:      opts,
		events:    make(chan []FileEvent, opts.BufferSize),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start implements Watcher.
func (w *FSWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.root = abs

	if err := w.addRecursive(abs); err != nil {
		return fmt.Errorf("watch directory tree: %w", err)
	}

	go w.forward(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handle converts one fsnotify event, filters it and feeds the debouncer.
func (w *FSWatcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}

	// The path may already be gone; a failed stat means not-a-directory,
	// which is the right guess for delete and rename.
	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.skip(rel, isDir) {
		return
	}

	base := filepath.Base(rel)
	if base == w.opts.IgnoreFileName {
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpIgnoreChange, Timestamp: time.Now()})
		return
	}
	for _, name := range w.opts.ConfigFileNames {
		if base == name {
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpConfigChange, Timestamp: time.Now()})
			return
		}
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			// Watch the new subtree; files may already be inside it.
			if err := w.addRecursive(ev.Name); err != nil {
				w.emitError(err)
			}
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and attribute churn never changes index state.
		return
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

// forward moves debounced batches to the public channel.
func (w *FSWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			w.emit(batch)
		}
	}
}

// addRecursive registers dir and every non-excluded directory below it.
func (w *FSWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return w.fsw.Add(path)
		}
		if w.skip(rel, true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// skip reports whether events under rel are filtered out.
func (w *FSWatcher) skip(rel string, isDir bool) bool {
	if rel == "" || rel == "." {
		return true
	}
	if w.opts.DataDirName != "" {
		if rel == w.opts.DataDirName || hasPathPrefix(rel, w.opts.DataDirName) {
			return true
		}
	}
	return w.excludes.Match(rel, isDir)
}

// emit sends without blocking. The lock is held across the send so Stop
// cannot close the channel underneath it; the send never blocks, so
// holding the lock here is safe.
func (w *FSWatcher) emit(batch []FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	select {
	case w.events <- batch:
	default:
		n := w.dropped.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("dropped_batches", n))
	}
}

func (w *FSWatcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	select {
	case w.errs <- err:
	default:
	}
}

// Stop implements Watcher.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	_ = w.fsw.Close()
	close(w.events)
	close(w.errs)
	return nil
}

// Events implements Watcher.
func (w *FSWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors implements Watcher.
func (w *FSWatcher) Errors() <-chan error {
	return w.errs
}

// DroppedBatches reports batches lost to a full buffer.
func (w *FSWatcher) DroppedBatches() uint64 {
	return w.dropped.Load()
}
