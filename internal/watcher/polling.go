package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/peregrinehq/peregrine/internal/ignore"
)

// PollingWatcher detects changes by rescanning the tree on an interval
// and diffing mod times and sizes. It is the fallback for filesystems
// without change notification, network mounts mostly.
type PollingWatcher struct {
	debouncer *Debouncer
	excludes  *ignore.Matcher
	opts      Options

	events  chan []FileEvent
	errs    chan error
	stopCh  chan struct{}
	root    string
	mu      sync.Mutex
	state   map[string]pollState
	stopped bool
}

type pollState struct {
	modTime time.Time
	size    int64
	isDir   bool
}

var _ Watcher = (*PollingWatcher)(nil)

// NewPollingWatcher creates a polling watcher.
func NewPollingWatcher(opts Options) *PollingWatcher {
	opts = opts.WithDefaults()

	excludes := ignore.New()
	for _, p := range opts.ExcludePatterns {
		excludes.AddPattern(p)
	}

	return &PollingWatcher{
		debouncer: NewDebouncer(opts.Debounce),
		excludes:  excludes,
		opts:      opts,
		events:    make(chan []FileEvent, opts.BufferSize),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
		state:     make(map[string]pollState),
	}
}

// Start implements Watcher. The first scan only establishes the baseline;
// pre-existing files emit no events.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	p.root = abs

	if _, err := p.scan(false); err != nil {
		return fmt.Errorf("baseline scan: %w", err)
	}

	go p.forward(ctx)

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if _, err := p.scan(true); err != nil {
				p.emitError(err)
			}
		}
	}
}

// scan walks the tree and, when emit is set, feeds differences to the
// debouncer. Returns the number of events produced.
func (p *PollingWatcher) scan(emit bool) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]pollState, len(p.state))
	produced := 0

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if p.skip(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		cur := pollState{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		seen[rel] = cur

		if !emit {
			return nil
		}
		prev, existed := p.state[rel]
		switch {
		case !existed:
			p.add(rel, OpCreate, cur.isDir)
			produced++
		case !cur.isDir && (prev.modTime != cur.modTime || prev.size != cur.size):
			p.add(rel, OpModify, false)
			produced++
		}
		return nil
	})
	if err != nil {
		return produced, fmt.Errorf("poll walk: %w", err)
	}

	if emit {
		for rel, prev := range p.state {
			if _, ok := seen[rel]; !ok {
				p.add(rel, OpDelete, prev.isDir)
				produced++
			}
		}
	}

	p.state = seen
	return produced, nil
}

// add routes one detected change through the path-aware special casing
// and into the debouncer. Callers hold the lock.
func (p *PollingWatcher) add(rel string, op Operation, isDir bool) {
	base := filepath.Base(rel)
	if base == p.opts.IgnoreFileName {
		p.debouncer.Add(FileEvent{Path: rel, Operation: OpIgnoreChange, Timestamp: time.Now()})
		return
	}
	for _, name := range p.opts.ConfigFileNames {
		if base == name {
			p.debouncer.Add(FileEvent{Path: rel, Operation: OpConfigChange, Timestamp: time.Now()})
			return
		}
	}
	p.debouncer.Add(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

func (p *PollingWatcher) skip(rel string, isDir bool) bool {
	if p.opts.DataDirName != "" {
		if rel == p.opts.DataDirName || hasPathPrefix(rel, p.opts.DataDirName) {
			return true
		}
	}
	return p.excludes.Match(rel, isDir)
}

// forward moves debounced batches to the public channel.
func (p *PollingWatcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case batch, ok := <-p.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			p.emit(batch)
		}
	}
}

// emit sends without blocking, holding the lock so Stop cannot close the
// channel mid-send.
func (p *PollingWatcher) emit(batch []FileEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	select {
	case p.events <- batch:
	default:
	}
}

func (p *PollingWatcher) emitError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	select {
	case p.errs <- err:
	default:
	}
}

// Stop implements Watcher.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	p.debouncer.Stop()
	close(p.events)
	close(p.errs)
	return nil
}

// Events implements Watcher.
func (p *PollingWatcher) Events() <-chan []FileEvent {
	return p.events
}

// Errors implements Watcher.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errs
}

// hasPathPrefix reports whether rel sits under dir.
func hasPathPrefix(rel, dir string) bool {
	return len(rel) > len(dir) &&
		rel[:len(dir)] == dir &&
		rel[len(dir)] == filepath.Separator
}
