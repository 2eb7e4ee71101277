package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per path so one save in an editor
// does not hit the index five times. Within a window:
//
//	CREATE then MODIFY  -> CREATE (the file is still new)
//	CREATE then DELETE  -> dropped (it never really existed)
//	MODIFY then DELETE  -> DELETE
//	DELETE then CREATE  -> MODIFY (the file was replaced)
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*pendingEvent
	out     chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer with the given coalescing window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		out:     make(chan []FileEvent, 10),
	}
}

// Add queues one event, merging it with any pending event for the same
// path.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	existing, ok := d.pending[event.Path]
	if !ok {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Operation}
		d.rearm()
		return
	}

	merged, keep := coalesce(existing.firstOp, existing.event, event)
	if !keep {
		delete(d.pending, event.Path)
		d.rearm()
		return
	}
	existing.event = merged
	d.rearm()
}

// coalesce merges a new event into the pending one for the same path.
// keep=false means the pair cancelled out.
func coalesce(firstOp Operation, pending, next FileEvent) (merged FileEvent, keep bool) {
	switch firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			return pending, true
		case OpDelete:
			return FileEvent{}, false
		}
	case OpDelete:
		if next.Operation == OpCreate {
			next.Operation = OpModify
			return next, true
		}
	}
	return next, true
}

// rearm pushes the flush timer out to a full window. Callers hold the
// lock.
func (d *Debouncer) rearm() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits everything pending as one batch.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.out <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

// Output returns the batch channel.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.out
}

// Stop closes the output channel. Safe to call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
