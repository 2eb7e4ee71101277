package peregrine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peregrinehq/peregrine/internal/config"
	"github.com/peregrinehq/peregrine/internal/extract"
	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/indexer"
	"github.com/peregrinehq/peregrine/internal/search"
	"github.com/peregrinehq/peregrine/internal/store"
	"github.com/peregrinehq/peregrine/internal/workspace"
)

var (
	// ErrNoIndex reports a workspace that was initialized but never
	// indexed. Open the index with Writable and call Update, or run
	// 'peregrine index'.
	ErrNoIndex = errors.New("no index found")

	// ErrReadOnly reports a mutating call on a handle opened without
	// Writable.
	ErrReadOnly = errors.New("index opened read-only")

	// ErrClosed reports a call on a handle after Close.
	ErrClosed = errors.New("index is closed")
)

// Query describes one search. Keywords and Name are mutually exclusive;
// Date, Clock and Op add a modification-time window to either, or stand
// alone as a pure time query. A zero Query is an error.
type Query struct {
	// Keywords matches files carrying all or some of the given words.
	// Matching tries the exact words first and widens to close spellings
	// automatically; results arrive best tier first.
	Keywords []string

	// Name matches file basenames. Case is respected.
	Name string

	// Fuzzy widens Name matching to close spellings and substrings,
	// nearest first.
	Fuzzy bool

	// Date restricts matches by modification date: YYYY, YYYYMM or
	// YYYYMMDD.
	Date string

	// Clock restricts matches by time of day: HH, HHMM or HHMMSS,
	// anchored to Date when given and to today otherwise.
	Clock string

	// Op relates file times to the window: "before", "after" or "on".
	// Empty means "on".
	Op string
}

// Match is one file returned by Find. Path is slash-separated and
// workspace-relative; join it with Root for an absolute path.
type Match struct {
	Path     string
	ModTime  time.Time
	Keywords []string
}

// Result holds the matches of one Find in rank order. Warnings carry
// non-fatal query problems, like a date that did not parse, that widened
// the search instead of failing it.
type Result struct {
	Matches  []Match
	Warnings []error
}

// Summary reports what one Update pass did.
type Summary struct {
	Indexed   int
	Added     int
	Updated   int
	Moved     int
	Unchanged int
	Removed   int
	Failed    int
	Failures  []Failure
}

// Failure is one file an Update pass could not read or extract.
type Failure struct {
	Path string
	Err  error
}

// FileInfo describes one tracked file.
type FileInfo struct {
	Path         string
	ModTime      time.Time
	Keywords     []string
	UserKeywords []string
}

// Stats summarizes the open index.
type Stats struct {
	Root     string
	Backend  string
	Files    int
	Keywords int
}

// Option configures Open.
type Option func(*options)

type options struct {
	writable bool
}

// Writable opens the index for mutation. The workspace write lock is held
// until Close.
func Writable() Option {
	return func(o *options) { o.writable = true }
}

// Index is a handle on one workspace index.
type Index struct {
	ws      *workspace.Workspace
	cfg     *config.Config
	st      store.Store
	lock    *store.Lock
	backend string

	table   *index.Table
	engine  *search.Engine
	indexer *indexer.Indexer

	writable bool

	// mu orders searches against mutations: reads hold the read side for
	// their whole body so a Find never observes half an Update.
	mu     sync.RWMutex
	closed bool
}

// Init creates a workspace rooted at dir and returns a writable handle on
// its empty index. It fails when dir already lies inside a workspace.
//
// Init writes the workspace marker and data directory only; the CLI's
// 'peregrine init' additionally writes a starter config file and amends
// .gitignore.
func Init(dir string) (*Index, error) {
	if enclosing, err := workspace.Find(dir); err == nil {
		return nil, fmt.Errorf("%s already lies inside the workspace at %s", dir, enclosing.Root)
	}
	ws, err := workspace.Init(dir, false)
	if err != nil {
		return nil, err
	}
	return Open(ws.Root, Writable())
}

// Open locates the workspace containing dir and opens its index. Without
// Writable the handle is read-only and Open fails with ErrNoIndex when the
// workspace has never been indexed; a writable handle starts empty instead
// so the first Update can build it.
//
// A snapshot that exists but cannot be restored fails Open in both modes.
// Rebuilding a corrupt index discards state and is left to the caller:
// remove the snapshot file, or run 'peregrine index', which rebuilds from
// disk on restore failure.
func Open(dir string, opts ...Option) (*Index, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	ws, err := workspace.Find(dir)
	if err != nil {
		return nil, err
	}

	// Same policy as the CLI: a broken config file falls back to defaults
	// rather than bricking access to a good index.
	cfg, err := config.Load(ws.Root)
	if err != nil {
		cfg = config.NewConfig()
	}

	var lock *store.Lock
	if o.writable {
		lock = store.NewLock(ws.DataDir())
		if err := lock.Acquire(); err != nil {
			return nil, err
		}
	}
	release := func() {
		if lock != nil {
			_ = lock.Release()
		}
	}

	// An existing snapshot decides the backend so a config switch cannot
	// orphan saved data.
	backend := cfg.Store.Backend
	if detected := store.DetectBackend(ws.DataDir()); detected != "" {
		backend = string(detected)
	}

	st, err := store.NewStore(ws.DataDir(), backend)
	if err != nil {
		release()
		return nil, err
	}

	snap, found, err := st.Load(context.Background())
	if err != nil {
		_ = st.Close()
		release()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var tbl *index.Table
	switch {
	case found:
		tbl, err = index.FromSnapshot(snap)
		if err != nil {
			_ = st.Close()
			release()
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
	case o.writable:
		tbl = index.NewTable()
	default:
		_ = st.Close()
		release()
		return nil, fmt.Errorf("%w in %s", ErrNoIndex, ws.Root)
	}

	ix := &Index{
		ws:       ws,
		cfg:      cfg,
		st:       st,
		lock:     lock,
		backend:  backend,
		table:    tbl,
		engine:   search.New(tbl),
		writable: o.writable,
	}

	if o.writable {
		ix.indexer, err = indexer.New(ws.Root, tbl, extract.NewDefault(), indexer.Options{
			ExcludePatterns: cfg.Paths.Exclude,
			MaxFileSize:     cfg.MaxFileSize(),
			DataDirName:     workspace.DataDirName,
		})
		if err != nil {
			_ = st.Close()
			release()
			return nil, err
		}
	}
	return ix, nil
}

// Root returns the workspace root directory.
func (ix *Index) Root() string {
	return ix.ws.Root
}

// Find runs one query against the index. See Query for how its fields
// combine.
func (ix *Index) Find(ctx context.Context, q Query) (*Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, ErrClosed
	}

	if len(q.Keywords) > 0 && q.Name != "" {
		return nil, errors.New("query mixes Keywords and Name: set one or the other")
	}

	op := q.Op
	if op == "" {
		op = "on"
	}
	windowed := q.Date != "" || q.Clock != ""

	switch {
	case len(q.Keywords) > 0:
		lowered := make([]string, len(q.Keywords))
		for i, kw := range q.Keywords {
			lowered[i] = strings.ToLower(kw)
		}
		res, err := ix.engine.MultiKeyword(ctx, lowered, q.Date, q.Clock, op)
		if err != nil {
			return nil, err
		}
		return ix.collect(res.IDs, res.Warnings), nil

	case q.Name != "":
		ids := ix.engine.Name(q.Name, q.Fuzzy)
		if !windowed {
			return ix.collect(ids, nil), nil
		}
		window, warns := search.ResolveWindow(q.Date, q.Clock, time.Now())
		if !window.Constrained {
			return nil, errors.New("time window did not resolve: check Date and Clock")
		}
		inWindow, err := ix.engine.Time(window.High, window.Low, op, nil)
		if err != nil {
			return nil, err
		}
		// Membership filter keeps the rank order Name produced.
		kept := ids[:0]
		for _, id := range ids {
			if inWindow.Contains(id) {
				kept = append(kept, id)
			}
		}
		return ix.collect(kept, warns), nil

	case windowed:
		window, warns := search.ResolveWindow(q.Date, q.Clock, time.Now())
		if !window.Constrained {
			return nil, errors.New("time window did not resolve: check Date and Clock")
		}
		ids, err := ix.engine.Time(window.High, window.Low, op, nil)
		if err != nil {
			return nil, err
		}
		return ix.collect(ids.Slice(), warns), nil

	default:
		return nil, errors.New("empty query: set Keywords, Name, Date or Clock")
	}
}

// Update walks the workspace and brings the index into agreement with the
// tree: new files are added, changed files re-extracted, renames carried
// over and records for deleted files dropped. The updated snapshot is
// saved before Update returns.
func (ix *Index) Update(ctx context.Context) (*Summary, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.mutableLocked(); err != nil {
		return nil, err
	}

	stats, err := ix.indexer.IndexTree(ctx, ix.ws.Root)
	if err != nil {
		return nil, err
	}
	removed, err := ix.indexer.Reconcile(ctx, ix.ws.Root)
	if err != nil {
		return nil, err
	}
	if err := ix.saveLocked(ctx); err != nil {
		return nil, err
	}

	sum := &Summary{
		Indexed:   stats.Indexed,
		Added:     stats.Added,
		Updated:   stats.Updated,
		Moved:     stats.Moved,
		Unchanged: stats.Unchanged,
		Removed:   stats.Removed + removed,
		Failed:    stats.Failed,
	}
	for _, f := range stats.Failures {
		sum.Failures = append(sum.Failures, Failure{Path: f.Path, Err: f.Err})
	}
	return sum, nil
}

// AddKeywords attaches user keywords to a tracked file. They search
// exactly like extracted keywords but survive re-indexing and follow the
// file through renames. Words are lowercased; path may be absolute or
// relative to Root.
func (ix *Index) AddKeywords(ctx context.Context, path string, words ...string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.mutableLocked(); err != nil {
		return err
	}
	id, err := ix.resolveLocked(path)
	if err != nil {
		return err
	}
	cleaned := cleanWords(words)
	if len(cleaned) == 0 {
		return errors.New("no keywords given")
	}
	ix.table.AddUserKeywords(id, cleaned)
	return ix.saveLocked(ctx)
}

// RemoveKeywords detaches user keywords from a tracked file. A word that
// was also extracted from content returns at the next Update.
func (ix *Index) RemoveKeywords(ctx context.Context, path string, words ...string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.mutableLocked(); err != nil {
		return err
	}
	id, err := ix.resolveLocked(path)
	if err != nil {
		return err
	}
	cleaned := cleanWords(words)
	if len(cleaned) == 0 {
		return errors.New("no keywords given")
	}
	ix.table.RemoveUserKeywords(id, cleaned)
	return ix.saveLocked(ctx)
}

// ClearKeywords detaches every user keyword from a tracked file.
func (ix *Index) ClearKeywords(ctx context.Context, path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.mutableLocked(); err != nil {
		return err
	}
	id, err := ix.resolveLocked(path)
	if err != nil {
		return err
	}
	ix.table.ClearUserKeywords(id)
	return ix.saveLocked(ctx)
}

// Info describes one tracked file. path may be absolute or relative to
// Root.
func (ix *Index) Info(path string) (*FileInfo, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, ErrClosed
	}
	id, err := ix.resolveLocked(path)
	if err != nil {
		return nil, err
	}
	rel, _ := ix.table.PathOf(id)
	mod, _ := ix.table.ModTimeOf(id)
	kws, _ := ix.table.KeywordsOf(id)
	user, _ := ix.table.UserKeywordsOf(id)
	return &FileInfo{
		Path:         filepath.ToSlash(rel),
		ModTime:      mod,
		Keywords:     kws,
		UserKeywords: user,
	}, nil
}

// Stats summarizes the open index. After Close it returns the zero value.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return Stats{}
	}
	ts := ix.table.Stats()
	return Stats{
		Root:     ix.ws.Root,
		Backend:  ix.backend,
		Files:    ts.Records,
		Keywords: ts.Keywords,
	}
}

// Close releases the workspace write lock and the snapshot store. Closing
// twice is a no-op. Mutations made through this handle were already saved
// call by call, so Close never writes.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true

	var firstErr error
	if err := ix.st.Close(); err != nil {
		firstErr = err
	}
	if ix.lock != nil {
		if err := ix.lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// mutableLocked fails mutating calls on closed or read-only handles.
func (ix *Index) mutableLocked() error {
	if ix.closed {
		return ErrClosed
	}
	if !ix.writable {
		return ErrReadOnly
	}
	return nil
}

// resolveLocked maps path, absolute or relative to the workspace root, to
// the id tracking it.
func (ix *Index) resolveLocked(path string) (index.FileID, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(ix.ws.Root, path)
	}
	_, rel, err := ix.ws.Scope(path)
	if err != nil {
		return 0, err
	}
	id, ok := ix.table.IDForPath(rel)
	if !ok {
		return 0, fmt.Errorf("%s is not tracked: run Update first", filepath.ToSlash(rel))
	}
	return id, nil
}

// collect materializes ids into matches, preserving order. An id that
// vanished from the table mid-flight is skipped rather than surfaced as a
// broken match.
func (ix *Index) collect(ids []index.FileID, warns []error) *Result {
	res := &Result{Warnings: warns, Matches: make([]Match, 0, len(ids))}
	for _, id := range ids {
		rel, ok := ix.table.PathOf(id)
		if !ok {
			continue
		}
		mod, _ := ix.table.ModTimeOf(id)
		kws, _ := ix.table.KeywordsOf(id)
		res.Matches = append(res.Matches, Match{
			Path:     filepath.ToSlash(rel),
			ModTime:  mod,
			Keywords: kws,
		})
	}
	return res
}

// saveLocked persists the current table state.
func (ix *Index) saveLocked(ctx context.Context) error {
	if err := ix.st.Save(ctx, ix.table.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// cleanWords trims, lowercases and drops empty entries. Lowercasing keeps
// user keywords findable by the same queries that hit extracted ones.
func cleanWords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
