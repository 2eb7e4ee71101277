// Package indexer walks the workspace and keeps the index table in step
// with the filesystem. Indexing is incremental: a file whose identity and
// modification time match its record is skipped without mutation, and a
// file whose inode reappears under a new path keeps its record.
package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
	"github.com/peregrinehq/peregrine/internal/extract"
	"github.com/peregrinehq/peregrine/internal/ignore"
	"github.com/peregrinehq/peregrine/internal/index"
)

// IgnoreFileName is the per-directory ignore file.
const IgnoreFileName = ".peregrineignore"

// ignoreCacheSize caps the number of cached per-directory ignore matchers
// so long-running watch sessions cannot grow without bound.
const ignoreCacheSize = 1000

// DefaultMaxFileSize is the content extraction ceiling. Larger files stay
// tracked but contribute no content keywords.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Action says what IndexFile did to the record.
type Action int

const (
	// ActionUnchanged means identity and mtime matched; nothing mutated.
	ActionUnchanged Action = iota
	// ActionAdded means a fresh record was created.
	ActionAdded
	// ActionUpdated means an existing record was re-extracted in place.
	ActionUpdated
	// ActionMoved means a rename was detected and the record re-homed.
	ActionMoved
)

// String returns the action as a short verb for logs and progress lines.
func (a Action) String() string {
	switch a {
	case ActionUnchanged:
		return "unchanged"
	case ActionAdded:
		return "added"
	case ActionUpdated:
		return "updated"
	case ActionMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Result reports the outcome of indexing one file.
type Result struct {
	ID       index.FileID
	Path     string // workspace-relative
	Action   Action
	Keywords int // size of the stored keyword set
	Binary   bool
}

// FileFailure records one file that could not be indexed during a walk.
type FileFailure struct {
	Path string
	Err  error
}

// TreeStats aggregates an IndexTree or Reconcile pass.
type TreeStats struct {
	Indexed   int
	Added     int
	Updated   int
	Moved     int
	Unchanged int
	Removed   int
	Failed    int
	Failures  []FileFailure
}

// Options configures an Indexer.
type Options struct {
	// ExcludePatterns apply everywhere, in addition to per-directory
	// ignore files.
	ExcludePatterns []string
	// MaxFileSize caps content extraction. Zero means DefaultMaxFileSize.
	MaxFileSize int64
	// DataDirName is the workspace data directory, always skipped.
	DataDirName string
	// Observe, when set, is called after every file an IndexTree pass
	// touches, successful or not.
	Observe func(rel string, res *Result, err error)
}

// Indexer maintains the table for one workspace root.
type Indexer struct {
	root      string
	dataDir   string
	table     *index.Table
	extractor extract.Extractor
	excludes  *ignore.Matcher
	maxSize   int64
	observe   func(rel string, res *Result, err error)

	cacheMu     sync.RWMutex
	ignoreCache *lru.Cache[string, *ignore.Matcher]
}

// New creates an indexer rooted at the workspace directory. root must be
// absolute.
func New(root string, table *index.Table, extractor extract.Extractor, opts Options) (*Indexer, error) {
	cache, err := lru.New[string, *ignore.Matcher](ignoreCacheSize)
	if err != nil {
		return nil, perrors.InternalError("create ignore cache", err)
	}

	excludes := ignore.New()
	for _, p := range opts.ExcludePatterns {
		excludes.AddPattern(p)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	return &Indexer{
		root:        filepath.Clean(root),
		dataDir:     opts.DataDirName,
		table:       table,
		extractor:   extractor,
		excludes:    excludes,
		maxSize:     maxSize,
		observe:     opts.Observe,
		ignoreCache: cache,
	}, nil
}

// Rel resolves path (absolute or relative to the working directory) to a
// workspace-relative path, rejecting anything outside the root.
func (ix *Indexer) Rel(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", perrors.PathError(perrors.ErrCodePathNotFound, path, err)
	}
	rel, err := filepath.Rel(ix.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", perrors.PathError(perrors.ErrCodePathOutOfScope, path, err).
			WithDetail("root", ix.root)
	}
	return rel, nil
}

// IndexFile indexes a single file. The incremental fast path returns
// without mutation when the stored identity and modification time both
// match the live file. An untracked path whose inode already owns a
// record is treated as a rename when the old path has left the disk.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := ix.Rel(path)
	if err != nil {
		return nil, err
	}
	abs := filepath.Join(ix.root, rel)

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perrors.PathError(perrors.ErrCodePathNotFound, rel, err)
		}
		return nil, perrors.PathError(perrors.ErrCodePathUnreadable, rel, err)
	}
	if info.IsDir() {
		return nil, perrors.PathError(perrors.ErrCodePathNotFound, rel, nil).
			WithDetail("reason", "path is a directory")
	}
	if !info.Mode().IsRegular() {
		return nil, perrors.PathError(perrors.ErrCodePathUnreadable, rel, nil).
			WithDetail("reason", "not a regular file")
	}

	var identPtr *index.Identity
	if ident, ok := index.IdentityFromInfo(info); ok {
		identPtr = &ident
	}
	modTime := info.ModTime()

	if id, storedIdent, storedMt, tracked := ix.table.Lookup(rel); tracked {
		if identEqual(storedIdent, identPtr) && storedMt.Equal(modTime) {
			return &Result{ID: id, Path: rel, Action: ActionUnchanged}, nil
		}
		content, binary := ix.contentKeywords(abs, rel, info.Size())
		ix.table.Upsert(rel, identPtr, modTime, content)
		kws, _ := ix.table.KeywordsOf(id)
		return &Result{ID: id, Path: rel, Action: ActionUpdated, Keywords: len(kws), Binary: binary}, nil
	}

	// Untracked path. If its inode owns a record whose path has left the
	// disk, this is a rename: the record moves and keeps its id and user
	// keywords. If the old path still exists the file is a hard link and
	// gets a record of its own.
	if identPtr != nil {
		if owner, ok := ix.table.OwnerOf(*identPtr); ok {
			if oldRel, ok := ix.table.PathOf(owner); ok && oldRel != rel {
				if _, statErr := os.Stat(filepath.Join(ix.root, oldRel)); os.IsNotExist(statErr) {
					content, binary := ix.contentKeywords(abs, rel, info.Size())
					if ix.table.Move(owner, rel, identPtr, modTime, content) {
						slog.Debug("rename detected",
							slog.String("from", oldRel),
							slog.String("to", rel))
						kws, _ := ix.table.KeywordsOf(owner)
						return &Result{ID: owner, Path: rel, Action: ActionMoved, Keywords: len(kws), Binary: binary}, nil
					}
				}
			}
		}
	}

	content, binary := ix.contentKeywords(abs, rel, info.Size())
	id, _ := ix.table.Upsert(rel, identPtr, modTime, content)
	return &Result{ID: id, Path: rel, Action: ActionAdded, Keywords: len(content), Binary: binary}, nil
}

// contentKeywords extracts the content keyword set for one file. Binary
// files, oversized files and extraction failures all yield an empty set;
// the file stays tracked either way.
func (ix *Indexer) contentKeywords(abs, rel string, size int64) (index.Keywords, bool) {
	if size > ix.maxSize {
		slog.Debug("file exceeds extraction ceiling",
			slog.String("path", rel),
			slog.Int64("size", size))
		return index.NewKeywords(), false
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		slog.Warn("content read failed, indexing without keywords",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return index.NewKeywords(), false
	}

	if IsBinaryData(data) {
		return index.NewKeywords(), true
	}

	phrases, err := ix.extractor.Phrases(string(data))
	if err != nil {
		// Extraction failures never block indexing.
		exErr := perrors.ExtractError(rel, err)
		slog.Warn("keyword extraction failed, indexing without keywords",
			slog.String("path", rel),
			slog.String("code", perrors.GetCode(exErr)),
			slog.String("error", err.Error()))
		return index.NewKeywords(), false
	}
	return index.NewKeywords(extract.Flatten(phrases)...), false
}

// IndexTree walks dir depth-first and indexes every file that survives the
// ignore rules. Entries are visited in directory listing order with the
// path threaded explicitly. Cancellation is honored between files; the
// file being written when the context dies is finished first. Per-file
// failures are collected, not fatal.
func (ix *Indexer) IndexTree(ctx context.Context, dir string) (*TreeStats, error) {
	rel, err := ix.Rel(dir)
	if err != nil {
		return nil, err
	}
	abs := filepath.Join(ix.root, rel)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, perrors.PathError(perrors.ErrCodePathNotFound, rel, err)
	}
	if !info.IsDir() {
		return nil, perrors.PathError(perrors.ErrCodePathNotFound, rel, nil).
			WithDetail("reason", "not a directory")
	}

	stats := &TreeStats{}
	err = ix.walk(ctx, abs, nil, stats)
	if err != nil && err != context.Canceled && ctx.Err() == nil {
		return stats, err
	}
	return stats, ctx.Err()
}

// ignoreFrame pairs a directory with its ignore matcher for subtree
// matching during a walk.
type ignoreFrame struct {
	dir     string // absolute
	matcher *ignore.Matcher
}

// walk recurses one directory. frames carries the ignore matchers of every
// ancestor, outermost first.
func (ix *Indexer) walk(ctx context.Context, dir string, frames []ignoreFrame, stats *TreeStats) error {
	if m := ix.matcherFor(dir); m.Len() > 0 {
		frames = append(frames, ignoreFrame{dir: dir, matcher: m})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		stats.Failed++
		stats.Failures = append(stats.Failures, FileFailure{
			Path: dir,
			Err:  perrors.PathError(perrors.ErrCodePathUnreadable, dir, err),
		})
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		child := filepath.Join(dir, name)

		if entry.IsDir() {
			if ix.dataDir != "" && name == ix.dataDir {
				continue
			}
			if ix.ignored(child, true, frames) {
				continue
			}
			if err := ix.walk(ctx, child, frames, stats); err != nil {
				return err
			}
			continue
		}

		// Symlinks are only indexed when named explicitly.
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if ix.ignored(child, false, frames) {
			continue
		}

		res, err := ix.IndexFile(ctx, child)
		relChild, _ := ix.Rel(child)
		if ix.observe != nil {
			ix.observe(relChild, res, err)
		}
		if err != nil {
			if err == context.Canceled || ctx.Err() != nil {
				return ctx.Err()
			}
			stats.Failed++
			stats.Failures = append(stats.Failures, FileFailure{Path: relChild, Err: err})
			continue
		}

		stats.Indexed++
		switch res.Action {
		case ActionAdded:
			stats.Added++
		case ActionUpdated:
			stats.Updated++
		case ActionMoved:
			stats.Moved++
		case ActionUnchanged:
			stats.Unchanged++
		}
	}
	return nil
}

// Count walks dir the same way IndexTree does and returns the number of
// files a pass would touch, without touching the table. Progress displays
// use it for a total before the indexing walk starts.
func (ix *Indexer) Count(ctx context.Context, dir string) (int, error) {
	rel, err := ix.Rel(dir)
	if err != nil {
		return 0, err
	}
	abs := filepath.Join(ix.root, rel)

	info, err := os.Stat(abs)
	if err != nil {
		return 0, perrors.PathError(perrors.ErrCodePathNotFound, rel, err)
	}
	if !info.IsDir() {
		return 0, perrors.PathError(perrors.ErrCodePathNotFound, rel, nil).
			WithDetail("reason", "not a directory")
	}

	return ix.countWalk(ctx, abs, nil)
}

// countWalk recurses one directory, counting files that survive the
// ignore rules. Mirrors walk; keep the skipping logic in step.
func (ix *Indexer) countWalk(ctx context.Context, dir string, frames []ignoreFrame) (int, error) {
	if m := ix.matcherFor(dir); m.Len() > 0 {
		frames = append(frames, ignoreFrame{dir: dir, matcher: m})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil // unreadable directories count nothing
	}

	total := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		name := entry.Name()
		child := filepath.Join(dir, name)

		if entry.IsDir() {
			if ix.dataDir != "" && name == ix.dataDir {
				continue
			}
			if ix.ignored(child, true, frames) {
				continue
			}
			sub, err := ix.countWalk(ctx, child, frames)
			total += sub
			if err != nil {
				return total, err
			}
			continue
		}

		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if ix.ignored(child, false, frames) {
			continue
		}
		total++
	}
	return total, nil
}

// ignored reports whether the absolute path is excluded by the global
// patterns or any ancestor's ignore file.
func (ix *Indexer) ignored(abs string, isDir bool, frames []ignoreFrame) bool {
	rel, err := filepath.Rel(ix.root, abs)
	if err != nil {
		return false
	}
	if ix.excludes.Match(rel, isDir) {
		return true
	}
	for _, frame := range frames {
		sub, err := filepath.Rel(frame.dir, abs)
		if err != nil {
			continue
		}
		if frame.matcher.Match(sub, isDir) {
			return true
		}
	}
	return false
}

// matcherFor loads the ignore matcher for one directory, caching compiled
// matchers in the LRU. Directories without an ignore file cache an empty
// matcher.
func (ix *Indexer) matcherFor(dir string) *ignore.Matcher {
	ix.cacheMu.RLock()
	m, ok := ix.ignoreCache.Get(dir)
	ix.cacheMu.RUnlock()
	if ok {
		return m
	}

	m = ignore.New()
	path := filepath.Join(dir, IgnoreFileName)
	if _, err := os.Stat(path); err == nil {
		if err := m.AddFromFile(path); err != nil {
			slog.Warn("unreadable ignore file skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}

	ix.cacheMu.Lock()
	ix.ignoreCache.Add(dir, m)
	ix.cacheMu.Unlock()
	return m
}

// InvalidateIgnoreCache clears cached ignore matchers. Watch mode calls
// this when an ignore file changes.
func (ix *Indexer) InvalidateIgnoreCache() {
	ix.cacheMu.Lock()
	defer ix.cacheMu.Unlock()
	ix.ignoreCache.Purge()
}

// IgnoredPath reports whether path is excluded by the global patterns or
// any ancestor's ignore file, consulting the same matchers a walk reaching
// it would. Watch mode uses it to prune records after an ignore file
// changes.
func (ix *Indexer) IgnoredPath(path string, isDir bool) (bool, error) {
	rel, err := ix.Rel(path)
	if err != nil {
		return false, err
	}
	if rel == "." {
		return false, nil
	}
	if ix.dataDir != "" {
		if rel == ix.dataDir || strings.HasPrefix(rel, ix.dataDir+string(filepath.Separator)) {
			return true, nil
		}
	}

	// Collect ancestor matchers outermost first, the way walk builds its
	// frames on the way down.
	var frames []ignoreFrame
	dir := ix.root
	parts := strings.Split(rel, string(filepath.Separator))
	for _, part := range parts[:len(parts)-1] {
		if m := ix.matcherFor(dir); m.Len() > 0 {
			frames = append(frames, ignoreFrame{dir: dir, matcher: m})
		}
		dir = filepath.Join(dir, part)
	}
	if m := ix.matcherFor(dir); m.Len() > 0 {
		frames = append(frames, ignoreFrame{dir: dir, matcher: m})
	}

	return ix.ignored(filepath.Join(ix.root, rel), isDir, frames), nil
}

// Remove drops a tracked path from the index and releases its id.
func (ix *Indexer) Remove(path string) (index.FileID, error) {
	rel, err := ix.Rel(path)
	if err != nil {
		return 0, err
	}
	id, ok := ix.table.RemoveByPath(rel)
	if !ok {
		return 0, perrors.PathError(perrors.ErrCodePathNotFound, rel, nil).
			WithDetail("reason", "path is not tracked")
	}
	return id, nil
}

// Reconcile removes records whose files are gone from disk. dir limits the
// sweep to one subtree; an empty dir sweeps the whole workspace. Returns
// the number of records removed.
func (ix *Indexer) Reconcile(ctx context.Context, dir string) (int, error) {
	prefix := ""
	if dir != "" {
		rel, err := ix.Rel(dir)
		if err != nil {
			return 0, err
		}
		if rel != "." {
			prefix = rel + string(filepath.Separator)
		}
	}

	var tracked []string
	ix.table.ScanPaths(func(rel string, _ index.FileID) {
		if prefix == "" || strings.HasPrefix(rel, prefix) {
			tracked = append(tracked, rel)
		}
	})

	removed := 0
	for _, rel := range tracked {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		_, err := os.Stat(filepath.Join(ix.root, rel))
		if os.IsNotExist(err) {
			if _, ok := ix.table.RemoveByPath(rel); ok {
				removed++
				slog.Debug("pruned missing file", slog.String("path", rel))
			}
		}
	}
	return removed, nil
}

func identEqual(a, b *index.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
