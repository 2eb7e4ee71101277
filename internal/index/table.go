package index

import (
	"path/filepath"
	"sync"
	"time"
)

// Table is the in-memory index over every tracked file. It owns five
// mappings that are kept mutually consistent under one lock:
//
//	records:    FileID -> FileRecord (authoritative state)
//	paths:      workspace-relative path -> FileID
//	names:      basename -> set of FileIDs
//	keywords:   keyword -> set of FileIDs (postings)
//	identities: (dev, ino) -> last FileID indexed under that identity
//
// Every mutation maintains all five together: a keyword posting never
// references a released id, an empty posting is deleted rather than kept,
// and a removed record disappears from every mapping before its id is
// returned to the allocator.
type Table struct {
	mu         sync.RWMutex
	records    map[FileID]*FileRecord
	paths      map[string]FileID
	names      map[string]*Set
	keywords   map[string]*Set
	identities map[Identity]FileID
	alloc      *Allocator
}

// NewTable creates an empty table with its own fresh mappings.
func NewTable() *Table {
	return &Table{
		records:    make(map[FileID]*FileRecord),
		paths:      make(map[string]FileID),
		names:      make(map[string]*Set),
		keywords:   make(map[string]*Set),
		identities: make(map[Identity]FileID),
		alloc:      NewAllocator(),
	}
}

// Len returns the number of tracked files.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Lookup returns the id, stored identity and modification time for a
// tracked path. The identity is a detached copy.
func (t *Table) Lookup(rel string) (FileID, *Identity, time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.paths[rel]
	if !ok {
		return 0, nil, time.Time{}, false
	}
	rec := t.records[id]
	return id, rec.identityCopy(), rec.ModTime, true
}

// IDForPath returns the id tracking rel.
func (t *Table) IDForPath(rel string) (FileID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.paths[rel]
	return id, ok
}

// OwnerOf returns the id last indexed under the given physical identity.
func (t *Table) OwnerOf(ident Identity) (FileID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.identities[ident]
	return id, ok
}

// PathOf returns the tracked path of id.
func (t *Table) PathOf(id FileID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return "", false
	}
	return rec.Path, true
}

// ModTimeOf returns the stored modification time of id.
func (t *Table) ModTimeOf(id FileID) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return time.Time{}, false
	}
	return rec.ModTime, true
}

// KeywordsOf returns the full searchable keyword set of id, sorted.
func (t *Table) KeywordsOf(id FileID) ([]string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return nil, false
	}
	return rec.Keywords.Sorted(), true
}

// UserKeywordsOf returns the user-attached keyword subset of id, sorted.
func (t *Table) UserKeywordsOf(id FileID) ([]string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return nil, false
	}
	return rec.UserKeywords.Sorted(), true
}

// KeywordIDs returns a clone of the posting for kw, or an empty set when
// no tracked file carries it.
func (t *Table) KeywordIDs(kw string) *Set {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if ids, ok := t.keywords[kw]; ok {
		return ids.Clone()
	}
	return NewSet()
}

// NameIDs returns a clone of the name posting for base, or an empty set.
func (t *Table) NameIDs(base string) *Set {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if ids, ok := t.names[base]; ok {
		return ids.Clone()
	}
	return NewSet()
}

// ScanKeywords calls fn for every keyword posting. The set passed to fn is
// live table state: fn must not retain or mutate it, and must not call back
// into the table.
func (t *Table) ScanKeywords(fn func(kw string, ids *Set)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for kw, ids := range t.keywords {
		fn(kw, ids)
	}
}

// ScanNames calls fn for every name posting, under the same rules as
// ScanKeywords.
func (t *Table) ScanNames(fn func(base string, ids *Set)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for base, ids := range t.names {
		fn(base, ids)
	}
}

// ScanModTimes calls fn with the id and stored modification time of every
// tracked file.
func (t *Table) ScanModTimes(fn func(id FileID, modTime time.Time)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, rec := range t.records {
		fn(id, rec.ModTime)
	}
}

// ScanPaths calls fn with every tracked (path, id) pair.
func (t *Table) ScanPaths(fn func(rel string, id FileID)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for rel, id := range t.paths {
		fn(rel, id)
	}
}

// Upsert writes the indexed state of one file. A tracked path keeps its id
// and its user keywords; an untracked path is assigned a fresh id. The
// searchable keyword set becomes content unioned with the surviving user
// keywords. Returns the id and whether a new record was created.
func (t *Table) Upsert(rel string, ident *Identity, modTime time.Time, content Keywords) (FileID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.paths[rel]; ok {
		rec := t.records[id]
		t.applyLocked(id, rel, ident, modTime, content.Union(rec.UserKeywords))
		return id, false
	}

	id := t.alloc.NextID()
	t.applyLocked(id, rel, ident, modTime, content.Clone())
	return id, true
}

// Move re-homes a tracked record at a new path, keeping its id and user
// keywords. The old path and name entries are pruned. It fails when newRel
// is already tracked by a different record.
func (t *Table) Move(id FileID, newRel string, ident *Identity, modTime time.Time, content Keywords) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return false
	}
	if other, taken := t.paths[newRel]; taken && other != id {
		return false
	}
	t.applyLocked(id, newRel, ident, modTime, content.Union(rec.UserKeywords))
	return true
}

// Remove strips id from every mapping and releases it for reuse.
func (t *Table) Remove(id FileID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(id)
}

// RemoveByPath removes the record tracking rel, returning its former id.
func (t *Table) RemoveByPath(rel string) (FileID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.paths[rel]
	if !ok {
		return 0, false
	}
	t.removeLocked(id)
	return id, true
}

// AddUserKeywords attaches words to id. Added words join both the user
// set and the searchable set, with postings updated.
func (t *Table) AddUserKeywords(id FileID, words []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return false
	}
	for _, w := range words {
		rec.UserKeywords.Add(w)
		if !rec.Keywords.Has(w) {
			rec.Keywords.Add(w)
			t.addPostingLocked(t.keywords, w, id)
		}
	}
	return true
}

// RemoveUserKeywords detaches words from id. Each word leaves both the
// user set and the searchable set; a word that was also extracted from
// content returns at the next re-index.
func (t *Table) RemoveUserKeywords(id FileID, words []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return false
	}
	for _, w := range words {
		delete(rec.UserKeywords, w)
		if rec.Keywords.Has(w) {
			delete(rec.Keywords, w)
			t.dropPostingLocked(t.keywords, w, id)
		}
	}
	return true
}

// ClearUserKeywords detaches every user keyword from id.
func (t *Table) ClearUserKeywords(id FileID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return false
	}
	for w := range rec.UserKeywords {
		if rec.Keywords.Has(w) {
			delete(rec.Keywords, w)
			t.dropPostingLocked(t.keywords, w, id)
		}
	}
	rec.UserKeywords = make(Keywords)
	return true
}

// Stats summarizes table size for status reporting.
type Stats struct {
	Records    int
	Keywords   int
	Names      int
	Identities int
	FreeIDs    int
	LastID     int64
}

// Stats returns current mapping sizes and allocator state.
func (t *Table) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{
		Records:    len(t.records),
		Keywords:   len(t.keywords),
		Names:      len(t.names),
		Identities: len(t.identities),
		FreeIDs:    t.alloc.FreeCount(),
		LastID:     t.alloc.Last(),
	}
}

// applyLocked writes the final state of one record and reconciles every
// mapping against its previous state. final is owned by the table after
// the call. Caller holds the write lock.
func (t *Table) applyLocked(id FileID, rel string, ident *Identity, modTime time.Time, final Keywords) {
	if ident != nil {
		// Detach from the caller's pointer; the record owns its identity.
		c := *ident
		ident = &c
	}
	old := t.records[id]

	if old != nil {
		// Keyword delta: drop postings for words that left the set,
		// then add postings for words that joined.
		for w := range old.Keywords {
			if !final.Has(w) {
				t.dropPostingLocked(t.keywords, w, id)
			}
		}
		for w := range final {
			if !old.Keywords.Has(w) {
				t.addPostingLocked(t.keywords, w, id)
			}
		}

		if old.Path != rel {
			t.dropPostingLocked(t.names, filepath.Base(old.Path), id)
			delete(t.paths, old.Path)
			t.addPostingLocked(t.names, filepath.Base(rel), id)
		}

		// A changed identity abandons the old entry if this record
		// still owned it.
		if old.Identity != nil && (ident == nil || *old.Identity != *ident) {
			if owner, ok := t.identities[*old.Identity]; ok && owner == id {
				delete(t.identities, *old.Identity)
			}
		}

		old.Path = rel
		old.Keywords = final
		old.Identity = ident
		old.ModTime = modTime
	} else {
		for w := range final {
			t.addPostingLocked(t.keywords, w, id)
		}
		t.records[id] = &FileRecord{
			Path:         rel,
			Keywords:     final,
			UserKeywords: make(Keywords),
			Identity:     ident,
			ModTime:      modTime,
		}
		t.addPostingLocked(t.names, filepath.Base(rel), id)
	}

	t.paths[rel] = id
	if ident != nil {
		// Last writer wins: with hard links the entry names whichever
		// path was indexed most recently.
		t.identities[*ident] = id
	}
}

// removeLocked strips id from every mapping and releases it.
func (t *Table) removeLocked(id FileID) bool {
	rec, ok := t.records[id]
	if !ok {
		return false
	}
	for w := range rec.Keywords {
		t.dropPostingLocked(t.keywords, w, id)
	}
	t.dropPostingLocked(t.names, rec.Basename(), id)
	delete(t.paths, rec.Path)
	if rec.Identity != nil {
		if owner, ok := t.identities[*rec.Identity]; ok && owner == id {
			delete(t.identities, *rec.Identity)
		}
	}
	delete(t.records, id)
	t.alloc.Release(id)
	return true
}

// addPostingLocked inserts id into the posting for key, creating it on
// first use.
func (t *Table) addPostingLocked(postings map[string]*Set, key string, id FileID) {
	ids, ok := postings[key]
	if !ok {
		ids = NewSet()
		postings[key] = ids
	}
	ids.Add(id)
}

// dropPostingLocked removes id from the posting for key and deletes the
// posting once empty. Empty postings never linger: an absent key and a
// key with no members are the same answer.
func (t *Table) dropPostingLocked(postings map[string]*Set, key string, id FileID) {
	ids, ok := postings[key]
	if !ok {
		return
	}
	ids.Remove(id)
	if ids.IsEmpty() {
		delete(postings, key)
	}
}
