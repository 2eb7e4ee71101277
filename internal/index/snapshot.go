package index

import (
	"fmt"
	"sort"
	"time"
)

// RecordSnapshot is the persisted form of one FileRecord.
type RecordSnapshot struct {
	ID           uint64    `json:"id"`
	Path         string    `json:"path"`
	Keywords     []string  `json:"keywords"`
	UserKeywords []string  `json:"user_keywords,omitempty"`
	Identity     *Identity `json:"identity,omitempty"`
	ModTimeNanos int64     `json:"mtime_ns"`
}

// IdentityEntry is one persisted identity mapping. Identities are a slice
// rather than a map because the struct key has no JSON representation.
type IdentityEntry struct {
	Identity Identity `json:"identity"`
	ID       uint64   `json:"id"`
}

// Snapshot is the complete serializable image of a Table: all five
// mappings plus allocator state. Slices are emitted in deterministic
// order so identical tables produce identical snapshots.
type Snapshot struct {
	Records    []RecordSnapshot    `json:"records"`
	Paths      map[string]uint64   `json:"paths"`
	Names      map[string][]uint64 `json:"names"`
	Keywords   map[string][]uint64 `json:"keywords"`
	Identities []IdentityEntry     `json:"identities"`
	FreeIDs    []uint64            `json:"free_ids"`
	LastID     int64               `json:"last_id"`
}

// Snapshot captures the current table state.
func (t *Table) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := &Snapshot{
		Records:    make([]RecordSnapshot, 0, len(t.records)),
		Paths:      make(map[string]uint64, len(t.paths)),
		Names:      make(map[string][]uint64, len(t.names)),
		Keywords:   make(map[string][]uint64, len(t.keywords)),
		Identities: make([]IdentityEntry, 0, len(t.identities)),
		FreeIDs:    make([]uint64, 0, t.alloc.FreeCount()),
		LastID:     t.alloc.Last(),
	}

	for id, rec := range t.records {
		rs := RecordSnapshot{
			ID:           uint64(id),
			Path:         rec.Path,
			Keywords:     rec.Keywords.Sorted(),
			Identity:     rec.identityCopy(),
			ModTimeNanos: rec.ModTime.UnixNano(),
		}
		if len(rec.UserKeywords) > 0 {
			rs.UserKeywords = rec.UserKeywords.Sorted()
		}
		snap.Records = append(snap.Records, rs)
	}
	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].ID < snap.Records[j].ID
	})

	for rel, id := range t.paths {
		snap.Paths[rel] = uint64(id)
	}
	for base, ids := range t.names {
		snap.Names[base] = idsToUint64(ids)
	}
	for kw, ids := range t.keywords {
		snap.Keywords[kw] = idsToUint64(ids)
	}

	for ident, id := range t.identities {
		snap.Identities = append(snap.Identities, IdentityEntry{Identity: ident, ID: uint64(id)})
	}
	sort.Slice(snap.Identities, func(i, j int) bool {
		a, b := snap.Identities[i].Identity, snap.Identities[j].Identity
		if a.Dev != b.Dev {
			return a.Dev < b.Dev
		}
		return a.Ino < b.Ino
	})

	for _, id := range t.alloc.FreeIDs() {
		snap.FreeIDs = append(snap.FreeIDs, uint64(id))
	}
	return snap
}

// FromSnapshot rebuilds a table verbatim from a persisted snapshot. It
// validates the structural essentials and rejects snapshots whose records
// are duplicated or whose ids exceed the recorded allocator high-water
// mark; deeper invariant auditing is Verify's job.
func FromSnapshot(snap *Snapshot) (*Table, error) {
	t := NewTable()
	t.alloc = restoreAllocatorFromSnapshot(snap)

	for _, rs := range snap.Records {
		id := FileID(rs.ID)
		if _, dup := t.records[id]; dup {
			return nil, fmt.Errorf("duplicate record id %d", rs.ID)
		}
		if int64(rs.ID) > snap.LastID {
			return nil, fmt.Errorf("record id %d beyond allocator high-water mark %d", rs.ID, snap.LastID)
		}
		rec := &FileRecord{
			Path:         rs.Path,
			Keywords:     NewKeywords(rs.Keywords...),
			UserKeywords: NewKeywords(rs.UserKeywords...),
			Identity:     rs.Identity,
			ModTime:      time.Unix(0, rs.ModTimeNanos),
		}
		t.records[id] = rec
	}

	for rel, id := range snap.Paths {
		t.paths[rel] = FileID(id)
	}
	for base, ids := range snap.Names {
		t.names[base] = NewSet(uint64sToIDs(ids)...)
	}
	for kw, ids := range snap.Keywords {
		t.keywords[kw] = NewSet(uint64sToIDs(ids)...)
	}
	for _, entry := range snap.Identities {
		t.identities[entry.Identity] = FileID(entry.ID)
	}
	return t, nil
}

func restoreAllocatorFromSnapshot(snap *Snapshot) *Allocator {
	free := make([]FileID, len(snap.FreeIDs))
	for i, id := range snap.FreeIDs {
		free[i] = FileID(id)
	}
	return restoreAllocator(free, snap.LastID)
}

func idsToUint64(ids *Set) []uint64 {
	out := make([]uint64, 0, ids.Len())
	for id := range ids.All() {
		out = append(out, uint64(id))
	}
	return out
}

func uint64sToIDs(raw []uint64) []FileID {
	ids := make([]FileID, len(raw))
	for i, v := range raw {
		ids[i] = FileID(v)
	}
	return ids
}
