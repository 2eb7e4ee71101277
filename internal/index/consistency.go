package index

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

// InconsistencyType categorizes detected cross-mapping issues.
type InconsistencyType int

const (
	// InconsistencyMissingPath indicates a record whose path is not mapped
	// back to its id.
	InconsistencyMissingPath InconsistencyType = iota
	// InconsistencyOrphanPath indicates a path entry pointing at a missing
	// or relocated record.
	InconsistencyOrphanPath
	// InconsistencyMissingName indicates a record absent from its basename
	// posting.
	InconsistencyMissingName
	// InconsistencyOrphanName indicates a name posting member without a
	// matching record.
	InconsistencyOrphanName
	// InconsistencyMissingKeyword indicates a record keyword without a
	// posting membership.
	InconsistencyMissingKeyword
	// InconsistencyOrphanKeyword indicates a keyword posting member whose
	// record does not carry the keyword.
	InconsistencyOrphanKeyword
	// InconsistencyOrphanIdentity indicates an identity entry whose owner
	// is gone or no longer has that identity.
	InconsistencyOrphanIdentity
	// InconsistencyLiveFreeID indicates an id that is both recorded and in
	// the allocator free pool.
	InconsistencyLiveFreeID
)

// String returns a short machine-friendly name for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMissingPath:
		return "missing_path"
	case InconsistencyOrphanPath:
		return "orphan_path"
	case InconsistencyMissingName:
		return "missing_name"
	case InconsistencyOrphanName:
		return "orphan_name"
	case InconsistencyMissingKeyword:
		return "missing_keyword"
	case InconsistencyOrphanKeyword:
		return "orphan_keyword"
	case InconsistencyOrphanIdentity:
		return "orphan_identity"
	case InconsistencyLiveFreeID:
		return "live_free_id"
	default:
		return "unknown"
	}
}

// Inconsistency represents one detected cross-mapping issue.
type Inconsistency struct {
	Type    InconsistencyType
	ID      FileID
	Key     string
	Details string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of records verified.
	Checked int
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// Verify audits every mapping against the records, the authoritative
// state. It confirms that each record is reachable through its path, name
// and keyword entries, that no posting references a missing or mismatched
// record, that identity entries name live owners, and that no recorded id
// sits in the allocator free pool. O(n) over all mapping entries.
func (t *Table) Verify() *CheckResult {
	start := time.Now()
	t.mu.RLock()
	defer t.mu.RUnlock()

	var issues []Inconsistency

	for id, rec := range t.records {
		if mapped, ok := t.paths[rec.Path]; !ok || mapped != id {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyMissingPath,
				ID:      id,
				Key:     rec.Path,
				Details: "record path not mapped back to its id",
			})
		}
		base := rec.Basename()
		if ids, ok := t.names[base]; !ok || !ids.Contains(id) {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyMissingName,
				ID:      id,
				Key:     base,
				Details: "record absent from its basename posting",
			})
		}
		for w := range rec.Keywords {
			if ids, ok := t.keywords[w]; !ok || !ids.Contains(id) {
				issues = append(issues, Inconsistency{
					Type:    InconsistencyMissingKeyword,
					ID:      id,
					Key:     w,
					Details: "record keyword without posting membership",
				})
			}
		}
		if t.alloc.free.Contains(uint64(id)) {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyLiveFreeID,
				ID:      id,
				Details: "recorded id present in the free pool",
			})
		}
	}

	for rel, id := range t.paths {
		rec, ok := t.records[id]
		if !ok || rec.Path != rel {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyOrphanPath,
				ID:      id,
				Key:     rel,
				Details: "path entry pointing at a missing or relocated record",
			})
		}
	}

	issues = append(issues, t.auditPostingsLocked(t.names, InconsistencyOrphanName,
		func(rec *FileRecord, key string) bool { return rec.Basename() == key })...)
	issues = append(issues, t.auditPostingsLocked(t.keywords, InconsistencyOrphanKeyword,
		func(rec *FileRecord, key string) bool { return rec.Keywords.Has(key) })...)

	for ident, id := range t.identities {
		rec, ok := t.records[id]
		if !ok || rec.Identity == nil || *rec.Identity != ident {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyOrphanIdentity,
				ID:      id,
				Key:     fmt.Sprintf("dev=%d ino=%d", ident.Dev, ident.Ino),
				Details: "identity entry whose owner is gone or changed",
			})
		}
	}

	return &CheckResult{
		Checked:         len(t.records),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}
}

// auditPostingsLocked flags posting members that no record backs. An empty
// posting is flagged too: it should have been deleted with its last member.
func (t *Table) auditPostingsLocked(postings map[string]*Set, typ InconsistencyType, backs func(*FileRecord, string) bool) []Inconsistency {
	var issues []Inconsistency
	for key, ids := range postings {
		if ids.IsEmpty() {
			issues = append(issues, Inconsistency{
				Type:    typ,
				Key:     key,
				Details: "empty posting left behind",
			})
			continue
		}
		for id := range ids.All() {
			rec, ok := t.records[id]
			if !ok || !backs(rec, key) {
				issues = append(issues, Inconsistency{
					Type:    typ,
					ID:      id,
					Key:     key,
					Details: "posting member without a backing record",
				})
			}
		}
	}
	return issues
}

// QuickCheck performs a lightweight consistency check. It only verifies
// that mapping sizes agree, not individual entries. Returns true when the
// counts are consistent.
func (t *Table) QuickCheck() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.paths) == len(t.records)
}

// Rebuild reconstructs every derived mapping from the records. It is the
// repair path for a table that failed Verify: paths, names, keywords and
// identities are rebuilt from scratch; records and allocator state are
// left untouched. With hard links the rebuilt identity entry names the
// owner with the highest id, since the original last-writer order is not
// recoverable. Returns the number of records processed.
func (t *Table) Rebuild() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.paths = make(map[string]FileID, len(t.records))
	t.names = make(map[string]*Set)
	t.keywords = make(map[string]*Set)
	t.identities = make(map[Identity]FileID)

	ids := make([]FileID, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	// Ascending order makes the identity tie-break deterministic.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		rec := t.records[id]
		t.paths[rec.Path] = id
		t.addPostingLocked(t.names, filepath.Base(rec.Path), id)
		for w := range rec.Keywords {
			t.addPostingLocked(t.keywords, w, id)
		}
		if rec.Identity != nil {
			t.identities[*rec.Identity] = id
		}
	}
	return len(ids)
}
