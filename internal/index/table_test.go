package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ident(dev, ino uint64) *Identity {
	return &Identity{Dev: dev, Ino: ino}
}

func mtime(hour int) time.Time {
	return time.Date(2024, 3, 15, hour, 0, 0, 0, time.Local)
}

func TestTable_Upsert_NewPath_CreatesRecord(t *testing.T) {
	tbl := NewTable()

	id, created := tbl.Upsert("docs/report.txt", ident(1, 100), mtime(9), NewKeywords("alpha", "budget"))

	require.True(t, created)
	assert.Equal(t, FileID(0), id)
	assert.Equal(t, 1, tbl.Len())

	path, ok := tbl.PathOf(id)
	require.True(t, ok)
	assert.Equal(t, "docs/report.txt", path)

	assert.Equal(t, []FileID{id}, tbl.KeywordIDs("alpha").Slice())
	assert.Equal(t, []FileID{id}, tbl.KeywordIDs("budget").Slice())
	assert.Equal(t, []FileID{id}, tbl.NameIDs("report.txt").Slice())

	owner, ok := tbl.OwnerOf(Identity{Dev: 1, Ino: 100})
	require.True(t, ok)
	assert.Equal(t, id, owner)
}

func TestTable_Upsert_SamePath_KeepsIDAndAppliesKeywordDelta(t *testing.T) {
	// Given: a file indexed with keywords {alpha, beta}
	tbl := NewTable()
	id, _ := tbl.Upsert("note.md", ident(1, 1), mtime(9), NewKeywords("alpha", "beta"))

	// When: the file is re-indexed with keywords {beta, gamma}
	again, created := tbl.Upsert("note.md", ident(1, 1), mtime(10), NewKeywords("beta", "gamma"))

	// Then: same id, postings reflect only the new set
	assert.False(t, created)
	assert.Equal(t, id, again)
	assert.True(t, tbl.KeywordIDs("alpha").IsEmpty(), "alpha posting is gone")
	assert.Equal(t, []FileID{id}, tbl.KeywordIDs("beta").Slice())
	assert.Equal(t, []FileID{id}, tbl.KeywordIDs("gamma").Slice())

	mt, ok := tbl.ModTimeOf(id)
	require.True(t, ok)
	assert.Equal(t, mtime(10), mt)
}

func TestTable_Upsert_EmptiedPosting_IsPruned(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert("a.txt", nil, mtime(9), NewKeywords("shared", "only-a"))
	tbl.Upsert("b.txt", nil, mtime(9), NewKeywords("shared"))

	tbl.Upsert("a.txt", nil, mtime(10), NewKeywords("shared"))

	// only-a had a single member; its posting must not linger empty.
	stats := tbl.Stats()
	assert.Equal(t, 1, stats.Keywords)
	assert.Equal(t, 2, tbl.KeywordIDs("shared").Len())
}

func TestTable_UserKeywords_SurviveReindex(t *testing.T) {
	// Given: a file with a user-attached keyword
	tbl := NewTable()
	id, _ := tbl.Upsert("plan.txt", ident(1, 5), mtime(9), NewKeywords("draft"))
	require.True(t, tbl.AddUserKeywords(id, []string{"urgent"}))

	// When: the file changes on disk and is re-indexed
	tbl.Upsert("plan.txt", ident(1, 5), mtime(11), NewKeywords("final"))

	// Then: extracted keywords are replaced, the user keyword stays
	kws, ok := tbl.KeywordsOf(id)
	require.True(t, ok)
	assert.Equal(t, []string{"final", "urgent"}, kws)
	assert.True(t, tbl.KeywordIDs("draft").IsEmpty())
	assert.Equal(t, []FileID{id}, tbl.KeywordIDs("urgent").Slice())

	user, _ := tbl.UserKeywordsOf(id)
	assert.Equal(t, []string{"urgent"}, user)
}

func TestTable_AddUserKeywords_AlreadyExtracted_NoDoubleCounting(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Upsert("plan.txt", nil, mtime(9), NewKeywords("draft"))

	tbl.AddUserKeywords(id, []string{"draft"})
	tbl.RemoveUserKeywords(id, []string{"draft"})

	// Removal takes the word out of the searchable set until re-index.
	assert.True(t, tbl.KeywordIDs("draft").IsEmpty())

	tbl.Upsert("plan.txt", nil, mtime(10), NewKeywords("draft"))
	assert.Equal(t, []FileID{id}, tbl.KeywordIDs("draft").Slice())
}

func TestTable_ClearUserKeywords_DropsOnlyUserWords(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Upsert("plan.txt", nil, mtime(9), NewKeywords("draft"))
	tbl.AddUserKeywords(id, []string{"urgent", "q3"})

	require.True(t, tbl.ClearUserKeywords(id))

	kws, _ := tbl.KeywordsOf(id)
	assert.Equal(t, []string{"draft"}, kws)
	user, _ := tbl.UserKeywordsOf(id)
	assert.Empty(t, user)
	assert.True(t, tbl.KeywordIDs("urgent").IsEmpty())
}

func TestTable_Remove_StripsEveryMappingAndRecyclesID(t *testing.T) {
	// Given: two indexed files
	tbl := NewTable()
	first, _ := tbl.Upsert("a/report.txt", ident(1, 10), mtime(9), NewKeywords("alpha"))
	tbl.Upsert("b/other.txt", ident(1, 11), mtime(9), NewKeywords("beta"))

	// When: the first is removed
	require.True(t, tbl.Remove(first))

	// Then: no mapping knows it any more
	_, ok := tbl.PathOf(first)
	assert.False(t, ok)
	_, ok = tbl.IDForPath("a/report.txt")
	assert.False(t, ok)
	assert.True(t, tbl.KeywordIDs("alpha").IsEmpty())
	assert.True(t, tbl.NameIDs("report.txt").IsEmpty())
	_, ok = tbl.OwnerOf(Identity{Dev: 1, Ino: 10})
	assert.False(t, ok)

	// And: the released id is reused before any new one
	reused, created := tbl.Upsert("c/new.txt", ident(1, 12), mtime(10), NewKeywords("gamma"))
	assert.True(t, created)
	assert.Equal(t, first, reused)
}

func TestTable_Remove_MissingID_ReturnsFalse(t *testing.T) {
	tbl := NewTable()
	assert.False(t, tbl.Remove(42))
}

func TestTable_Move_RehomesRecordKeepingIDAndUserKeywords(t *testing.T) {
	// Given: a tracked file with a user keyword
	tbl := NewTable()
	id, _ := tbl.Upsert("old/name.txt", ident(1, 20), mtime(9), NewKeywords("alpha"))
	tbl.AddUserKeywords(id, []string{"pinned"})

	// When: the file moves to a new path with fresh content
	ok := tbl.Move(id, "new/renamed.txt", ident(1, 20), mtime(10), NewKeywords("beta"))
	require.True(t, ok)

	// Then: the old path and name entries are pruned, id is unchanged
	_, tracked := tbl.IDForPath("old/name.txt")
	assert.False(t, tracked)
	assert.True(t, tbl.NameIDs("name.txt").IsEmpty())

	got, tracked := tbl.IDForPath("new/renamed.txt")
	require.True(t, tracked)
	assert.Equal(t, id, got)
	assert.Equal(t, []FileID{id}, tbl.NameIDs("renamed.txt").Slice())

	kws, _ := tbl.KeywordsOf(id)
	assert.Equal(t, []string{"beta", "pinned"}, kws)
}

func TestTable_Move_TargetTrackedByOther_Fails(t *testing.T) {
	tbl := NewTable()
	a, _ := tbl.Upsert("a.txt", ident(1, 1), mtime(9), NewKeywords("alpha"))
	tbl.Upsert("b.txt", ident(1, 2), mtime(9), NewKeywords("beta"))

	assert.False(t, tbl.Move(a, "b.txt", ident(1, 1), mtime(10), NewKeywords("alpha")))
	assert.False(t, tbl.Move(99, "c.txt", nil, mtime(10), NewKeywords()))

	// Nothing changed.
	path, _ := tbl.PathOf(a)
	assert.Equal(t, "a.txt", path)
}

func TestTable_HardLinks_IdentityLastWriterWins(t *testing.T) {
	// Given: two paths sharing one physical identity
	tbl := NewTable()
	shared := Identity{Dev: 7, Ino: 700}
	first, _ := tbl.Upsert("link1.txt", &shared, mtime(9), NewKeywords("alpha"))
	second, _ := tbl.Upsert("link2.txt", &shared, mtime(9), NewKeywords("alpha"))

	// Then: both records exist, identity names the most recent
	require.NotEqual(t, first, second)
	assert.Equal(t, 2, tbl.Len())
	owner, ok := tbl.OwnerOf(shared)
	require.True(t, ok)
	assert.Equal(t, second, owner)

	// Removing the non-owner leaves the entry intact.
	tbl.Remove(first)
	owner, ok = tbl.OwnerOf(shared)
	require.True(t, ok)
	assert.Equal(t, second, owner)
}

func TestTable_NamePosting_CollectsSameBasenameAcrossDirs(t *testing.T) {
	tbl := NewTable()
	a, _ := tbl.Upsert("x/readme.md", nil, mtime(9), NewKeywords())
	b, _ := tbl.Upsert("y/readme.md", nil, mtime(9), NewKeywords())

	assert.Equal(t, []FileID{a, b}, tbl.NameIDs("readme.md").Slice())
}

func TestTable_Lookup_ReturnsDetachedIdentity(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert("a.txt", ident(3, 30), mtime(9), NewKeywords())

	_, got, _, ok := tbl.Lookup("a.txt")
	require.True(t, ok)
	got.Ino = 999

	_, again, _, _ := tbl.Lookup("a.txt")
	assert.Equal(t, uint64(30), again.Ino, "caller mutation must not reach the table")
}

func TestTable_KeywordIDs_ReturnsClone(t *testing.T) {
	tbl := NewTable()
	id, _ := tbl.Upsert("a.txt", nil, mtime(9), NewKeywords("alpha"))

	clone := tbl.KeywordIDs("alpha")
	clone.Remove(id)

	assert.Equal(t, []FileID{id}, tbl.KeywordIDs("alpha").Slice())
}

func TestTable_Stats_ReflectsMappingSizes(t *testing.T) {
	tbl := NewTable()
	tbl.Upsert("a/f.txt", ident(1, 1), mtime(9), NewKeywords("alpha", "beta"))
	tbl.Upsert("b/g.txt", ident(1, 2), mtime(9), NewKeywords("beta"))
	id, _ := tbl.Upsert("c/h.txt", ident(1, 3), mtime(9), NewKeywords("gamma"))
	tbl.Remove(id)

	stats := tbl.Stats()
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 2, stats.Keywords)
	assert.Equal(t, 2, stats.Names)
	assert.Equal(t, 2, stats.Identities)
	assert.Equal(t, 1, stats.FreeIDs)
	assert.Equal(t, int64(2), stats.LastID)
}

func TestTable_ScanModTimes_VisitsEveryRecord(t *testing.T) {
	tbl := NewTable()
	a, _ := tbl.Upsert("a.txt", nil, mtime(8), NewKeywords())
	b, _ := tbl.Upsert("b.txt", nil, mtime(12), NewKeywords())

	seen := make(map[FileID]time.Time)
	tbl.ScanModTimes(func(id FileID, mt time.Time) {
		seen[id] = mt
	})

	require.Len(t, seen, 2)
	assert.Equal(t, mtime(8), seen[a])
	assert.Equal(t, mtime(12), seen[b])
}
