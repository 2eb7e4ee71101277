package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_EmptyMatcher_IgnoresNothing(t *testing.T) {
	m := New()

	assert.False(t, m.Match("anything.txt", false))
	assert.False(t, m.Match("deep/nested/file.go", false))
}

func TestMatcher_BasenamePatterns(t *testing.T) {
	m := New()
	m.AddPattern("*.log")
	m.AddPattern("scratch.txt")

	assert.True(t, m.Match("app.log", false))
	assert.True(t, m.Match("nested/deep/app.log", false))
	assert.True(t, m.Match("scratch.txt", false))
	assert.False(t, m.Match("app.log.txt", false))
	assert.False(t, m.Match("notes.md", false))
}

func TestMatcher_CommentsAndBlankLines_Skipped(t *testing.T) {
	m := New()
	m.AddPattern("# this is a comment")
	m.AddPattern("   ")
	m.AddPattern("")

	assert.Equal(t, 0, m.Len())
}

func TestMatcher_DirectoryOnlyPattern(t *testing.T) {
	m := New()
	m.AddPattern("build/")

	assert.True(t, m.Match("build", true))
	assert.False(t, m.Match("build", false), "plain file named build stays")
	assert.True(t, m.Match("build/out.bin", false), "contents of the directory are covered")
	assert.True(t, m.Match("sub/build/out.bin", false))
}

func TestMatcher_AnchoredPattern_OnlyMatchesFromMatcherDir(t *testing.T) {
	m := New()
	m.AddPattern("/top.txt")
	m.AddPattern("doc/drafts")

	assert.True(t, m.Match("top.txt", false))
	assert.False(t, m.Match("sub/top.txt", false))

	assert.True(t, m.Match("doc/drafts", true))
	assert.True(t, m.Match("doc/drafts/a.md", false))
	assert.False(t, m.Match("other/doc/drafts", true))
}

func TestMatcher_Negation_LastMatchWins(t *testing.T) {
	m := New()
	m.AddPattern("*.log")
	m.AddPattern("!keep.log")

	assert.True(t, m.Match("app.log", false))
	assert.False(t, m.Match("keep.log", false))
}

func TestMatcher_DoubleStarPatterns(t *testing.T) {
	m := New()
	m.AddPattern("**/tmp/*.bak")

	assert.True(t, m.Match("tmp/a.bak", false))
	assert.True(t, m.Match("x/y/tmp/a.bak", false))
	assert.False(t, m.Match("tmp/sub/a.bak", false))
}

func TestMatcher_QuestionMarkAndClass(t *testing.T) {
	m := New()
	m.AddPattern("file?.txt")
	m.AddPattern("v[0-9].dat")

	assert.True(t, m.Match("file1.txt", false))
	assert.False(t, m.Match("file10.txt", false))
	assert.True(t, m.Match("v7.dat", false))
	assert.False(t, m.Match("vx.dat", false))
}

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".peregrineignore")
	content := "# build artifacts\n*.o\nbin/\n\n!bin/keep.me\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path))

	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Match("obj/main.o", false))
	assert.True(t, m.Match("bin/tool", false))
	assert.False(t, m.Match("bin/keep.me", false))
}

func TestMatcher_AddFromFile_Missing_ReturnsError(t *testing.T) {
	m := New()
	err := m.AddFromFile(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}
