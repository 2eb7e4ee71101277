package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrinehq/peregrine/internal/extract"
	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/indexer"
	"github.com/peregrinehq/peregrine/internal/workspace"
)

type fixture struct {
	shell *Shell
	table *index.Table
	out   *bytes.Buffer
	root  string
	saves int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	ws, err := workspace.Init(root, false)
	require.NoError(t, err)

	tbl := index.NewTable()
	ix, err := indexer.New(root, tbl, extract.NewDefault(), indexer.Options{
		DataDirName: workspace.DataDirName,
	})
	require.NoError(t, err)

	f := &fixture{table: tbl, out: &bytes.Buffer{}, root: root}
	f.shell = New(ws, tbl, ix, Options{
		Output:  f.out,
		NoColor: true,
		Save:    func() error { f.saves++; return nil },
	})
	return f
}

func (f *fixture) run(t *testing.T, line string) string {
	t.Helper()
	f.out.Reset()
	exit := f.shell.execute(context.Background(), line)
	require.False(t, exit, "command %q should not end the session", line)
	return f.out.String()
}

func newHeadlessLiner(t *testing.T) *liner.State {
	t.Helper()
	line := liner.NewLiner()
	t.Cleanup(func() { _ = line.Close() })
	return line
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestShell_Pwd_PrintsCursorDirectory(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "pwd")

	assert.Equal(t, f.root+"\n", out)
}

func TestShell_Cd_MovesCursorAndPwdFollows(t *testing.T) {
	f := newFixture(t)
	f.write(t, "docs/guide.txt", "x")

	f.run(t, "cd docs")
	out := f.run(t, "pwd")
	assert.Equal(t, filepath.Join(f.root, "docs")+"\n", out)

	// A leading slash anchors at the workspace root.
	f.run(t, "cd /")
	out = f.run(t, "pwd")
	assert.Equal(t, f.root+"\n", out)
}

func TestShell_Cd_MissingDirectory_ErrorsInPlace(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "cd ghost")

	assert.Contains(t, out, "no such directory")
	assert.Equal(t, ".", f.shell.cwd)
}

func TestShell_Cd_EscapeAttempt_Rejected(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "cd ../outside")

	assert.Contains(t, out, "✗")
	assert.Equal(t, ".", f.shell.cwd)
}

func TestShell_Ls_SortsAndMarksDirectories(t *testing.T) {
	f := newFixture(t)
	f.write(t, "zeta.txt", "x")
	f.write(t, "alpha/inner.txt", "x")
	f.write(t, "beta.md", "x")

	out := f.run(t, "ls")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// The data dir is a real directory and lists like any other.
	assert.Equal(t, []string{".peregrine/", "alpha/", "beta.md", "zeta.txt"}, lines)
}

func TestShell_Find_PrintsBestMatchesFirstWithCount(t *testing.T) {
	f := newFixture(t)
	f.write(t, "report.txt", "quarterly budget report")
	f.write(t, "notes.txt", "meeting notes budget")
	f.run(t, "index /")

	out := f.run(t, "find budget report")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	// Both keywords hit report.txt; only one hits notes.txt.
	assert.Equal(t, "report.txt", lines[0])
	assert.Equal(t, "notes.txt", lines[1])
	assert.Equal(t, "2 files", lines[2])
}

func TestShell_Find_NoArguments_PrintsUsage(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "find")

	assert.Contains(t, out, "usage: find")
}

func TestShell_Meta_AddRemoveClear_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.write(t, "plan.txt", "plain content")
	f.run(t, "index plan.txt")
	id, ok := f.table.IDForPath("plan.txt")
	require.True(t, ok)

	out := f.run(t, "meta plan.txt --add urgent,q3")
	assert.Contains(t, out, "added 2 keywords")
	user, _ := f.table.UserKeywordsOf(id)
	assert.ElementsMatch(t, []string{"urgent", "q3"}, user)

	out = f.run(t, "meta plan.txt --rm urgent")
	assert.Contains(t, out, "removed 1 keywords")
	user, _ = f.table.UserKeywordsOf(id)
	assert.Equal(t, []string{"q3"}, user)

	out = f.run(t, "meta plan.txt --clear")
	assert.Contains(t, out, "cleared")
	user, _ = f.table.UserKeywordsOf(id)
	assert.Empty(t, user)
}

func TestShell_Meta_UntrackedPath_Errors(t *testing.T) {
	f := newFixture(t)
	f.write(t, "loose.txt", "x")

	out := f.run(t, "meta loose.txt --add tag")

	assert.Contains(t, out, "not tracked")
}

func TestShell_Meta_MutationsCallTheSaveHook(t *testing.T) {
	f := newFixture(t)
	f.write(t, "plan.txt", "content")
	f.run(t, "index plan.txt")
	saves := f.saves

	f.run(t, "meta plan.txt --add tag")

	assert.Equal(t, saves+1, f.saves)
}

func TestShell_SaveHookFailure_KeepsSessionAlive(t *testing.T) {
	f := newFixture(t)
	f.write(t, "plan.txt", "content")
	f.run(t, "index plan.txt")
	f.shell.save = func() error { return assert.AnError }

	out := f.run(t, "meta plan.txt --add tag")

	assert.Contains(t, out, "save failed")
	assert.True(t, f.shell.dirty)
}

func TestShell_Index_TreeSummaryAndFileAction(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.txt", "alpha words")
	f.write(t, "sub/b.txt", "beta words")

	out := f.run(t, "index")
	assert.Contains(t, out, "indexed 2 files (2 added")

	f.write(t, "c.txt", "gamma words")
	out = f.run(t, "index c.txt")
	assert.Contains(t, out, "added c.txt")
}

func TestShell_Extract_PrintsRankedPhrases(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "extract the budget for quarterly review")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	// Two-word phrases outscore single words under degree scoring.
	assert.Equal(t, " 1. quarterly review", lines[0])
	assert.Equal(t, " 2. budget", lines[1])
}

func TestShell_UnknownCommand_SuggestsHelp(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "teleport")

	assert.Contains(t, out, `unknown command "teleport"`)
	assert.Contains(t, out, "help")
}

func TestShell_Help_ListsEveryCommand(t *testing.T) {
	f := newFixture(t)

	out := f.run(t, "help")

	for _, cmd := range []string{"pwd", "cd", "ls", "find", "meta", "index", "extract", "exit"} {
		assert.Contains(t, out, cmd)
	}
}

func TestShell_ExitCommand_EndsSession(t *testing.T) {
	f := newFixture(t)

	exit := f.shell.execute(context.Background(), "exit")

	assert.True(t, exit)
}

func TestShell_SaveHistory_TrimsToConfiguredCap(t *testing.T) {
	f := newFixture(t)
	f.shell.histCap = 2
	f.shell.line = newHeadlessLiner(t)

	f.shell.line.AppendHistory("find alpha")
	f.shell.line.AppendHistory("find beta")
	f.shell.line.AppendHistory("find gamma")
	f.shell.saveHistory()

	data, err := os.ReadFile(f.shell.ws.HistoryPath())
	require.NoError(t, err)
	assert.Equal(t, "find beta\nfind gamma\n", string(data))
}

func TestShell_LoadHistory_MissingFileStartsEmpty(t *testing.T) {
	f := newFixture(t)
	f.shell.line = newHeadlessLiner(t)

	f.shell.loadHistory() // no history file yet

	var buf bytes.Buffer
	_, err := f.shell.line.WriteHistory(&buf)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestTokenize_HonorsQuotes(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"ls docs", []string{"ls", "docs"}},
		{`cd "my docs"`, []string{"cd", "my docs"}},
		{"meta 'draft copy.txt' --add tag", []string{"meta", "draft copy.txt", "--add", "tag"}},
		{"  spaced   out  ", []string{"spaced", "out"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tokenize(tt.line), "line %q", tt.line)
	}
}

func TestSplitKeywords_FlattensCommaGroups(t *testing.T) {
	got := splitKeywords([]string{"a,b", "c", " d ,", ""})

	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}
