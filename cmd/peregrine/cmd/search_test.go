package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCmd_Keyword_PrintsMatchingPaths(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching a keyword both docs share
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"search", "budget"})

	err := cmd.Execute()

	// Then: both carriers are printed, one per line, and nothing else
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "docs/budget-report.txt")
	assert.Contains(t, output, "docs/meeting-notes.txt")
	assert.NotContains(t, output, "zebra.txt")
}

func TestSearchCmd_UppercaseQuery_StillMatches(t *testing.T) {
	// Given: an indexed workspace (extraction stores lowercase tokens)
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching with different case
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"search", "BUDGET"})

	err := cmd.Execute()

	// Then: the query is normalized and matches
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "docs/budget-report.txt")
}

func TestSearchCmd_MultipleKeywords_WidenToAnyMatch(t *testing.T) {
	// Given: keywords carried by different files
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching for both at once
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"search", "budget", "zebra"})

	err := cmd.Execute()

	// Then: files matching either keyword appear
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "docs/budget-report.txt")
	assert.Contains(t, output, "docs/meeting-notes.txt")
	assert.Contains(t, output, "zebra.txt")
}

func TestSearchCmd_FuzzyKeyword_CatchesTypo(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching a misspelled keyword with --fuzzy
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"search", "-k", "budgt", "-f"})

	err := cmd.Execute()

	// Then: the similar keyword still matches
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "docs/budget-report.txt")
}

func TestSearchCmd_ExactName_FindsFile(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching by exact basename
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"search", "-n", "meeting-notes.txt"})

	err := cmd.Execute()

	// Then: the file is found by name
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "docs/meeting-notes.txt")
}

func TestSearchCmd_FuzzyName_MatchesBySubstring(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching a name fragment with --fuzzy
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"search", "-n", "meeting", "-f"})

	err := cmd.Execute()

	// Then: containment matches the full basename
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "docs/meeting-notes.txt")
}

func TestSearchCmd_DateWindowAlone_FiltersByDay(t *testing.T) {
	// Given: one file modified on a known day in 2020
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching by date only
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"search", "--date", "20200515"})

	err := cmd.Execute()

	// Then: only that file falls inside the window
	require.NoError(t, err)
	assert.Equal(t, "zebra.txt\n", buf.String())
}

func TestSearchCmd_KeywordWithBeforeWindow_Filters(t *testing.T) {
	// Given: budget files modified today, zebra modified in 2020
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: restricting a keyword match to before the end of 2021
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"search", "budget", "--date", "2021", "--op", "before"})

	err := cmd.Execute()

	// Then: today's files are excluded and the miss is hinted
	require.NoError(t, err)
	assert.Empty(t, buf.String())
	assert.Contains(t, errBuf.String(), "no matches")
}

func TestSearchCmd_MalformedDate_WarnsButStillSearches(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching with a date that parses to nothing
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"search", "zebra", "--date", "99"})

	err := cmd.Execute()

	// Then: the window is dropped with a warning, the query still runs
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "zebra.txt")
	assert.NotEmpty(t, errBuf.String())
}

func TestSearchCmd_JSON_EmitsReport(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: searching with --json
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"search", "--json", "zebra"})

	err := cmd.Execute()

	// Then: the report parses with the matching path
	require.NoError(t, err)
	var report struct {
		Count   int      `json:"count"`
		Results []string `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 1, report.Count)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "zebra.txt", report.Results[0])
}

func TestSearchCmd_PositionalAndFlagSelectors_Conflict(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: mixing positional keywords with --keyword
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "budget", "-k", "zebra"})

	err := cmd.Execute()

	// Then: it fails
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestSearchCmd_KeywordAndNameFlags_AreExclusive(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: passing both --keyword and --name
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "-k", "budget", "-n", "zebra.txt"})

	err := cmd.Execute()

	// Then: cobra rejects the combination
	assert.Error(t, err)
}

func TestSearchCmd_NothingToSearch_Fails(t *testing.T) {
	// Given: an indexed workspace
	dir := initWorkspace(t)
	t.Chdir(dir)

	// When: running search with no selector at all
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search"})

	err := cmd.Execute()

	// Then: it fails with usage guidance
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to search")
}

func TestSearchCmd_OutsideWorkspace_Fails(t *testing.T) {
	// Given: a directory that was never initialized
	t.Chdir(t.TempDir())

	// When: searching
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "budget"})

	err := cmd.Execute()

	// Then: it fails with a pointer to init
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no peregrine workspace")
}
