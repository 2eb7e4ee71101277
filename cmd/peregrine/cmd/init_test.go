package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrinehq/peregrine/internal/workspace"
)

func TestInitCmd_CreatesWorkspaceScaffolding(t *testing.T) {
	// Given: a directory with some documents
	dir := t.TempDir()
	seedFiles(t, dir)

	// When: initializing it
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", dir})

	err := cmd.Execute()

	// Then: data dir, marker, config template, gitignore entry and a
	// first snapshot all exist
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, workspace.DataDirName))
	assert.FileExists(t, filepath.Join(dir, workspace.DataDirName, workspace.MarkerFileName))
	assert.FileExists(t, filepath.Join(dir, ".peregrine.yaml"))
	assert.FileExists(t, filepath.Join(dir, workspace.DataDirName, "index.db"))

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), ".peregrine/")

	output := buf.String()
	assert.Contains(t, output, "initialized workspace")
	assert.Contains(t, output, "Indexed")
	assert.Contains(t, output, "workspace ready")
}

func TestInitCmd_SecondInitWithoutForce_Fails(t *testing.T) {
	// Given: an already initialized workspace
	dir := initWorkspace(t)

	// When: initializing again
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", dir})

	err := cmd.Execute()

	// Then: it refuses
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInitCmd_ForceResetsIndexData(t *testing.T) {
	// Given: an initialized workspace with extra state in the data dir
	dir := initWorkspace(t)
	junk := filepath.Join(dir, workspace.DataDirName, "stale.tmp")
	require.NoError(t, os.WriteFile(junk, []byte("old"), 0o644))

	// When: re-initializing with --force
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", "--force", dir})

	err := cmd.Execute()

	// Then: the data dir was rebuilt and user files survived
	require.NoError(t, err)
	assert.NoFileExists(t, junk)
	assert.FileExists(t, filepath.Join(dir, "zebra.txt"))
	assert.FileExists(t, filepath.Join(dir, workspace.DataDirName, workspace.MarkerFileName))
}

func TestInitCmd_PreservesExistingConfig(t *testing.T) {
	// Given: a directory that already carries a project config
	dir := t.TempDir()
	seedFiles(t, dir)
	custom := "log:\n  level: debug\n"
	configPath := filepath.Join(dir, ".peregrine.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(custom), 0o644))

	// When: initializing
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"init", dir})

	err := cmd.Execute()

	// Then: the config is untouched
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "existing .peregrine.yaml preserved")
	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, custom, string(content))
}

func TestInitCmd_GitignoreEntryIsAddedOnce(t *testing.T) {
	// Given: a workspace initialized twice
	dir := initWorkspace(t)

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"init", "--force", dir})
	require.NoError(t, cmd.Execute())

	// Then: .gitignore carries the entry exactly once
	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), ".peregrine/"))
}

func TestInitCmd_KeepsExistingGitignoreContent(t *testing.T) {
	// Given: a directory with a .gitignore of its own
	dir := t.TempDir()
	seedFiles(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"),
		[]byte("*.log\nbuild/\n"), 0o644))

	// When: initializing
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"init", dir})
	require.NoError(t, cmd.Execute())

	// Then: the old rules are still there alongside the new entry
	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "*.log")
	assert.Contains(t, string(content), "build/")
	assert.Contains(t, string(content), ".peregrine/")
}
