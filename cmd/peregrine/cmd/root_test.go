package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Help_ListsEveryCommand(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	// When: asking for help
	err := cmd.Execute()

	// Then: every subcommand is listed
	require.NoError(t, err)
	output := buf.String()
	for _, name := range []string{"init", "index", "search", "meta", "status", "watch", "shell", "logs", "version"} {
		assert.Contains(t, output, name, "help should list the %s command", name)
	}
}

func TestRootCmd_NoArgs_ShowsUsage(t *testing.T) {
	// Given: the root command with no arguments
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	// When: executing bare
	err := cmd.Execute()

	// Then: it prints usage instead of doing anything
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Usage:")
}

func TestRootCmd_VersionFlag_PrintsVersionLine(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	// When: asking for the version
	err := cmd.Execute()

	// Then: the version template is used
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "peregrine version")
}

func TestRootCmd_UnknownCommand_Fails(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"frobnicate"})

	// When: running a command that does not exist
	err := cmd.Execute()

	// Then: it fails
	assert.Error(t, err)
}
