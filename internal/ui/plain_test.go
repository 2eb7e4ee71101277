package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_StageTransition_PrintsOneLine(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))
	require.NoError(t, r.Start(context.Background()))

	// When
	r.UpdateProgress(ProgressEvent{Stage: StageIndexing, Current: 0, Total: 42})

	// Then
	assert.Equal(t, "[INDEX] 0/42 Indexing\n", buf.String())
}

func TestPlainRenderer_PerFileUpdates_StayQuiet(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))
	r.UpdateProgress(ProgressEvent{Stage: StageIndexing, Total: 10})
	buf.Reset()

	// When: same stage, no message.
	r.UpdateProgress(ProgressEvent{Stage: StageIndexing, Current: 3, Total: 10, CurrentFile: "docs/report.txt"})
	r.UpdateProgress(ProgressEvent{Stage: StageIndexing, Current: 4, Total: 10, CurrentFile: "notes.md"})

	// Then
	assert.Empty(t, buf.String())
}

func TestPlainRenderer_ExplicitMessage_AlwaysPrints(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	// When
	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Message: "counting files"})

	// Then
	assert.Equal(t, "[SCAN] counting files\n", buf.String())
}

func TestPlainRenderer_AddError_PrefixesSeverity(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	// When
	r.AddError(ErrorEvent{File: "secrets.bin", Err: errors.New("permission denied")})
	r.AddError(ErrorEvent{Err: errors.New("clock 99 out of range"), IsWarn: true})

	// Then
	out := buf.String()
	assert.Contains(t, out, "ERROR: secrets.bin: permission denied\n")
	assert.Contains(t, out, "WARN: clock 99 out of range\n")
}

func TestPlainRenderer_Complete_SummarizesThePass(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	// When
	r.Complete(CompletionStats{
		Files:     120,
		Added:     7,
		Updated:   3,
		Moved:     1,
		Unchanged: 109,
		Removed:   2,
		Keywords:  4811,
		Duration:  1530 * time.Millisecond,
	})

	// Then
	out := buf.String()
	assert.Contains(t, out, "Indexed 120 files in 1.53s")
	assert.Contains(t, out, "added 7, updated 3, moved 1, unchanged 109, removed 2")
	assert.Contains(t, out, "4811 distinct keywords")
	assert.NotContains(t, out, "errors")
}

func TestPlainRenderer_CompleteWithFailures_CountsThem(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	// When
	r.Complete(CompletionStats{Files: 5, Duration: time.Second, Errors: 2, Warnings: 1})

	// Then
	assert.Contains(t, buf.String(), "(2 errors, 1 warnings)")
}
