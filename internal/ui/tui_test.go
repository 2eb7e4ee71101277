package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The model is exercised directly; running a real tea.Program needs a
// terminal.

func newTestModel() *indexModel {
	m := newIndexModel(NewProgressTracker(), "/srv/notes")
	m.styles = NoColorStyles()
	return m
}

func TestIndexModel_View_ShowsPipelineAndWorkspace(t *testing.T) {
	// Given
	m := newTestModel()
	m.tracker.SetStage(StageIndexing, 100)
	m.tracker.Update(25, "docs/report.txt")

	// When
	view := m.View()

	// Then
	assert.Contains(t, view, "Peregrine")
	assert.Contains(t, view, "/srv/notes")
	assert.Contains(t, view, "Scan")
	assert.Contains(t, view, "Index")
	assert.Contains(t, view, "Save")
	assert.Contains(t, view, "25 / 100 files")
	assert.Contains(t, view, "docs/report.txt")
}

func TestIndexModel_UnknownTotal_ShowsStageSpinner(t *testing.T) {
	// Given
	m := newTestModel()
	m.tracker.SetStage(StageScanning, 0)

	// When
	view := m.View()

	// Then
	assert.Contains(t, view, "Scanning...")
}

func TestIndexModel_QKey_Quits(t *testing.T) {
	// Given
	m := newTestModel()

	// When
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	// Then
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, m.View(), "Cancelled")
}

func TestIndexModel_CompleteMsg_RendersSummaryAndQuits(t *testing.T) {
	// Given
	m := newTestModel()

	// When
	_, cmd := m.Update(completeMsg{
		Files:    12,
		Added:    5,
		Removed:  1,
		Duration: 3 * time.Second,
	})

	// Then
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	view := m.View()
	assert.Contains(t, view, "Indexing complete")
	assert.Contains(t, view, "12")
	assert.Contains(t, view, "3s")
}

func TestIndexModel_WindowResize_KeepsBarUsable(t *testing.T) {
	// Given
	m := newTestModel()

	// When
	m.Update(tea.WindowSizeMsg{Width: 24, Height: 10})

	// Then: the bar never collapses below a readable width.
	assert.Equal(t, 20, m.bar.Width)
}

func TestIndexModel_StatusBar_ReportsErrorCounts(t *testing.T) {
	// Given
	m := newTestModel()
	m.tracker.AddError(ErrorEvent{File: "a", Err: assert.AnError})
	m.tracker.AddError(ErrorEvent{File: "b", Err: assert.AnError, IsWarn: true})

	// When
	view := m.View()

	// Then
	assert.Contains(t, view, "1 errors")
	assert.Contains(t, view, "1 warnings")
}

func TestFormatDuration_PicksUnitsByMagnitude(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{90 * time.Minute, "1h 30m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestTruncatePath_KeepsTheFilename(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		maxLen int
		want   string
	}{
		{"short path untouched", "docs/report.txt", 40, "docs/report.txt"},
		{"long dir trimmed from the left", "very/long/nested/dir/report.txt", 24, "...nested/dir/report.txt"},
		{"bare long name trimmed", strings.Repeat("a", 30) + ".txt", 10, "...aaa.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncatePath(tt.path, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), tt.maxLen)
		})
	}
}
