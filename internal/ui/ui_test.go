package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStage_StringAndIcon(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageScanning, "Scanning", "SCAN"},
		{StageIndexing, "Indexing", "INDEX"},
		{StageSaving, "Saving", "SAVE"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.stage.String())
		assert.Equal(t, tt.icon, tt.stage.Icon())
	}
}

func TestNewRenderer_ForcePlain_ReturnsPlainRenderer(t *testing.T) {
	// Given
	cfg := NewConfig(&bytes.Buffer{}, WithForcePlain(true))

	// When
	r := NewRenderer(cfg)

	// Then
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestNewRenderer_NonTTYOutput_ReturnsPlainRenderer(t *testing.T) {
	// Given: a bytes.Buffer is never a terminal.
	cfg := NewConfig(&bytes.Buffer{})

	// When
	r := NewRenderer(cfg)

	// Then
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestIsTTY_NonFileWriters_False(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestNewTUIRenderer_NonTTY_Errors(t *testing.T) {
	// When
	_, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	// Then
	assert.Error(t, err)
}

func TestDetectCI_SetVariable_True(t *testing.T) {
	// Given: NO_COLOR-style presence check, value irrelevant.
	t.Setenv("CI", "true")

	// Then
	assert.True(t, DetectCI())
}

func TestDetectNoColor_SetVariable_True(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	assert.True(t, DetectNoColor())
}

func TestNewConfig_AppliesOptions(t *testing.T) {
	var buf bytes.Buffer

	cfg := NewConfig(&buf,
		WithForcePlain(true),
		WithNoColor(true),
		WithWorkspaceDir("/srv/notes"))

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "/srv/notes", cfg.WorkspaceDir)
}
