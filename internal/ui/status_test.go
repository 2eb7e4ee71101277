package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyStatus() StatusInfo {
	return StatusInfo{
		Root:          "/srv/notes",
		Backend:       "sqlite",
		Records:       321,
		Names:         298,
		Keywords:      4811,
		LastID:        340,
		FreeIDs:       20,
		SnapshotPath:  "/srv/notes/.peregrine/index.db",
		SnapshotSize:  2 * 1024 * 1024,
		SnapshotSaved: time.Now().Add(-3 * time.Minute),
		Consistent:    true,
	}
}

func TestStatusRenderer_HealthyWorkspace_ReportsOK(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	// When
	require.NoError(t, r.Render(healthyStatus()))

	// Then
	out := buf.String()
	assert.Contains(t, out, "Workspace: /srv/notes")
	assert.Contains(t, out, "Records:  321")
	assert.Contains(t, out, "Keywords: 4811")
	assert.Contains(t, out, "last 340, 20 free")
	assert.Contains(t, out, "Backend: sqlite")
	assert.Contains(t, out, "2.0 MB")
	assert.Contains(t, out, "3 minutes ago")
	assert.Contains(t, out, "Consistency: ok")
}

func TestStatusRenderer_Violations_ListedOnePerLine(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)
	info := healthyStatus()
	info.Consistent = false
	info.Violations = []string{
		"orphan_path key=old/report.txt: path entry points at missing record",
		"live_free_id id=7: recorded id sits in the free pool",
	}

	// When
	require.NoError(t, r.Render(info))

	// Then
	out := buf.String()
	assert.Contains(t, out, "2 violations")
	assert.Contains(t, out, "orphan_path key=old/report.txt")
	assert.Contains(t, out, "live_free_id id=7")
	assert.NotContains(t, out, "Consistency: ok")
}

func TestStatusRenderer_RenderJSON_RoundTrips(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)
	info := healthyStatus()

	// When
	require.NoError(t, r.RenderJSON(info))

	// Then
	var got StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, info.Records, got.Records)
	assert.Equal(t, info.Backend, got.Backend)
	assert.True(t, got.Consistent)
	assert.Empty(t, got.Violations)
}

func TestFormatAge_ScalesWithDistance(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "just now", formatAge(now.Add(-5*time.Second)))
	assert.Equal(t, "1 minute ago", formatAge(now.Add(-65*time.Second)))
	assert.Equal(t, "5 minutes ago", formatAge(now.Add(-5*time.Minute)))
	assert.Equal(t, "1 hour ago", formatAge(now.Add(-90*time.Minute)))
	assert.Equal(t, "2 days ago", formatAge(now.Add(-49*time.Hour)))

	old := now.Add(-30 * 24 * time.Hour)
	assert.Equal(t, old.Format("2006-01-02 15:04"), formatAge(old))
}

func TestFormatBytes_PicksUnits(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
	assert.Equal(t, "1.2 GB", FormatBytes(1288490189))
}
