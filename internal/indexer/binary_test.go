package indexer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBinaryData_Classification(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty is text", nil, false},
		{"plain ascii", []byte("hello world\n"), false},
		{"tabs and carriage returns", []byte("a\tb\r\nc"), false},
		{"ansi escape", []byte("\x1b[1mbold\x1b[0m"), false},
		{"bell and backspace", []byte("\x07\x08ok"), false},
		{"utf-8 multibyte", []byte("café résumé"), false},
		{"high bytes allowed", []byte{0xC3, 0xA9, 0xFF}, false},
		{"null byte", []byte("abc\x00def"), true},
		{"del byte", []byte{'a', 0x7F, 'b'}, true},
		{"vertical tab", []byte{'a', 0x0B}, true},
		{"control range", []byte{0x01, 0x02}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBinaryData(tt.data))
		})
	}
}

func TestIsBinaryData_OnlyLeadingBytesExamined(t *testing.T) {
	// A null byte past the sniff window does not flip the verdict.
	data := append(bytes.Repeat([]byte{'x'}, sniffLen), 0x00)
	assert.False(t, IsBinaryData(data))

	data = append([]byte{0x00}, bytes.Repeat([]byte{'x'}, sniffLen)...)
	assert.True(t, IsBinaryData(data))
}

func TestSniffFile_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()

	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("plain text content"), 0o644))
	binary := filepath.Join(dir, "image.bin")
	require.NoError(t, os.WriteFile(binary, []byte{0x89, 'P', 'N', 'G', 0x00}, 0o644))
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	got, err := SniffFile(text)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = SniffFile(binary)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = SniffFile(empty)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = SniffFile(filepath.Join(dir, "absent"))
	require.Error(t, err)
}
