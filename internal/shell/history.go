package shell

import (
	"bytes"
	"os"
	"strings"
)

// loadHistory seeds the liner from the workspace history file. A missing
// or unreadable file starts an empty history.
func (s *Shell) loadHistory() {
	f, err := os.Open(s.ws.HistoryPath())
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()
	_, _ = s.line.ReadHistory(f)
}

// saveHistory writes the liner history back, trimmed to the configured
// cap so the file cannot grow without bound.
func (s *Shell) saveHistory() {
	var buf bytes.Buffer
	if _, err := s.line.WriteHistory(&buf); err != nil {
		return
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) > s.histCap {
		lines = lines[len(lines)-s.histCap:]
	}
	data := strings.Join(lines, "\n")
	if data != "" {
		data += "\n"
	}

	// History can hold search terms; keep it private to the owner.
	_ = os.WriteFile(s.ws.HistoryPath(), []byte(data), 0o600)
}

func (s *Shell) closeLiner() {
	if s.line == nil {
		return
	}
	s.saveHistory()
	_ = s.line.Close()
	s.line = nil
}
