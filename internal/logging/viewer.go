package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/peregrinehq/peregrine/internal/ui"
)

// Entry is one parsed line of the JSON log file.
type Entry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// ViewerConfig controls what the viewer shows and how.
type ViewerConfig struct {
	// Level is the minimum level to show. Empty shows everything.
	Level string
	// Pattern filters by raw line. Nil shows everything.
	Pattern *regexp.Regexp
	// NoColor disables level coloring.
	NoColor bool
}

// Viewer reads the JSON log file back for humans. Lines that are not
// valid JSON pass through verbatim so a corrupted tail never hides the
// entries around it.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
	debug  lipgloss.Style
	info   lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
}

// NewViewer creates a viewer writing formatted entries to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	v := &Viewer{config: cfg, out: out}
	if cfg.NoColor {
		v.debug = lipgloss.NewStyle()
		v.info = lipgloss.NewStyle()
		v.warn = lipgloss.NewStyle()
		v.fail = lipgloss.NewStyle()
	} else {
		v.debug = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorGray))
		v.info = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorSteel))
		v.warn = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorYellow))
		v.fail = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorRed))
	}
	return v
}

// Tail returns the last n entries of the log file that pass the filters.
func (v *Viewer) Tail(path string, n int) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	// Attribute-heavy lines can exceed the default token size.
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, maxLine), maxLine)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	var entries []Entry
	for _, line := range lines {
		if line == "" {
			continue
		}
		entry := v.parseLine(line)
		if v.matches(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow streams entries appended to the log file after the call, like
// tail -f. Blocks until ctx is cancelled.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- Entry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	// Poll rather than watch: the log file lives inside the data
	// directory that the watcher excludes, and a short tick is plenty
	// for a human tailing logs.
	reader := bufio.NewReader(file)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					break
				}
				line = strings.TrimSuffix(line, "\n")
				if line == "" {
					continue
				}
				entry := v.parseLine(line)
				if !v.matches(entry) {
					continue
				}
				select {
				case entries <- entry:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Print writes formatted entries to the viewer's output.
func (v *Viewer) Print(entries []Entry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// FormatEntry renders one entry as a single line.
func (v *Viewer) FormatEntry(entry Entry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	timestamp := entry.Time.Format("15:04:05.000")
	level := v.formatLevel(entry.Level)

	// Sorted so the same entry always renders the same line.
	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]string, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, entry.Attrs[k]))
	}
	attrStr := ""
	if len(attrs) > 0 {
		attrStr = " " + strings.Join(attrs, " ")
	}

	return fmt.Sprintf("%s %s %s%s", timestamp, level, entry.Msg, attrStr)
}

func (v *Viewer) formatLevel(level string) string {
	label := strings.ToUpper(level)
	if len(label) > 5 {
		label = label[:5]
	}
	label = fmt.Sprintf("%-5s", label)

	switch strings.ToLower(level) {
	case "debug":
		return v.debug.Render(label)
	case "info":
		return v.info.Render(label)
	case "warn", "warning":
		return v.warn.Render(label)
	case "error":
		return v.fail.Render(label)
	default:
		return label
	}
}

// parseLine parses one JSON log line. Unparseable input comes back with
// IsValid false and the raw text preserved.
func (v *Viewer) parseLine(line string) Entry {
	entry := Entry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	if l, ok := data["level"].(string); ok {
		entry.Level = l
	}
	if m, ok := data["msg"].(string); ok {
		entry.Msg = m
	}

	entry.Attrs = make(map[string]any)
	for k, val := range data {
		if k != "time" && k != "level" && k != "msg" {
			entry.Attrs[k] = val
		}
	}
	return entry
}

func (v *Viewer) matches(entry Entry) bool {
	if v.config.Level != "" {
		if LevelFromString(entry.Level) < LevelFromString(v.config.Level) {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}
