// Package output formats human-facing CLI text. Search results and other
// machine-readable lines print bare; status lines carry a colored sigil
// when the output is an interactive terminal.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/peregrinehq/peregrine/internal/ui"
)

// Writer writes formatted CLI output. Write errors are ignored; there is
// nothing useful to do when stdout is gone.
type Writer struct {
	out     io.Writer
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
	colored bool
}

// New creates a Writer, coloring output when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, ui.IsTTY(out) && !ui.DetectNoColor())
}

// NewWithColor creates a Writer with color explicitly on or off.
func NewWithColor(out io.Writer, color bool) *Writer {
	w := &Writer{out: out, colored: color}
	if color {
		w.ok = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorSteel))
		w.warn = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorYellow))
		w.fail = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorRed))
		w.dim = lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorGray))
	} else {
		w.ok = lipgloss.NewStyle()
		w.warn = lipgloss.NewStyle()
		w.fail = lipgloss.NewStyle()
		w.dim = lipgloss.NewStyle()
	}
	return w
}

// Raw prints a line verbatim. Results that scripts consume go through
// here, never through the decorated helpers.
func (w *Writer) Raw(line string) {
	_, _ = fmt.Fprintln(w.out, line)
}

// Rawf prints a formatted line verbatim.
func (w *Writer) Rawf(format string, args ...any) {
	w.Raw(fmt.Sprintf(format, args...))
}

// Status prints a message under a sigil column.
func (w *Writer) Status(sigil, msg string) {
	if sigil == "" {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", sigil, msg)
}

// Statusf prints a formatted message under a sigil column.
func (w *Writer) Statusf(sigil, format string, args ...any) {
	w.Status(sigil, fmt.Sprintf(format, args...))
}

// Success prints a confirmation line.
func (w *Writer) Success(msg string) {
	w.Status(w.ok.Render("✓"), msg)
}

// Successf prints a formatted confirmation line.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status(w.warn.Render("!"), msg)
}

// Warningf prints a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status(w.fail.Render("✗"), msg)
}

// Errorf prints a formatted error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Hint prints a dimmed suggestion line, indented under the message it
// belongs to.
func (w *Writer) Hint(msg string) {
	_, _ = fmt.Fprintf(w.out, "  %s\n", w.dim.Render(msg))
}

// Code prints an indented block, set off by blank lines.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "    %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
