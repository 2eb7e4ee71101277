package shell

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/peregrinehq/peregrine/internal/ui"
)

// styles is the session's palette. Directories render the way ls colors
// them, bold and blue.
type styles struct {
	prompt  lipgloss.Style
	header  lipgloss.Style
	dir     lipgloss.Style
	info    lipgloss.Style
	success lipgloss.Style
	err     lipgloss.Style
	command lipgloss.Style
}

func getStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{
			prompt:  plain,
			header:  plain,
			dir:     plain,
			info:    plain,
			success: plain,
			err:     plain,
			command: plain,
		}
	}
	return styles{
		prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorSteel)).Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorSteel)).Bold(true),
		dir:     lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
		info:    lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorGray)),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorSteel)),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorRed)),
		command: lipgloss.NewStyle().Foreground(lipgloss.Color(ui.ColorSteel)),
	}
}
