package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. Steel blue accent, gray support colors.
const (
	ColorSteel    = "75"  // primary accent
	ColorSteelDim = "67"  // inactive accent
	ColorGray     = "245" // labels, secondary text
	ColorDarkGray = "238" // borders, separators
	ColorRed      = "196" // errors
	ColorYellow   = "220" // warnings
)

// Styles holds the lipgloss styles the renderers draw with.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Active  lipgloss.Style
	Label   lipgloss.Style
	Speed   lipgloss.Style
	Border  lipgloss.Style
	Spark   lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorSteel)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSteel)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorSteel)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Speed:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Border:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Spark:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSteel)),
	}
}

// NoColorStyles returns an unstyled set for NO_COLOR and plain pipes.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Active:  lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Speed:   lipgloss.NewStyle(),
		Border:  lipgloss.NewStyle(),
		Spark:   lipgloss.NewStyle(),
	}
}

// GetStyles picks a style set by color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
