// Package ui renders command output for the terminal.
package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Teal      = lipgloss.Color("#14B8A6")
	DimGray   = lipgloss.Color("#6B7280")
	LightGray = lipgloss.Color("#9CA3AF")
	White     = lipgloss.Color("#F9FAFB")
	Green     = lipgloss.Color("#10B981")
	Red       = lipgloss.Color("#EF4444")
	Amber     = lipgloss.Color("#F59E0B")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	LabelStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Width(8)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Teal)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Amber)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green)

	MatchHighlightStyle = lipgloss.NewStyle().
				Foreground(Teal).
				Bold(true)
)

// Table styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(Teal).
			Bold(true).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	IDCellStyle = CellStyle.
			Foreground(DimGray)
)

// SpinnerFrames are the frames of the progress spinner
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpinnerStyle colors the spinner glyph
var SpinnerStyle = lipgloss.NewStyle().Foreground(Teal)

// Truncate shortens s to width runes with an ellipsis
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
