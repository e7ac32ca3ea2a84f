package output

import "github.com/charmbracelet/lipgloss"

// ANSI 256-color palette shared by the styled formatter.
const (
	ColorPrimary = lipgloss.Color("39")
	ColorWarning = lipgloss.Color("214")
	ColorDanger  = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("245")
)

var (
	// SummaryBox frames the search summary.
	SummaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	PathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	SizeStyle  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorDanger)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorMuted)
)
