// Package ruletui renders a rule file's static diagnostics as an
// interactive terminal view, grounded on the teacher's pkg/tui: the same
// lipgloss palette/panel conventions and glamour markdown rendering, but
// driven by a validate.Result and a RuleFile instead of a live JSON-RPC
// execution stream.
package ruletui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
	colorGreen  = lipgloss.Color("42")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(colorCyan).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(colorDim).
				Padding(0, 1)

	panelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim)

	errorRowStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	warnRowStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen).
		Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(colorDim)

	codeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	keyBarStyle = lipgloss.NewStyle().Padding(0, 1)
)
