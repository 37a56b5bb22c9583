package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("12")  // bright blue
	colorDate   = lipgloss.Color("10")  // bright green
	colorDim    = lipgloss.Color("240") // gray
	colorPick   = lipgloss.Color("11")  // bright yellow
	colorFrame  = lipgloss.Color("238") // dark gray
	colorText   = lipgloss.Color("252")

	styleInputPrompt = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleInput       = lipgloss.NewStyle().Foreground(colorText)

	// source tabs in the header row
	styleTabActive = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(colorAccent).
			Bold(true).
			Padding(0, 1)
	styleTabInactive = lipgloss.NewStyle().
				Foreground(colorDim).
				Padding(0, 1)

	styleListSelected = lipgloss.NewStyle().Foreground(colorPick).Bold(true)
	styleListNormal   = lipgloss.NewStyle().Foreground(colorText)
	styleListDate     = lipgloss.NewStyle().Foreground(colorDate)
	styleListMeta     = lipgloss.NewStyle().Foreground(colorDim)

	stylePanelBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorFrame)
	styleActiveBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent)

	styleStatusBar = lipgloss.NewStyle().Foreground(colorDim).Padding(0, 1)
)
