// Package styles provides shared lipgloss styles for terminal output.
package styles

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

var (
	Primary color.Color = lipgloss.Color("62")
	Success color.Color = lipgloss.Color("82")
	Warning color.Color = lipgloss.Color("214")
	Error   color.Color = lipgloss.Color("196")
	Muted   color.Color = lipgloss.Color("240")
)

var (
	Bold         = lipgloss.NewStyle().Bold(true)
	PrimaryStyle = lipgloss.NewStyle().Foreground(Primary)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)

	// ConflictBox frames rejected hunks.
	ConflictBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Warning).
			Padding(0, 1)
)
