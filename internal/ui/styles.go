package ui

import "github.com/charmbracelet/lipgloss"

// The listing and detail views keep the original color conventions: yellow
// identifiers, bright white metadata.
var (
	keyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	metaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
)

// Yellow renders an item key or menu index.
func Yellow(s string) string {
	return keyStyle.Render(s)
}

// White renders attribution and URL lines.
func White(s string) string {
	return metaStyle.Render(s)
}
