package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors for status indication.
const (
	ColorSuccess lipgloss.Color = "#39FF14" // Neon green
	ColorError   lipgloss.Color = "#FF0055" // Hot red-pink
	ColorWarning lipgloss.Color = "#FFAA00" // Electric amber
	ColorInfo    lipgloss.Color = "#00FFFF" // Neon cyan
)

// Text colors for content hierarchy.
const (
	ColorPrimary   lipgloss.Color = "#FFFFFF"
	ColorSecondary lipgloss.Color = "#B4B4D0" // Lavender
	ColorMuted     lipgloss.Color = "#6B6B8D" // Purple-gray
	ColorAccent    lipgloss.Color = "#FF2A6D" // Neon pink
)

// SuccessStyle renders text in the success color.
func SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorSuccess)
}

// ErrorStyle renders text in the error color.
func ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorError)
}

// WarningStyle renders text in the warning color.
func WarningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorWarning)
}

// InfoStyle renders text in the info color.
func InfoStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorInfo)
}

// MutedStyle renders secondary text.
func MutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorMuted)
}

// TitleStyle renders headings.
func TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
}

// DisableColors switches lipgloss to plain ASCII output (--no-color).
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// PrintWarning writes a warning line to stderr.
func PrintWarning(msg string) {
	fmt.Fprintln(os.Stderr, WarningStyle().Render(SymbolWarning+" "+msg))
}
