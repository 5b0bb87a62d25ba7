package ui

import "github.com/charmbracelet/lipgloss"

// Shared text styles.
var (
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleBold    = lipgloss.NewStyle().Bold(true)
	StylePrompt  = lipgloss.NewStyle().Foreground(ColorNeonGreen).Bold(true)
	StyleAccent  = lipgloss.NewStyle().Foreground(ColorNeonPink).Bold(true)
)

// Success renders "✓ msg" in the success color.
func Success(msg string) string {
	return StyleSuccess.Render(SymbolSuccess + " " + msg)
}

// Fail renders "✗ msg" in the error color.
func Fail(msg string) string {
	return StyleError.Render(SymbolFail + " " + msg)
}

// Warn renders "⚠ msg" in the warning color.
func Warn(msg string) string {
	return StyleWarning.Render(SymbolWarning + " " + msg)
}

// Note renders "→ msg" muted.
func Note(msg string) string {
	return StyleMuted.Render(SymbolArrow + " " + msg)
}
