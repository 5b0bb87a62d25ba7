package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Accent palette.
const (
	ColorNeonPink    lipgloss.Color = "#FF2E97"
	ColorNeonCyan    lipgloss.Color = "#00FFFF"
	ColorNeonPurple  lipgloss.Color = "#B026FF"
	ColorNeonGreen   lipgloss.Color = "#39FF14"
	ColorNeonAmber   lipgloss.Color = "#FFAA00"
	ColorGlassBorder lipgloss.Color = "#3D3D5C"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "#39FF14"
	ColorError   lipgloss.Color = "#FF0055"
	ColorWarning lipgloss.Color = "#FFAA00"
	ColorInfo    lipgloss.Color = "#00FFFF"
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "#FFFFFF"
	ColorSecondary lipgloss.Color = "#B4B4D0"
	ColorMuted     lipgloss.Color = "#6B6B8D"
)

// GradientColors cycle through spinner frames.
var GradientColors = []lipgloss.Color{ColorNeonPink, ColorNeonPurple, ColorNeonCyan, ColorNeonGreen}

// DisableColors switches the default renderer to plain ASCII output.
// Styles created before the call follow the new profile.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ColorsEnabled reports whether styled output carries color.
func ColorsEnabled() bool {
	return lipgloss.ColorProfile() != termenv.Ascii
}
