package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one labeled row of a panel.
type Field struct {
	Label string
	Value string
}

// RenderPanel renders fields as a two-column grid inside a rounded border,
// labels right-aligned.
func RenderPanel(title string, fields []Field) string {
	labelStyle := lipgloss.NewStyle().Foreground(ColorInfo)
	valueStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	titleStyle := lipgloss.NewStyle().Foreground(ColorNeonAmber).Bold(true)

	width := 0
	for _, f := range fields {
		if w := lipgloss.Width(f.Label); w > width {
			width = w
		}
	}

	lines := make([]string, 0, len(fields)+2)
	if title != "" {
		lines = append(lines, titleStyle.Render(title), "")
	}
	for _, f := range fields {
		label := strings.Repeat(" ", width-lipgloss.Width(f.Label)) + f.Label + ":"
		lines = append(lines, labelStyle.Render(label)+"  "+valueStyle.Render(f.Value))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSecondary).
		Padding(0, 2)

	return box.Render(strings.Join(lines, "\n"))
}
