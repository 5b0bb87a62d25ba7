package ui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a new Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Nothing is focused in a printed table, so the selected row looks like the rest.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string for CLI output.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := NewTable(columns, tableRows)
	return t.View()
}

// ServerRow is one line of the server list.
type ServerRow struct {
	Name       string
	Host       string
	User       string
	OS         string
	Configured bool
}

// RenderServerTable renders the numbered server list.
func RenderServerTable(rows []ServerRow) string {
	if len(rows) == 0 {
		return "No servers saved"
	}

	columns := []TableColumn{
		{Title: "#", Width: 3},
		{Title: "Name", Width: columnWidth(rows, func(r ServerRow) string { return r.Name }, 4, 24)},
		{Title: "Host", Width: columnWidth(rows, func(r ServerRow) string { return r.Host }, 4, 32)},
		{Title: "User", Width: columnWidth(rows, func(r ServerRow) string { return r.User }, 4, 16)},
		{Title: "OS", Width: columnWidth(rows, func(r ServerRow) string { return r.OS }, 6, 12)},
		{Title: "Configured", Width: 10},
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		configured := SymbolPending
		if r.Configured {
			configured = SymbolSuccess
		}
		cells[i] = []string{strconv.Itoa(i + 1), r.Name, r.Host, r.User, orDash(r.OS), configured}
	}
	return RenderSimpleTable(columns, cells)
}

// SessionRow is one line of the saved session list.
type SessionRow struct {
	Name    string
	Login   string // user@host
	Dir     string
	SavedAt string
}

// RenderSessionTable renders the numbered saved session list.
func RenderSessionTable(rows []SessionRow) string {
	if len(rows) == 0 {
		return "No sessions saved"
	}

	columns := []TableColumn{
		{Title: "#", Width: 3},
		{Title: "Name", Width: columnWidth(rows, func(r SessionRow) string { return r.Name }, 4, 24)},
		{Title: "Server", Width: columnWidth(rows, func(r SessionRow) string { return r.Login }, 6, 32)},
		{Title: "Directory", Width: columnWidth(rows, func(r SessionRow) string { return r.Dir }, 9, 40)},
		{Title: "Saved", Width: 16},
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{strconv.Itoa(i + 1), r.Name, r.Login, r.Dir, r.SavedAt}
	}
	return RenderSimpleTable(columns, cells)
}

// columnWidth sizes a column to its widest cell, clamped to [lo, hi].
func columnWidth[T any](rows []T, cell func(T) string, lo, hi int) int {
	w := lo
	for _, r := range rows {
		if n := lipgloss.Width(cell(r)); n > w {
			w = n
		}
	}
	if w > hi {
		return hi
	}
	return w
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
