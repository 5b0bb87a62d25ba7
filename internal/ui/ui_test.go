package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func TestColorValues(t *testing.T) {
	tests := []struct {
		name     string
		color    lipgloss.Color
		expected string
	}{
		{"success", ColorSuccess, "#39FF14"},
		{"error", ColorError, "#FF0055"},
		{"warning", ColorWarning, "#FFAA00"},
		{"info", ColorInfo, "#00FFFF"},
		{"primary", ColorPrimary, "#FFFFFF"},
		{"secondary", ColorSecondary, "#B4B4D0"},
		{"muted", ColorMuted, "#6B6B8D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.color))
		})
	}
	assert.Len(t, GradientColors, 4)
}

func TestDisableColors(t *testing.T) {
	defer lipgloss.SetColorProfile(termenv.Ascii)

	lipgloss.SetColorProfile(termenv.TrueColor)
	assert.True(t, ColorsEnabled())
	assert.Contains(t, StyleError.Render("x"), "\x1b[")

	DisableColors()
	assert.False(t, ColorsEnabled())
	assert.Equal(t, "x", StyleError.Render("x"))
}

func TestStatusHelpers(t *testing.T) {
	assert.Equal(t, "✓ done", Success("done"))
	assert.Equal(t, "✗ broken", Fail("broken"))
	assert.Equal(t, "⚠ careful", Warn("careful"))
	assert.Equal(t, "→ fyi", Note("fyi"))
}

func TestRenderHeader(t *testing.T) {
	out := RenderHeader(HeaderInfo{Version: "v1.0.0", Tagline: "SSH console", Detail: "~/.config/sshscre"})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "sshscre v1.0.0", lines[0])
	assert.Equal(t, "SSH console", lines[1])
	assert.Equal(t, "~/.config/sshscre", lines[2])
	assert.Equal(t, strings.Repeat("━", HeaderWidth), lines[3])

	var buf bytes.Buffer
	PrintHeader(&buf, HeaderInfo{})
	assert.True(t, strings.HasPrefix(buf.String(), "sshscre\n"))
}

func TestRenderPanel(t *testing.T) {
	out := RenderPanel("web-1", []Field{
		{Label: "Hostname", Value: "web-1"},
		{Label: "IP", Value: "10.0.0.5"},
	})

	assert.Contains(t, out, "web-1")
	assert.Contains(t, out, "Hostname:  web-1")
	assert.Contains(t, out, "      IP:  10.0.0.5", "labels are right-aligned")
	assert.True(t, strings.HasPrefix(out, "╭"))
	assert.True(t, strings.HasSuffix(out, "╯"))
}

func TestRenderSimpleTable(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "A", Width: 3}}, nil))

	out := RenderSimpleTable(
		[]TableColumn{{Title: "Host", Width: 10}, {Title: "User", Width: 6}},
		[][]string{{"alpha", "root"}, {"beta", "bob"}},
	)
	assert.Contains(t, out, "Host")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "bob")
}

func TestRenderServerTable(t *testing.T) {
	assert.Equal(t, "No servers saved", RenderServerTable(nil))

	out := RenderServerTable([]ServerRow{
		{Name: "web", Host: "10.0.0.5", User: "bob", OS: "ubuntu", Configured: true},
		{Name: "db", Host: "10.0.0.6", User: "root"},
	})
	assert.Contains(t, out, "Configured")
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "ubuntu")
	assert.Contains(t, out, SymbolSuccess)
	assert.Contains(t, out, SymbolPending)
}

func TestRenderSessionTable(t *testing.T) {
	assert.Equal(t, "No sessions saved", RenderSessionTable(nil))

	out := RenderSessionTable([]SessionRow{
		{Name: "deploy", Login: "bob@web", Dir: "/var/www", SavedAt: "2026-01-02 10:00"},
	})
	assert.Contains(t, out, "deploy")
	assert.Contains(t, out, "/var/www")
}

func TestColumnWidth(t *testing.T) {
	rows := []string{"ab", "abcdef"}
	id := func(s string) string { return s }
	assert.Equal(t, 6, columnWidth(rows, id, 2, 10))
	assert.Equal(t, 4, columnWidth(rows, id, 2, 4))
	assert.Equal(t, 8, columnWidth(rows, id, 8, 10))
}

func TestPickItem(t *testing.T) {
	it := pickItem{item: PickItem{Key: "id-1", Name: "web", Detail: "bob@10.0.0.5", Tags: []string{"ubuntu"}}}
	assert.Equal(t, "web", it.Title())
	assert.Equal(t, "bob@10.0.0.5", it.Description())
	assert.Equal(t, "web bob@10.0.0.5 ubuntu", it.FilterValue())
}

func TestPickerModel(t *testing.T) {
	items := []PickItem{{Key: "a", Name: "alpha"}, {Key: "b", Name: "beta"}}

	t.Run("enter selects", func(t *testing.T) {
		var m tea.Model = NewPickerModel("Pick", items)
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)

		sel := m.(PickerModel).Selected()
		require.NotNil(t, sel)
		assert.Equal(t, "b", sel.Key)
		assert.Empty(t, m.View())
	})

	t.Run("esc cancels", func(t *testing.T) {
		var m tea.Model = NewPickerModel("Pick", items)
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		assert.Nil(t, m.(PickerModel).Selected())
	})
}

func TestPickWithIO_Shortcuts(t *testing.T) {
	_, err := PickWithIO("Pick", nil, &bytes.Buffer{}, strings.NewReader(""))
	assert.Error(t, err)

	got, err := PickWithIO("Pick", []PickItem{{Key: "only"}}, &bytes.Buffer{}, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "only", got.Key)
}

func TestSpinner(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Connecting to web", &buf)
	assert.Equal(t, SpinnerPending, s.State())

	s.Start()
	s.Start() // second start is a no-op
	time.Sleep(10 * time.Millisecond)
	s.Success()

	assert.Equal(t, SpinnerSuccess, s.State())
	assert.Contains(t, buf.String(), "Connecting to web...")
	assert.Contains(t, buf.String(), SymbolComplete+" Connecting to web")
	assert.True(t, strings.HasSuffix(buf.String(), "s\n"))
}

func TestSpinner_Fail(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Dialing", &buf)
	s.Start()
	s.Fail()
	assert.Equal(t, SpinnerFailed, s.State())
	assert.Contains(t, buf.String(), SymbolFail+" Dialing")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.05s", formatDuration(50*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
}
