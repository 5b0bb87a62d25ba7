package ui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sshscre/sshscre/internal/errors"
)

// PickItem is one selectable row of a picker.
type PickItem struct {
	Key    string   // returned to the caller, e.g. a server id
	Name   string   // title line
	Detail string   // description line
	Tags   []string // extra filter terms
}

// pickItem implements list.Item for the Bubbles list component.
type pickItem struct {
	item PickItem
}

func (i pickItem) Title() string       { return i.item.Name }
func (i pickItem) Description() string { return i.item.Detail }

func (i pickItem) FilterValue() string {
	values := []string{i.item.Name}
	if i.item.Detail != "" {
		values = append(values, i.item.Detail)
	}
	values = append(values, i.item.Tags...)
	return strings.Join(values, " ")
}

// PickerModel is a Bubble Tea model for choosing one item from a list.
type PickerModel struct {
	list     list.Model
	selected *PickItem
	quitting bool
}

type pickerKeyMap struct {
	Enter key.Binding
	Quit  key.Binding
}

var pickerKeys = pickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// NewPickerModel creates a picker over items.
func NewPickerModel(title string, items []PickItem) PickerModel {
	listItems := make([]list.Item, len(items))
	for i, it := range items {
		listItems[i] = pickItem{item: it}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorNeonPink).
		BorderForeground(ColorNeonPink)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSecondary).
		BorderForeground(ColorNeonPink)

	l := list.New(listItems, delegate, 80, 15)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	return PickerModel{list: l}
}

// Init implements tea.Model.
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// While the filter input is open, keys belong to it.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, pickerKeys.Enter):
			if it, ok := m.list.SelectedItem().(pickItem); ok {
				m.selected = &it.item
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, pickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m PickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

// Selected returns the chosen item, or nil if cancelled.
func (m PickerModel) Selected() *PickItem {
	return m.selected
}

// Pick shows an interactive picker on the terminal and returns the chosen
// item. Returns nil if the user cancels (ESC/q/Ctrl+C).
func Pick(title string, items []PickItem) (*PickItem, error) {
	return PickWithIO(title, items, os.Stdout, os.Stdin)
}

// PickWithIO shows the picker using custom I/O. A single item is returned
// without prompting.
func PickWithIO(title string, items []PickItem, output io.Writer, input io.Reader) (*PickItem, error) {
	if len(items) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"Nothing to pick from",
			"Add a server first with 'sshscre server add'")
	}
	if len(items) == 1 {
		return &items[0], nil
	}

	p := tea.NewProgram(
		NewPickerModel(title, items),
		tea.WithOutput(output),
		tea.WithInput(input),
	)

	finalModel, err := p.Run()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Picker failed",
			"Pass the name on the command line instead")
	}

	if m, ok := finalModel.(PickerModel); ok {
		return m.Selected(), nil
	}
	return nil, nil
}

// IsTerminal returns true if the file descriptor is a terminal.
func IsTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
