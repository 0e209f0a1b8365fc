package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/zenodo-publisher/ledger"
)

var historyColumns = []table.Column{
	{Title: "Tag", Width: 14},
	{Title: "Outcome", Width: 12},
	{Title: "Command", Width: 8},
	{Title: "DOI", Width: 28},
	{Title: "Completed", Width: 19},
}

// HistoryModel lists ledger entries; enter opens the selected one.
type HistoryModel struct {
	entries  []ledger.Entry
	table    table.Model
	selected *ledger.Entry
	quitting bool
}

// NewHistoryModel creates a history model over entries, oldest first.
func NewHistoryModel(entries []ledger.Entry) HistoryModel {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		outcome := e.Outcome
		if e.Forced {
			outcome += "*"
		}
		rows[i] = table.Row{e.Tag, outcome, e.Command, e.DOI, e.CompletedAt.Local().Format(timeLayout)}
	}
	t := table.New(
		table.WithColumns(historyColumns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 20)),
	)
	if len(rows) > 0 {
		t.SetCursor(len(rows) - 1)
	}
	return HistoryModel{entries: entries, table: t}
}

// Init implements tea.Model.
func (m HistoryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case m.selected != nil && key.Matches(msg, keys.Back):
			m.selected = nil
			return m, nil
		case m.selected == nil && key.Matches(msg, keys.Open):
			if i := m.table.Cursor(); i >= 0 && i < len(m.entries) {
				m.selected = &m.entries[i]
			}
			return m, nil
		}
	}
	if m.selected != nil {
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m HistoryModel) View() string {
	if m.quitting {
		return ""
	}
	if m.selected != nil {
		return RenderEntry(m.selected) + "\n" + HelpStyle.Render("esc back • q quit")
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Release history"))
	b.WriteString("\n")
	if len(m.entries) == 0 {
		b.WriteString(MutedStyle.Render("(no releases recorded)"))
	} else {
		b.WriteString(BoxStyle.Padding(0, 1).Render(m.table.View()))
	}
	return b.String() + "\n" + HelpStyle.Render("↑/↓ move • enter details • q quit")
}
