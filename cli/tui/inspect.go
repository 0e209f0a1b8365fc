package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/zenodo-publisher/ledger"
)

const timeLayout = "2006-01-02 15:04:05"

// InspectModel shows one ledger entry.
type InspectModel struct {
	entry    *ledger.Entry
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates an inspect model.
func NewInspectModel(entry *ledger.Entry) InspectModel {
	return InspectModel{entry: entry}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	return RenderEntry(m.entry) + "\n" + HelpStyle.Render("Press q or Ctrl+C to quit")
}

// RenderEntry renders an entry without running a program.
func RenderEntry(e *ledger.Entry) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s %s", e.Project, e.Tag)))
	b.WriteString("\n\n")

	outcome := e.Outcome
	if e.Forced {
		outcome += " (forced)"
	}
	rows := [][2]string{
		{"Command", e.Command},
		{"Concept", e.ConceptID},
		{"DOI", e.DOI},
		{"Record", e.RecordURL},
		{"Completed", e.CompletedAt.Local().Format(timeLayout)},
	}
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Outcome:"), OutcomeStyle(e.Outcome).Render(outcome))
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), ValueStyle.Render(row[1]))
	}

	if len(e.Files) > 0 {
		b.WriteString("\n" + SectionStyle.Render("Files") + "\n")
		for _, f := range e.Files {
			name := ValueStyle.Render(f.Name)
			if f.Signature {
				name = MutedStyle.Render(f.Name)
			}
			fmt.Fprintf(&b, "  %s %s\n", name, MutedStyle.Render(shortHash(f.Hashes["sha256"])))
		}
	}
	if len(e.Identifiers) > 0 {
		b.WriteString("\n" + SectionStyle.Render("Identifiers") + "\n")
		for _, id := range e.Identifiers {
			fmt.Fprintf(&b, "  %s\n", ValueStyle.Render(id.Formatted))
		}
	}
	if len(e.Warnings) > 0 {
		b.WriteString("\n" + SectionStyle.Render("Warnings") + "\n")
		for _, w := range e.Warnings {
			fmt.Fprintf(&b, "  %s\n", WarningStyle.Render(w))
		}
	}

	b.WriteString("\n")
	b.WriteString(renderMetrics(e.Metrics))
	return BoxStyle.Render(b.String())
}

func renderMetrics(m ledger.Metrics) string {
	boxes := []string{
		statBox("API calls", m.APIRequests, highlightColor),
		statBox("Uploaded", m.FilesUploaded, successColor),
		statBox("Deleted", m.FilesDeleted, warningColor),
		statBox("Drafts dropped", m.DraftsDiscarded, errorColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func statBox(label string, value int64, color lipgloss.Color) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		StatValueStyle.Render(fmt.Sprintf("%d", value)),
		StatLabelStyle.Render(label),
	)
	return StatBoxStyle.BorderForeground(color).Render(content)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
