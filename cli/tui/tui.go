package tui

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/zenodo-publisher/ledger"
)

// View types.
const (
	ViewInspect = "inspect_entry"
	ViewHistory = "history"
)

// Run starts the TUI for viewType.
func Run(viewType string, data any) error {
	var model tea.Model
	switch viewType {
	case ViewInspect:
		entry, ok := data.(*ledger.Entry)
		if !ok {
			return fmt.Errorf("invalid data type %T for %s", data, viewType)
		}
		model = NewInspectModel(entry)
	case ViewHistory:
		entries, ok := data.([]ledger.Entry)
		if !ok {
			return fmt.Errorf("invalid data type %T for %s", data, viewType)
		}
		model = NewHistoryModel(entries)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported reports whether viewType has a TUI.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews lists the view types with a TUI.
func SupportedTUIViews() []string {
	return []string{ViewInspect, ViewHistory}
}

type keyMap struct {
	Quit key.Binding
	Open key.Binding
	Back key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "details"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
}
