package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/zenodo-publisher/ledger"
	"github.com/pithecene-io/zenodo-publisher/types"
)

func sampleEntries() []ledger.Entry {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []ledger.Entry{
		{Project: "thesis", Tag: "v1", Command: "release", Outcome: "publish", DOI: "10.5281/zenodo.1001", CompletedAt: at},
		{
			Project: "thesis", Tag: "v2", Command: "release", Outcome: "skip_warn", Forced: true,
			DOI:         "10.5281/zenodo.1002",
			Files:       []ledger.File{{Name: "thesis-v2.pdf", Hashes: map[string]string{"sha256": "0123456789abcdef0123"}}},
			Identifiers: []types.Identifier{{Algorithm: "sha256", Formatted: "sha256:abcd"}},
			Warnings:    []string{"files are identical"},
			Metrics:     ledger.Metrics{APIRequests: 12, FilesUploaded: 2},
			CompletedAt: at.Add(time.Hour),
		},
	}
}

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewInspect, true},
		{ViewHistory, true},
		{"release", false},
		{"archive", false},
		{"version", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_Rejects(t *testing.T) {
	if err := Run("release", nil); err == nil {
		t.Error("expected error for unsupported view type")
	}
	if err := Run(ViewInspect, "not an entry"); err == nil {
		t.Error("expected error for wrong data type")
	}
}

func TestRenderEntry(t *testing.T) {
	e := sampleEntries()[1]
	out := RenderEntry(&e)
	for _, want := range []string{"thesis v2", "skip_warn (forced)", "10.5281/zenodo.1002", "thesis-v2.pdf", "0123456789ab", "sha256:abcd", "files are identical", "12"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryModel_OpenAndBack(t *testing.T) {
	m := NewHistoryModel(sampleEntries())
	if !strings.Contains(m.View(), "Release history") {
		t.Fatalf("view = %s", m.View())
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(HistoryModel)
	if m.selected == nil || m.selected.Tag != "v2" {
		t.Fatalf("selected = %+v, want latest entry", m.selected)
	}
	if !strings.Contains(m.View(), "esc back") {
		t.Error("detail view missing back hint")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(HistoryModel)
	if m.selected != nil {
		t.Error("esc did not return to the list")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || next.View() != "" {
		t.Error("q did not quit")
	}
}

func TestHistoryModel_Empty(t *testing.T) {
	m := NewHistoryModel(nil)
	if !strings.Contains(m.View(), "no releases recorded") {
		t.Errorf("view = %s", m.View())
	}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if next.(HistoryModel).selected != nil {
		t.Error("enter selected an entry in an empty list")
	}
}
