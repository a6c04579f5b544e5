package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Reload ": Reload,
		"q":         Quit,
		"r":         Reload,
		"a":         Alias,
		"settings":  Settings,
		"":          "",
	}

	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(80, 24)
	m.Focus()
	for _, r := range "Alias" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a command on enter")
	}
	if got := cmd(); got != CommandMsg(Alias) {
		t.Fatalf("expected CommandMsg %q, got %v", Alias, got)
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Errorf("expected no command for an empty input")
	}
}
