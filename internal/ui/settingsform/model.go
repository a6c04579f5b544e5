// Package settingsform is the form that edits the server URL and API key.
package settingsform

import (
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/mailcow-companion/internal/settings"
)

// SavedMsg is sent when the user submits the settings form.
type SavedMsg struct {
	ServerURL string
	APIKey    string
}

// ResetMsg is sent when the user confirms clearing the settings.
type ResetMsg struct{}

// CancelledMsg is sent when the form is aborted.
type CancelledMsg struct{}

// values is shared by copies of Model; huh writes through these pointers.
type values struct {
	serverURL string
	apiKey    string
	confirm   bool
}

// Model wraps a huh form for either editing or resetting settings.
type Model struct {
	form  *huh.Form
	vals  *values
	reset bool
	done  bool
	width int
}

// NewEdit builds the edit form, pre-filled with current.
func NewEdit(current settings.Settings, width int) Model {
	vals := &values{serverURL: current.ServerURL, apiKey: current.APIKey}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("mailcow server URL (e.g., https://mail.example.com)").
				Placeholder("https://mail.example.com").
				Value(&vals.serverURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API Key").
				Description("Read-write API key from the mailcow admin panel").
				EchoMode(huh.EchoModePassword).
				Value(&vals.apiKey).
				Validate(validateRequired("API key")),
		),
	).WithWidth(formWidth(width))

	return Model{form: form, vals: vals, width: width}
}

// NewReset builds a confirmation form for clearing the settings.
func NewReset(width int) Model {
	vals := &values{}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Clear server URL and API key?").
				Affirmative("Clear").
				Negative("Cancel").
				Value(&vals.confirm),
		),
	).WithWidth(formWidth(width))

	return Model{form: form, vals: vals, reset: true, width: width}
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards msg to the form and reports completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.done {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.done = true
		return m, m.result()
	case huh.StateAborted:
		m.done = true
		return m, func() tea.Msg { return CancelledMsg{} }
	}

	return m, cmd
}

func (m Model) result() tea.Cmd {
	if m.reset {
		if !m.vals.confirm {
			return func() tea.Msg { return CancelledMsg{} }
		}
		return func() tea.Msg { return ResetMsg{} }
	}

	saved := SavedMsg{
		ServerURL: strings.TrimSpace(m.vals.serverURL),
		APIKey:    strings.TrimSpace(m.vals.apiKey),
	}
	return func() tea.Msg { return saved }
}

// View renders the form.
func (m Model) View() string {
	return m.form.View()
}

// SetWidth resizes the form.
func (m *Model) SetWidth(width int) {
	m.width = width
	m.form = m.form.WithWidth(formWidth(width))
}

func formWidth(width int) int {
	w := width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host (e.g., https://mail.example.com)")
	}
	return nil
}
