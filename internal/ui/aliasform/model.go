// Package aliasform is the form that collects a new alias.
package aliasform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// SubmitMsg is sent when the user submits a complete alias.
type SubmitMsg struct {
	Alias  string
	Domain string
	Target string
}

// CancelledMsg is sent when the form is aborted.
type CancelledMsg struct{}

type values struct {
	alias  string
	domain string
	target string
}

// Model wraps the huh form.
type Model struct {
	form  *huh.Form
	vals  *values
	done  bool
	width int
}

// New builds the form. The domain and target pickers are filled from
// the loaded lists; when a list is empty that value is typed in.
func New(domains, mailboxes []string, width int) Model {
	vals := &values{}
	if len(domains) > 0 {
		vals.domain = domains[0]
	}
	if len(mailboxes) > 0 {
		vals.target = mailboxes[0]
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Alias").
			Description("Local part of the new address").
			Placeholder("sales").
			Value(&vals.alias).
			Validate(validateLocalPart),
	}

	if len(domains) > 0 {
		fields = append(fields, huh.NewSelect[string]().
			Title("Domain").
			Options(huh.NewOptions(domains...)...).
			Value(&vals.domain).
			Validate(validateRequired("Domain")))
	} else {
		fields = append(fields, huh.NewInput().
			Title("Domain").
			Placeholder("example.com").
			Value(&vals.domain).
			Validate(validateRequired("Domain")))
	}

	if len(mailboxes) > 0 {
		fields = append(fields, huh.NewSelect[string]().
			Title("Forward to").
			Options(huh.NewOptions(mailboxes...)...).
			Value(&vals.target).
			Validate(validateRequired("Target")))
	} else {
		fields = append(fields, huh.NewInput().
			Title("Forward to").
			Description("Destination address").
			Placeholder("user@example.com").
			Value(&vals.target).
			Validate(validateAddress))
	}

	form := huh.NewForm(huh.NewGroup(fields...)).WithWidth(formWidth(width))

	return Model{form: form, vals: vals, width: width}
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
		submit := m.Submission()
		return m, func() tea.Msg { return submit }
	case huh.StateAborted:
		m.done = true
		return m, func() tea.Msg { return CancelledMsg{} }
	}

	return m, cmd
}

// Submission returns the values currently entered.
func (m Model) Submission() SubmitMsg {
	return SubmitMsg{
		Alias:  strings.TrimSpace(m.vals.alias),
		Domain: strings.TrimSpace(m.vals.domain),
		Target: strings.TrimSpace(m.vals.target),
	}
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

func validateLocalPart(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("alias is required")
	}
	if strings.ContainsAny(s, "@ \t") {
		return fmt.Errorf("alias must not contain '@' or spaces")
	}
	return nil
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return fmt.Errorf("target must be an address like user@example.com")
	}
	return nil
}
