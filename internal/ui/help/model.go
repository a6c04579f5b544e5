package help

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailcow-companion/internal/keys"
	"github.com/nhle/mailcow-companion/internal/theme"
)

// Model is the help overlay: keybindings plus where settings are kept.
type Model struct {
	keys       *keys.KeyMap
	help       help.Model
	backend    string
	configPath string
	width      int
	height     int
}

// New creates a new help view model. backend and configPath are shown
// below the key list.
func New(k *keys.KeyMap, backend, configPath string, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:       k,
		help:       h,
		backend:    backend,
		configPath: configPath,
		width:      width,
		height:     height,
	}
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")
	helpText := m.help.View(m.keys)

	info := theme.HelpStyle.MarginTop(1).Render(fmt.Sprintf(
		"Credentials stored in: %s\nConfig file: %s", m.backend, m.configPath,
	))

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText, info)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
