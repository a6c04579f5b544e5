package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailcow-companion/internal/theme"
)

// Layout manages the terminal layout dimensions: a header line, the
// content area, a notification area and a status bar.
type Layout struct {
	Width              int
	Height             int
	HeaderHeight       int
	StatusBarHeight    int
	NotificationHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:              width,
		Height:             height,
		HeaderHeight:       1,
		StatusBarHeight:    1,
		NotificationHeight: 4,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight - l.NotificationHeight
	if h < 0 {
		return 0
	}
	return h
}

// PanelWidth returns the outer width of each of two side-by-side panels.
func (l Layout) PanelWidth() int {
	return l.Width / 2
}

// RenderHeader renders the top header bar with a title on the left and
// the connection status on the right.
func (l Layout) RenderHeader(title string, status string, configured bool) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.ConfiguredStyle(configured).
		Align(lipgloss.Right).
		Render(status)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, notifications and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	notifications string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	notifications = lipgloss.NewStyle().
		Height(l.NotificationHeight).
		MaxHeight(l.NotificationHeight).
		Render(notifications)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		notifications,
		statusBar,
	)
}
