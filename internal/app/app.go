package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailcow-companion/internal/keys"
	"github.com/nhle/mailcow-companion/internal/mailcow"
	"github.com/nhle/mailcow-companion/internal/notify"
	"github.com/nhle/mailcow-companion/internal/settings"
	"github.com/nhle/mailcow-companion/internal/theme"
	"github.com/nhle/mailcow-companion/internal/ui"
	"github.com/nhle/mailcow-companion/internal/ui/aliasform"
	"github.com/nhle/mailcow-companion/internal/ui/command"
	helpview "github.com/nhle/mailcow-companion/internal/ui/help"
	"github.com/nhle/mailcow-companion/internal/ui/settingsform"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewHome ViewState = iota
	ViewSettings
	ViewAlias
	ViewHelp
	ViewCommand
)

// Panel identifies one of the two lists on the home view.
type Panel int

const (
	PanelDomains Panel = iota
	PanelMailboxes
)

// Deps are the services the UI drives.
type Deps struct {
	Settings      *settings.Store
	Mailcow       *mailcow.Service
	Notifications *notify.Store
	Logger        *zap.Logger

	// StorageBackend and ConfigPath are shown in the help view.
	StorageBackend string
	ConfigPath     string
}

// changedMsg signals that at least one observed store published.
type changedMsg struct{}

// loadDoneMsg is sent when a reload of both lists finishes.
type loadDoneMsg struct{}

// settingsAppliedMsg is sent once new settings have been persisted.
type settingsAppliedMsg struct{}

// aliasDoneMsg carries the outcome of an alias creation.
type aliasDoneMsg struct {
	err error
}

// Model is the root Bubble Tea model.
type Model struct {
	deps   Deps
	keys   *keys.KeyMap
	layout ui.Layout
	ready  bool

	currentView ViewState
	focus       Panel
	cursors     [2]int

	// Snapshots of the observed stores, refreshed on changedMsg.
	current     settings.Settings
	configured  bool
	domains     []string
	mailboxes   []string
	notes       []notify.Notification
	loading     bool
	spinner     spinner.Model
	changes     chan struct{}
	unsubscribe []func()

	settingsForm settingsform.Model
	aliasForm    aliasform.Model
	helpView     helpview.Model
	commandView  command.Model
}

// New creates the root model and subscribes to the stores in deps. When
// no server is configured the settings form opens first.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	k := keys.DefaultKeyMap()
	changes := make(chan struct{}, 1)
	m := Model{
		deps:        deps,
		keys:        k,
		currentView: ViewHome,
		spinner:     sp,
		changes:     changes,
		helpView:    helpview.New(k, deps.StorageBackend, deps.ConfigPath, 80, 24),
		commandView: command.New(80, 24),
	}

	signal := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	m.unsubscribe = []func(){
		deps.Settings.Subscribe(func(settings.Settings) { signal() }),
		deps.Settings.Configured().Subscribe(func(bool) { signal() }),
		deps.Mailcow.Domains().Subscribe(func([]string) { signal() }),
		deps.Mailcow.Mailboxes().Subscribe(func([]string) { signal() }),
		deps.Notifications.Subscribe(func([]notify.Notification) { signal() }),
	}
	m.refresh()

	if m.configured {
		m.loading = true
	} else {
		m.currentView = ViewSettings
		m.settingsForm = settingsform.NewEdit(m.current, 80)
	}

	return m
}

// Close removes the store subscriptions made by New.
func (m Model) Close() {
	for _, fn := range m.unsubscribe {
		fn()
	}
}

// Init starts listening for store changes and either loads the lists or
// shows the settings form.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewSettings {
		return tea.Batch(m.waitForChange(), m.settingsForm.Init())
	}
	return tea.Batch(m.waitForChange(), m.spinner.Tick, m.loadLists())
}

// waitForChange blocks until a store publishes.
func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

// refresh copies the current store values into the model.
func (m *Model) refresh() {
	m.current = m.deps.Settings.Get()
	m.configured = m.deps.Settings.Configured().Get()
	m.domains = m.deps.Mailcow.Domains().Get()
	m.mailboxes = m.deps.Mailcow.Mailboxes().Get()
	m.notes = m.deps.Notifications.List()

	m.cursors[PanelDomains] = clampCursor(m.cursors[PanelDomains], len(m.domains))
	m.cursors[PanelMailboxes] = clampCursor(m.cursors[PanelMailboxes], len(m.mailboxes))
}

// reload fetches both lists. Without configuration it opens the
// settings form instead.
func (m *Model) reload() tea.Cmd {
	if !m.configured {
		m.deps.Notifications.Info("Set the server URL and API key first")
		return m.openSettings()
	}

	m.loading = true
	return m.loadLists()
}

// loadLists fetches domains and mailboxes concurrently.
func (m Model) loadLists() tea.Cmd {
	svc := m.deps.Mailcow
	return func() tea.Msg {
		g, gctx := errgroup.WithContext(context.Background())
		g.Go(func() error {
			svc.LoadDomains(gctx)
			return nil
		})
		g.Go(func() error {
			svc.LoadMailboxes(gctx)
			return nil
		})
		_ = g.Wait()
		return loadDoneMsg{}
	}
}

func (m *Model) openSettings() tea.Cmd {
	m.currentView = ViewSettings
	m.settingsForm = settingsform.NewEdit(m.current, m.layout.ContentWidth())
	return m.settingsForm.Init()
}

func (m *Model) openReset() tea.Cmd {
	m.currentView = ViewSettings
	m.settingsForm = settingsform.NewReset(m.layout.ContentWidth())
	return m.settingsForm.Init()
}

func (m *Model) openAlias() tea.Cmd {
	if !m.configured {
		m.deps.Notifications.Info("Set the server URL and API key first")
		return m.openSettings()
	}
	m.currentView = ViewAlias
	m.aliasForm = aliasform.New(m.domains, m.mailboxes, m.layout.ContentWidth())
	return m.aliasForm.Init()
}

// applySettings persists the submitted values, then signals completion.
func (m Model) applySettings(msg settingsform.SavedMsg) tea.Cmd {
	st := m.deps.Settings
	return func() tea.Msg {
		ctx := context.Background()
		st.SetServerURL(ctx, msg.ServerURL)
		st.SetAPIKey(ctx, msg.APIKey)
		return settingsAppliedMsg{}
	}
}

func (m Model) resetSettings() tea.Cmd {
	st := m.deps.Settings
	notes := m.deps.Notifications
	return func() tea.Msg {
		st.Clear(context.Background())
		notes.Info("Settings cleared")
		return settingsAppliedMsg{}
	}
}

func (m Model) createAlias(msg aliasform.SubmitMsg) tea.Cmd {
	svc := m.deps.Mailcow
	logger := m.deps.Logger
	return func() tea.Msg {
		_, err := svc.CreateAlias(context.Background(), msg.Alias, msg.Domain, msg.Target)
		if err != nil {
			logger.Warn("alias creation failed",
				zap.String("address", msg.Alias+"@"+msg.Domain),
				zap.Error(err),
			)
		}
		return aliasDoneMsg{err: err}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.helpView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.commandView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case changedMsg:
		m.refresh()
		return m, m.waitForChange()

	case loadDoneMsg:
		m.loading = false
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case settingsform.SavedMsg:
		m.currentView = ViewHome
		return m, m.applySettings(msg)

	case settingsform.ResetMsg:
		m.currentView = ViewHome
		return m, m.resetSettings()

	case settingsform.CancelledMsg:
		m.currentView = ViewHome
		return m, nil

	case settingsAppliedMsg:
		m.refresh()
		if !m.configured {
			return m, nil
		}
		cmd := m.reload()
		return m, tea.Batch(m.spinner.Tick, cmd)

	case aliasform.SubmitMsg:
		m.currentView = ViewHome
		return m, m.createAlias(msg)

	case aliasform.CancelledMsg:
		m.currentView = ViewHome
		return m, nil

	case aliasDoneMsg:
		// The outcome is reported through the notification store.
		return m, nil

	case command.CommandMsg:
		m.currentView = ViewHome
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentView {
	case ViewSettings, ViewAlias:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewHome
			return m, nil
		}
		return m.updateActiveView(msg)

	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewHome
			return m, nil
		}
		return m.updateActiveView(msg)

	case ViewHelp:
		if key.Matches(msg, m.keys.Back, m.keys.Help) {
			m.currentView = ViewHome
			return m, nil
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.currentView = ViewHelp
		return m, nil
	case key.Matches(msg, m.keys.Command):
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.reload()
		return m, tea.Batch(m.spinner.Tick, cmd)
	case key.Matches(msg, m.keys.NewAlias):
		cmd := m.openAlias()
		return m, cmd
	case key.Matches(msg, m.keys.Settings):
		cmd := m.openSettings()
		return m, cmd
	case key.Matches(msg, m.keys.Reset):
		cmd := m.openReset()
		return m, cmd
	case key.Matches(msg, m.keys.Dismiss):
		if len(m.notes) > 0 {
			m.deps.Notifications.Remove(m.notes[len(m.notes)-1].ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.SwitchPanel):
		m.focus = (m.focus + 1) % 2
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.cursors[m.focus] = clampCursor(m.cursors[m.focus]+1, m.panelLen(m.focus))
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.cursors[m.focus] = clampCursor(m.cursors[m.focus]-1, m.panelLen(m.focus))
		return m, nil
	}

	return m, nil
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case command.Reload:
		reload := m.reload()
		return tea.Batch(m.spinner.Tick, reload)
	case command.Alias:
		return m.openAlias()
	case command.Settings:
		return m.openSettings()
	case command.Reset:
		return m.openReset()
	case command.Help:
		m.currentView = ViewHelp
		return nil
	case command.Quit:
		return tea.Quit
	default:
		m.deps.Notifications.Add(fmt.Sprintf("Unknown command %q", cmd), notify.KindError, notify.DefaultTimeout)
		return nil
	}
}

// updateActiveView forwards msg to the view that currently has focus.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewSettings:
		if size, ok := msg.(tea.WindowSizeMsg); ok {
			m.settingsForm.SetWidth(size.Width)
		}
		m.settingsForm, cmd = m.settingsForm.Update(msg)
	case ViewAlias:
		if size, ok := msg.(tea.WindowSizeMsg); ok {
			m.aliasForm.SetWidth(size.Width)
		}
		m.aliasForm, cmd = m.aliasForm.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

func (m Model) panelLen(p Panel) int {
	if p == PanelDomains {
		return len(m.domains)
	}
	return len(m.mailboxes)
}

func clampCursor(c, n int) int {
	if n == 0 || c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("mailcow companion", m.connectionStatus(), m.configured)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), m.renderNotifications(), statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewSettings:
		return m.settingsForm.View()
	case ViewAlias:
		return m.aliasForm.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.renderPanel(PanelDomains, "Domains", m.domains),
			m.renderPanel(PanelMailboxes, "Mailboxes", m.mailboxes),
		)
	}
}

// renderPanel draws one list, scrolled so the cursor stays visible.
func (m Model) renderPanel(p Panel, title string, items []string) string {
	style := theme.PanelStyle
	if m.focus == p {
		style = theme.FocusedPanelStyle
	}

	// Border and title take four rows.
	rows := m.layout.ContentHeight() - 4
	if rows < 1 {
		rows = 1
	}

	cursor := m.cursors[p]
	start := 0
	if cursor >= rows {
		start = cursor - rows + 1
	}
	end := min(start+rows, len(items))

	lines := []string{theme.PanelTitleStyle.Render(fmt.Sprintf("%s (%d)", title, len(items)))}
	if len(items) == 0 {
		lines = append(lines, theme.HelpStyle.Render("  nothing loaded"))
	}
	for i := start; i < end; i++ {
		if i == cursor && m.focus == p {
			lines = append(lines, theme.SelectedItemStyle.Render(items[i]))
		} else {
			lines = append(lines, theme.ListItemStyle.Render(items[i]))
		}
	}

	width := max(m.layout.PanelWidth()-2, 10)
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

// renderNotifications shows the newest notifications that fit.
func (m Model) renderNotifications() string {
	notes := m.notes
	if len(notes) > m.layout.NotificationHeight {
		notes = notes[len(notes)-m.layout.NotificationHeight:]
	}

	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, theme.NotificationStyle(string(n.Kind)).Render("● "+n.Message))
	}
	return strings.Join(lines, "\n")
}

func (m Model) connectionStatus() string {
	status := "not configured"
	if m.configured {
		status = m.current.ServerURL
	}
	if m.loading {
		status = m.spinner.View() + " " + status
	}
	return status
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter run | tab complete | esc back"
	case ViewSettings, ViewAlias:
		return "enter submit | esc cancel"
	default:
		hints := make([]string, 0, len(m.keys.ShortHelp()))
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			hints = append(hints, h.Key+" "+h.Desc)
		}
		return strings.Join(hints, " | ")
	}
}
