package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/mailcow-companion/internal/mailcow"
	"github.com/nhle/mailcow-companion/internal/notify"
	"github.com/nhle/mailcow-companion/internal/settings"
	"github.com/nhle/mailcow-companion/internal/ui/aliasform"
	"github.com/nhle/mailcow-companion/internal/ui/command"
	"github.com/nhle/mailcow-companion/internal/ui/settingsform"
	"github.com/nhle/mailcow-companion/tests/testutil"
)

func newTestModel(t *testing.T, serverURL string) (Model, Deps) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	st := settings.NewStore(testutil.NewTestStorage(t), logger)
	st.Init(context.Background())
	if serverURL != "" {
		st.SetServerURL(context.Background(), serverURL)
		st.SetAPIKey(context.Background(), "key")
	}

	notes := notify.NewStore(0)
	t.Cleanup(notes.Close)

	svc := mailcow.NewService(mailcow.NewClient(st, mailcow.WithLogger(logger)), notes, logger)
	t.Cleanup(svc.Watch(st))
	deps := Deps{
		Settings:       st,
		Mailcow:        svc,
		Notifications:  notes,
		Logger:         logger,
		StorageBackend: "local",
	}

	m := New(deps)
	t.Cleanup(m.Close)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), deps
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func mailcowServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/get/domain/all":
			w.Write([]byte(`[{"domain_name":"a.com"},{"domain_name":"b.com"}]`))
		case "/api/v1/get/mailbox/all":
			w.Write([]byte(`[{"username":"x@a.com"}]`))
		case "/api/v1/add/alias":
			w.Write([]byte(`[{"type":"success"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUnconfiguredStartsOnSettings(t *testing.T) {
	m, _ := newTestModel(t, "")
	if m.currentView != ViewSettings {
		t.Fatalf("expected settings view, got %v", m.currentView)
	}
	if m.loading {
		t.Error("should not be loading without configuration")
	}
	if !strings.Contains(m.View(), "not configured") {
		t.Error("expected header to show the unconfigured state")
	}
}

func TestLoadFillsPanels(t *testing.T) {
	srv := mailcowServer(t)
	m, _ := newTestModel(t, srv.URL)

	if m.currentView != ViewHome || !m.loading {
		t.Fatalf("expected home view while loading, got view %v loading %v", m.currentView, m.loading)
	}

	// Run the load synchronously, then deliver the messages the program
	// would.
	msg := m.loadLists()()
	updated, _ := m.Update(msg)
	updated, _ = updated.Update(changedMsg{})
	m = updated.(Model)

	if m.loading {
		t.Error("expected loading to finish")
	}
	if len(m.domains) != 2 || m.domains[0] != "a.com" {
		t.Errorf("unexpected domains %v", m.domains)
	}
	if len(m.mailboxes) != 1 {
		t.Errorf("unexpected mailboxes %v", m.mailboxes)
	}

	view := m.View()
	for _, want := range []string{"Domains (2)", "b.com", "x@a.com"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestNavigation(t *testing.T) {
	srv := mailcowServer(t)
	m, _ := newTestModel(t, srv.URL)
	m.loadLists()()
	m.refresh()

	updated, _ := m.Update(keyPress("j"))
	m = updated.(Model)
	if m.cursors[PanelDomains] != 1 {
		t.Errorf("expected domain cursor 1, got %d", m.cursors[PanelDomains])
	}

	// Cursor stops at the last item.
	updated, _ = m.Update(keyPress("j"))
	m = updated.(Model)
	if m.cursors[PanelDomains] != 1 {
		t.Errorf("expected domain cursor to stay at 1, got %d", m.cursors[PanelDomains])
	}

	updated, _ = m.Update(keyPress("tab"))
	m = updated.(Model)
	if m.focus != PanelMailboxes {
		t.Errorf("expected mailbox panel focus")
	}
}

func TestKeysOpenViews(t *testing.T) {
	srv := mailcowServer(t)
	m, _ := newTestModel(t, srv.URL)

	tests := []struct {
		key  string
		want ViewState
	}{
		{key: "?", want: ViewHelp},
		{key: ":", want: ViewCommand},
		{key: "n", want: ViewAlias},
		{key: "s", want: ViewSettings},
		{key: "R", want: ViewSettings},
	}

	for _, tt := range tests {
		updated, _ := m.Update(keyPress(tt.key))
		got := updated.(Model)
		if got.currentView != tt.want {
			t.Errorf("key %q: expected view %v, got %v", tt.key, tt.want, got.currentView)
		}

		back, _ := got.Update(keyPress("esc"))
		if back.(Model).currentView != ViewHome {
			t.Errorf("key %q: esc should return home", tt.key)
		}
	}
}

func TestSettingsSavedPersistsAndReloads(t *testing.T) {
	srv := mailcowServer(t)
	m, deps := newTestModel(t, "")

	updated, cmd := m.Update(settingsform.SavedMsg{ServerURL: srv.URL, APIKey: "key"})
	m = updated.(Model)
	if m.currentView != ViewHome {
		t.Errorf("expected home view after saving")
	}
	if cmd == nil {
		t.Fatal("expected a command that applies the settings")
	}
	if _, ok := cmd().(settingsAppliedMsg); !ok {
		t.Fatal("expected settingsAppliedMsg")
	}

	if got := deps.Settings.Get(); got.ServerURL != srv.URL || got.APIKey != "key" {
		t.Errorf("settings not persisted: %+v", got)
	}

	updated, _ = m.Update(settingsAppliedMsg{})
	if !updated.(Model).loading {
		t.Error("expected reload after settings were applied")
	}
}

func TestResetClearsSettingsAndLists(t *testing.T) {
	srv := mailcowServer(t)
	m, deps := newTestModel(t, srv.URL)
	m.loadLists()()

	_, cmd := m.Update(settingsform.ResetMsg{})
	cmd()

	if deps.Settings.Get().Configured() {
		t.Error("expected settings to be cleared")
	}
	if got := deps.Mailcow.Domains().Get(); len(got) != 0 {
		t.Errorf("expected domains to be emptied, got %v", got)
	}
}

func TestAliasSubmitNotifies(t *testing.T) {
	srv := mailcowServer(t)
	m, deps := newTestModel(t, srv.URL)

	_, cmd := m.Update(aliasform.SubmitMsg{Alias: "sales", Domain: "a.com", Target: "x@a.com"})
	msg, ok := cmd().(aliasDoneMsg)
	if !ok || msg.err != nil {
		t.Fatalf("expected successful aliasDoneMsg, got %+v", msg)
	}

	notes := deps.Notifications.List()
	if len(notes) != 1 || notes[0].Message != mailcow.MsgAliasCreated {
		t.Errorf("expected success notification, got %+v", notes)
	}
}

func TestUnknownCommandNotifies(t *testing.T) {
	m, deps := newTestModel(t, "https://mail.example.com")

	updated, _ := m.Update(command.CommandMsg("bogus"))
	if updated.(Model).currentView != ViewHome {
		t.Error("expected home view after a command")
	}

	notes := deps.Notifications.List()
	if len(notes) != 1 || notes[0].Kind != notify.KindError {
		t.Errorf("expected one error notification, got %+v", notes)
	}
}

func TestDismissRemovesNewestNotification(t *testing.T) {
	m, deps := newTestModel(t, "https://mail.example.com")
	deps.Notifications.Info("first")
	deps.Notifications.Info("second")
	m.refresh()

	m.Update(keyPress("x"))

	notes := deps.Notifications.List()
	if len(notes) != 1 || notes[0].Message != "first" {
		t.Errorf("expected only the first notification left, got %+v", notes)
	}
}

func TestConfiguredFollowsSettings(t *testing.T) {
	m, deps := newTestModel(t, "https://mail.example.com")
	if !m.configured {
		t.Fatal("expected configured model")
	}

	deps.Settings.SetAPIKey(context.Background(), "")
	updated, _ := m.Update(changedMsg{})
	m = updated.(Model)
	if m.configured {
		t.Error("expected configured to turn false once the API key is blank")
	}
	if !strings.Contains(m.View(), "not configured") {
		t.Error("expected header to show the unconfigured state")
	}

	// Reload is refused and the settings form opens instead.
	updated, _ = m.Update(keyPress("r"))
	if updated.(Model).currentView != ViewSettings {
		t.Errorf("expected settings view, got %v", updated.(Model).currentView)
	}
}
