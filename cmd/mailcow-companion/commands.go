package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v2"

	"github.com/nhle/mailcow-companion/internal/app"
	"github.com/nhle/mailcow-companion/internal/config"
	"github.com/nhle/mailcow-companion/internal/mailcow"
	"github.com/nhle/mailcow-companion/internal/notify"
	"github.com/nhle/mailcow-companion/internal/observable"
	"github.com/nhle/mailcow-companion/internal/storage"
)

var errNotConfigured = errors.New("server URL and API key are not set, run 'config set-url' and 'config set-key' first")

func runUI(c *cli.Context) error {
	e, err := openEnv(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	m := app.New(app.Deps{
		Settings:       e.settings,
		Mailcow:        e.mailcow,
		Notifications:  e.notes,
		Logger:         e.logger.Named("ui"),
		StorageBackend: e.storage.BackendName(),
		ConfigPath:     e.configPath,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(c.Context))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

func listDomains(c *cli.Context) error {
	return printList(c, func(e *env) observable.Readable[[]string] {
		e.mailcow.LoadDomains(c.Context)
		return e.mailcow.Domains()
	})
}

func listMailboxes(c *cli.Context) error {
	return printList(c, func(e *env) observable.Readable[[]string] {
		e.mailcow.LoadMailboxes(c.Context)
		return e.mailcow.Mailboxes()
	})
}

func printList(c *cli.Context, load func(*env) observable.Readable[[]string]) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.settings.Get().Configured() {
		return errNotConfigured
	}

	list := load(e)
	if err := reportNotifications(c.App.ErrWriter, e.notes); err != nil {
		return err
	}
	for _, name := range list.Get() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func createAlias(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	if !e.settings.Get().Configured() {
		return errNotConfigured
	}

	resp, err := e.mailcow.CreateAlias(c.Context, c.String("alias"), c.String("domain"), c.String("goto"))
	if err != nil {
		return fmt.Errorf("%s: %w", mailcow.MsgAliasFailed, err)
	}
	if err := reportNotifications(c.App.ErrWriter, e.notes); err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, resp, "", "  "); err != nil {
		out.Reset()
		out.Write(resp)
	}
	fmt.Fprintln(c.App.Writer, out.String())
	return nil
}

func initConfig(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}

	cfg := config.Default()
	switch b := c.String("storage"); b {
	case "":
	case storage.BackendAuto, storage.BackendKeyring, storage.BackendLocal:
		cfg.Storage.Backend = b
	default:
		return fmt.Errorf("%w: %q", storage.ErrUnknownBackend, b)
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func showConfig(c *cli.Context) error {
	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	cur := e.settings.Get()
	url := cur.ServerURL
	if url == "" {
		url = "(not set)"
	}
	apiKey := "not set"
	if cur.APIKey != "" {
		apiKey = "set"
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Server URL:  %s\n", url)
	fmt.Fprintf(w, "API key:     %s\n", apiKey)
	fmt.Fprintf(w, "Storage:     %s\n", e.storage.BackendName())
	fmt.Fprintf(w, "Config file: %s\n", e.configPath)
	return nil
}

func setURL(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("URL is required", 2)
	}
	url := strings.TrimRight(strings.TrimSpace(c.Args().First()), "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid server URL %q: must start with http:// or https://", url)
	}

	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	e.settings.SetServerURL(c.Context, url)
	return nil
}

func setKey(c *cli.Context) error {
	key := strings.TrimSpace(c.Args().First())
	if key == "" {
		var err error
		key, err = promptAPIKey()
		if err != nil {
			return err
		}
	}
	if key == "" {
		return cli.Exit("API key is required", 2)
	}

	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	e.settings.SetAPIKey(c.Context, key)
	return nil
}

func clearConfig(c *cli.Context) error {
	if !c.Bool("yes") {
		confirmed := false
		err := huh.NewConfirm().
			Title("Remove the stored server URL and API key?").
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			return nil
		}
	}

	e, err := openEnv(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	e.settings.Clear(c.Context)
	return nil
}

func promptAPIKey() (string, error) {
	var key string
	err := huh.NewInput().
		Title("API key").
		EchoMode(huh.EchoModePassword).
		Value(&key).
		Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// reportNotifications prints the queued notifications to w and returns an
// error if any of them reports a failure.
func reportNotifications(w io.Writer, notes *notify.Store) error {
	if w == nil {
		w = os.Stderr
	}

	var failed []string
	for _, n := range notes.List() {
		if n.Kind == notify.KindError {
			failed = append(failed, n.Message)
			continue
		}
		fmt.Fprintln(w, n.Message)
	}
	if len(failed) > 0 {
		return errors.New(strings.Join(failed, "; "))
	}
	return nil
}
