package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nhle/mailcow-companion/internal/config"
	"github.com/nhle/mailcow-companion/internal/logging"
	"github.com/nhle/mailcow-companion/internal/mailcow"
	"github.com/nhle/mailcow-companion/internal/notify"
	"github.com/nhle/mailcow-companion/internal/settings"
	"github.com/nhle/mailcow-companion/internal/storage"
)

func defaultConfigPath() string {
	return config.DefaultConfigPath()
}

// env holds the services shared by every subcommand.
type env struct {
	configPath string
	cfg        *config.AppConfig
	logger     *zap.Logger
	storage    *storage.Service
	settings   *settings.Store
	notes      *notify.Store
	mailcow    *mailcow.Service

	unwatch func()
}

// openEnv loads configuration and wires storage, settings, notifications
// and the mailcow service. With logToFile set, logs go to the configured
// log file so they don't draw over the terminal UI.
func openEnv(c *cli.Context, logToFile bool) (*env, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if b := c.String("storage"); b != "" {
		cfg.Storage.Backend = b
	}

	logOpts := logging.Options{Level: cfg.Log.Level, Debug: c.Bool("debug")}
	if logToFile {
		logOpts.File = cfg.Log.File
	} else if !logOpts.Debug {
		// Keep command output clean; warnings and errors still show.
		logOpts.Level = "warn"
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	st, err := storage.Open(storage.Config{
		Backend:     cfg.Storage.Backend,
		Path:        cfg.Storage.Path,
		ServiceName: cfg.Storage.ServiceName,
	}, logger.Named("storage"))
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	sets := settings.NewStore(st, logger.Named("settings"))
	sets.Init(c.Context)

	notes := notify.NewStore(cfg.NotificationTimeout())
	client := mailcow.NewClient(sets, mailcow.WithLogger(logger.Named("mailcow")))
	svc := mailcow.NewService(client, notes, logger.Named("mailcow"))

	return &env{
		configPath: path,
		cfg:        cfg,
		logger:     logger,
		storage:    st,
		settings:   sets,
		notes:      notes,
		mailcow:    svc,
		unwatch:    svc.Watch(sets),
	}, nil
}

func (e *env) Close() {
	e.unwatch()
	e.notes.Close()
	if err := e.storage.Close(); err != nil {
		e.logger.Warn("closing storage", zap.Error(err))
	}
	_ = e.logger.Sync()
}

