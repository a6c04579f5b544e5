// Package config loads application settings that are not secrets.
// The server URL and API key are kept by the storage backend instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g.
// MAILCOW_COMPANION_STORAGE_BACKEND.
const EnvPrefix = "MAILCOW_COMPANION"

// StorageConfig selects where the server URL and API key are persisted.
type StorageConfig struct {
	// Backend is "auto", "keyring" or "local".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the SQLite file used by the local backend.
	Path string `mapstructure:"path" yaml:"path"`

	// ServiceName scopes keyring entries.
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// NotificationConfig controls user-facing notifications.
type NotificationConfig struct {
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File receives logs while the terminal UI owns the screen.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
}

// NotificationTimeout returns the configured timeout as a duration.
func (c *AppConfig) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.TimeoutSec) * time.Second
}

// Dir returns the configuration directory,
// ~/.config/mailcow-companion.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailcow-companion")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "auto")
	v.SetDefault("storage.path", filepath.Join(Dir(), "storage.db"))
	v.SetDefault("storage.service_name", "mailcow-companion")
	v.SetDefault("notifications.timeout_sec", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(Dir(), "mailcow-companion.log"))
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *AppConfig {
	v := viper.New()
	setDefaults(v)

	cfg := &AppConfig{}
	// Defaults are plain values; decoding them cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration from the YAML file at path, then applies
// environment overrides. A .env file in the working directory is loaded
// first if present. A missing config file yields the defaults.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Notifications.TimeoutSec < 0 {
		cfg.Notifications.TimeoutSec = 0
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories if needed.
func Save(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("storage", cfg.Storage)
	v.Set("notifications", cfg.Notifications)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
