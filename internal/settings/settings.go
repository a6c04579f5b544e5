// Package settings holds the server URL and API key used to reach the
// mailcow admin API.
package settings

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nhle/mailcow-companion/internal/observable"
)

// Storage keys. They are part of the persisted format and must not change.
const (
	KeyServerURL = "serverUrl"
	KeyAPIKey    = "apiKey"
)

// ErrMissingConfiguration is returned by Credentials when the server URL
// or the API key is empty.
var ErrMissingConfiguration = errors.New("missing configuration")

// Settings is the pair of values needed to call the API.
type Settings struct {
	ServerURL string
	APIKey    string
}

// Configured reports whether both values are set.
func (s Settings) Configured() bool {
	return s.ServerURL != "" && s.APIKey != ""
}

// Storage is the persistence the store depends on. It must not fail;
// storage.Service satisfies it.
type Storage interface {
	Get(ctx context.Context, keys ...string) map[string]any
	Set(ctx context.Context, items map[string]any)
	Clear(ctx context.Context)
}

// Store keeps the current Settings and persists every change.
type Store struct {
	storage    Storage
	state      *observable.Store[Settings]
	configured *observable.Derived[bool]
	logger     *zap.Logger
}

// NewStore creates a Store with empty settings. Call Init to load the
// persisted values.
func NewStore(storage Storage, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	state := observable.New(Settings{})
	return &Store{
		storage:    storage,
		state:      state,
		configured: observable.Derive[Settings, bool](state, Settings.Configured),
		logger:     logger,
	}
}

// Init loads the persisted values. Missing or non-string values load as
// empty strings.
func (s *Store) Init(ctx context.Context) {
	data := s.storage.Get(ctx, KeyServerURL, KeyAPIKey)

	loaded := Settings{
		ServerURL: stringValue(data[KeyServerURL]),
		APIKey:    stringValue(data[KeyAPIKey]),
	}
	s.state.Set(loaded)

	s.logger.Debug("settings loaded", zap.Bool("configured", loaded.Configured()))
}

// SetServerURL persists url and then publishes it.
func (s *Store) SetServerURL(ctx context.Context, url string) {
	s.storage.Set(ctx, map[string]any{KeyServerURL: url})
	s.state.Update(func(cur Settings) Settings {
		cur.ServerURL = url
		return cur
	})
}

// SetAPIKey persists key and then publishes it.
func (s *Store) SetAPIKey(ctx context.Context, key string) {
	s.storage.Set(ctx, map[string]any{KeyAPIKey: key})
	s.state.Update(func(cur Settings) Settings {
		cur.APIKey = key
		return cur
	})
}

// Clear wipes the persisted values and resets both fields.
func (s *Store) Clear(ctx context.Context) {
	s.storage.Clear(ctx)
	s.state.Set(Settings{})
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	return s.state.Get()
}

// Subscribe registers fn for settings changes.
func (s *Store) Subscribe(fn func(Settings)) func() {
	return s.state.Subscribe(fn)
}

// Configured is true exactly when both fields are non-empty.
func (s *Store) Configured() observable.Readable[bool] {
	return s.configured
}

// Credentials returns the current settings, or ErrMissingConfiguration
// when either field is empty. Every API call goes through it.
func (s *Store) Credentials() (Settings, error) {
	cur := s.state.Get()
	if !cur.Configured() {
		return Settings{}, ErrMissingConfiguration
	}
	return cur, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
