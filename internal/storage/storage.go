// Package storage persists small configuration values in a key/value
// backend. The OS keyring is preferred; a local SQLite file is used when
// no keyring is available on the host.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Backend names accepted by Config.Backend.
const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendLocal   = "local"
)

// DefaultServiceName scopes keyring entries to this application.
const DefaultServiceName = "mailcow-companion"

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend is a key/value store holding JSON-compatible values.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Get returns the stored values for keys. Keys that are not stored
	// are absent from the result.
	Get(ctx context.Context, keys []string) (map[string]any, error)

	// Set stores every entry of items, replacing existing values.
	Set(ctx context.Context, items map[string]any) error

	// Clear removes every value owned by the application.
	Clear(ctx context.Context) error
}

// Config selects and configures the backend.
type Config struct {
	// Backend is one of BackendAuto, BackendKeyring or BackendLocal.
	Backend string

	// Path is the SQLite file used by the local backend.
	Path string

	// ServiceName is the keyring service the values are stored under.
	ServiceName string
}

// Open picks a backend once, at startup. With BackendAuto the keyring is
// probed first and the local file is used when the probe fails.
func Open(cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	var (
		backend Backend
		err     error
	)

	switch cfg.Backend {
	case BackendKeyring:
		backend, err = OpenKeyring(cfg.ServiceName)
	case BackendLocal:
		backend, err = OpenLocal(cfg.Path)
	case BackendAuto, "":
		backend, err = OpenKeyring(cfg.ServiceName)
		if err != nil {
			logger.Info("keyring unavailable, using local storage",
				zap.String("path", cfg.Path),
				zap.Error(err),
			)
			backend, err = OpenLocal(cfg.Path)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("storage backend selected", zap.String("backend", backend.Name()))

	return NewService(backend, logger), nil
}

// Service fronts a Backend and never reports failures to its callers:
// errors are logged and replaced by an empty result or a no-op.
type Service struct {
	backend Backend
	logger  *zap.Logger
}

// NewService wraps backend. A nil logger discards log output.
func NewService(backend Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend: backend,
		logger:  logger.With(zap.String("backend", backend.Name())),
	}
}

// BackendName reports which backend Open selected.
func (s *Service) BackendName() string {
	return s.backend.Name()
}

// Get returns the stored values for keys, or an empty map on failure.
func (s *Service) Get(ctx context.Context, keys ...string) map[string]any {
	values, err := s.backend.Get(ctx, keys)
	if err != nil {
		s.logger.Error("getting storage", zap.Strings("keys", keys), zap.Error(err))
		return map[string]any{}
	}
	if values == nil {
		values = map[string]any{}
	}
	return values
}

// Set stores items. Failures are logged and otherwise ignored.
func (s *Service) Set(ctx context.Context, items map[string]any) {
	if err := s.backend.Set(ctx, items); err != nil {
		s.logger.Error("setting storage", zap.Error(err))
	}
}

// Clear removes all stored values. Failures are logged and otherwise
// ignored.
func (s *Service) Clear(ctx context.Context) {
	if err := s.backend.Clear(ctx); err != nil {
		s.logger.Error("clearing storage", zap.Error(err))
	}
}

// Close releases the backend if it holds resources.
func (s *Service) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
