package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// KeyringBackend stores values in the operating system keyring.
type KeyringBackend struct {
	ring        keyring.Keyring
	serviceName string
}

// OpenKeyring opens the native keyring for serviceName and probes it.
// Only OS-provided backends are allowed; the encrypted-file backend is
// left out because the local backend already covers that case.
func OpenKeyring(serviceName string) (*KeyringBackend, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}

	// Some backends open lazily and only fail on first use.
	if _, err := ring.Keys(); err != nil {
		return nil, fmt.Errorf("probing keyring: %w", err)
	}

	return NewKeyringBackend(ring, serviceName), nil
}

// NewKeyringBackend wraps an already opened keyring. serviceName prefixes
// item labels and defaults to DefaultServiceName.
func NewKeyringBackend(ring keyring.Keyring, serviceName string) *KeyringBackend {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	return &KeyringBackend{ring: ring, serviceName: serviceName}
}

// Name implements Backend.
func (b *KeyringBackend) Name() string {
	return BackendKeyring
}

// Get implements Backend.
func (b *KeyringBackend) Get(ctx context.Context, keys []string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(map[string]any, len(keys))
	for _, key := range keys {
		item, err := b.ring.Get(key)
		if errors.Is(err, keyring.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("getting %q from keyring: %w", key, err)
		}
		result[key] = decodeValue(string(item.Data))
	}

	return result, nil
}

// Set implements Backend.
func (b *KeyringBackend) Set(ctx context.Context, items map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for key, value := range items {
		data, err := encodeValue(key, value)
		if err != nil {
			return err
		}

		err = b.ring.Set(keyring.Item{
			Key:   key,
			Data:  []byte(data),
			Label: b.serviceName + " " + key,
		})
		if err != nil {
			return fmt.Errorf("setting %q in keyring: %w", key, err)
		}
	}

	return nil
}

// Clear implements Backend.
func (b *KeyringBackend) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys, err := b.ring.Keys()
	if err != nil {
		return fmt.Errorf("listing keyring entries: %w", err)
	}

	for _, key := range keys {
		err := b.ring.Remove(key)
		if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("removing %q from keyring: %w", key, err)
		}
	}

	return nil
}
