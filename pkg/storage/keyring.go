package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keyring service under which all flowsync secrets live.
	ServiceName = "flowsync"

	indexKey = "__flowsync_index__"
)

// ErrSecretNotFound is returned when no secret is stored under a key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore holds remote access tokens and workflow service API keys.
type SecretStore interface {
	// Set stores a secret, replacing any previous value
	Set(key string, value string) error
	// Get retrieves a secret; ErrSecretNotFound when absent
	Get(key string) (string, error)
	// Delete removes a secret; deleting an absent key is not an error
	Delete(key string) error
	// List returns all stored keys (not the values)
	List() ([]string, error)
}

// RemoteTokenKey is the secret key of a remote's access token.
func RemoteTokenKey(remote string) string {
	return "remote:" + remote + ":token"
}

// ProfileAPIKeyKey is the secret key of a profile's workflow service API key.
func ProfileAPIKeyKey(profile string) string {
	return "profile:" + profile + ":api-key"
}

// KeyringSecretStore implements SecretStore using the system keyring.
// - macOS: Uses Keychain
// - Windows: Uses Credential Manager
// - Linux: Uses Secret Service (GNOME Keyring, KWallet)
type KeyringSecretStore struct {
	service string
}

var _ SecretStore = (*KeyringSecretStore)(nil)

// NewKeyringSecretStore creates a keyring-backed secret store.
func NewKeyringSecretStore() *KeyringSecretStore {
	return &KeyringSecretStore{service: ServiceName}
}

// Set stores a secret in the system keyring.
func (s *KeyringSecretStore) Set(key string, value string) error {
	if key == "" {
		return fmt.Errorf("secret key cannot be empty")
	}

	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	// The secret is stored even if the index update fails
	_ = s.updateIndex(func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})

	return nil
}

// Get retrieves a secret from the system keyring.
func (s *KeyringSecretStore) Get(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("secret key cannot be empty")
	}

	value, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("failed to retrieve secret: %w", err)
	}

	return value, nil
}

// Delete removes a secret from the system keyring.
func (s *KeyringSecretStore) Delete(key string) error {
	if key == "" {
		return fmt.Errorf("secret key cannot be empty")
	}

	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	_ = s.updateIndex(func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})

	return nil
}

// List returns the stored keys recorded in the keyring index entry.
func (s *KeyringSecretStore) List() ([]string, error) {
	indexJSON, err := keyring.Get(s.service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to retrieve secret index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(indexJSON), &keys); err != nil {
		return nil, fmt.Errorf("failed to parse secret index: %w", err)
	}

	return keys, nil
}

func (s *KeyringSecretStore) updateIndex(update func([]string) []string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}

	indexJSON, err := json.Marshal(update(keys))
	if err != nil {
		return fmt.Errorf("failed to marshal secret index: %w", err)
	}

	if err := keyring.Set(s.service, indexKey, string(indexJSON)); err != nil {
		return fmt.Errorf("failed to save secret index: %w", err)
	}
	return nil
}

// MaskSecret hides all but the first four characters of a secret.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	r := []rune(secret)
	if len(r) <= 4 {
		return string(slices.Repeat([]rune{'*'}, len(r)))
	}
	return string(r[:4]) + string(slices.Repeat([]rune{'*'}, len(r)-4))
}
