// Package storage keeps per-server API tokens in the system keyring.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the identifier used for all runwatch credentials in the system keyring.
	ServiceName = "runwatch"

	indexKey = "__runwatch_index__"
)

// ErrNoToken is returned by Get when no token is stored for a server.
var ErrNoToken = errors.New("no token stored")

// KeyringTokenStore stores one API token per server in the system keyring.
// - macOS: Uses Keychain
// - Windows: Uses Credential Manager
// - Linux: Uses Secret Service (GNOME Keyring, KWallet)
type KeyringTokenStore struct {
	service string
}

// NewKeyringTokenStore creates a new keyring-based token store.
func NewKeyringTokenStore() *KeyringTokenStore {
	return &KeyringTokenStore{
		service: ServiceName,
	}
}

// ServerKey normalises a server URL into the keyring account name, so that
// "http://host:8080/" and "HTTP://host:8080" share a token.
func ServerKey(server string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("server URL must include scheme and host: %q", server)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + strings.TrimSuffix(u.Path, "/"), nil
}

// Set stores token for server.
func (s *KeyringTokenStore) Set(server, token string) error {
	key, err := ServerKey(server)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := keyring.Set(s.service, key, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return s.addToIndex(key)
}

// Get returns the token stored for server, or ErrNoToken.
func (s *KeyringTokenStore) Get(server string) (string, error) {
	key, err := ServerKey(server)
	if err != nil {
		return "", err
	}

	token, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w for %s", ErrNoToken, key)
		}
		return "", fmt.Errorf("failed to retrieve token: %w", err)
	}

	return token, nil
}

// Token returns the token for server, or "" when none is stored.
// It satisfies the REST client's token source.
func (s *KeyringTokenStore) Token(server string) (string, error) {
	token, err := s.Get(server)
	if errors.Is(err, ErrNoToken) {
		return "", nil
	}
	return token, err
}

// Delete removes the token stored for server.
func (s *KeyringTokenStore) Delete(server string) error {
	key, err := ServerKey(server)
	if err != nil {
		return err
	}

	if err := keyring.Delete(s.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w for %s", ErrNoToken, key)
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}

	return s.removeFromIndex(key)
}

// List returns the servers that have a stored token, sorted.
// The keyring cannot enumerate accounts, so an index entry is kept alongside the tokens.
func (s *KeyringTokenStore) List() ([]string, error) {
	indexJSON, err := keyring.Get(s.service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to retrieve token index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(indexJSON), &keys); err != nil {
		return nil, fmt.Errorf("failed to parse token index: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KeyringTokenStore) addToIndex(key string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.saveIndex(append(keys, key))
}

func (s *KeyringTokenStore) removeFromIndex(key string) error {
	keys, err := s.List()
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	return s.saveIndex(kept)
}

func (s *KeyringTokenStore) saveIndex(keys []string) error {
	indexJSON, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal token index: %w", err)
	}
	if err := keyring.Set(s.service, indexKey, string(indexJSON)); err != nil {
		return fmt.Errorf("failed to save token index: %w", err)
	}
	return nil
}
