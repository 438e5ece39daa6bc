// Package auth persists the operator's bearer token between runs.
// The token is the only client state that survives a restart; everything
// else is rebuilt from the backend on each load.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// tokenKey is the fixed key the token lives under in the credentials file.
const tokenKey = "auth_token"

const credentialsFile = "credentials.json"

// ErrNoToken is returned when no token has been stored yet.
var ErrNoToken = errors.New("no stored token, run login first")

// Store reads and writes the credentials file under the config directory.
type Store struct {
	path string
}

// NewStore creates a token store rooted at the given config directory.
func NewStore(configDir string) *Store {
	return &Store{path: filepath.Join(configDir, credentialsFile)}
}

// Load returns the stored token.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read credentials: %w", err)
	}
	var creds map[string]string
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("parse credentials: %w", err)
	}
	tok, ok := creds[tokenKey]
	if !ok || tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// Save writes the token, creating the directory if needed. The file is
// owner-readable only.
func (s *Store) Save(token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(map[string]string{tokenKey: token}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the stored token. Missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// TokenSource adapts the store for the REST client: a missing token yields
// the empty string, which sends requests unauthenticated.
func (s *Store) TokenSource() func() string {
	return func() string {
		tok, err := s.Load()
		if err != nil {
			return ""
		}
		return tok
	}
}
