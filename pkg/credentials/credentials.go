// Package credentials stores the Google OAuth token and LLM API key for
// granola-mcp.
//
// Secrets live in the system keyring:
//   - macOS: Keychain
//   - Windows: Credential Manager
//   - Linux: Secret Service (libsecret)
//
// For headless and CI environments the keyring can be bypassed with
// GRANOLA_GOOGLE_TOKEN_FILE (path to a token JSON) and
// GRANOLA_LLM_API_KEY.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	// keyringService is the service name used in the system keyring.
	keyringService = "granola-mcp"

	keyringGoogleToken = "google-oauth-token"
	keyringLLMAPIKey   = "llm-api-key"

	envGoogleTokenFile = "GRANOLA_GOOGLE_TOKEN_FILE"
	envLLMAPIKey       = "GRANOLA_LLM_API_KEY"
)

// Common errors.
var (
	// ErrNoCredentials is returned when the requested secret is not stored.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrKeyringUnavailable indicates the system keyring is not available.
	ErrKeyringUnavailable = errors.New("system keyring unavailable")
)

// Store reads and writes granola-mcp secrets. The zero value uses the
// system keyring with environment variable overrides.
type Store struct{}

// NewStore creates a credential store.
func NewStore() *Store {
	return &Store{}
}

// GoogleToken returns the stored OAuth token, preferring the
// GRANOLA_GOOGLE_TOKEN_FILE override. ErrNoCredentials means the auth
// flow has not run yet; callers treat that as "calendar disabled".
func (s *Store) GoogleToken() (*oauth2.Token, error) {
	if path := os.Getenv(envGoogleTokenFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", envGoogleTokenFile, err)
		}
		return decodeToken(data)
	}

	raw, err := keyring.Get(keyringService, keyringGoogleToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return decodeToken([]byte(raw))
}

// SetGoogleToken stores the OAuth token in the keyring.
func (s *Store) SetGoogleToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding oauth token: %w", err)
	}
	if err := keyring.Set(keyringService, keyringGoogleToken, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// DeleteGoogleToken removes the stored OAuth token. Deleting a token
// that was never stored is not an error.
func (s *Store) DeleteGoogleToken() error {
	err := keyring.Delete(keyringService, keyringGoogleToken)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// LLMAPIKey returns the remote classifier API key, preferring the
// GRANOLA_LLM_API_KEY override.
func (s *Store) LLMAPIKey() (string, error) {
	if key := os.Getenv(envLLMAPIKey); key != "" {
		return key, nil
	}

	key, err := keyring.Get(keyringService, keyringLLMAPIKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return key, nil
}

// SetLLMAPIKey stores the remote classifier API key in the keyring.
func (s *Store) SetLLMAPIKey(key string) error {
	if err := keyring.Set(keyringService, keyringLLMAPIKey, key); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("parsing oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, ErrNoCredentials
	}
	return tok, nil
}
