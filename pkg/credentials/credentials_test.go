package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

func TestGoogleTokenFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	content := `{"access_token":"at","refresh_token":"rt","token_type":"Bearer"}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envGoogleTokenFile, path)

	tok, err := NewStore().GoogleToken()
	if err != nil {
		t.Fatalf("GoogleToken() error = %v", err)
	}
	if tok.AccessToken != "at" || tok.RefreshToken != "rt" {
		t.Errorf("GoogleToken() = %+v", tok)
	}
}

func TestGoogleTokenEnvFileMissing(t *testing.T) {
	t.Setenv(envGoogleTokenFile, filepath.Join(t.TempDir(), "nope.json"))
	if _, err := NewStore().GoogleToken(); err == nil {
		t.Fatal("GoogleToken() accepted a missing token file")
	}
}

func TestLLMAPIKeyFromEnv(t *testing.T) {
	t.Setenv(envLLMAPIKey, "sk-test")

	key, err := NewStore().LLMAPIKey()
	if err != nil {
		t.Fatalf("LLMAPIKey() error = %v", err)
	}
	if key != "sk-test" {
		t.Errorf("LLMAPIKey() = %q", key)
	}
}

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	store := NewStore()

	// Nothing stored yet.
	if _, err := store.GoogleToken(); err != ErrNoCredentials {
		t.Fatalf("GoogleToken() error = %v, want ErrNoCredentials", err)
	}

	tok := &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}
	if err := store.SetGoogleToken(tok); err != nil {
		t.Fatalf("SetGoogleToken() error = %v", err)
	}
	got, err := store.GoogleToken()
	if err != nil {
		t.Fatalf("GoogleToken() error = %v", err)
	}
	if got.RefreshToken != "rt" {
		t.Errorf("GoogleToken() = %+v", got)
	}

	if err := store.DeleteGoogleToken(); err != nil {
		t.Fatalf("DeleteGoogleToken() error = %v", err)
	}
	if _, err := store.GoogleToken(); err != ErrNoCredentials {
		t.Fatalf("GoogleToken() after delete error = %v, want ErrNoCredentials", err)
	}

	// Deleting again is a no-op.
	if err := store.DeleteGoogleToken(); err != nil {
		t.Fatalf("DeleteGoogleToken() second call error = %v", err)
	}

	if err := store.SetLLMAPIKey("sk-keyring"); err != nil {
		t.Fatalf("SetLLMAPIKey() error = %v", err)
	}
	key, err := store.LLMAPIKey()
	if err != nil {
		t.Fatalf("LLMAPIKey() error = %v", err)
	}
	if key != "sk-keyring" {
		t.Errorf("LLMAPIKey() = %q", key)
	}
}
