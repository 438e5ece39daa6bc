package auth

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if _, err := s.Load(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}

	if err := s.Save("tok-abc"); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tok != "tok-abc" {
		t.Errorf("token = %q", tok)
	}
}

func TestFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on windows")
	}
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Save("tok"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, credentialsFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("credentials file mode %o, want 600", perm)
	}
}

func TestClearIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Clear(); err != nil {
		t.Fatalf("clear on missing file: %v", err)
	}
	s.Save("tok")
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := s.Load(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken after clear, got %v", err)
	}
}

func TestTokenSourceFallsBackToEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	src := s.TokenSource()
	if got := src(); got != "" {
		t.Errorf("expected empty token, got %q", got)
	}
	s.Save("tok-1")
	if got := src(); got != "tok-1" {
		t.Errorf("expected tok-1, got %q", got)
	}
}
