package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsWhenNoFile(t *testing.T) {
	t.Setenv("DIAGCTL_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BaseURL != "http://localhost:8000/api/v1" {
		t.Errorf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Transport.MaxReconnectAttempts != 5 {
		t.Errorf("max reconnect attempts = %d", cfg.Transport.MaxReconnectAttempts)
	}
	if got := cfg.Transport.ReconnectDelay(); got != 3*time.Second {
		t.Errorf("reconnect delay = %v", got)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DIAGCTL_HOME", home)

	dir := filepath.Join(home, ConfigDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	body := `{"server":{"baseUrl":"https://diag.example.com/api/v1"},"transport":{"reconnectDelayMs":500,"maxReconnectAttempts":2}}`
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BaseURL != "https://diag.example.com/api/v1" {
		t.Errorf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Transport.ReconnectDelayMS != 500 || cfg.Transport.MaxReconnectAttempts != 2 {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Console.DefaultAgentType != "diagnosis" {
		t.Errorf("default agent type = %q", cfg.Console.DefaultAgentType)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DIAGCTL_HOME", home)
	t.Setenv("DIAGCTL_SERVER_BASE_URL", "https://env.example.com/api/v1")
	t.Setenv("DIAGCTL_TRANSPORT_MAX_RECONNECT_ATTEMPTS", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BaseURL != "https://env.example.com/api/v1" {
		t.Errorf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Transport.MaxReconnectAttempts != 9 {
		t.Errorf("max reconnect attempts = %d", cfg.Transport.MaxReconnectAttempts)
	}
}

func TestExplicitConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	t.Setenv("DIAGCTL_CONFIG", path)

	got, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("DIAGCTL_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Server.BaseURL = "https://saved.example.com/api/v1"
	cfg.Archive.Enabled = true
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.BaseURL != "https://saved.example.com/api/v1" {
		t.Errorf("base url = %q", loaded.Server.BaseURL)
	}
	if !loaded.Archive.Enabled {
		t.Error("archive should be enabled")
	}
}

func TestArchivePathDefaultsUnderConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DIAGCTL_HOME", home)

	cfg := DefaultConfig()
	path, err := ArchivePath(cfg)
	if err != nil {
		t.Fatalf("archive path: %v", err)
	}
	want := filepath.Join(home, ConfigDir, "cases.db")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	cfg.Archive.Path = "/tmp/custom.db"
	path, _ = ArchivePath(cfg)
	if path != "/tmp/custom.db" {
		t.Errorf("explicit path = %q", path)
	}
}
