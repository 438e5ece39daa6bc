package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".diagctl"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. DIAGCTL_CONFIG overrides
// the file, DIAGCTL_HOME the directory it lives in.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("DIAGCTL_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Dir returns the config directory (credentials and the case archive live
// next to the config file).
func Dir() (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("DIAGCTL_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load reads the config file (if present) over the defaults, then applies
// DIAGCTL_* environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envconfig.Process("DIAGCTL_SERVER", &cfg.Server); err != nil {
		return nil, fmt.Errorf("apply server env overrides: %w", err)
	}
	if err := envconfig.Process("DIAGCTL_TRANSPORT", &cfg.Transport); err != nil {
		return nil, fmt.Errorf("apply transport env overrides: %w", err)
	}
	if err := envconfig.Process("DIAGCTL_CONSOLE", &cfg.Console); err != nil {
		return nil, fmt.Errorf("apply console env overrides: %w", err)
	}
	if err := envconfig.Process("DIAGCTL_ARCHIVE", &cfg.Archive); err != nil {
		return nil, fmt.Errorf("apply archive env overrides: %w", err)
	}
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ArchivePath resolves the sqlite archive location for the given config.
func ArchivePath(cfg *Config) (string, error) {
	if cfg.Archive.Path != "" {
		return cfg.Archive.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cases.db"), nil
}
