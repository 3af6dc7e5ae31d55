// ABOUTME: Fitlog configuration management with backend selection.
// ABOUTME: Handles settings, data paths, and the key-value store factory function.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/fitlog/internal/kv"
)

// Backend names accepted in the config file.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// DefaultPageSize is used for list commands when page_size is unset.
const DefaultPageSize = 20

// Config stores fitlog tool configuration.
type Config struct {
	// Backend selects the key-value backend: "badger" (default) or "sqlite".
	Backend string `json:"backend,omitempty"`

	// DataDir is the root directory for data storage.
	// Badger keeps its value log in DataDir/badger. SQLite puts fitlog.db here.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/fitlog.
	DataDir string `json:"data_dir,omitempty"`

	// Debug enables debug logging to stderr.
	Debug bool `json:"debug,omitempty"`

	// PageSize is the number of rows list commands show per page.
	PageSize int `json:"page_size,omitempty"`
}

// GetBackend returns the configured backend, defaulting to "badger".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendBadger
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return DefaultDataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetPageSize returns the configured page size, defaulting to DefaultPageSize.
func (c *Config) GetPageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}

// DefaultDataDir returns the default data directory following XDG spec.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "fitlog")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenKV opens the key-value store for the configured backend.
func (c *Config) OpenKV() (kv.Store, error) {
	return c.OpenBackend(c.GetBackend())
}

// BackendPath returns where backend keeps its files under the data dir.
func (c *Config) BackendPath(backend string) (string, error) {
	switch backend {
	case BackendBadger:
		return filepath.Join(c.GetDataDir(), "badger"), nil
	case BackendSQLite:
		return filepath.Join(c.GetDataDir(), "fitlog.db"), nil
	default:
		return "", fmt.Errorf("unknown backend: %q", backend)
	}
}

// OpenBackend opens the named backend under the data dir, whatever the
// configured backend is.
func (c *Config) OpenBackend(backend string) (kv.Store, error) {
	path, err := c.BackendPath(backend)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.GetDataDir(), 0750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	if backend == BackendSQLite {
		store, err := kv.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := kv.OpenBadger(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// GetConfigDir returns the fitlog config directory.
func GetConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "fitlog")
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.json")
}

// Load reads config from disk.
func Load() (*Config, error) {
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
