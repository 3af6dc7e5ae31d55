// ABOUTME: Tests for fitlog configuration management.
// ABOUTME: Covers load, save, defaults, backend selection, and path expansion.
package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestGetBackendDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetBackend(); got != BackendBadger {
		t.Errorf("GetBackend() = %q, want %q", got, BackendBadger)
	}
}

func TestGetBackendExplicit(t *testing.T) {
	cfg := &Config{Backend: "sqlite"}
	if got := cfg.GetBackend(); got != BackendSQLite {
		t.Errorf("GetBackend() = %q, want %q", got, BackendSQLite)
	}
}

func TestGetPageSize(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{0, DefaultPageSize},
		{-3, DefaultPageSize},
		{50, 50},
	}
	for _, tt := range tests {
		cfg := &Config{PageSize: tt.size}
		if got := cfg.GetPageSize(); got != tt.want {
			t.Errorf("GetPageSize() with %d = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestGetDataDirDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	cfg := &Config{}
	want := filepath.Join("/tmp/xdg-data", "fitlog")
	if got := cfg.GetDataDir(); got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestGetDataDirExplicit(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/fitlog-test"}
	if got := cfg.GetDataDir(); got != "/tmp/fitlog-test" {
		t.Errorf("GetDataDir() = %q, want %q", got, "/tmp/fitlog-test")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/tmp/foo", "/tmp/foo"},
		{"~", home},
		{"~/data/fitlog", filepath.Join(home, "data/fitlog")},
		{"data/fitlog", "data/fitlog"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetDataDirExpandsTilde(t *testing.T) {
	home, _ := os.UserHomeDir()

	cfg := &Config{DataDir: "~/fitlog-data"}
	got := cfg.GetDataDir()
	want := filepath.Join(home, "fitlog-data")
	if got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.Backend != "" || cfg.DataDir != "" || cfg.Debug || cfg.PageSize != 0 {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{
		Backend:  "sqlite",
		DataDir:  "/tmp/fitlog-data",
		Debug:    true,
		PageSize: 15,
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded %+v, want %+v", loaded, cfg)
	}

	info, err := os.Stat(GetConfigPath())
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "nonexistent"))

	cfg := &Config{Backend: "badger"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() should create directory: %v", err)
	}

	configDir := filepath.Join(tmpDir, "nonexistent", "fitlog")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Error("Expected config directory to be created")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "fitlog")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte("invalid json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid JSON config")
	}
}

func TestGetConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	got := GetConfigPath()
	want := filepath.Join(tmpDir, "fitlog", "config.json")
	if got != want {
		t.Errorf("GetConfigPath() = %q, want %q", got, want)
	}
}

func TestOpenKVBackends(t *testing.T) {
	tests := []struct {
		backend string
		created string
	}{
		{"badger", "badger"},
		{"sqlite", "fitlog.db"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			tmpDir := t.TempDir()
			cfg := &Config{Backend: tt.backend, DataDir: tmpDir}

			store, err := cfg.OpenKV()
			if err != nil {
				t.Fatalf("OpenKV() for %s failed: %v", tt.backend, err)
			}
			defer store.Close()

			ctx := context.Background()
			if err := store.Set(ctx, []byte("k"), []byte("v")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, err := store.Get(ctx, []byte("k"))
			if err != nil || string(got) != "v" {
				t.Errorf("Get = %q, %v", got, err)
			}

			if _, err := os.Stat(filepath.Join(tmpDir, tt.created)); os.IsNotExist(err) {
				t.Errorf("expected %s to be created", tt.created)
			}
		})
	}
}

func TestOpenKVUnknownBackend(t *testing.T) {
	cfg := &Config{Backend: "postgres", DataDir: t.TempDir()}
	if _, err := cfg.OpenKV(); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestOpenBackendIgnoresConfiguredBackend(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{Backend: BackendBadger, DataDir: tmpDir}

	path, err := cfg.BackendPath(BackendSQLite)
	if err != nil {
		t.Fatalf("BackendPath failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "fitlog.db"); path != want {
		t.Errorf("BackendPath(sqlite) = %q, want %q", path, want)
	}

	store, err := cfg.OpenBackend(BackendSQLite)
	if err != nil {
		t.Fatalf("OpenBackend failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected sqlite file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "badger")); !os.IsNotExist(err) {
		t.Error("badger dir should not be created")
	}
	if _, err := cfg.BackendPath("postgres"); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
