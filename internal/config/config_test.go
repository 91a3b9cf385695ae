package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/pantry.db")
	if cfg.Database.Path != "/tmp/pantry.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Search.Debounce() != 300*time.Millisecond {
		t.Fatalf("unexpected debounce %s", cfg.Search.Debounce())
	}
	if cfg.Search.ResultLimit != 10 || cfg.Search.Source != SearchSourceLocal {
		t.Fatalf("unexpected search defaults %#v", cfg.Search)
	}
	if cfg.Selection.MaxItems != 50 || cfg.Selection.Key != "default" {
		t.Fatalf("unexpected selection defaults %#v", cfg.Selection)
	}
	if cfg.Selection.NoticeTTL() != 3*time.Second {
		t.Fatalf("unexpected notice ttl %s", cfg.Selection.NoticeTTL())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/pantry.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/pantry.db"

[search]
debounce_ms = 150
source = "HTTP"
base_url = "http://localhost:5000"

[selection]
key = "weeknight"
max_items = 12

[presets]
source = "file"
file = "/etc/pantry/presets.yaml"

[keys]
clear_all = "ctrl+l"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/pantry.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Search.Source != SearchSourceHTTP {
		t.Fatalf("unexpected search source %q", cfg.Search.Source)
	}
	if cfg.Search.Debounce() != 150*time.Millisecond {
		t.Fatalf("unexpected debounce %s", cfg.Search.Debounce())
	}
	if cfg.Search.ResultLimit != 10 {
		t.Fatalf("expected untouched result limit, got %d", cfg.Search.ResultLimit)
	}
	if cfg.Selection.Key != "weeknight" || cfg.Selection.MaxItems != 12 {
		t.Fatalf("unexpected selection %#v", cfg.Selection)
	}
	if cfg.Presets.Source != PresetSourceFile {
		t.Fatalf("unexpected preset source %q", cfg.Presets.Source)
	}
	if cfg.Keys.ClearAll != "ctrl+l" || cfg.Keys.Remove != "" {
		t.Fatalf("unexpected keys %#v", cfg.Keys)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"search source":   "[search]\nsource = \"carrier-pigeon\"\n",
		"http no url":     "[search]\nsource = \"http\"\n",
		"max items":       "[selection]\nmax_items = 0\n",
		"ratio":           "[selection]\nnear_max_threshold_ratio = 1.5\n",
		"preset file":     "[presets]\nsource = \"file\"\n",
		"log level":       "[logging]\nlevel = \"loud\"\n",
		"api endpoint":    "[server]\napi_endpoint = \"api\"\n",
		"negative delay":  "[search]\ndebounce_ms = -1\n",
		"preset http url": "[presets]\nsource = \"http\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/default.db")); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[search\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path, Default("/tmp/default.db")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
