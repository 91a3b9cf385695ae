package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// SearchSource selects where ingredient searches are resolved.
type SearchSource string

// SearchSourceLocal and related constants define search sources.
const (
	SearchSourceLocal SearchSource = "local"
	SearchSourceHTTP  SearchSource = "http"
)

// PresetSource selects where the initial preset selection comes from.
type PresetSource string

// PresetSourceCatalog and related constants define preset sources.
const (
	PresetSourceCatalog PresetSource = "catalog"
	PresetSourceFile    PresetSource = "file"
	PresetSourceHTTP    PresetSource = "http"
	PresetSourceNone    PresetSource = "none"
)

type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Search    SearchConfig    `toml:"search"`
	Selection SelectionConfig `toml:"selection"`
	Presets   PresetsConfig   `toml:"presets"`
	Logging   LoggingConfig   `toml:"logging"`
	Server    ServerConfig    `toml:"server"`
	Keys      KeyConfig       `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type SearchConfig struct {
	DebounceMS  int          `toml:"debounce_ms"`
	ResultLimit int          `toml:"result_limit"`
	TimeoutMS   int          `toml:"timeout_ms"`
	Source      SearchSource `toml:"source"`
	BaseURL     string       `toml:"base_url"`
}

type SelectionConfig struct {
	Key                   string  `toml:"key"`
	MaxItems              int     `toml:"max_items"`
	NearMaxThresholdRatio float64 `toml:"near_max_threshold_ratio"`
	NoticeMS              int     `toml:"notice_ms"`
}

type PresetsConfig struct {
	Source PresetSource `toml:"source"`
	File   string       `toml:"file"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// KeyConfig holds picker key overrides. Blank values keep the built-in bindings.
type KeyConfig struct {
	Remove     string `toml:"remove"`
	ClearAll   string `toml:"clear_all"`
	Copy       string `toml:"copy"`
	Retry      string `toml:"retry"`
	ToggleHelp string `toml:"toggle_help"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Search: SearchConfig{
			DebounceMS:  300,
			ResultLimit: 10,
			TimeoutMS:   5000,
			Source:      SearchSourceLocal,
		},
		Selection: SelectionConfig{
			Key:                   "default",
			MaxItems:              50,
			NearMaxThresholdRatio: 0.8,
			NoticeMS:              3000,
		},
		Presets: PresetsConfig{
			Source: PresetSourceCatalog,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".pantry/log",
			},
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// normalize lower-cases enum values and trims free text.
func (c *Config) normalize() {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	c.Search.Source = SearchSource(strings.TrimSpace(strings.ToLower(string(c.Search.Source))))
	c.Search.BaseURL = strings.TrimSpace(c.Search.BaseURL)
	c.Selection.Key = strings.TrimSpace(c.Selection.Key)
	c.Presets.Source = PresetSource(strings.TrimSpace(strings.ToLower(string(c.Presets.Source))))
	c.Presets.File = strings.TrimSpace(c.Presets.File)
	c.Logging.Level = strings.TrimSpace(strings.ToLower(c.Logging.Level))
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if c.Search.DebounceMS < 0 {
		return fmt.Errorf("search.debounce_ms must be >= 0")
	}
	if c.Search.ResultLimit <= 0 {
		return fmt.Errorf("search.result_limit must be > 0")
	}
	if c.Search.TimeoutMS <= 0 {
		return fmt.Errorf("search.timeout_ms must be > 0")
	}
	switch c.Search.Source {
	case SearchSourceLocal:
	case SearchSourceHTTP:
		if err := validateBaseURL(c.Search.BaseURL); err != nil {
			return fmt.Errorf("search.base_url: %w", err)
		}
	default:
		return fmt.Errorf("invalid search.source: %q", c.Search.Source)
	}

	if strings.TrimSpace(c.Selection.Key) == "" {
		return errors.New("selection.key is required")
	}
	if c.Selection.MaxItems <= 0 {
		return fmt.Errorf("selection.max_items must be > 0")
	}
	if c.Selection.NearMaxThresholdRatio <= 0 || c.Selection.NearMaxThresholdRatio > 1 {
		return fmt.Errorf("selection.near_max_threshold_ratio must be in (0, 1]")
	}
	if c.Selection.NoticeMS <= 0 {
		return fmt.Errorf("selection.notice_ms must be > 0")
	}

	switch c.Presets.Source {
	case PresetSourceCatalog, PresetSourceNone:
	case PresetSourceFile:
		if strings.TrimSpace(c.Presets.File) == "" {
			return errors.New("presets.file is required when presets.source = \"file\"")
		}
	case PresetSourceHTTP:
		if err := validateBaseURL(c.Search.BaseURL); err != nil {
			return fmt.Errorf("presets.source = \"http\" needs search.base_url: %w", err)
		}
	default:
		return fmt.Errorf("invalid presets.source: %q", c.Presets.Source)
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when enabled")
	}

	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind is required")
	}
	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if !strings.HasPrefix(strings.TrimSpace(endpoint), "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}

	return nil
}

// validateBaseURL requires an absolute http(s) url.
func validateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// Debounce returns the configured quiet interval.
func (c SearchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Timeout returns the per-request search timeout.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// NoticeTTL returns how long selection notices stay visible.
func (c SelectionConfig) NoticeTTL() time.Duration {
	return time.Duration(c.NoticeMS) * time.Millisecond
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
