package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Environment variables that override resolved paths.
const (
	EnvConfigPath = "PANTRY_CONFIG"
	EnvDBPath     = "PANTRY_DB_PATH"
	EnvDevMode    = "PANTRY_DEV_MODE"
	EnvAppName    = "PANTRY_APP_NAME"
)

// Paths represents paths data used by this package.
type Paths struct {
	ConfigPath  string
	DataDir     string
	DBPath      string
	PresetsPath string
}

// Overrides holds explicit path overrides from flags or the environment.
type Overrides struct {
	ConfigPath string
	DBPath     string
}

// OverridesFromEnv reads PANTRY_CONFIG and PANTRY_DB_PATH through getenv.
func OverridesFromEnv(getenv func(string) string) Overrides {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Overrides{
		ConfigPath: strings.TrimSpace(getenv(EnvConfigPath)),
		DBPath:     strings.TrimSpace(getenv(EnvDBPath)),
	}
}

// Apply returns p with every non-empty override applied. Flag values win over env values.
func (p Paths) Apply(flags, env Overrides) Paths {
	for _, o := range []Overrides{env, flags} {
		if v := strings.TrimSpace(o.ConfigPath); v != "" {
			p.ConfigPath = v
		}
		if v := strings.TrimSpace(o.DBPath); v != "" {
			p.DBPath = v
		}
	}
	return p
}

// Options defines optional settings for configuration.
type Options struct {
	AppName string
	DevMode bool
}

// DefaultPaths returns default paths.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: "pantry"})
}

// DefaultPathsWithOptions returns default paths with options.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = "pantry"
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	if runtime.GOOS == "linux" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	if runtime.GOOS == "windows" {
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"XDG_DATA_HOME":   os.Getenv("XDG_DATA_HOME"),
		"APPDATA":         os.Getenv("APPDATA"),
		"LOCALAPPDATA":    os.Getenv("LOCALAPPDATA"),
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// PathsFor handles paths for.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase := userConfigDir
	dataBase := userDataDir

	switch goos {
	case "linux":
		if v := env["XDG_CONFIG_HOME"]; v != "" {
			configBase = v
		}
		if v := env["XDG_DATA_HOME"]; v != "" {
			dataBase = v
		}
	case "windows":
		if v := env["APPDATA"]; v != "" {
			configBase = v
		}
		if v := env["LOCALAPPDATA"]; v != "" {
			dataBase = v
		}
	case "darwin":
		// Keep os.UserConfigDir/UserCacheDir defaults for macOS.
	default:
		// Fallback for other platforms.
	}

	appConfigDir := filepath.Join(configBase, appName)
	appDataDir := filepath.Join(dataBase, appName)
	dbName := appName + ".db"
	return Paths{
		ConfigPath:  filepath.Join(appConfigDir, "config.toml"),
		DataDir:     appDataDir,
		DBPath:      filepath.Join(appDataDir, dbName),
		PresetsPath: filepath.Join(appConfigDir, "presets.yaml"),
	}, nil
}
