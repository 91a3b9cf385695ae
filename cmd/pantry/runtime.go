package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/pantry/internal/adapters/catalogfile"
	"github.com/hylla/pantry/internal/adapters/httpclient"
	"github.com/hylla/pantry/internal/adapters/storage/sqlite"
	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/config"
	"github.com/hylla/pantry/internal/domain"
	"github.com/hylla/pantry/internal/platform"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// defaultRootOptions seeds flag defaults from the environment.
func defaultRootOptions() rootOptions {
	opts := rootOptions{appName: "pantry", devMode: version == "dev"}
	if envDev, ok := parseBoolEnv(platform.EnvDevMode); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv(platform.EnvAppName)); envApp != "" {
		opts.appName = envApp
	}
	return opts
}

// resolvePaths applies env and flag overrides on top of the platform defaults.
func resolvePaths(opts rootOptions) (platform.Paths, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return platform.Paths{}, err
	}
	return paths.Apply(
		platform.Overrides{ConfigPath: opts.configPath, DBPath: opts.dbPath},
		platform.OverridesFromEnv(os.Getenv),
	), nil
}

// runtime bundles the resolved config, logger, repository, and picker sources of one command.
type runtime struct {
	cfg     config.Config
	paths   platform.Paths
	logger  *runtimeLogger
	repo    *sqlite.Repository
	search  app.SearchClient
	presets app.PresetLoader
}

// openRuntime loads config, configures logging, opens the catalog, and resolves sources.
func openRuntime(ctx context.Context, opts rootOptions, command string, stderr io.Writer) (*runtime, error) {
	paths, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}

	dbOverridden := strings.TrimSpace(opts.dbPath) != "" || platform.OverridesFromEnv(os.Getenv).DBPath != ""
	cfg, err := config.Load(paths.ConfigPath, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", paths.ConfigPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = paths.DBPath
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Runtime logs stay in the dev-file sink while the picker owns the terminal.
		logger.SetConsoleEnabled(false)
	}
	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", paths.ConfigPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	repo.SetSearchLimit(cfg.Search.ResultLimit)

	rt := &runtime{cfg: cfg, paths: paths, logger: logger, repo: repo}
	if err := rt.seedCatalog(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.resolveSources(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases the repository and log file.
func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.repo != nil {
		if err := r.repo.Close(); err != nil {
			r.logger.Warn("sqlite close failed", "db_path", r.cfg.Database.Path, "err", err)
		}
	}
	_ = r.logger.Close()
}

// seedCatalog loads the built-in starter catalog into an empty database.
func (r *runtime) seedCatalog(ctx context.Context) error {
	count, err := r.repo.CountIngredients(ctx)
	if err != nil {
		return fmt.Errorf("count catalog: %w", err)
	}
	if count > 0 {
		return nil
	}
	doc, err := catalogfile.Default()
	if err != nil {
		return fmt.Errorf("decode default catalog: %w", err)
	}
	n, err := r.repo.UpsertIngredients(ctx, doc.Entries())
	if err != nil {
		return fmt.Errorf("seed default catalog: %w", err)
	}
	r.logger.Info("default catalog seeded", "count", n)
	return nil
}

// resolveSources picks the search client and preset loader named by config.
func (r *runtime) resolveSources() error {
	var remote *httpclient.Client
	if r.cfg.Search.Source == config.SearchSourceHTTP || r.cfg.Presets.Source == config.PresetSourceHTTP {
		client, err := httpclient.New(httpclient.Options{
			BaseURL: r.cfg.Search.BaseURL,
			Timeout: r.cfg.Search.Timeout(),
			Limit:   r.cfg.Search.ResultLimit,
		})
		if err != nil {
			return fmt.Errorf("configure search client: %w", err)
		}
		remote = client
	}

	switch r.cfg.Search.Source {
	case config.SearchSourceHTTP:
		r.search = remote
	default:
		r.search = r.repo
	}

	switch r.cfg.Presets.Source {
	case config.PresetSourceFile:
		r.presets = catalogfile.PresetFile{Path: r.cfg.Presets.File}
	case config.PresetSourceHTTP:
		r.presets = remote
	case config.PresetSourceNone:
		r.presets = nil
	default:
		r.presets = r.repo
	}
	r.logger.Debug("picker sources resolved", "search", r.cfg.Search.Source, "presets", r.cfg.Presets.Source)
	return nil
}

// newPicker builds a picker persisting to the repository under the configured key.
func (r *runtime) newPicker(initial []domain.Ingredient) *app.Picker {
	return app.NewPicker(app.PickerDeps{
		Presets: r.presets,
		Store:   r.repo,
		Lookup:  r.repo,
		Logger:  r.logger,
	}, app.PickerConfig{
		SelectionKey:          r.cfg.Selection.Key,
		MaxItems:              r.cfg.Selection.MaxItems,
		NearMaxThresholdRatio: r.cfg.Selection.NearMaxThresholdRatio,
		NoticeTTL:             r.cfg.Selection.NoticeTTL(),
		PersistTimeout:        r.cfg.Search.Timeout(),
		InitialItems:          initial,
	})
}

// loadPicker builds a picker and runs its initial load. A preset failure is
// logged and leaves the selection empty; an unreadable saved selection fails
// the command so nothing is written over it.
func (r *runtime) loadPicker(ctx context.Context) (*app.Picker, error) {
	picker := r.newPicker(nil)
	if err := picker.Load(ctx); err != nil {
		if errors.Is(err, app.ErrSelectionLoad) {
			picker.Close()
			return nil, fmt.Errorf("load selection %q: %w", picker.Key(), err)
		}
		r.logger.Warn("initial selection load failed", "key", picker.Key(), "err", err)
	}
	return picker, nil
}

// resolveInitial looks up --with ids in the catalog.
func (r *runtime) resolveInitial(ctx context.Context, ids []string) ([]domain.Ingredient, error) {
	out := make([]domain.Ingredient, 0, len(ids))
	seen := map[domain.IngredientID]struct{}{}
	for _, raw := range ids {
		id := domain.IngredientID(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		item, err := r.repo.GetIngredient(ctx, id)
		if err != nil {
			if errors.Is(err, app.ErrNotFound) {
				return nil, fmt.Errorf("unknown ingredient %q", id)
			}
			return nil, fmt.Errorf("resolve ingredient %q: %w", id, err)
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	if len(out) > r.cfg.Selection.MaxItems {
		return nil, fmt.Errorf("%w: %d initial ingredients, limit %d", app.ErrCapacityExceeded, len(out), r.cfg.Selection.MaxItems)
	}
	return out, nil
}

// parseBoolEnv parses a boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// serverCatalog searches the local catalog and loads presets from the configured source.
type serverCatalog struct {
	*sqlite.Repository
	presets app.PresetLoader
}

// LoadPresets returns the configured presets, or none when presets are disabled.
func (c serverCatalog) LoadPresets(ctx context.Context) ([]domain.Ingredient, error) {
	if c.presets == nil {
		return []domain.Ingredient{}, nil
	}
	return c.presets.LoadPresets(ctx)
}
