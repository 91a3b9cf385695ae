package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/hylla/pantry/internal/adapters/catalogfile"
	"github.com/hylla/pantry/internal/adapters/server"
	"github.com/hylla/pantry/internal/adapters/server/common"
	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/config"
	"github.com/hylla/pantry/internal/domain"
	"github.com/hylla/pantry/internal/tui"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
	return server.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root,
		fang.WithVersion(version),
		fang.WithoutManpage(),
		fang.WithoutCompletions(),
	)
}

// newRootCommand builds the pantry command tree. Runtime logs go to stderr.
func newRootCommand(stderr io.Writer) *cobra.Command {
	opts := defaultRootOptions()
	var withIDs []string

	root := &cobra.Command{
		Use:   "pantry",
		Short: "Pick ingredients from a searchable catalog",
		Long: "pantry runs an incremental ingredient picker over a local catalog.\n" +
			"Type to search, pick results into a persisted selection, and serve it over HTTP and MCP.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "tui", stderr, func(ctx context.Context, rt *runtime) error {
				return runTUI(ctx, rt, withIDs)
			})
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")
	root.Flags().StringSliceVar(&withIDs, "with", nil, "start with these ingredient ids instead of the saved selection")

	root.AddCommand(
		newPathsCommand(&opts),
		newServeCommand(&opts, stderr),
		newSearchCommand(&opts, stderr),
		newSelectionCommand(&opts, stderr),
		newCatalogCommand(&opts, stderr),
	)
	return root
}

// withRuntime opens a runtime for one command flow, logs its lifecycle, and closes it.
func withRuntime(cmd *cobra.Command, opts rootOptions, name string, stderr io.Writer, fn func(context.Context, *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, opts, name, stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("command flow start", "command", name)
	if err := fn(ctx, rt); err != nil {
		rt.logger.Error("command flow failed", "command", name, "err", err)
		return err
	}
	rt.logger.Info("command flow complete", "command", name)
	return nil
}

// runTUI runs the interactive picker.
func runTUI(ctx context.Context, rt *runtime, withIDs []string) error {
	initial, err := rt.resolveInitial(ctx, withIDs)
	if err != nil {
		return err
	}
	picker := rt.newPicker(initial)
	defer picker.Close()

	m := tui.NewModel(picker, rt.search,
		tui.WithDebounce(rt.cfg.Search.Debounce()),
		tui.WithSearchTimeout(rt.cfg.Search.Timeout()),
		tui.WithLogger(rt.logger),
		tui.WithKeyConfig(toTUIKeyConfig(rt.cfg.Keys)),
	)
	rt.logger.Info("starting tui program loop", "selection_key", picker.Key())
	if _, err := programFactory(m).Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("tui program loop finished", "selected", picker.Selection().Len())
	return nil
}

// toTUIKeyConfig maps persisted key overrides into model options.
func toTUIKeyConfig(cfg config.KeyConfig) tui.KeyConfig {
	return tui.KeyConfig{
		Remove:     cfg.Remove,
		ClearAll:   cfg.ClearAll,
		Copy:       cfg.Copy,
		Retry:      cfg.Retry,
		ToggleHelp: cfg.ToggleHelp,
	}
}

// newPathsCommand prints resolved paths without opening the database.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := resolvePaths(*opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "presets: %s\n", paths.PresetsPath)
			return nil
		},
	}
}

// newServeCommand runs the HTTP and MCP server over the persisted selection.
func newServeCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var bind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog and selection over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, *opts, "serve", stderr, func(ctx context.Context, rt *runtime) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				picker, err := rt.loadPicker(ctx)
				if err != nil {
					return err
				}
				defer picker.Close()
				adapter := common.NewPickerAdapter(picker, serverCatalog{Repository: rt.repo, presets: rt.presets}, rt.cfg.Search.ResultLimit)
				return serveCommandRunner(ctx, server.Config{
					HTTPBind:      firstNonEmpty(bind, rt.cfg.Server.Bind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
					ServerName:    opts.appName,
					ServerVersion: version,
				}, server.Dependencies{
					Picker: adapter,
					Logger: rt.logger,
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API base path (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	return cmd
}

// newSearchCommand runs one catalog search.
func newSearchCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the ingredient catalog once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("%w: search text is required", app.ErrInvalidRequest)
			}
			return withRuntime(cmd, *opts, "search", stderr, func(ctx context.Context, rt *runtime) error {
				items, err := searchOnce(ctx, rt, query, limit)
				if err != nil {
					return err
				}
				return writeIngredients(cmd.OutOrStdout(), items, fmt.Sprintf("No ingredients found for %q", query))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default from config)")
	return cmd
}

// searchOnce queries the configured search source.
func searchOnce(ctx context.Context, rt *runtime, query string, limit int) ([]domain.Ingredient, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be >= 0", app.ErrInvalidRequest)
	}
	if rt.cfg.Search.Source == config.SearchSourceHTTP {
		items, err := rt.search.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", app.ErrSearchFailure, err)
		}
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		return items, nil
	}
	if limit == 0 {
		limit = rt.cfg.Search.ResultLimit
	}
	return rt.repo.SearchIngredients(ctx, query, limit)
}

// newSelectionCommand manages the persisted selection without the TUI.
func newSelectionCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selection",
		Short: "Inspect and edit the persisted selection",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the selection as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, *opts, "selection list", stderr, func(ctx context.Context, rt *runtime) error {
				picker, err := rt.loadPicker(ctx)
				if err != nil {
					return err
				}
				defer picker.Close()
				return writeIngredients(cmd.OutOrStdout(), picker.Items(), "No ingredients selected")
			})
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print a grouped summary of the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, *opts, "selection show", stderr, func(ctx context.Context, rt *runtime) error {
				picker, err := rt.loadPicker(ctx)
				if err != nil {
					return err
				}
				defer picker.Close()
				rendered, err := renderMarkdown(selectionMarkdown(picker.Key(), picker.Summary(), picker.Items()))
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
				return err
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <id>...",
		Short: "Add catalog ingredients to the selection by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, *opts, "selection add", stderr, func(ctx context.Context, rt *runtime) error {
				picker, err := rt.loadPicker(ctx)
				if err != nil {
					return err
				}
				defer picker.Close()
				for _, raw := range args {
					_, notice, err := picker.AcceptByID(ctx, domain.IngredientID(raw))
					if err != nil {
						return fmt.Errorf("add %s: %s: %w", raw, notice.Message, err)
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), notice.Message)
				}
				return persistErr(picker)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove ingredients from the selection by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, *opts, "selection remove", stderr, func(ctx context.Context, rt *runtime) error {
				picker, err := rt.loadPicker(ctx)
				if err != nil {
					return err
				}
				defer picker.Close()
				for _, raw := range args {
					id := domain.IngredientID(strings.TrimSpace(raw))
					if picker.Remove(ctx, id).IsZero() {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is not selected\n", id)
						continue
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
				}
				return persistErr(picker)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every ingredient from the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, *opts, "selection clear", stderr, func(ctx context.Context, rt *runtime) error {
				picker, err := rt.loadPicker(ctx)
				if err != nil {
					return err
				}
				defer picker.Close()
				notice := picker.Clear(ctx)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), notice.Message)
				return persistErr(picker)
			})
		},
	}

	cmd.AddCommand(list, show, add, remove, clearCmd)
	return cmd
}

// persistErr reports a selection that changed in memory but failed to save.
func persistErr(picker *app.Picker) error {
	if err := picker.PersistErr(); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// newCatalogCommand manages catalog rows.
func newCatalogCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Import, export, and flag catalog ingredients",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Load catalog rows from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, *opts, "catalog import", stderr, func(ctx context.Context, rt *runtime) error {
				doc, err := catalogfile.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read catalog: %w", err)
				}
				n, err := rt.repo.UpsertIngredients(ctx, doc.Entries())
				if err != nil {
					return fmt.Errorf("import catalog: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d ingredients\n", n)
				return nil
			})
		},
	}

	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, *opts, "catalog export", stderr, func(ctx context.Context, rt *runtime) error {
				entries, err := rt.repo.ListIngredients(ctx)
				if err != nil {
					return fmt.Errorf("list catalog: %w", err)
				}
				if outPath == "-" {
					return catalogfile.Encode(cmd.OutOrStdout(), entries)
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := catalogfile.Encode(f, entries); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	exportCmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")

	var unset bool
	presetCmd := &cobra.Command{
		Use:   "preset <id>...",
		Short: "Mark catalog ingredients as presets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, *opts, "catalog preset", stderr, func(ctx context.Context, rt *runtime) error {
				for _, raw := range args {
					id := domain.IngredientID(strings.TrimSpace(raw))
					if err := rt.repo.SetPreset(ctx, id, !unset); err != nil {
						return fmt.Errorf("set preset %s: %w", id, err)
					}
				}
				return nil
			})
		},
	}
	presetCmd.Flags().BoolVar(&unset, "unset", false, "clear the preset flag instead of setting it")

	cmd.AddCommand(importCmd, exportCmd, presetCmd)
	return cmd
}

// firstNonEmpty returns the first value that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
