package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/hylla/pantry/internal/adapters/server"
	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/config"
	"github.com/hylla/pantry/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("PANTRY_DEV_MODE", "false")
	_ = os.Unsetenv("PANTRY_CONFIG")
	_ = os.Unsetenv("PANTRY_DB_PATH")
	os.Exit(m.Run())
}

// fakeProgram represents fake program data used by this package.
type fakeProgram struct {
	runErr error
}

// Run runs the requested command flow.
func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// scriptedProgram represents program data used to exercise model flows inside run() tests.
type scriptedProgram struct {
	model tea.Model
	runFn func(tea.Model) (tea.Model, error)
}

// Run runs scripted model interactions and returns the final state.
func (p scriptedProgram) Run() (tea.Model, error) {
	if p.runFn == nil {
		return p.model, nil
	}
	return p.runFn(p.model)
}

// applyModelCmd executes one command chain to completion (bounded for safety).
func applyModelCmd(t *testing.T, model tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	out := model
	currentCmd := cmd
	for i := 0; i < 8 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		out = updated
		currentCmd = nextCmd
	}
	return out
}

// testEnv holds isolated config and database paths.
type testEnv struct {
	dir     string
	dbPath  string
	cfgPath string
}

// newTestEnv prepares an empty workspace with an optional config file.
func newTestEnv(t *testing.T, cfgContent string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:     dir,
		dbPath:  filepath.Join(dir, "pantry.db"),
		cfgPath: filepath.Join(dir, "config.toml"),
	}
	if cfgContent != "" {
		if err := os.WriteFile(env.cfgPath, []byte(cfgContent), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return env
}

// run executes args against the environment and returns stdout.
func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"--db", e.dbPath, "--config", e.cfgPath}, args...)
	err := run(context.Background(), full, &out, io.Discard)
	return out.String(), err
}

// mustRun executes args and fails the test on error.
func (e testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out
}

// TestRunVersion verifies the version flag.
func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

// TestRunStartsProgram verifies the default command starts the TUI.
func TestRunStartsProgram(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	started := false
	programFactory = func(_ tea.Model) program {
		started = true
		return fakeProgram{}
	}

	env := newTestEnv(t, "")
	env.mustRun(t)
	if !started {
		t.Fatal("expected program to start")
	}
}

// TestRunTUISeedsInitialIngredients verifies --with replaces the saved selection.
func TestRunTUISeedsInitialIngredients(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(m tea.Model) program {
		return scriptedProgram{model: m, runFn: func(model tea.Model) (tea.Model, error) {
			return applyModelCmd(t, model, model.Init()), nil
		}}
	}

	env := newTestEnv(t, "")
	env.mustRun(t, "--with", "1,6")

	out := env.mustRun(t, "selection", "list")
	if !strings.Contains(out, "Tomato") || !strings.Contains(out, "Garlic") {
		t.Fatalf("expected seeded selection, got %q", out)
	}
	if strings.Contains(out, "Salt") {
		t.Fatalf("expected presets to be skipped, got %q", out)
	}

	if _, err := env.run(t, "--with", "nope"); err == nil || !strings.Contains(err.Error(), "unknown ingredient") {
		t.Fatalf("expected unknown ingredient error, got %v", err)
	}
}

// TestRunTUIProgramError verifies program failures are returned.
func TestRunTUIProgramError(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(_ tea.Model) program {
		return fakeProgram{runErr: io.ErrUnexpectedEOF}
	}
	env := newTestEnv(t, "")
	if _, err := env.run(t); err == nil || !strings.Contains(err.Error(), "run tui program") {
		t.Fatalf("expected program error, got %v", err)
	}
}

// TestRunUnknownCommand verifies unknown commands fail.
func TestRunUnknownCommand(t *testing.T) {
	env := newTestEnv(t, "")
	if _, err := env.run(t, "bogus"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

// TestRunSearchCommand verifies one-shot search output.
func TestRunSearchCommand(t *testing.T) {
	env := newTestEnv(t, "")
	out := env.mustRun(t, "search", "tomato")
	if !strings.Contains(out, "Cherry Tomato") || !strings.Contains(out, "NAME") {
		t.Fatalf("expected result table, got %q", out)
	}

	out = env.mustRun(t, "search", "tom", "--limit", "1")
	if strings.Count(out, "Tomato") != 1 {
		t.Fatalf("expected one row, got %q", out)
	}

	out = env.mustRun(t, "search", "zzzz")
	if !strings.Contains(out, `No ingredients found for "zzzz"`) {
		t.Fatalf("expected empty message, got %q", out)
	}

	if _, err := env.run(t, "search"); err == nil {
		t.Fatal("expected missing text error")
	}
}

// TestRunSelectionCommands verifies headless selection editing.
func TestRunSelectionCommands(t *testing.T) {
	env := newTestEnv(t, "[selection]\nmax_items = 7\n")

	out := env.mustRun(t, "selection", "list")
	if !strings.Contains(out, "Salt") || !strings.Contains(out, "Olive Oil") {
		t.Fatalf("expected presets on first load, got %q", out)
	}

	out = env.mustRun(t, "selection", "add", "1")
	if !strings.Contains(out, "Tomato") {
		t.Fatalf("expected add notice, got %q", out)
	}
	if _, err := env.run(t, "selection", "add", "1"); err == nil || !strings.Contains(err.Error(), "already selected") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := env.run(t, "selection", "add", "404"); err == nil {
		t.Fatal("expected unknown id error")
	}

	env.mustRun(t, "selection", "add", "2")
	if _, err := env.run(t, "selection", "add", "3"); err == nil || !strings.Contains(err.Error(), "maximum 7") {
		t.Fatalf("expected capacity error, got %v", err)
	}

	out = env.mustRun(t, "selection", "remove", "100", "999")
	if !strings.Contains(out, "removed 100") || !strings.Contains(out, "999 is not selected") {
		t.Fatalf("unexpected remove output %q", out)
	}

	out = env.mustRun(t, "selection", "show")
	if !strings.Contains(out, "6 of 7") || !strings.Contains(out, "Cherry Tomato") || strings.Contains(out, "Salt") {
		t.Fatalf("unexpected summary %q", out)
	}

	out = env.mustRun(t, "selection", "clear")
	if !strings.Contains(out, "selection cleared") {
		t.Fatalf("unexpected clear output %q", out)
	}
	out = env.mustRun(t, "selection", "list")
	if !strings.Contains(out, "No ingredients selected") {
		t.Fatalf("expected saved empty selection to stay empty, got %q", out)
	}
}

// TestRunCatalogCommands verifies import, preset flags, and export.
func TestRunCatalogCommands(t *testing.T) {
	env := newTestEnv(t, "")
	catalogPath := filepath.Join(env.dir, "extra.yaml")
	content := "ingredients:\n  - {id: \"900\", name: Saffron, category: spice}\npresets:\n  - {id: \"901\", name: Sea Salt}\n"
	if err := os.WriteFile(catalogPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out := env.mustRun(t, "catalog", "import", catalogPath)
	if !strings.Contains(out, "imported 2 ingredients") {
		t.Fatalf("unexpected import output %q", out)
	}
	env.mustRun(t, "catalog", "preset", "900")
	env.mustRun(t, "catalog", "preset", "--unset", "100")
	if _, err := env.run(t, "catalog", "preset", "nope"); err == nil {
		t.Fatal("expected unknown preset id error")
	}

	out = env.mustRun(t, "catalog", "export")
	if !strings.Contains(out, "Saffron") || !strings.Contains(out, "preset: true") {
		t.Fatalf("unexpected export %q", out)
	}

	exportPath := filepath.Join(env.dir, "out", "catalog.yaml")
	env.mustRun(t, "catalog", "export", "--out", exportPath)
	written, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(written), "Sea Salt") {
		t.Fatalf("unexpected export file %q", written)
	}

	out = env.mustRun(t, "selection", "list")
	if !strings.Contains(out, "Saffron") || !strings.Contains(out, "Sea Salt") || strings.Contains(out, " 100 ") {
		t.Fatalf("expected updated presets, got %q", out)
	}
}

// TestRunServeCommandUsesConfig verifies serve wiring without binding a port.
func TestRunServeCommandUsesConfig(t *testing.T) {
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })

	var gotCfg server.Config
	var gotDeps server.Dependencies
	var selectionCount, presetCount int
	var liveErr error
	serveCommandRunner = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
		gotCfg = cfg
		gotDeps = deps
		// The runtime closes the repository once serving returns, so query it here.
		state, err := deps.Picker.Selection(ctx)
		if err != nil {
			liveErr = err
			return nil
		}
		selectionCount = state.Count
		presets, err := deps.Picker.Presets(ctx)
		if err != nil {
			liveErr = err
			return nil
		}
		presetCount = len(presets.Ingredients)
		return nil
	}

	env := newTestEnv(t, "[server]\nbind = \"127.0.0.1:9999\"\nmcp_endpoint = \"/tools\"\n")
	env.mustRun(t, "serve", "--api-endpoint", "/v2")
	if gotCfg.HTTPBind != "127.0.0.1:9999" || gotCfg.APIEndpoint != "/v2" || gotCfg.MCPEndpoint != "/tools" {
		t.Fatalf("unexpected serve config %#v", gotCfg)
	}
	if gotCfg.ServerName != "pantry" || gotCfg.ServerVersion != version {
		t.Fatalf("unexpected server identity %#v", gotCfg)
	}
	if gotDeps.Picker == nil || gotDeps.Logger == nil {
		t.Fatal("expected picker and logger dependencies")
	}
	if liveErr != nil {
		t.Fatalf("picker query while serving error = %v", liveErr)
	}
	if selectionCount != 5 || presetCount != 5 {
		t.Fatalf("expected presets loaded before serving, selection=%d presets=%d", selectionCount, presetCount)
	}
}

// TestRunConfigAndDBEnvOverrides verifies env path overrides.
func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	if err := os.WriteFile(cfgPath, []byte("[database]\npath = \"/tmp/ignore-me.db\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("PANTRY_CONFIG", cfgPath)
	t.Setenv("PANTRY_DB_PATH", dbPath)

	if err := run(context.Background(), []string{"selection", "list"}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(selection list with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

// TestRunPathsCommand verifies path output.
func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "pantryx", "--dev", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "app: pantryx") {
		t.Fatalf("expected app name in paths output, got %q", output)
	}
	if !strings.Contains(output, "dev_mode: true") || !strings.Contains(output, "pantryx-dev") {
		t.Fatalf("expected dev mode in paths output, got %q", output)
	}
}

// TestRunRejectsInvalidLoggingLevelFromConfig verifies config validation reaches the CLI.
func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	env := newTestEnv(t, "[logging]\nlevel = \"verbose\"\n")
	_, err := env.run(t, "selection", "list")
	if err == nil || !strings.Contains(err.Error(), "invalid logging.level") {
		t.Fatalf("expected logging level validation error, got %v", err)
	}
}

// TestRunHTTPSourceRequiresBaseURL verifies source validation.
func TestRunHTTPSourceRequiresBaseURL(t *testing.T) {
	env := newTestEnv(t, "[search]\nsource = \"http\"\n")
	if _, err := env.run(t, "search", "tom"); err == nil {
		t.Fatal("expected base url error")
	}
}

// TestRunDevModeCreatesWorkspaceLogFile verifies the dev file sink.
func TestRunDevModeCreatesWorkspaceLogFile(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(_ tea.Model) program { return fakeProgram{} }

	workspace := t.TempDir()
	t.Chdir(workspace)
	var stderr bytes.Buffer
	args := []string{"--dev", "--db", filepath.Join(workspace, "pantry.db"), "--config", filepath.Join(workspace, "config.toml")}
	if err := run(context.Background(), args, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(stderr.String()); got != "" {
		t.Fatalf("expected no runtime stderr output in TUI mode, got %q", got)
	}

	logDir := filepath.Join(workspace, ".pantry", "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var logPath string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".log") {
			logPath = filepath.Join(logDir, entry.Name())
			break
		}
	}
	if logPath == "" {
		t.Fatalf("expected a .log file in %s", logDir)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "starting tui program loop") {
		t.Fatalf("expected TUI lifecycle entries, got %q", content)
	}
}

// TestWorkspaceRootFromUsesNearestMarker verifies workspace-root resolution behavior.
func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "pantry")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("expected workspace root %q, got %q", root, got)
	}
}

// TestDevLogFilePath verifies file naming.
func TestDevLogFilePath(t *testing.T) {
	got, err := devLogFilePath("/var/log/pantry", "my app", time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	if got != filepath.Join("/var/log/pantry", "my-app-20260222.log") {
		t.Fatalf("unexpected log path %q", got)
	}
	if sanitizeLogFileStem(" / ") != "pantry" {
		t.Fatal("expected fallback stem")
	}
}

// TestRuntimeLoggerCanMuteConsoleSink verifies console muting.
func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	cfg := config.Default("/tmp/pantry.db").Logging

	logger, err := newRuntimeLogger(&console, "pantry", false, cfg, func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}

	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Info("during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")

	out := console.String()
	if !strings.Contains(out, "before") || strings.Contains(out, "during") || !strings.Contains(out, "after") {
		t.Fatalf("unexpected console output %q", out)
	}
	var _ app.Logger = logger
}

// TestParseBoolEnv verifies env parsing.
func TestParseBoolEnv(t *testing.T) {
	t.Setenv("PANTRY_BOOL_TEST", "true")
	if v, ok := parseBoolEnv("PANTRY_BOOL_TEST"); !ok || !v {
		t.Fatalf("expected true, got %t %t", v, ok)
	}
	t.Setenv("PANTRY_BOOL_TEST", "maybe")
	if _, ok := parseBoolEnv("PANTRY_BOOL_TEST"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
}

// TestSelectionMarkdownGroupsByCategory verifies the summary document.
func TestSelectionMarkdownGroupsByCategory(t *testing.T) {
	md := selectionMarkdown("week", app.Summary{Count: 3, MaxItems: 3, NearMax: true}, []domain.Ingredient{
		{ID: "1", Name: "Tomato", Category: "produce"},
		{ID: "2", Name: "Salt"},
		{ID: "3", Name: "Lime", Category: "produce"},
	})
	for _, want := range []string{"`week`", "**3 of 3**", "only 0 left", "## produce\n\n- Tomato\n- Lime", "## other\n\n- Salt"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if !strings.Contains(selectionMarkdown("k", app.Summary{MaxItems: 50}, nil), "_No ingredients selected._") {
		t.Fatal("expected empty marker")
	}
}

// TestFirstNonEmpty verifies flag fallback selection.
func TestFirstNonEmpty(t *testing.T) {
	if firstNonEmpty(" ", "a", "b") != "a" || firstNonEmpty() != "" {
		t.Fatal("unexpected firstNonEmpty result")
	}
}
