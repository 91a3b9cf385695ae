package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/domain"
)

// fakeSearch answers queries from a fixed catalog and records every call.
type fakeSearch struct {
	mu      sync.Mutex
	catalog []domain.Ingredient
	err     error
	calls   []string
}

// Search returns catalog rows whose name contains query.
func (f *fakeSearch) Search(_ context.Context, query string) ([]domain.Ingredient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.Ingredient{}
	for _, item := range f.catalog {
		if strings.Contains(strings.ToLower(item.Name), strings.ToLower(query)) {
			out = append(out, item)
		}
	}
	return out, nil
}

// callLog returns a copy of the recorded queries.
func (f *fakeSearch) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{catalog: []domain.Ingredient{
		{ID: "1", Name: "Tomato"},
		{ID: "2", Name: "Cherry Tomato"},
		{ID: "3", Name: "Tomatillo"},
		{ID: "4", Name: "Apple"},
		{ID: "5", Name: "Apricot"},
	}}
}

func newTestPicker(presets []domain.Ingredient, presetErr error, maxItems int) *app.Picker {
	loader := app.PresetFunc(func(context.Context) ([]domain.Ingredient, error) {
		if presetErr != nil {
			return nil, presetErr
		}
		return presets, nil
	})
	return app.NewPicker(app.PickerDeps{Presets: loader}, app.PickerConfig{MaxItems: maxItems, NoticeTTL: time.Second})
}

func newTestModel(t *testing.T, picker *app.Picker, client app.SearchClient, opts ...Option) Model {
	t.Helper()
	opts = append([]Option{WithDebounce(10 * time.Millisecond)}, opts...)
	return loadReadyModel(t, NewModel(picker, client, opts...))
}

func loadReadyModel(t *testing.T, m Model) Model {
	t.Helper()
	return applyMsg(t, applyMsg(t, m, m.Init()()), tea.WindowSizeMsg{Width: 100, Height: 40})
}

// applyMsg applies msg and discards the follow-up command.
func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	out, _ := update(t, m, msg)
	return out
}

// update applies msg and returns the follow-up command.
func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return out, cmd
}

// typeText sends one key press per rune.
func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = applyMsg(t, m, keyRune(r))
	}
	return m
}

// fireDebounce delivers the newest debounce tick and returns the search command.
func fireDebounce(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, debounceMsg{seq: m.ticket.Seq})
}

// searchFor types text, fires the debounce, and applies the search result.
func searchFor(t *testing.T, m Model, text string) Model {
	t.Helper()
	m = typeText(t, m, text)
	m, cmd := fireDebounce(t, m)
	if cmd == nil {
		t.Fatal("expected a search command after the debounce fired")
	}
	return applyMsg(t, m, cmd())
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func keyCtrl(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Mod: tea.ModCtrl}
}

func viewString(m Model) string {
	return m.renderScreen()
}

// TestModelLoadsPresets verifies the initial load and the count header.
func TestModelLoadsPresets(t *testing.T) {
	picker := newTestPicker([]domain.Ingredient{{ID: "9", Name: "Salt"}}, nil, 50)
	m := newTestModel(t, picker, newFakeSearch())

	view := viewString(m)
	if !strings.Contains(view, "Salt") {
		t.Fatalf("expected preset in view, got\n%s", view)
	}
	if !strings.Contains(view, "1/50 selected") {
		t.Fatalf("expected count header, got\n%s", view)
	}
	if m.loading {
		t.Fatal("expected loading to finish")
	}
}

// TestModelDebounceCoalescesTyping verifies one request per quiet period.
func TestModelDebounceCoalescesTyping(t *testing.T) {
	client := newFakeSearch()
	m := newTestModel(t, newTestPicker(nil, nil, 50), client)

	m = typeText(t, m, "tom")
	if !m.search.DebouncePending() {
		t.Fatal("expected a pending debounce")
	}
	if _, cmd := update(t, m, debounceMsg{seq: m.ticket.Seq - 1}); cmd != nil {
		t.Fatal("expected superseded tick to be ignored")
	}
	m, cmd := fireDebounce(t, m)
	if cmd == nil {
		t.Fatal("expected newest tick to dispatch")
	}
	m = applyMsg(t, m, cmd())

	if got := client.callLog(); len(got) != 1 || got[0] != "tom" {
		t.Fatalf("unexpected calls %#v", got)
	}
	view := viewString(m)
	if !strings.Contains(view, "Cherry Tomato") || strings.Contains(view, "Apple") {
		t.Fatalf("unexpected dropdown\n%s", view)
	}
}

// TestModelDropsStaleResults verifies an older reply never overwrites a newer one.
func TestModelDropsStaleResults(t *testing.T) {
	client := newFakeSearch()
	m := newTestModel(t, newTestPicker(nil, nil, 50), client)

	m = typeText(t, m, "a")
	m, slow := fireDebounce(t, m)
	m = typeText(t, m, "p")
	m, fast := fireDebounce(t, m)

	m = applyMsg(t, m, fast())
	m = applyMsg(t, m, slow())

	results := m.search.Results()
	if len(results) != 2 || results[0].Name != "Apple" {
		t.Fatalf("expected the ap results to survive, got %#v", results)
	}
	if m.search.Loading() {
		t.Fatal("expected loading to clear")
	}
}

// TestModelKeyboardChooseAddsIngredient verifies navigation, enter, and reset.
func TestModelKeyboardChooseAddsIngredient(t *testing.T) {
	picker := newTestPicker(nil, nil, 50)
	m := newTestModel(t, picker, newFakeSearch())
	m = searchFor(t, m, "tom")

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyDown})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyDown})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyUp})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyUp})
	if got := m.search.Navigation().Highlighted; got != 2 {
		t.Fatalf("expected wrap to the last row, got %d", got)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})

	items := picker.Items()
	if len(items) != 1 || items[0].Name != "Tomatillo" {
		t.Fatalf("unexpected selection %#v", items)
	}
	if m.input.Value() != "" || m.search.Navigation().Open {
		t.Fatalf("expected reset search box, query %q", m.input.Value())
	}
	if !strings.Contains(m.notice.Message, "Tomatillo") {
		t.Fatalf("unexpected notice %#v", m.notice)
	}

	m = searchFor(t, m, "tomatillo")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyDown})
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if picker.Selection().Len() != 1 {
		t.Fatalf("expected duplicate rejection, got %d items", picker.Selection().Len())
	}
	if !strings.Contains(m.notice.Message, "already selected") || m.notice.Level != app.NoticeWarning {
		t.Fatalf("unexpected duplicate notice %#v", m.notice)
	}
}

// TestModelEnterWithoutHighlightDoesNothing verifies enter needs a highlighted row.
func TestModelEnterWithoutHighlightDoesNothing(t *testing.T) {
	picker := newTestPicker(nil, nil, 50)
	m := newTestModel(t, picker, newFakeSearch())
	m = searchFor(t, m, "tom")
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if picker.Selection().Len() != 0 || m.input.Value() != "tom" {
		t.Fatalf("expected no change, got %d items and query %q", picker.Selection().Len(), m.input.Value())
	}
}

// TestModelCapacityNotice verifies the full-set warning.
func TestModelCapacityNotice(t *testing.T) {
	picker := newTestPicker(nil, nil, 2)
	m := newTestModel(t, picker, newFakeSearch())
	for range 3 {
		m = searchFor(t, m, "tom")
		for range picker.Selection().Len() + 1 {
			m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyDown})
		}
		m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	}
	if picker.Selection().Len() != 2 {
		t.Fatalf("expected capacity 2, got %d", picker.Selection().Len())
	}
	if !strings.Contains(m.notice.Message, "maximum 2") {
		t.Fatalf("unexpected notice %#v", m.notice)
	}
}

// TestModelNoMatchesAndErrors verifies the single status row states.
func TestModelNoMatchesAndErrors(t *testing.T) {
	client := newFakeSearch()
	m := newTestModel(t, newTestPicker(nil, nil, 50), client)

	m = searchFor(t, m, "zzz")
	if view := viewString(m); !strings.Contains(view, `No ingredients found for "zzz"`) {
		t.Fatalf("expected empty message, got\n%s", view)
	}

	client.err = errors.New("backend down")
	m = applyMsg(t, m, keyRune('z'))
	m, cmd := fireDebounce(t, m)
	if view := viewString(m); !strings.Contains(view, "searching...") {
		t.Fatalf("expected loading row, got\n%s", view)
	}
	m = applyMsg(t, m, cmd())
	if !errors.Is(m.search.Err(), app.ErrSearchFailure) {
		t.Fatalf("expected ErrSearchFailure, got %v", m.search.Err())
	}
	if view := viewString(m); !strings.Contains(view, "search failed") {
		t.Fatalf("expected error row, got\n%s", view)
	}
}

// TestModelEscClosesThenClears verifies the two-step escape.
func TestModelEscClosesThenClears(t *testing.T) {
	m := newTestModel(t, newTestPicker(nil, nil, 50), newFakeSearch())
	m = searchFor(t, m, "tom")

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.search.Navigation().Open || m.input.Value() != "tom" || len(m.search.Results()) != 3 {
		t.Fatal("expected first esc to close the list only")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.input.Value() != "" || m.search.Query() != "" || len(m.search.Results()) != 0 {
		t.Fatal("expected second esc to clear the box")
	}
}

// TestModelBlankQueryCancelsPending verifies erasing the text stops the request.
func TestModelBlankQueryCancelsPending(t *testing.T) {
	client := newFakeSearch()
	m := newTestModel(t, newTestPicker(nil, nil, 50), client)
	m = typeText(t, m, "a")
	seq := m.ticket.Seq
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyBackspace})
	if m.search.DebouncePending() {
		t.Fatal("expected blank text to cancel the debounce")
	}
	if _, cmd := update(t, m, debounceMsg{seq: seq}); cmd != nil {
		t.Fatal("expected cancelled tick to be ignored")
	}
	if len(client.callLog()) != 0 {
		t.Fatalf("unexpected calls %#v", client.callLog())
	}
}

// TestModelMouseClickChoosesRow verifies the pointer path.
func TestModelMouseClickChoosesRow(t *testing.T) {
	picker := newTestPicker(nil, nil, 50)
	m := newTestModel(t, picker, newFakeSearch())
	m = searchFor(t, m, "tom")

	m = applyMsg(t, m, tea.MouseClickMsg{X: 4, Y: dropdownTop + 1, Button: tea.MouseLeft})
	items := picker.Items()
	if len(items) != 1 || items[0].Name != "Cherry Tomato" {
		t.Fatalf("unexpected selection %#v", items)
	}
	if m.search.Navigation().Open {
		t.Fatal("expected the list to close after a click")
	}

	m = applyMsg(t, m, tea.MouseClickMsg{X: 4, Y: dropdownTop + 2, Button: tea.MouseLeft})
	if m.focus != focusSelection || m.panelIndex != 0 {
		t.Fatalf("expected click on the panel to focus it, focus=%d index=%d", m.focus, m.panelIndex)
	}
}

// TestModelSelectionPanelRemoveAndClear verifies panel editing.
func TestModelSelectionPanelRemoveAndClear(t *testing.T) {
	picker := newTestPicker([]domain.Ingredient{
		{ID: "1", Name: "Salt"},
		{ID: "2", Name: "Pepper"},
		{ID: "3", Name: "Oil"},
	}, nil, 50)
	m := newTestModel(t, picker, newFakeSearch())

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if m.focus != focusSelection {
		t.Fatal("expected tab to focus the selection")
	}
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('d'))
	if got := domain.Names(picker.Items()); strings.Join(got, ",") != "Salt,Oil" {
		t.Fatalf("unexpected selection %#v", got)
	}
	if !strings.Contains(m.notice.Message, "removed Pepper") {
		t.Fatalf("unexpected notice %#v", m.notice)
	}

	m = applyMsg(t, m, keyCtrl('x'))
	if picker.Selection().Len() != 0 {
		t.Fatalf("expected clear, got %d", picker.Selection().Len())
	}
	if view := viewString(m); !strings.Contains(view, "No ingredients selected") {
		t.Fatalf("expected empty panel, got\n%s", view)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.focus != focusSearch {
		t.Fatal("expected esc to return focus to search")
	}
}

// TestModelPresetFailureRetry verifies the retry affordance.
func TestModelPresetFailureRetry(t *testing.T) {
	fail := true
	loader := app.PresetFunc(func(context.Context) ([]domain.Ingredient, error) {
		if fail {
			return nil, errors.New("preset service down")
		}
		return []domain.Ingredient{{ID: "9", Name: "Salt"}}, nil
	})
	picker := app.NewPicker(app.PickerDeps{Presets: loader}, app.PickerConfig{})
	m := newTestModel(t, picker, newFakeSearch())

	if !errors.Is(m.loadErr, app.ErrPresetLoadFailure) {
		t.Fatalf("expected ErrPresetLoadFailure, got %v", m.loadErr)
	}
	if view := viewString(m); !strings.Contains(view, "ctrl+r retry") {
		t.Fatalf("expected retry hint, got\n%s", view)
	}

	fail = false
	m, cmd := update(t, m, keyCtrl('r'))
	if cmd == nil {
		t.Fatal("expected a retry command")
	}
	m = applyMsg(t, m, cmd())
	if m.loadErr != nil || picker.Selection().Len() != 1 {
		t.Fatalf("expected presets after retry, err=%v len=%d", m.loadErr, picker.Selection().Len())
	}
	if m.notice.Message != "presets loaded" {
		t.Fatalf("unexpected notice %#v", m.notice)
	}
}

// failingStore fails reads until healed and records writes.
type failingStore struct {
	mu     sync.Mutex
	failed bool
	saved  []domain.Ingredient
	writes int
}

// LoadSelection returns the saved items or a lock error while failed.
func (s *failingStore) LoadSelection(context.Context, string) ([]domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return nil, errors.New("database is locked")
	}
	return domain.CloneIngredients(s.saved), nil
}

// SaveSelection records items.
func (s *failingStore) SaveSelection(_ context.Context, _ string, items []domain.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.saved = domain.CloneIngredients(items)
	return nil
}

// TestModelSavedSelectionFailureRetry verifies an unreadable saved selection is kept and retried.
func TestModelSavedSelectionFailureRetry(t *testing.T) {
	store := &failingStore{failed: true, saved: []domain.Ingredient{{ID: "40", Name: "Saffron"}}}
	loader := app.PresetFunc(func(context.Context) ([]domain.Ingredient, error) {
		return []domain.Ingredient{{ID: "9", Name: "Salt"}}, nil
	})
	picker := app.NewPicker(app.PickerDeps{Presets: loader, Store: store}, app.PickerConfig{})
	m := newTestModel(t, picker, newFakeSearch())

	if !errors.Is(m.loadErr, app.ErrSelectionLoad) {
		t.Fatalf("expected ErrSelectionLoad, got %v", m.loadErr)
	}
	if view := viewString(m); !strings.Contains(view, "saved selection unavailable") {
		t.Fatalf("expected saved selection hint, got\n%s", view)
	}
	if store.writes != 0 || picker.Selection().Len() != 0 {
		t.Fatalf("expected untouched selection, writes=%d len=%d", store.writes, picker.Selection().Len())
	}

	store.mu.Lock()
	store.failed = false
	store.mu.Unlock()
	m, cmd := update(t, m, keyCtrl('r'))
	if cmd == nil {
		t.Fatal("expected a retry command")
	}
	m = applyMsg(t, m, cmd())
	items := picker.Items()
	if m.loadErr != nil || len(items) != 1 || items[0].Name != "Saffron" {
		t.Fatalf("expected saved selection after retry, err=%v items=%#v", m.loadErr, items)
	}
	if m.notice.Message != "saved selection loaded" {
		t.Fatalf("unexpected notice %#v", m.notice)
	}
}

// TestModelCopySelection verifies the clipboard action.
func TestModelCopySelection(t *testing.T) {
	var copied string
	picker := newTestPicker([]domain.Ingredient{{ID: "1", Name: "Salt"}, {ID: "2", Name: "Pepper"}}, nil, 50)
	m := newTestModel(t, picker, newFakeSearch(), WithClipboard(func(s string) error {
		copied = s
		return nil
	}))

	m, cmd := update(t, m, keyCtrl('y'))
	if cmd == nil {
		t.Fatal("expected a copy command")
	}
	m = applyMsg(t, m, cmd())
	if copied != "Salt, Pepper" {
		t.Fatalf("copied = %q", copied)
	}
	if m.notice.Message != "copied 2 ingredients" {
		t.Fatalf("unexpected notice %#v", m.notice)
	}
}

// TestModelNoticeExpires verifies only the newest notice tick dismisses.
func TestModelNoticeExpires(t *testing.T) {
	picker := newTestPicker([]domain.Ingredient{{ID: "1", Name: "Salt"}}, nil, 50)
	m := newTestModel(t, picker, newFakeSearch())
	m = applyMsg(t, m, keyCtrl('x'))
	if m.notice.IsZero() {
		t.Fatal("expected a notice after clear")
	}
	m = applyMsg(t, m, noticeExpiredMsg{seq: m.noticeSeq - 1})
	if m.notice.IsZero() {
		t.Fatal("expected older tick to be ignored")
	}
	m = applyMsg(t, m, noticeExpiredMsg{seq: m.noticeSeq})
	if !m.notice.IsZero() {
		t.Fatal("expected newest tick to dismiss")
	}
}

// TestModelHelpToggleAndQuit verifies the help panel and quit key.
func TestModelHelpToggleAndQuit(t *testing.T) {
	m := newTestModel(t, newTestPicker(nil, nil, 50), newFakeSearch())
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyF1})
	if !m.showHelp || strings.Contains(viewString(m), "Selected ingredients") {
		t.Fatal("expected help panel to replace the picker")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.showHelp {
		t.Fatal("expected esc to close help")
	}

	m = typeText(t, m, "to")
	_, cmd := update(t, m, keyCtrl('c'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
	if m.search.DebouncePending() {
		t.Fatal("expected quit to cancel the pending debounce")
	}
}

// TestModelViewWrapsScreen verifies the view carries content and terminal modes.
func TestModelViewWrapsScreen(t *testing.T) {
	picker := newTestPicker(nil, nil, 50)
	m := NewModel(picker, newFakeSearch())
	v := m.View()
	if v.Content == nil || v.MouseMode != tea.MouseModeCellMotion || !v.AltScreen {
		t.Fatal("expected loading view with mouse and alt screen enabled")
	}
	if got := viewString(m); got != "loading..." {
		t.Fatalf("expected loading screen, got %q", got)
	}

	m = loadReadyModel(t, m)
	if v = m.View(); v.Content == nil {
		t.Fatal("expected ready view content")
	}
	if !strings.Contains(viewString(m), "Selected ingredients (0)") {
		t.Fatalf("expected selection panel, got %q", viewString(m))
	}
}

// TestHelpMarkdownListsBindings verifies the help panel source.
func TestHelpMarkdownListsBindings(t *testing.T) {
	md := newKeyMap().helpMarkdown()
	for _, want := range []string{"ctrl+r", "retry loading", "ctrl+x", "clear all"} {
		if !strings.Contains(md, want) {
			t.Fatalf("help markdown missing %q:\n%s", want, md)
		}
	}
}

// TestClampAndFitLines verifies layout helpers.
func TestClampAndFitLines(t *testing.T) {
	if clamp(5, 0, -1) != 0 || clamp(-2, 0, 3) != 0 || clamp(9, 0, 3) != 3 {
		t.Fatal("unexpected clamp results")
	}
	if got := fitLines("a\nb\nc", 2); got != "a\nb" {
		t.Fatalf("fitLines = %q", got)
	}
	if fitLines("a", 0) != "" {
		t.Fatal("expected empty fit for zero height")
	}
}
