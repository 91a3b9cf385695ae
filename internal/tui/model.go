package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/domain"
)

// focusArea identifies which pane receives key presses.
type focusArea int

// focusSearch and focusSelection are the two panes.
const (
	focusSearch focusArea = iota
	focusSelection
)

// dropdownTop is the first screen row of the result list: header, then the search box.
const dropdownTop = 2

// Model is the ingredient picker program: a search box over a result dropdown,
// and the selection panel below it.
type Model struct {
	picker        *app.Picker
	client        app.SearchClient
	search        *app.SearchController
	searchTimeout time.Duration
	clock         app.Clock
	copyText      func(string) error
	logger        app.Logger

	ready  bool
	width  int
	height int

	input    textinput.Model
	help     help.Model
	keys     keyMap
	helpDoc  *helpDoc
	showHelp bool

	focus       focusArea
	panelIndex  int
	loading     bool
	loadErr     error
	ticket      app.DebounceTicket
	notice      app.Notice
	noticeSeq   int
	lastPersist error
}

// loadedMsg carries the result of the initial load or a preset retry.
type loadedMsg struct {
	err     error
	retried bool
}

// debounceMsg reports that one debounce window elapsed.
type debounceMsg struct {
	seq uint64
}

// searchResultMsg carries one resolved search session.
type searchResultMsg struct {
	outcome app.SearchOutcome
}

// noticeExpiredMsg dismisses the notice stamped with seq.
type noticeExpiredMsg struct {
	seq int
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	count int
	err   error
}

// NewModel constructs a picker model over picker and client.
func NewModel(picker *app.Picker, client app.SearchClient, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	input := textinput.New()
	input.Prompt = "search: "
	input.Placeholder = "type an ingredient"
	input.CharLimit = 120
	_ = input.Focus()

	m := Model{
		picker:        picker,
		client:        client,
		search:        app.NewSearchController(app.DefaultDebounce),
		searchTimeout: defaultSearchTimeout,
		clock:         time.Now,
		copyText:      clipboard.WriteAll,
		logger:        app.DiscardLogger(),
		input:         input,
		help:          h,
		keys:          newKeyMap(),
		helpDoc:       newHelpDoc("dark"),
		loading:       true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init starts the one-shot selection load.
func (m Model) Init() tea.Cmd {
	return m.loadSelection
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.loadErr = msg.err
			m.logger.Warn("selection load failed", "err", msg.err)
			return m, m.setNotice(m.picker.Notice(app.NoticeError, "could not load "+loadSubject(msg.err)))
		}
		prev := m.loadErr
		m.loadErr = nil
		m.clampPanel()
		if msg.retried {
			return m, m.setNotice(m.picker.Notice(app.NoticeInfo, loadSubject(prev)+" loaded"))
		}
		return m, nil

	case debounceMsg:
		session, ok := m.search.DebounceElapsed(msg.seq)
		if !ok {
			return m, nil
		}
		m.logger.Debug("search dispatched", "query", session.Query, "token", session.Token)
		return m, m.runSearch(session)

	case searchResultMsg:
		if !m.search.ApplyResult(msg.outcome) {
			m.logger.Debug("stale search result dropped", "query", msg.outcome.Session.Query, "token", msg.outcome.Session.Token)
			return m, nil
		}
		if err := m.search.Err(); err != nil {
			m.logger.Warn("search failed", "query", msg.outcome.Session.Query, "err", err)
		}
		return m, nil

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = app.Notice{}
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			return m, m.setNotice(m.picker.Notice(app.NoticeError, "copy failed: "+msg.err.Error()))
		}
		return m, m.setNotice(m.picker.Notice(app.NoticeInfo, fmt.Sprintf("copied %d ingredients", msg.count)))

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	default:
		if m.focus == focusSearch {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

// handleKey routes one key press by focus.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.search.Reset()
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.showHelp = !m.showHelp
		return m, nil
	case m.showHelp && key.Matches(msg, m.keys.dismiss):
		m.showHelp = false
		return m, nil
	case key.Matches(msg, m.keys.retry):
		if m.loadErr == nil {
			return m, nil
		}
		m.loading = true
		return m, m.retryLoad
	case key.Matches(msg, m.keys.clearAll):
		notice := m.picker.Clear(context.Background())
		m.panelIndex = 0
		return m, m.afterMutation(notice)
	case key.Matches(msg, m.keys.copy):
		return m, m.copySelection()
	case key.Matches(msg, m.keys.switchFocus):
		return m, m.toggleFocus()
	}

	if m.focus == focusSelection {
		return m.handleSelectionKey(msg)
	}
	return m.handleSearchKey(msg)
}

// handleSearchKey drives the search controller from the search box.
func (m Model) handleSearchKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.moveDown):
		m.search.Navigate(app.Next)
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.search.Navigate(app.Previous)
		return m, nil
	case key.Matches(msg, m.keys.choose):
		item, ok := m.search.Confirm()
		if !ok {
			return m, nil
		}
		m.input.Reset()
		return m, m.accept(item)
	case key.Matches(msg, m.keys.dismiss):
		if m.search.Navigation().Open {
			m.search.Close()
			return m, nil
		}
		m.search.Reset()
		m.input.Reset()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	ticket, ok := m.search.SetQueryText(m.input.Value())
	if !ok {
		m.ticket = app.DebounceTicket{}
		return m, cmd
	}
	m.ticket = ticket
	return m, tea.Batch(cmd, debounceTick(ticket))
}

// handleSelectionKey moves through and edits the selection panel.
func (m Model) handleSelectionKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	items := m.picker.Items()
	switch {
	case key.Matches(msg, m.keys.moveDown), msg.String() == "j":
		m.panelIndex = clamp(m.panelIndex+1, 0, len(items)-1)
	case key.Matches(msg, m.keys.moveUp), msg.String() == "k":
		m.panelIndex = clamp(m.panelIndex-1, 0, len(items)-1)
	case key.Matches(msg, m.keys.remove):
		if len(items) == 0 {
			return m, nil
		}
		item := items[clamp(m.panelIndex, 0, len(items)-1)]
		notice := m.picker.Remove(context.Background(), item.ID)
		m.clampPanel()
		if notice.IsZero() {
			return m, nil
		}
		return m, m.afterMutation(m.picker.Notice(app.NoticeInfo, "removed "+item.Name))
	case key.Matches(msg, m.keys.dismiss):
		return m, m.toggleFocus()
	}
	return m, nil
}

// handleMouseClick chooses a result row or focuses a selection row.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.showHelp || msg.Button != tea.MouseLeft {
		return m, nil
	}
	results := m.search.Results()
	if m.search.Navigation().Open && msg.Y >= dropdownTop && msg.Y < dropdownTop+len(results) {
		item := m.search.Choose(results[msg.Y-dropdownTop])
		m.input.Reset()
		if m.focus != focusSearch {
			m.focus = focusSearch
			_ = m.input.Focus()
		}
		return m, m.accept(item)
	}

	itemsTop := dropdownTop + m.dropdownHeight() + 2
	items := m.picker.Items()
	if row := msg.Y - itemsTop; row >= 0 && row < len(items) {
		m.panelIndex = row
		if m.focus != focusSelection {
			m.focus = focusSelection
			m.input.Blur()
		}
	}
	return m, nil
}

// toggleFocus flips focus between the search box and the selection panel.
func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == focusSearch {
		m.focus = focusSelection
		m.search.Close()
		m.input.Blur()
		m.clampPanel()
		return nil
	}
	m.focus = focusSearch
	return m.input.Focus()
}

// accept relays a chosen candidate into the selection.
func (m *Model) accept(item domain.Ingredient) tea.Cmd {
	notice, err := m.picker.Accept(context.Background(), item)
	if err != nil {
		m.logger.Debug("ingredient rejected", "id", item.ID, "err", err)
	}
	return m.afterMutation(notice)
}

// afterMutation shows notice and surfaces a new persistence failure once.
func (m *Model) afterMutation(notice app.Notice) tea.Cmd {
	persistErr := m.picker.PersistErr()
	if persistErr != nil && m.lastPersist == nil {
		notice = m.picker.Notice(app.NoticeError, "selection not saved: "+persistErr.Error())
	}
	m.lastPersist = persistErr
	return m.setNotice(notice)
}

// setNotice replaces the visible notice and schedules its dismissal.
func (m *Model) setNotice(notice app.Notice) tea.Cmd {
	if notice.IsZero() {
		return nil
	}
	m.noticeSeq++
	m.notice = notice
	seq := m.noticeSeq
	ttl := notice.TTL(m.clock())
	if ttl <= 0 {
		ttl = m.picker.NoticeTTL()
	}
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

// copySelection writes the selected names to the clipboard.
func (m Model) copySelection() tea.Cmd {
	names := domain.Names(m.picker.Items())
	if len(names) == 0 {
		return nil
	}
	write := m.copyText
	return func() tea.Msg {
		return copiedMsg{count: len(names), err: write(strings.Join(names, ", "))}
	}
}

// clampPanel keeps the panel cursor inside the selection.
func (m *Model) clampPanel() {
	m.panelIndex = clamp(m.panelIndex, 0, m.picker.Selection().Len()-1)
}

// loadSelection runs the initial load.
func (m Model) loadSelection() tea.Msg {
	return loadedMsg{err: m.picker.Load(context.Background())}
}

// retryLoad re-runs the initial load after a failure.
func (m Model) retryLoad() tea.Msg {
	return loadedMsg{err: m.picker.RetryLoad(context.Background()), retried: true}
}

// loadSubject names what a failed load was reading.
func loadSubject(err error) string {
	if errors.Is(err, app.ErrSelectionLoad) {
		return "saved selection"
	}
	return "presets"
}

// runSearch executes session in the background under the search timeout.
func (m Model) runSearch(session app.SearchSession) tea.Cmd {
	client, timeout := m.client, m.searchTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return searchResultMsg{outcome: app.RunSearch(ctx, client, session)}
	}
}

// debounceTick waits out one debounce window.
func debounceTick(ticket app.DebounceTicket) tea.Cmd {
	return tea.Tick(ticket.Delay, func(time.Time) tea.Msg {
		return debounceMsg{seq: ticket.Seq}
	})
}

// dropdownHeight returns the number of rows the result area occupies.
func (m Model) dropdownHeight() int {
	if m.search.Navigation().Open {
		if n := len(m.search.Results()); n > 0 {
			return n
		}
	}
	if m.search.Loading() || m.search.Err() != nil || m.search.NoMatches() {
		return 1
	}
	return 0
}

// View renders the picker.
func (m Model) View() tea.View {
	v := tea.NewView(m.renderScreen())
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// renderScreen composes the full screen text shown by View.
func (m Model) renderScreen() string {
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	warn := lipgloss.Color("214")
	bad := lipgloss.Color("203")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	mutedStyle := lipgloss.NewStyle().Foreground(muted)
	highlightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(warn)
	errStyle := lipgloss.NewStyle().Foreground(bad)
	panelTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)

	summary := m.picker.Summary()
	countStyle := statusStyle
	if summary.NearMax {
		countStyle = warnStyle
	}
	header := titleStyle.Render("pantry") + countStyle.Render(fmt.Sprintf("  %d/%d selected", summary.Count, summary.MaxItems))
	if m.loading {
		header += statusStyle.Render("  loading selection...")
	}

	sections := []string{header, m.input.View()}
	sections = append(sections, m.renderDropdown(highlightStyle, mutedStyle, errStyle)...)

	sections = append(sections, "")
	focusMark := ""
	if m.focus == focusSelection {
		focusMark = mutedStyle.Render("  (focused)")
	}
	sections = append(sections, panelTitle.Render(fmt.Sprintf("Selected ingredients (%d)", summary.Count))+focusMark)
	items := m.picker.Items()
	if len(items) == 0 {
		sections = append(sections, mutedStyle.Render("  No ingredients selected"))
	}
	for idx, item := range items {
		line := "  " + item.Name
		if item.Category != "" {
			line += mutedStyle.Render("  " + item.Category)
		}
		if m.focus == focusSelection && idx == m.panelIndex {
			line = highlightStyle.Render("> " + item.Name)
		}
		sections = append(sections, line)
	}

	if m.loadErr != nil {
		sections = append(sections, "", errStyle.Render(loadSubject(m.loadErr)+" unavailable: "+m.loadErr.Error()+" • ctrl+r retry"))
	}
	if !m.notice.IsZero() {
		style := statusStyle
		switch m.notice.Level {
		case app.NoticeWarning:
			style = warnStyle
		case app.NoticeError:
			style = errStyle
		}
		sections = append(sections, "", style.Render(m.notice.Message))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.showHelp {
		content = m.helpDoc.view(m.keys.helpMarkdown(), m.width-4)
	}
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}

	return content + "\n" + helpLine
}

// renderDropdown renders the result rows or the single status row below the search box.
func (m Model) renderDropdown(highlight, muted, errStyle lipgloss.Style) []string {
	nav := m.search.Navigation()
	results := m.search.Results()
	switch {
	case nav.Open && len(results) > 0:
		lines := make([]string, 0, len(results))
		for idx, item := range results {
			label := item.Name
			if m.picker.Selection().Contains(item.ID) {
				label += " ✓"
			}
			if idx == nav.Highlighted {
				lines = append(lines, highlight.Render("› "+label))
				continue
			}
			lines = append(lines, "  "+label)
		}
		return lines
	case m.search.Loading():
		return []string{muted.Render("  searching...")}
	case m.search.Err() != nil:
		return []string{errStyle.Render("  search failed, keep typing to retry")}
	case m.search.NoMatches():
		return []string{muted.Render(fmt.Sprintf("  No ingredients found for %q", strings.TrimSpace(m.search.Query())))}
	default:
		return nil
	}
}

// fitLines truncates content to at most height lines.
func fitLines(content string, height int) string {
	lines := strings.Split(content, "\n")
	if height <= 0 {
		return ""
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

// clamp bounds v to [lo, hi]; an empty range yields lo.
func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
