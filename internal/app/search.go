package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/pantry/internal/domain"
)

// Direction selects a highlight movement.
type Direction int

// Next and Previous move the highlight circularly through the result list.
const (
	Next Direction = iota
	Previous
)

// NavigationState is the dropdown visibility and highlighted row (-1 means none).
type NavigationState struct {
	Open        bool
	Highlighted int
}

// SearchSession is one dispatched query. Token is strictly increasing.
type SearchSession struct {
	Token uint64
	Query string
}

// SearchOutcome is the resolution of one SearchSession.
type SearchOutcome struct {
	Session SearchSession
	Results []domain.Ingredient
	Err     error
}

// SearchController owns the query text, the in-flight request fence, the
// result list, and dropdown navigation. It is not safe for concurrent use:
// drive it from a single event loop.
type SearchController struct {
	debouncer *Debouncer
	query     string
	results   []domain.Ingredient
	loading   bool
	lastErr   error
	nav       NavigationState
	issued    uint64
}

// NewSearchController constructs a controller with the given debounce interval.
func NewSearchController(debounce time.Duration) *SearchController {
	return &SearchController{
		debouncer: NewDebouncer(debounce),
		nav:       NavigationState{Highlighted: -1},
	}
}

// SetQueryText records text immediately and returns the debounce ticket to
// schedule. Blank text cancels everything pending and returns false.
func (c *SearchController) SetQueryText(text string) (DebounceTicket, bool) {
	c.query = text
	if strings.TrimSpace(text) == "" {
		c.clear()
		return DebounceTicket{}, false
	}
	seq := c.debouncer.Schedule()
	return DebounceTicket{
		Seq:   seq,
		Delay: c.debouncer.Delay(),
		Query: text,
	}, true
}

// DebounceElapsed dispatches a search for the last text value, unmodified,
// when seq is the newest pending ticket. The returned session supersedes
// every session issued before it.
func (c *SearchController) DebounceElapsed(seq uint64) (SearchSession, bool) {
	if !c.debouncer.Fire(seq) {
		return SearchSession{}, false
	}
	if strings.TrimSpace(c.query) == "" {
		return SearchSession{}, false
	}
	c.issued++
	c.loading = true
	return SearchSession{Token: c.issued, Query: c.query}, true
}

// ApplyResult applies an outcome only when its token is still the newest
// issued; stale outcomes are dropped and false is returned.
func (c *SearchController) ApplyResult(out SearchOutcome) bool {
	if out.Session.Token == 0 || out.Session.Token != c.issued {
		return false
	}
	c.loading = false
	if out.Err != nil {
		c.results = nil
		c.lastErr = fmt.Errorf("%w: %q: %w", ErrSearchFailure, out.Session.Query, out.Err)
		c.nav = NavigationState{Highlighted: -1}
		return true
	}
	c.results = domain.CloneIngredients(out.Results)
	if c.results == nil {
		c.results = []domain.Ingredient{}
	}
	c.lastErr = nil
	c.nav = NavigationState{Open: true, Highlighted: -1}
	return true
}

// Run executes one session against client.
func (c *SearchController) Run(ctx context.Context, client SearchClient, session SearchSession) SearchOutcome {
	return RunSearch(ctx, client, session)
}

// RunSearch executes one session against client without touching controller state,
// so it is safe to call from a background command.
func RunSearch(ctx context.Context, client SearchClient, session SearchSession) SearchOutcome {
	if client == nil {
		return SearchOutcome{Session: session, Err: fmt.Errorf("search client is not configured")}
	}
	results, err := client.Search(ctx, session.Query)
	if err != nil {
		return SearchOutcome{Session: session, Err: err}
	}
	if results == nil {
		results = []domain.Ingredient{}
	}
	return SearchOutcome{Session: session, Results: results}
}

// Navigate moves the highlight. It is a no-op while closed or empty.
func (c *SearchController) Navigate(dir Direction) {
	if !c.nav.Open || len(c.results) == 0 {
		return
	}
	n := len(c.results)
	switch dir {
	case Next:
		c.nav.Highlighted = (c.nav.Highlighted + 1) % n
	case Previous:
		if c.nav.Highlighted <= 0 {
			c.nav.Highlighted = n - 1
		} else {
			c.nav.Highlighted--
		}
	}
}

// Confirm emits the highlighted candidate and resets the box.
func (c *SearchController) Confirm() (domain.Ingredient, bool) {
	item, ok := c.HighlightedItem()
	if !ok {
		return domain.Ingredient{}, false
	}
	c.Reset()
	return item, true
}

// Choose emits candidate directly (pointer path) and resets the box.
func (c *SearchController) Choose(candidate domain.Ingredient) domain.Ingredient {
	c.Reset()
	return candidate
}

// Close hides the dropdown without touching the query or results.
func (c *SearchController) Close() {
	c.nav = NavigationState{Highlighted: -1}
}

// Reset returns to the empty, closed state as if the user cleared the box.
func (c *SearchController) Reset() {
	c.query = ""
	c.clear()
}

// clear cancels the pending timer, fences off in-flight sessions, and empties the list.
func (c *SearchController) clear() {
	c.debouncer.Cancel()
	if c.loading {
		c.issued++
	}
	c.loading = false
	c.lastErr = nil
	c.results = nil
	c.nav = NavigationState{Highlighted: -1}
}

// Query returns the raw text as typed.
func (c *SearchController) Query() string {
	return c.query
}

// Results returns a copy of the displayed result list.
func (c *SearchController) Results() []domain.Ingredient {
	return domain.CloneIngredients(c.results)
}

// Loading reports whether the newest dispatched session is unresolved.
func (c *SearchController) Loading() bool {
	return c.loading
}

// Err returns the failure of the last applied session, if any.
func (c *SearchController) Err() error {
	return c.lastErr
}

// Navigation returns the dropdown state.
func (c *SearchController) Navigation() NavigationState {
	return c.nav
}

// HighlightedItem returns the highlighted candidate when one is valid.
func (c *SearchController) HighlightedItem() (domain.Ingredient, bool) {
	idx := c.nav.Highlighted
	if idx < 0 || idx >= len(c.results) {
		return domain.Ingredient{}, false
	}
	return c.results[idx], true
}

// DebouncePending reports whether a keystroke is still waiting to dispatch.
func (c *SearchController) DebouncePending() bool {
	return c.debouncer.Pending()
}

// IssuedToken returns the newest session token handed out.
func (c *SearchController) IssuedToken() uint64 {
	return c.issued
}

// NoMatches reports whether the open dropdown should show an empty-result message.
func (c *SearchController) NoMatches() bool {
	return c.nav.Open && len(c.results) == 0 && !c.loading && strings.TrimSpace(c.query) != ""
}
