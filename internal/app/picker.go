package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hylla/pantry/internal/domain"
)

// DefaultSelectionKey is the persistence key used when none is configured.
const DefaultSelectionKey = "default"

// defaultPersistTimeout bounds one persistence write.
const defaultPersistTimeout = 5 * time.Second

// Clock returns the current time.
type Clock func() time.Time

// PickerConfig holds configuration for the picker.
type PickerConfig struct {
	SelectionKey          string
	MaxItems              int
	NearMaxThresholdRatio float64
	NoticeTTL             time.Duration
	PersistTimeout        time.Duration
	// InitialItems, when non-empty, seed the selection and skip presets.
	InitialItems []domain.Ingredient
}

// PickerDeps holds the external collaborators of the picker. Every field is optional.
type PickerDeps struct {
	Presets PresetLoader
	Store   SelectionStore
	Lookup  IngredientLookup
	Logger  Logger
	Clock   Clock
}

// Summary is the display-ready selection count.
type Summary struct {
	Count     int
	MaxItems  int
	Remaining int
	NearMax   bool
}

// Picker relays chosen candidates into the selection set, persists every
// selection change, and runs the one-shot preset load.
type Picker struct {
	selection      *SelectionSet
	presets        PresetLoader
	store          SelectionStore
	lookup         IngredientLookup
	logger         Logger
	clock          Clock
	key            string
	ratio          float64
	noticeTTL      time.Duration
	persistTimeout time.Duration
	initial        []domain.Ingredient
	unsubscribe    func()

	mu         sync.Mutex
	persistErr error
	loaded     bool
	// storeRead is set once the saved selection was read or found absent.
	// Writes wait for it so an unread selection is never overwritten.
	storeRead bool
}

// NewPicker constructs a picker and subscribes persistence to its selection.
func NewPicker(deps PickerDeps, cfg PickerConfig) *Picker {
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	key := strings.TrimSpace(cfg.SelectionKey)
	if key == "" {
		key = DefaultSelectionKey
	}
	ratio := cfg.NearMaxThresholdRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultNearMaxThresholdRatio
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = DefaultNoticeTTL
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}

	p := &Picker{
		selection:      NewSelectionSet(cfg.MaxItems),
		presets:        deps.Presets,
		store:          deps.Store,
		lookup:         deps.Lookup,
		logger:         deps.Logger,
		clock:          deps.Clock,
		key:            key,
		ratio:          ratio,
		noticeTTL:      cfg.NoticeTTL,
		persistTimeout: cfg.PersistTimeout,
		initial:        domain.CloneIngredients(cfg.InitialItems),
	}
	p.unsubscribe = p.selection.Subscribe(p.persist)
	return p
}

// Selection exposes the underlying set for subscriptions and snapshots.
func (p *Picker) Selection() *SelectionSet {
	return p.selection
}

// Key returns the persistence key.
func (p *Picker) Key() string {
	return p.key
}

// Close detaches persistence from the selection.
func (p *Picker) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

// Load seeds the selection once: explicit initial items first, then a saved
// selection, then presets. Loaded items go ahead of anything accepted while
// the load was running. A saved selection that cannot be read returns an
// error wrapping ErrSelectionLoad and leaves the selection untouched, so a
// transient store failure never overwrites what was saved. A preset failure
// returns an error wrapping ErrPresetLoadFailure. Both may be retried.
func (p *Picker) Load(ctx context.Context) error {
	if p.Loaded() {
		return nil
	}

	if len(p.initial) > 0 {
		p.logger.Info("selection seeded from initial items", "key", p.key, "count", len(p.initial))
		p.markStoreRead()
		p.seed(p.initial, "initial")
		return nil
	}

	if p.store != nil {
		saved, err := p.store.LoadSelection(ctx, p.key)
		switch {
		case err == nil:
			p.logger.Info("selection restored", "key", p.key, "count", len(saved))
			p.markStoreRead()
			p.seed(saved, "saved")
			return nil
		case errors.Is(err, ErrNotFound):
			p.logger.Debug("no saved selection", "key", p.key)
			p.markStoreRead()
		default:
			p.logger.Error("load saved selection failed", "key", p.key, "err", err)
			return fmt.Errorf("%w: %w", ErrSelectionLoad, err)
		}
	}

	if p.presets == nil {
		p.markLoaded()
		return nil
	}
	return p.loadPresets(ctx)
}

// RetryLoad re-runs a failed initial load, re-reading the saved selection
// first. Once loaded, it reloads presets into the selection.
func (p *Picker) RetryLoad(ctx context.Context) error {
	if !p.Loaded() {
		return p.Load(ctx)
	}
	if p.presets == nil {
		return fmt.Errorf("%w: no preset loader configured", ErrPresetLoadFailure)
	}
	return p.loadPresets(ctx)
}

// loadPresets fetches presets and seeds the selection with them.
func (p *Picker) loadPresets(ctx context.Context) error {
	items, err := p.presets.LoadPresets(ctx)
	if err != nil {
		p.logger.Error("preset load failed", "key", p.key, "err", err)
		return fmt.Errorf("%w: %w", ErrPresetLoadFailure, err)
	}
	p.logger.Info("selection seeded from presets", "key", p.key, "count", len(items))
	p.seed(items, "presets")
	return nil
}

// seed merges loaded items ahead of the current selection and marks the load done.
func (p *Picker) seed(items []domain.Ingredient, source string) {
	if skipped := p.selection.Merge(items); skipped > 0 {
		p.logger.Warn("loaded ingredients skipped at capacity", "key", p.key, "source", source, "skipped", skipped, "max_items", p.selection.MaxItems())
	}
	p.markLoaded()
}

// Loaded reports whether the initial load completed.
func (p *Picker) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// markStoreRead allows persistence writes.
func (p *Picker) markStoreRead() {
	p.mu.Lock()
	p.storeRead = true
	p.mu.Unlock()
}

// markLoaded records a completed initial load.
func (p *Picker) markLoaded() {
	p.mu.Lock()
	p.loaded = true
	p.mu.Unlock()
}

// Accept adds a chosen candidate and returns the feedback to show.
// Duplicate and capacity rejections return both a warning notice and the error.
func (p *Picker) Accept(ctx context.Context, item domain.Ingredient) (Notice, error) {
	actor := ActorFromContext(ctx)
	err := p.selection.Add(item)
	switch {
	case err == nil:
		p.logger.Debug("ingredient added", "actor", actor, "id", item.ID, "name", item.Name)
		if p.selection.NearCapacity(p.ratio) {
			return p.notice(NoticeWarning, fmt.Sprintf("added %s (%d of %d selected)", item.Name, p.selection.Len(), p.selection.MaxItems())), nil
		}
		return p.notice(NoticeInfo, fmt.Sprintf("added %s", item.Name)), nil
	case errors.Is(err, ErrDuplicateItem):
		p.logger.Debug("duplicate ingredient rejected", "actor", actor, "id", item.ID)
		return p.notice(NoticeWarning, fmt.Sprintf("%s is already selected", item.Name)), err
	case errors.Is(err, ErrCapacityExceeded):
		p.logger.Warn("selection capacity reached", "actor", actor, "max_items", p.selection.MaxItems())
		return p.notice(NoticeWarning, fmt.Sprintf("maximum %d ingredients allowed", p.selection.MaxItems())), err
	default:
		return p.notice(NoticeError, err.Error()), err
	}
}

// AcceptByID resolves id through the lookup and adds the result.
func (p *Picker) AcceptByID(ctx context.Context, id domain.IngredientID) (domain.Ingredient, Notice, error) {
	id = domain.IngredientID(strings.TrimSpace(string(id)))
	if id == "" {
		return domain.Ingredient{}, p.notice(NoticeError, "ingredient id is required"), fmt.Errorf("%w: ingredient id is required", ErrInvalidRequest)
	}
	if p.lookup == nil {
		return domain.Ingredient{}, p.notice(NoticeError, "ingredient lookup unavailable"), fmt.Errorf("%w: ingredient lookup is not configured", ErrInvalidRequest)
	}
	item, err := p.lookup.GetIngredient(ctx, id)
	if err != nil {
		return domain.Ingredient{}, p.notice(NoticeError, fmt.Sprintf("unknown ingredient %s", id)), err
	}
	notice, err := p.Accept(ctx, item)
	return item, notice, err
}

// Remove drops id from the selection. Absent ids are a silent no-op.
func (p *Picker) Remove(ctx context.Context, id domain.IngredientID) Notice {
	if !p.selection.Remove(id) {
		return Notice{}
	}
	p.logger.Debug("ingredient removed", "actor", ActorFromContext(ctx), "id", id)
	return p.notice(NoticeInfo, fmt.Sprintf("removed %s", id))
}

// Clear empties the selection.
func (p *Picker) Clear(ctx context.Context) Notice {
	p.selection.Clear()
	p.logger.Info("selection cleared", "actor", ActorFromContext(ctx), "key", p.key)
	return p.notice(NoticeInfo, "selection cleared")
}

// Replace swaps the whole selection for items after checking each one, id
// uniqueness, and capacity. On error the selection is unchanged.
func (p *Picker) Replace(ctx context.Context, items []domain.Ingredient) error {
	if len(items) > p.selection.MaxItems() {
		return fmt.Errorf("%w: limit %d", ErrCapacityExceeded, p.selection.MaxItems())
	}
	seen := make(map[domain.IngredientID]struct{}, len(items))
	clean := make([]domain.Ingredient, 0, len(items))
	for i, item := range items {
		normalized, err := domain.NewIngredient(string(item.ID), item.Name, item.Category)
		if err != nil {
			return fmt.Errorf("%w: ingredients[%d]: %w", ErrInvalidRequest, i, err)
		}
		if _, ok := seen[normalized.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, normalized.ID)
		}
		seen[normalized.ID] = struct{}{}
		clean = append(clean, normalized)
	}
	p.markStoreRead()
	p.selection.Seed(clean)
	p.markLoaded()
	p.logger.Info("selection replaced", "actor", ActorFromContext(ctx), "key", p.key, "count", len(clean))
	return nil
}

// Items returns a snapshot of the current selection.
func (p *Picker) Items() []domain.Ingredient {
	return p.selection.Snapshot()
}

// Summary returns the current counts.
func (p *Picker) Summary() Summary {
	count := p.selection.Len()
	maxItems := p.selection.MaxItems()
	return Summary{
		Count:     count,
		MaxItems:  maxItems,
		Remaining: max(0, maxItems-count),
		NearMax:   p.selection.NearCapacity(p.ratio),
	}
}

// Notice builds a notice with the configured dismissal time.
func (p *Picker) Notice(level NoticeLevel, message string) Notice {
	return p.notice(level, message)
}

// NoticeTTL returns how long notices stay visible.
func (p *Picker) NoticeTTL() time.Duration {
	return p.noticeTTL
}

// PersistErr returns the most recent persistence failure, cleared on the next success.
func (p *Picker) PersistErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.persistErr
}

// notice stamps an expiry on one message.
func (p *Picker) notice(level NoticeLevel, message string) Notice {
	return Notice{
		Level:     level,
		Message:   message,
		ExpiresAt: p.clock().Add(p.noticeTTL),
	}
}

// persist saves each notified snapshot as the authoritative selection.
func (p *Picker) persist(items []domain.Ingredient) {
	if p.store == nil {
		return
	}
	p.mu.Lock()
	ready := p.storeRead
	p.mu.Unlock()
	if !ready {
		p.logger.Debug("selection write held until the saved selection loads", "key", p.key, "count", len(items))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.persistTimeout)
	defer cancel()
	err := p.store.SaveSelection(ctx, p.key, items)

	p.mu.Lock()
	p.persistErr = err
	p.mu.Unlock()
	if err != nil {
		p.logger.Error("persist selection failed", "key", p.key, "count", len(items), "err", err)
		return
	}
	p.logger.Debug("selection persisted", "key", p.key, "count", len(items))
}
