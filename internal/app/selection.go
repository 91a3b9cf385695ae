package app

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hylla/pantry/internal/domain"
)

// DefaultMaxItems bounds a selection when no capacity is configured.
const DefaultMaxItems = 50

// DefaultNearMaxThresholdRatio is the fill ratio at which a selection counts as nearly full.
const DefaultNearMaxThresholdRatio = 0.8

// SelectionListener receives the full selection after every successful mutation.
type SelectionListener func([]domain.Ingredient)

// listenerEntry pairs a listener with its subscription id.
type listenerEntry struct {
	id uint64
	fn SelectionListener
}

// SelectionSet is the ordered, id-unique, capacity-bounded set of selected
// ingredients. All mutations go through Add, Remove, Clear, Seed, or Merge.
// Listeners run synchronously, in subscription order, and must not mutate the set.
type SelectionSet struct {
	// notifyMu serializes mutate+notify so listeners observe snapshots in order.
	notifyMu sync.Mutex
	mu       sync.Mutex

	items     []domain.Ingredient
	maxItems  int
	listeners []listenerEntry
	nextID    uint64
}

// NewSelectionSet constructs an empty set; non-positive capacities use DefaultMaxItems.
func NewSelectionSet(maxItems int) *SelectionSet {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &SelectionSet{maxItems: maxItems}
}

// Add appends item unless its id is already present or the set is full.
func (s *SelectionSet) Add(item domain.Ingredient) error {
	if err := item.Validate(); err != nil {
		return err
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.indexLocked(item.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
	}
	if len(s.items) >= s.maxItems {
		s.mu.Unlock()
		return fmt.Errorf("%w: limit %d", ErrCapacityExceeded, s.maxItems)
	}
	s.items = append(s.items, item)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// Remove deletes the item with id. Removing an absent id is a silent no-op
// and reports false.
func (s *SelectionSet) Remove(id domain.IngredientID) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return true
}

// Clear empties the set unconditionally.
func (s *SelectionSet) Clear() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.items = nil
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// Seed replaces the whole set with trusted items, skipping duplicate and
// capacity checks. It is reserved for the initial bulk load.
func (s *SelectionSet) Seed(items []domain.Ingredient) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.items = domain.CloneIngredients(items)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// Merge places trusted items ahead of the current selection. Current entries
// are never dropped and keep their place on id conflicts; items beyond
// capacity are skipped and counted.
func (s *SelectionSet) Merge(items []domain.Ingredient) int {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	seen := make(map[domain.IngredientID]struct{}, len(items)+len(s.items))
	for _, item := range s.items {
		seen[item.ID] = struct{}{}
	}
	room := s.maxItems - len(s.items)
	merged := make([]domain.Ingredient, 0, len(items)+len(s.items))
	skipped := 0
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		if room <= 0 {
			skipped++
			continue
		}
		seen[item.ID] = struct{}{}
		merged = append(merged, item)
		room--
	}
	s.items = append(merged, s.items...)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return skipped
}

// Snapshot returns a copy of the current ordered selection.
func (s *SelectionSet) Snapshot() []domain.Ingredient {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Ingredient, len(s.items))
	copy(out, s.items)
	return out
}

// Subscribe registers fn and returns a function that detaches it.
func (s *SelectionSet) Subscribe(fn SelectionListener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(l listenerEntry) bool {
				return l.id == id
			})
		})
	}
}

// Len returns the number of selected items.
func (s *SelectionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// MaxItems returns the capacity.
func (s *SelectionSet) MaxItems() int {
	return s.maxItems
}

// Contains reports whether id is selected.
func (s *SelectionSet) Contains(id domain.IngredientID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// NearCapacity reports whether the fill ratio reached ratio.
func (s *SelectionSet) NearCapacity(ratio float64) bool {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultNearMaxThresholdRatio
	}
	return float64(s.Len()) >= ratio*float64(s.maxItems)
}

// indexLocked finds id; callers hold s.mu.
func (s *SelectionSet) indexLocked(id domain.IngredientID) int {
	return slices.IndexFunc(s.items, func(item domain.Ingredient) bool {
		return item.ID == id
	})
}

// snapshotLocked copies items and listeners; callers hold s.mu.
func (s *SelectionSet) snapshotLocked() ([]domain.Ingredient, []SelectionListener) {
	snapshot := make([]domain.Ingredient, len(s.items))
	copy(snapshot, s.items)
	listeners := make([]SelectionListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l.fn)
	}
	return snapshot, listeners
}

// notify delivers an independent copy of snapshot to every listener.
func notify(listeners []SelectionListener, snapshot []domain.Ingredient) {
	for _, fn := range listeners {
		fn(domain.CloneIngredients(snapshot))
	}
}
