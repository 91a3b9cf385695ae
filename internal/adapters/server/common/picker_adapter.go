package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/domain"
)

// PickerAdapter maps transport contracts onto one app.Picker and catalog.
type PickerAdapter struct {
	picker       *app.Picker
	catalog      Catalog
	defaultLimit int
}

// NewPickerAdapter builds one adapter. Non-positive defaultLimit uses 10.
func NewPickerAdapter(picker *app.Picker, catalog Catalog, defaultLimit int) *PickerAdapter {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &PickerAdapter{
		picker:       picker,
		catalog:      catalog,
		defaultLimit: min(defaultLimit, MaxSearchLimit),
	}
}

// SearchIngredients runs one ranked catalog search.
func (a *PickerAdapter) SearchIngredients(ctx context.Context, in SearchRequest) (IngredientList, error) {
	if a == nil || a.catalog == nil {
		return IngredientList{}, fmt.Errorf("catalog is not configured: %w", ErrUnavailable)
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return IngredientList{}, fmt.Errorf("q is required: %w", ErrInvalidRequest)
	}
	limit := in.Limit
	switch {
	case limit < 0:
		return IngredientList{}, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	case limit == 0:
		limit = a.defaultLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	items, err := a.catalog.SearchIngredients(ctx, query, limit)
	if err != nil {
		return IngredientList{}, mapAppError("search ingredients", errors.Join(app.ErrSearchFailure, err))
	}
	return IngredientList{Ingredients: nonNil(items)}, nil
}

// Presets returns the catalog preset list.
func (a *PickerAdapter) Presets(ctx context.Context) (IngredientList, error) {
	if a == nil || a.catalog == nil {
		return IngredientList{}, fmt.Errorf("catalog is not configured: %w", ErrUnavailable)
	}
	items, err := a.catalog.LoadPresets(ctx)
	if err != nil {
		return IngredientList{}, mapAppError("load presets", errors.Join(app.ErrPresetLoadFailure, err))
	}
	return IngredientList{Ingredients: nonNil(items)}, nil
}

// Selection returns the current selection.
func (a *PickerAdapter) Selection(context.Context) (SelectionState, error) {
	if a == nil || a.picker == nil {
		return SelectionState{}, fmt.Errorf("picker is not configured: %w", ErrUnavailable)
	}
	return a.state(), nil
}

// AddIngredient adds one ingredient, resolving bare ids through the catalog.
func (a *PickerAdapter) AddIngredient(ctx context.Context, in AddIngredientRequest) (MutationResult, error) {
	if a == nil || a.picker == nil {
		return MutationResult{}, fmt.Errorf("picker is not configured: %w", ErrUnavailable)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return MutationResult{}, fmt.Errorf("id is required: %w", ErrInvalidRequest)
	}

	var (
		notice app.Notice
		err    error
	)
	if strings.TrimSpace(in.Name) == "" {
		_, notice, err = a.picker.AcceptByID(ctx, domain.IngredientID(id))
	} else {
		item, buildErr := domain.NewIngredient(id, in.Name, in.Category)
		if buildErr != nil {
			return MutationResult{}, mapAppError("add ingredient", buildErr)
		}
		notice, err = a.picker.Accept(ctx, item)
	}
	if err != nil {
		return MutationResult{}, mapAppError("add ingredient", err)
	}
	return MutationResult{Changed: true, Notice: notice.Message, Selection: a.state()}, nil
}

// RemoveIngredient removes one id. Removing an absent id succeeds with Changed false.
func (a *PickerAdapter) RemoveIngredient(ctx context.Context, id string) (MutationResult, error) {
	if a == nil || a.picker == nil {
		return MutationResult{}, fmt.Errorf("picker is not configured: %w", ErrUnavailable)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return MutationResult{}, fmt.Errorf("id is required: %w", ErrInvalidRequest)
	}
	notice := a.picker.Remove(ctx, domain.IngredientID(id))
	return MutationResult{Changed: !notice.IsZero(), Notice: notice.Message, Selection: a.state()}, nil
}

// ClearSelection empties the selection.
func (a *PickerAdapter) ClearSelection(ctx context.Context) (MutationResult, error) {
	if a == nil || a.picker == nil {
		return MutationResult{}, fmt.Errorf("picker is not configured: %w", ErrUnavailable)
	}
	notice := a.picker.Clear(ctx)
	return MutationResult{Changed: true, Notice: notice.Message, Selection: a.state()}, nil
}

// SaveSelection replaces the selection with the request list.
func (a *PickerAdapter) SaveSelection(ctx context.Context, in SaveSelectionRequest) (MutationResult, error) {
	if a == nil || a.picker == nil {
		return MutationResult{}, fmt.Errorf("picker is not configured: %w", ErrUnavailable)
	}
	if err := a.picker.Replace(ctx, in.Ingredients); err != nil {
		return MutationResult{}, mapAppError("save selection", err)
	}
	if err := a.picker.PersistErr(); err != nil {
		return MutationResult{}, mapAppError("save selection", err)
	}
	return MutationResult{
		Changed:   true,
		Notice:    fmt.Sprintf("saved %d ingredients", len(in.Ingredients)),
		Selection: a.state(),
	}, nil
}

// state snapshots the selection with its counts.
func (a *PickerAdapter) state() SelectionState {
	summary := a.picker.Summary()
	return SelectionState{
		Key:         a.picker.Key(),
		Ingredients: nonNil(a.picker.Items()),
		Count:       summary.Count,
		MaxItems:    summary.MaxItems,
		Remaining:   summary.Remaining,
		NearMax:     summary.NearMax,
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil(items []domain.Ingredient) []domain.Ingredient {
	if items == nil {
		return []domain.Ingredient{}
	}
	return items
}

// mapAppError maps app and domain errors onto transport-visible categories.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrDuplicateItem):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrAlreadySelected, err))
	case errors.Is(err, app.ErrCapacityExceeded):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrSelectionFull, err))
	case errors.Is(err, app.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrSearchFailure),
		errors.Is(err, app.ErrPresetLoadFailure):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
