// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/pantry/internal/domain"
)

// MaxSearchLimit caps the limit a transport caller may request.
const MaxSearchLimit = 50

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrAlreadySelected reports an add for an id that is already selected.
var ErrAlreadySelected = errors.New("already selected")

// ErrSelectionFull reports an add against a full selection.
var ErrSelectionFull = errors.New("selection full")

// ErrUnavailable reports a failing backing source.
var ErrUnavailable = errors.New("backing source unavailable")

// SearchRequest captures one catalog search. Limit 0 uses the server default.
type SearchRequest struct {
	Query string `schema:"q" json:"q"`
	Limit int    `schema:"limit" json:"limit,omitempty"`
}

// IngredientList is the response body shared by search and preset endpoints.
type IngredientList struct {
	Ingredients []domain.Ingredient `json:"ingredients"`
}

// SelectionState is the transport view of the current selection.
type SelectionState struct {
	Key         string              `json:"key"`
	Ingredients []domain.Ingredient `json:"ingredients"`
	Count       int                 `json:"count"`
	MaxItems    int                 `json:"max_items"`
	Remaining   int                 `json:"remaining"`
	NearMax     bool                `json:"near_max"`
}

// MutationResult reports the selection after one mutation.
type MutationResult struct {
	Changed   bool           `json:"changed"`
	Notice    string         `json:"notice,omitempty"`
	Selection SelectionState `json:"selection"`
}

// AddIngredientRequest adds one ingredient. A blank name resolves the id through the catalog.
type AddIngredientRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

// SaveSelectionRequest replaces the whole selection.
type SaveSelectionRequest struct {
	Ingredients []domain.Ingredient `json:"ingredients"`
}

// Catalog is the search and preset backing of the server surfaces.
type Catalog interface {
	SearchIngredients(context.Context, string, int) ([]domain.Ingredient, error)
	LoadPresets(context.Context) ([]domain.Ingredient, error)
}

// PickerService is the full server surface over one catalog and one selection.
type PickerService interface {
	SearchIngredients(context.Context, SearchRequest) (IngredientList, error)
	Presets(context.Context) (IngredientList, error)
	Selection(context.Context) (SelectionState, error)
	AddIngredient(context.Context, AddIngredientRequest) (MutationResult, error)
	RemoveIngredient(context.Context, string) (MutationResult, error)
	ClearSelection(context.Context) (MutationResult, error)
	SaveSelection(context.Context, SaveSelectionRequest) (MutationResult, error)
}
