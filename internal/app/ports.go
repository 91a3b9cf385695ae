package app

import (
	"context"

	"github.com/hylla/pantry/internal/domain"
)

// SearchClient resolves one query to candidate ingredients. An empty slice
// means no results; a non-nil error is a transient failure.
type SearchClient interface {
	Search(context.Context, string) ([]domain.Ingredient, error)
}

// SearchFunc adapts a plain function to SearchClient.
type SearchFunc func(context.Context, string) ([]domain.Ingredient, error)

// Search calls f.
func (f SearchFunc) Search(ctx context.Context, query string) ([]domain.Ingredient, error) {
	return f(ctx, query)
}

// PresetLoader returns the trusted, pre-deduplicated preset selection.
type PresetLoader interface {
	LoadPresets(context.Context) ([]domain.Ingredient, error)
}

// PresetFunc adapts a plain function to PresetLoader.
type PresetFunc func(context.Context) ([]domain.Ingredient, error)

// LoadPresets calls f.
func (f PresetFunc) LoadPresets(ctx context.Context) ([]domain.Ingredient, error) {
	return f(ctx)
}

// SelectionStore persists whole selections under an opaque key.
// LoadSelection returns ErrNotFound when nothing was ever saved for key.
type SelectionStore interface {
	LoadSelection(context.Context, string) ([]domain.Ingredient, error)
	SaveSelection(context.Context, string, []domain.Ingredient) error
}

// IngredientLookup resolves one catalog row by id.
type IngredientLookup interface {
	GetIngredient(context.Context, domain.IngredientID) (domain.Ingredient, error)
}

// Logger is the structured logging surface used by app components.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// nopLogger discards every event.
type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}

// DiscardLogger returns a Logger that drops every event.
func DiscardLogger() Logger {
	return nopLogger{}
}
