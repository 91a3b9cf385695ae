package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// IngredientID is the opaque identifier returned by a lookup service.
type IngredientID string

// String returns the raw identifier text.
func (id IngredientID) String() string {
	return string(id)
}

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (id *IngredientID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = IngredientID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidID
	}
	*id = IngredientID(n.String())
	return nil
}

// Ingredient is one lookup-service row. It serves as a search candidate while a
// result list is displayed and as a selected item once chosen; identity is ID only.
type Ingredient struct {
	ID       IngredientID `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	Category string       `json:"category,omitempty" yaml:"category,omitempty"`
}

// NewIngredient trims and validates one ingredient.
func NewIngredient(id, name, category string) (Ingredient, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Ingredient{}, ErrInvalidID
	}
	if name == "" {
		return Ingredient{}, ErrInvalidName
	}
	return Ingredient{
		ID:       IngredientID(id),
		Name:     name,
		Category: strings.TrimSpace(category),
	}, nil
}

// Validate reports whether the ingredient carries the minimum id and name fields.
func (i Ingredient) Validate() error {
	if strings.TrimSpace(string(i.ID)) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(i.Name) == "" {
		return ErrInvalidName
	}
	return nil
}

// IngredientIDFromInt formats a numeric backend id.
func IngredientIDFromInt(n int64) IngredientID {
	return IngredientID(strconv.FormatInt(n, 10))
}

// CloneIngredients returns a shallow copy that callers may mutate freely.
func CloneIngredients(in []Ingredient) []Ingredient {
	if in == nil {
		return nil
	}
	out := make([]Ingredient, len(in))
	copy(out, in)
	return out
}

// Names returns the display names in order.
func Names(items []Ingredient) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

// CatalogEntry is one searchable catalog row. Preset rows make up the
// default selection for a picker that starts empty.
type CatalogEntry struct {
	Ingredient `yaml:",inline"`
	Preset     bool `json:"preset,omitempty" yaml:"preset,omitempty"`
}
