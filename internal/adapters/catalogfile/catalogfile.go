// Package catalogfile reads ingredient catalogs and preset lists from YAML.
package catalogfile

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hylla/pantry/internal/domain"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Document is the on-disk YAML shape. Entries under presets are always presets.
type Document struct {
	Ingredients []domain.CatalogEntry `yaml:"ingredients"`
	Presets     []domain.Ingredient   `yaml:"presets"`
}

// Entries merges both lists, marks presets, and drops repeated ids keeping the first.
func (d Document) Entries() []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, 0, len(d.Ingredients)+len(d.Presets))
	index := map[domain.IngredientID]int{}
	add := func(entry domain.CatalogEntry) {
		if i, ok := index[entry.ID]; ok {
			out[i].Preset = out[i].Preset || entry.Preset
			return
		}
		index[entry.ID] = len(out)
		out = append(out, entry)
	}
	for _, entry := range d.Ingredients {
		add(entry)
	}
	for _, item := range d.Presets {
		add(domain.CatalogEntry{Ingredient: item, Preset: true})
	}
	return out
}

// Decode parses one YAML document and validates every entry.
func Decode(r io.Reader) (Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("decode catalog yaml: %w", err)
	}
	for i := range doc.Ingredients {
		entry, err := normalize(doc.Ingredients[i].Ingredient)
		if err != nil {
			return Document{}, fmt.Errorf("ingredients[%d]: %w", i, err)
		}
		doc.Ingredients[i].Ingredient = entry
	}
	for i := range doc.Presets {
		entry, err := normalize(doc.Presets[i])
		if err != nil {
			return Document{}, fmt.Errorf("presets[%d]: %w", i, err)
		}
		doc.Presets[i] = entry
	}
	return doc, nil
}

// normalize trims and validates one ingredient.
func normalize(in domain.Ingredient) (domain.Ingredient, error) {
	return domain.NewIngredient(string(in.ID), in.Name, in.Category)
}

// ReadFile decodes the YAML catalog at path.
func ReadFile(path string) (Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Document{}, errors.New("catalog path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open catalog %q: %w", path, err)
	}
	defer f.Close()
	doc, err := Decode(f)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Default returns the built-in starter catalog.
func Default() (Document, error) {
	return Decode(bytes.NewReader(defaultCatalog))
}

// PresetFile loads presets from a YAML file on every call.
type PresetFile struct {
	Path string
}

// LoadPresets returns the preset entries of the file, in file order.
func (p PresetFile) LoadPresets(ctx context.Context) ([]domain.Ingredient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ingredient, 0)
	for _, entry := range doc.Entries() {
		if entry.Preset {
			out = append(out, entry.Ingredient)
		}
	}
	return out, nil
}

// Encode writes entries as a YAML catalog document.
func Encode(w io.Writer, entries []domain.CatalogEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Ingredients: entries}); err != nil {
		return fmt.Errorf("encode catalog yaml: %w", err)
	}
	return enc.Close()
}
