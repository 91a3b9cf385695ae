package catalogfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylla/pantry/internal/domain"
)

func TestDecodeMergesPresetsAndDropsRepeats(t *testing.T) {
	doc, err := Decode(strings.NewReader(`
ingredients:
  - id: 17
    name: " Tomato "
    category: produce
  - id: "18"
    name: Salt
presets:
  - id: "18"
    name: Salt
  - id: 19
    name: Pepper
`))
	require.NoError(t, err)
	assert.Equal(t, "Tomato", doc.Ingredients[0].Name)

	entries := doc.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, domain.IngredientID("17"), entries[0].ID)
	assert.False(t, entries[0].Preset)
	assert.True(t, entries[1].Preset, "a preset listing promotes an existing row")
	assert.Equal(t, domain.IngredientID("19"), entries[2].ID)
}

func TestDecodeRejectsInvalidEntries(t *testing.T) {
	_, err := Decode(strings.NewReader("ingredients:\n  - id: \"\"\n    name: Nothing\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = Decode(strings.NewReader("ingredients:\n  - id: \"1\"\n    name: Salt\n    colour: white\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestDecodeEmptyDocument(t *testing.T) {
	doc, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Entries())
}

func TestDefaultCatalog(t *testing.T) {
	doc, err := Default()
	require.NoError(t, err)
	entries := doc.Entries()
	assert.Greater(t, len(entries), 40)

	presets := 0
	for _, e := range entries {
		if e.Preset {
			presets++
		}
	}
	assert.Equal(t, 5, presets)
}

func TestPresetFileLoadPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  - {id: \"1\", name: Salt}\n  - {id: \"2\", name: Flour}\n"), 0o644))

	got, err := PresetFile{Path: path}.LoadPresets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Ingredient{{ID: "1", Name: "Salt"}, {ID: "2", Name: "Flour"}}, got)

	_, err = PresetFile{Path: filepath.Join(t.TempDir(), "missing.yaml")}.LoadPresets(context.Background())
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	entries := []domain.CatalogEntry{
		{Ingredient: domain.Ingredient{ID: "1", Name: "Salt", Category: "pantry"}, Preset: true},
		{Ingredient: domain.Ingredient{ID: "2", Name: "Rice"}},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, entries))

	doc, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, doc.Entries())
}
