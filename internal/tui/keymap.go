package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit        key.Binding
	toggleHelp  key.Binding
	moveUp      key.Binding
	moveDown    key.Binding
	choose      key.Binding
	dismiss     key.Binding
	switchFocus key.Binding
	remove      key.Binding
	clearAll    key.Binding
	copy        key.Binding
	retry       key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		toggleHelp:  key.NewBinding(key.WithKeys("f1"), key.WithHelp("f1", "toggle help")),
		moveUp:      key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous")),
		moveDown:    key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next")),
		choose:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add highlighted")),
		dismiss:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close list")),
		switchFocus: key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "search/selection")),
		remove:      key.NewBinding(key.WithKeys("d", "x", "delete", "backspace"), key.WithHelp("d/x", "remove (selection)")),
		clearAll:    key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "clear all")),
		copy:        key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy selection")),
		retry:       key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "retry loading")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.moveDown, k.choose, k.dismiss, k.switchFocus, k.clearAll, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.choose, k.dismiss},
		{k.switchFocus, k.remove, k.clearAll, k.copy},
		{k.retry, k.toggleHelp, k.quit},
	}
}

// helpMarkdown renders the full key map as a markdown table for the help panel.
func (k keyMap) helpMarkdown() string {
	var b strings.Builder
	b.WriteString("# Ingredient picker\n\n")
	b.WriteString("Type to search the catalog. Results refresh after a short pause.\n\n")
	b.WriteString("| key | action |\n|---|---|\n")
	for _, group := range k.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
	}
	b.WriteString("\nClicking a result adds it. Clicking a selected ingredient focuses it.\n")
	return b.String()
}

// applyConfig replaces the bindings named in cfg. Blank fields keep the defaults.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.remove, cfg.Remove, "", "remove (selection)")
	configureBinding(&k.clearAll, cfg.ClearAll, "", "clear all")
	configureBinding(&k.copy, cfg.Copy, "", "copy selection")
	configureBinding(&k.retry, cfg.Retry, "", "retry loading")
	configureBinding(&k.toggleHelp, cfg.ToggleHelp, "", "toggle help")
}

// configureBinding rebinds b to raw, or to fallback when raw is blank.
// A blank raw and fallback leave b untouched.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	if len(keys) == 0 {
		return
	}
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns one configured key into matcher strings and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	if raw != " " {
		raw = strings.TrimSpace(raw)
	}
	if raw == "" {
		raw = fallback
	}
	switch {
	case raw == "":
		return nil, ""
	case raw == " " || strings.EqualFold(raw, "space"):
		return []string{" ", "space"}, "space"
	case len([]rune(raw)) == 1:
		r := []rune(raw)[0]
		if lower := strings.ToLower(raw); lower != raw {
			return []string{raw, "shift+" + lower}, raw
		}
		return []string{string(r)}, raw
	default:
		return []string{strings.ToLower(raw)}, raw
	}
}
