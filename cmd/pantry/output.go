package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/domain"
)

// summaryWrapWidth bounds the rendered selection summary.
const summaryWrapWidth = 80

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
)

// ingredientTable renders items as a bordered ID/name/category table.
func ingredientTable(items []domain.Ingredient) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{string(item.ID), item.Name, item.Category})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("239"))).
		Headers("ID", "NAME", "CATEGORY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 2:
				return mutedStyle
			default:
				return cellStyle
			}
		}).
		String()
}

// writeIngredients prints items as a table, or empty when there are none.
func writeIngredients(w io.Writer, items []domain.Ingredient, empty string) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, empty)
		return err
	}
	_, err := fmt.Fprintln(w, ingredientTable(items))
	return err
}

// selectionMarkdown describes a selection as a markdown document.
func selectionMarkdown(key string, summary app.Summary, items []domain.Ingredient) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Selection `%s`\n\n", key)
	fmt.Fprintf(&b, "**%d of %d** ingredients selected", summary.Count, summary.MaxItems)
	if summary.NearMax {
		fmt.Fprintf(&b, ", only %d left", summary.Remaining)
	}
	b.WriteString(".\n\n")
	if len(items) == 0 {
		b.WriteString("_No ingredients selected._\n")
		return b.String()
	}

	byCategory := map[string][]string{}
	order := make([]string, 0)
	for _, item := range items {
		category := strings.TrimSpace(item.Category)
		if category == "" {
			category = "other"
		}
		if _, ok := byCategory[category]; !ok {
			order = append(order, category)
		}
		byCategory[category] = append(byCategory[category], item.Name)
	}
	for _, category := range order {
		fmt.Fprintf(&b, "## %s\n\n", category)
		for _, name := range byCategory[category] {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderMarkdown renders md without terminal styling so piped output stays plain.
func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(summaryWrapWidth),
	)
	if err != nil {
		return "", fmt.Errorf("configure markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
