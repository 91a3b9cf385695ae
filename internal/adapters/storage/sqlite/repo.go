package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hylla/pantry/internal/app"
	"github.com/hylla/pantry/internal/domain"
	"github.com/hylla/pantry/internal/fuzzy"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// DefaultSearchLimit caps search results when no limit is configured.
const DefaultSearchLimit = 10

// Repository represents repository data used by this package.
type Repository struct {
	db          *sql.DB
	now         func() time.Time
	searchLimit int

	matchMu sync.Mutex
	matcher *fuzzy.Matcher
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

// newRepository migrates db and wraps it.
func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{
		db:          db,
		now:         time.Now,
		searchLimit: DefaultSearchLimit,
		matcher:     fuzzy.NewMatcher(),
	}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SetSearchLimit changes the limit used by Search. Non-positive values restore the default.
func (r *Repository) SetSearchLimit(limit int) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	r.searchLimit = limit
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS ingredients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_lower TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			preset INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		// A selections row marks a key as saved even when it has no items.
		`CREATE TABLE IF NOT EXISTS selections (
			key TEXT PRIMARY KEY,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS selection_items (
			selection_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			ingredient_id TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(selection_key, position),
			FOREIGN KEY(selection_key) REFERENCES selections(key) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ingredients_name_lower ON ingredients(name_lower);`,
		`CREATE INDEX IF NOT EXISTS idx_ingredients_preset ON ingredients(preset, name_lower);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// UpsertIngredients inserts or replaces catalog rows and returns how many were written.
func (r *Repository) UpsertIngredients(ctx context.Context, entries []domain.CatalogEntry) (n int, err error) {
	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return 0, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := ts(r.now())
	for _, entry := range entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ingredients(id, name, name_lower, category, preset, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				name_lower = excluded.name_lower,
				category = excluded.category,
				preset = excluded.preset,
				updated_at = excluded.updated_at
		`,
			string(entry.ID),
			entry.Name,
			strings.ToLower(entry.Name),
			entry.Category,
			boolToInt(entry.Preset),
			now,
			now,
		)
		if err != nil {
			return 0, err
		}
		n++
	}

	err = tx.Commit()
	return n, err
}

// SetPreset flags or unflags one catalog row as a preset.
func (r *Repository) SetPreset(ctx context.Context, id domain.IngredientID, preset bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ingredients SET preset = ?, updated_at = ? WHERE id = ?
	`, boolToInt(preset), ts(r.now()), string(id))
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CountIngredients returns the catalog size.
func (r *Repository) CountIngredients(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingredients`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetIngredient returns one catalog row by id.
func (r *Repository) GetIngredient(ctx context.Context, id domain.IngredientID) (domain.Ingredient, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, category, preset FROM ingredients WHERE id = ?
	`, strings.TrimSpace(string(id)))
	entry, err := scanCatalogEntry(row)
	if err != nil {
		return domain.Ingredient{}, err
	}
	return entry.Ingredient, nil
}

// ListIngredients returns every catalog row ordered by name.
func (r *Repository) ListIngredients(ctx context.Context) ([]domain.CatalogEntry, error) {
	return r.queryCatalog(ctx, `
		SELECT id, name, category, preset FROM ingredients ORDER BY name_lower ASC, id ASC
	`)
}

// LoadPresets returns the preset rows ordered by name.
func (r *Repository) LoadPresets(ctx context.Context) ([]domain.Ingredient, error) {
	entries, err := r.queryCatalog(ctx, `
		SELECT id, name, category, preset FROM ingredients WHERE preset = 1 ORDER BY name_lower ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ingredient, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Ingredient)
	}
	return out, nil
}

// Search returns ranked catalog matches for query using the configured limit.
func (r *Repository) Search(ctx context.Context, query string) ([]domain.Ingredient, error) {
	return r.SearchIngredients(ctx, query, r.searchLimit)
}

// SearchIngredients selects candidates whose name contains the query, its
// singular form, or any of its words, then ranks them fuzzily. When no row
// contains the text, the whole catalog is ranked instead.
func (r *Repository) SearchIngredients(ctx context.Context, query string, limit int) ([]domain.Ingredient, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []domain.Ingredient{}, nil
	}
	if limit <= 0 {
		limit = r.searchLimit
	}

	patterns := candidatePatterns(query)
	clauses := make([]string, 0, len(patterns))
	args := make([]any, 0, len(patterns))
	for _, p := range patterns {
		clauses = append(clauses, `name_lower LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(p)+"%")
	}
	candidates, err := r.queryCatalog(ctx, `
		SELECT id, name, category, preset FROM ingredients
		WHERE `+strings.Join(clauses, " OR ")+`
		ORDER BY name_lower ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	if len(candidates) == 0 {
		candidates, err = r.ListIngredients(ctx)
		if err != nil {
			return nil, fmt.Errorf("search fallback: %w", err)
		}
	}
	return r.rank(candidates, query, limit), nil
}

// rank orders candidates with the shared matcher.
func (r *Repository) rank(candidates []domain.CatalogEntry, query string, limit int) []domain.Ingredient {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	r.matchMu.Lock()
	matches := r.matcher.Rank(names, query, limit)
	r.matchMu.Unlock()

	out := make([]domain.Ingredient, 0, len(matches))
	for _, m := range matches {
		out = append(out, candidates[m.Index].Ingredient)
	}
	return out
}

// LoadSelection returns the saved selection for key, or app.ErrNotFound when
// the key was never saved.
func (r *Repository) LoadSelection(ctx context.Context, key string) ([]domain.Ingredient, error) {
	var updatedRaw string
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM selections WHERE key = ?`, key).Scan(&updatedRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, app.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ingredient_id, name, category FROM selection_items
		WHERE selection_key = ?
		ORDER BY position ASC
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Ingredient, 0)
	for rows.Next() {
		var (
			item domain.Ingredient
			id   string
		)
		if err := rows.Scan(&id, &item.Name, &item.Category); err != nil {
			return nil, err
		}
		item.ID = domain.IngredientID(id)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSelection replaces the saved selection for key with items, in order.
func (r *Repository) SaveSelection(ctx context.Context, key string, items []domain.Ingredient) (err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: selection key is required", app.ErrInvalidRequest)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO selections(key, updated_at) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET updated_at = excluded.updated_at
	`, key, ts(r.now()))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM selection_items WHERE selection_key = ?`, key)
	if err != nil {
		return err
	}
	for pos, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO selection_items(selection_key, position, ingredient_id, name, category)
			VALUES (?, ?, ?, ?, ?)
		`, key, pos, string(item.ID), item.Name, item.Category)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// DeleteSelection forgets the saved selection for key.
func (r *Repository) DeleteSelection(ctx context.Context, key string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// foreign_keys is per connection, so items are removed explicitly.
	if _, err = tx.ExecContext(ctx, `DELETE FROM selection_items WHERE selection_key = ?`, key); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM selections WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// queryCatalog runs one catalog SELECT.
func (r *Repository) queryCatalog(ctx context.Context, query string, args ...any) ([]domain.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.CatalogEntry, 0)
	for rows.Next() {
		entry, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// candidatePatterns lists the substrings that admit a row as a search candidate.
func candidatePatterns(query string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 4)
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	add(query)
	tokens := fuzzy.Tokens(query)
	add(strings.Join(fuzzy.SingularTokens(tokens), " "))
	if len(tokens) > 1 {
		for _, token := range tokens {
			add(token)
			add(fuzzy.Singular(token))
		}
	}
	return out
}

// escapeLike escapes LIKE wildcards with a backslash.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanCatalogEntry handles scan catalog entry.
func scanCatalogEntry(s scanner) (domain.CatalogEntry, error) {
	var (
		entry  domain.CatalogEntry
		id     string
		preset int
	)
	if err := s.Scan(&id, &entry.Name, &entry.Category, &preset); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CatalogEntry{}, app.ErrNotFound
		}
		return domain.CatalogEntry{}, err
	}
	entry.ID = domain.IngredientID(id)
	entry.Preset = preset != 0
	return entry, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// boolToInt maps a flag to sqlite's integer boolean.
func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
