package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"orcamento/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound means the entry or category does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCategoryInUse means a category delete was rejected because
	// entries still reference it.
	ErrCategoryInUse = errors.New("category still referenced by entries")
	// ErrDuplicateCategory means a category with that name already exists.
	ErrDuplicateCategory = errors.New("category name already exists")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// foreign_keys is off by default in SQLite; the RESTRICT policy on
	// entries.category_id depends on it.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const entryColumns = `e.id, e.description, e.amount_cents, e.entry_type, e.entry_date, e.category_id, c.name`

// ListEntries returns every entry joined with its category, most recent
// first. The snapshot is always complete; callers never see deltas.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.EntryWithCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries e
		JOIN categories c ON c.id = e.category_id
		ORDER BY e.entry_date DESC, e.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListEntriesInRange returns entries with entry_date in [from, to], both
// inclusive, most recent first.
func (r *SQLiteRepository) ListEntriesInRange(ctx context.Context, from, to core.Date) ([]core.EntryWithCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries e
		JOIN categories c ON c.id = e.category_id
		WHERE e.entry_date BETWEEN ? AND ?
		ORDER BY e.entry_date DESC, e.id DESC`,
		from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list entries in range: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]core.EntryWithCategory, error) {
	var out []core.EntryWithCategory
	for rows.Next() {
		var (
			e       core.EntryWithCategory
			typ     string
			dateStr string
		)
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount.Cents, &typ, &dateStr, &e.CategoryID, &e.CategoryName); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Type = core.EntryType(typ)
		date, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", dateStr, err)
		}
		e.Date = date
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// GetEntry retrieves a single entry by ID.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.EntryWithCategory, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries e
		JOIN categories c ON c.id = e.category_id
		WHERE e.id = ?`, id)

	var (
		e       core.EntryWithCategory
		typ     string
		dateStr string
	)
	err := row.Scan(&e.ID, &e.Description, &e.Amount.Cents, &typ, &dateStr, &e.CategoryID, &e.CategoryName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.EntryWithCategory{}, ErrNotFound
	}
	if err != nil {
		return core.EntryWithCategory{}, fmt.Errorf("get entry: %w", err)
	}
	e.Type = core.EntryType(typ)
	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.EntryWithCategory{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	e.Date = date
	return e, nil
}

// InsertEntry persists a new entry and returns it with the store-assigned ID.
func (r *SQLiteRepository) InsertEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (description, amount_cents, entry_type, entry_date, category_id)
		VALUES (?, ?, ?, ?, ?)`,
		e.Description, e.Amount.Cents, string(e.Type), e.Date.String(), e.CategoryID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", mapConstraintErr(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Entry{}, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Entry saved",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"entry_type", e.Type,
		"entry_date", e.Date.String())

	return e, nil
}

// UpdateEntry mutates an existing entry in place, keeping its identifier.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.Entry) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE entries
		SET description = ?, amount_cents = ?, entry_type = ?, entry_date = ?, category_id = ?
		WHERE id = ?`,
		e.Description, e.Amount.Cents, string(e.Type), e.Date.String(), e.CategoryID, e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", mapConstraintErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Entry updated", "id", e.ID, "amount_cents", e.Amount.Cents)
	return nil
}

// DeleteEntry removes an entry permanently. There is no soft delete.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Entry deleted", "id", id)
	return nil
}

// ListCategories returns all categories ordered by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// GetCategory retrieves a single category by ID.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// GetCategoryByName looks a category up by its exact name.
func (r *SQLiteRepository) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE name = ?`, name).
		Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by name: %w", err)
	}
	return c, nil
}

// InsertCategory persists a new category and returns it with its ID.
func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, c.Name)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", mapConstraintErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Category saved", "id", c.ID, "name", c.Name)
	return c, nil
}

// UpdateCategory renames a category in place.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, c.Name, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", mapConstraintErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Category renamed", "id", c.ID, "name", c.Name)
	return nil
}

// DeleteCategory removes a category. The RESTRICT foreign key rejects the
// delete while any entry still references it; that surfaces as
// ErrCategoryInUse so callers can explain the conflict.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", mapConstraintErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Category deleted", "id", id)
	return nil
}

// CountEntriesForCategory reports how many entries reference a category,
// used to explain referential-integrity conflicts.
func (r *SQLiteRepository) CountEntriesForCategory(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE category_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries for category: %w", err)
	}
	return n, nil
}

// mapConstraintErr translates SQLite constraint failures into the
// repository's error taxonomy. The driver exposes them only through the
// error text.
func mapConstraintErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrCategoryInUse
	case strings.Contains(msg, "UNIQUE constraint failed: categories.name"):
		return ErrDuplicateCategory
	default:
		return err
	}
}
