package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

var categoryOrderColumns = map[string]string{
	"name":       "c.name",
	"created_at": "c.created_at",
}

var defaultCategoryOrder = core.Ordering{{Key: "name"}}

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var (
		c         core.Category
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &createdAt); err != nil {
		return core.Category{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = t
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	c := core.Category{UserID: userID, Name: name, CreatedAt: time.Now().UTC()}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, created_at) VALUES (?, ?, ?)`,
		c.UserID, c.Name, formatTime(c.CreatedAt))
	if err != nil {
		return core.Category{}, wrap("create category", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category saved", "id", c.ID, "user_id", userID)
	return c, nil
}

// GetCategory returns the category only when userID owns it.
func (q *Queries) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT c.id, c.user_id, c.name, c.created_at FROM categories c WHERE c.id = ? AND c.user_id = ?`,
		id, userID)
	c, err := scanCategory(row)
	return c, wrap("get category", err)
}

// CategoryNameTaken reports whether userID already has name on a category other than excludeID.
func (q *Queries) CategoryNameTaken(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	var taken bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE user_id = ? AND name = ? AND id != ?)`,
		userID, name, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return taken, nil
}

func (q *Queries) RenameCategory(ctx context.Context, userID, id int64, name string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ? AND user_id = ?`, name, id, userID)
	if err != nil {
		return wrap("rename category", err)
	}
	return expectRow(res, "rename category")
}

// DeleteCategory removes the category. Foreign keys null out transaction
// references and delete the category's budgets.
func (q *Queries) DeleteCategory(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectRow(res, "delete category")
}

func (q *Queries) ListCategories(ctx context.Context, userID int64, f core.CategoryFilter) (core.Page[core.Category], error) {
	page := core.Page[core.Category]{Number: f.Page.Number, Size: f.Page.Size}

	var where predicates
	where.add("c.user_id = ?", userID)
	if f.NameContains != "" {
		where.add(`c.name LIKE ? ESCAPE '\'`, likePattern(f.NameContains))
	}
	if f.Search != "" {
		where.add(`c.name LIKE ? ESCAPE '\'`, likePattern(f.Search))
	}

	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories c`+where.sql(), where.args...).Scan(&page.Count); err != nil {
		return page, fmt.Errorf("count categories: %w", err)
	}
	if err := f.Page.CheckBounds(page.Count); err != nil {
		return page, err
	}

	limit, limitArgs := limitOffset(f.Page)
	query := `SELECT c.id, c.user_id, c.name, c.created_at FROM categories c` + where.sql() +
		orderBy(f.Ordering, categoryOrderColumns, defaultCategoryOrder, "c.id ASC") + limit
	rows, err := q.db.QueryContext(ctx, query, append(where.args, limitArgs...)...)
	if err != nil {
		return page, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	page.Items = []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return page, fmt.Errorf("scan category: %w", err)
		}
		page.Items = append(page.Items, c)
	}
	return page, rows.Err()
}
