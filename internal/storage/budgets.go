package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

var budgetOrderColumns = map[string]string{
	"year":           "b.year",
	"month":          "b.month",
	"amount":         "b.amount_cents",
	"category__name": "c.name",
}

var defaultBudgetOrder = core.Ordering{{Key: "year", Desc: true}, {Key: "month", Desc: true}, {Key: "category__name"}}

const budgetSelect = `SELECT b.id, b.user_id, b.category_id, c.name, b.amount_cents, b.month, b.year, b.created_at
	FROM budgets b JOIN categories c ON c.id = b.category_id`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b         core.Budget
		createdAt string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Category.Name, &b.Amount.Cents, &b.Month, &b.Year, &createdAt); err != nil {
		return core.Budget{}, err
	}
	b.Category.ID = b.CategoryID
	t, err := parseTime(createdAt)
	if err != nil {
		return core.Budget{}, err
	}
	b.CreatedAt = t
	return b, nil
}

func (q *Queries) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, month, year, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, b.Amount.Cents, b.Month, b.Year, formatTime(b.CreatedAt))
	if err != nil {
		return core.Budget{}, wrap("create budget", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"id", id,
		"user_id", b.UserID,
		"category_id", b.CategoryID,
		"year", b.Year,
		"month", b.Month)

	return q.GetBudget(ctx, b.UserID, id)
}

// GetBudget returns the budget only when userID owns it.
func (q *Queries) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, budgetSelect+` WHERE b.id = ? AND b.user_id = ?`, id, userID)
	b, err := scanBudget(row)
	return b, wrap("get budget", err)
}

// BudgetExists reports whether userID has a budget for the category and
// period other than excludeID.
func (q *Queries) BudgetExists(ctx context.Context, userID, categoryID int64, month, year int, excludeID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM budgets
		 WHERE user_id = ? AND category_id = ? AND month = ? AND year = ? AND id != ?)`,
		userID, categoryID, month, year, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check budget period: %w", err)
	}
	return exists, nil
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, amount_cents = ?, month = ?, year = ? WHERE id = ? AND user_id = ?`,
		b.CategoryID, b.Amount.Cents, b.Month, b.Year, b.ID, b.UserID)
	if err != nil {
		return core.Budget{}, wrap("update budget", err)
	}
	if err := expectRow(res, "update budget"); err != nil {
		return core.Budget{}, err
	}
	return q.GetBudget(ctx, b.UserID, b.ID)
}

func (q *Queries) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return expectRow(res, "delete budget")
}

func (q *Queries) ListBudgets(ctx context.Context, userID int64, f core.BudgetFilter) (core.Page[core.Budget], error) {
	page := core.Page[core.Budget]{Number: f.Page.Number, Size: f.Page.Size}

	var where predicates
	where.add("b.user_id = ?", userID)
	if f.CategoryID != nil {
		where.add("b.category_id = ?", *f.CategoryID)
	}
	if f.Month != nil {
		where.add("b.month = ?", *f.Month)
	}
	if f.Year != nil {
		where.add("b.year = ?", *f.Year)
	}
	if f.MinAmount != nil {
		where.add("b.amount_cents >= ?", f.MinAmount.Cents)
	}
	if f.MaxAmount != nil {
		where.add("b.amount_cents <= ?", f.MaxAmount.Cents)
	}
	if f.Search != "" {
		where.add(`c.name LIKE ? ESCAPE '\'`, likePattern(f.Search))
	}

	countQuery := `SELECT COUNT(*) FROM budgets b JOIN categories c ON c.id = b.category_id` + where.sql()
	if err := q.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&page.Count); err != nil {
		return page, fmt.Errorf("count budgets: %w", err)
	}
	if err := f.Page.CheckBounds(page.Count); err != nil {
		return page, err
	}

	limit, limitArgs := limitOffset(f.Page)
	query := budgetSelect + where.sql() +
		orderBy(f.Ordering, budgetOrderColumns, defaultBudgetOrder, "b.id ASC") + limit
	rows, err := q.db.QueryContext(ctx, query, append(where.args, limitArgs...)...)
	if err != nil {
		return page, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	page.Items = []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return page, fmt.Errorf("scan budget: %w", err)
		}
		page.Items = append(page.Items, b)
	}
	return page, rows.Err()
}
