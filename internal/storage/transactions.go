package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

var transactionOrderColumns = map[string]string{
	"date":           "t.date",
	"amount":         "t.amount_cents",
	"created_at":     "t.created_at",
	"category__name": "c.name",
}

var defaultTransactionOrder = core.Ordering{{Key: "date", Desc: true}, {Key: "created_at", Desc: true}}

const transactionSelect = `SELECT t.id, t.user_id, t.category_id, c.name, t.amount_cents, t.description,
	t.date, t.transaction_type, t.created_at
	FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t            core.Transaction
		categoryID   sql.NullInt64
		categoryName sql.NullString
		date         string
		txType       string
		createdAt    string
	)
	if err := row.Scan(&t.ID, &t.UserID, &categoryID, &categoryName, &t.Amount.Cents, &t.Description,
		&date, &txType, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
		t.Category = &core.CategoryRef{ID: id, Name: categoryName.String}
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = d
	t.Type = core.TransactionType(txType)
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// CreateTransaction inserts t and reloads it with its category name.
func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, amount_cents, description, date, transaction_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullableID(t.CategoryID), t.Amount.Cents, t.Description, t.Date.String(), string(t.Type), formatTime(t.CreatedAt))
	if err != nil {
		return core.Transaction{}, wrap("create transaction", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"user_id", t.UserID,
		"amount_cents", t.Amount.Cents,
		"type", t.Type)

	return q.GetTransaction(ctx, t.UserID, id)
}

// GetTransaction returns the transaction only when userID owns it.
func (q *Queries) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ? AND t.user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	return t, wrap("get transaction", err)
}

// UpdateTransaction stores every mutable field of t and reloads it.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, amount_cents = ?, description = ?, date = ?, transaction_type = ?
		 WHERE id = ? AND user_id = ?`,
		nullableID(t.CategoryID), t.Amount.Cents, t.Description, t.Date.String(), string(t.Type), t.ID, t.UserID)
	if err != nil {
		return core.Transaction{}, wrap("update transaction", err)
	}
	if err := expectRow(res, "update transaction"); err != nil {
		return core.Transaction{}, err
	}
	return q.GetTransaction(ctx, t.UserID, t.ID)
}

func (q *Queries) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectRow(res, "delete transaction")
}

func (q *Queries) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) (core.Page[core.Transaction], error) {
	page := core.Page[core.Transaction]{Number: f.Page.Number, Size: f.Page.Size}

	var where predicates
	where.add("t.user_id = ?", userID)
	if f.CategoryID != nil {
		where.add("t.category_id = ?", *f.CategoryID)
	}
	if f.MinAmount != nil {
		where.add("t.amount_cents >= ?", f.MinAmount.Cents)
	}
	if f.MaxAmount != nil {
		where.add("t.amount_cents <= ?", f.MaxAmount.Cents)
	}
	if f.StartDate != nil {
		where.add("t.date >= ?", f.StartDate.String())
	}
	if f.EndDate != nil {
		where.add("t.date <= ?", f.EndDate.String())
	}
	if f.Type != "" {
		where.add("t.transaction_type = ?", string(f.Type))
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		where.add(`(t.description LIKE ? ESCAPE '\' OR c.name LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	countQuery := `SELECT COUNT(*) FROM transactions t LEFT JOIN categories c ON c.id = t.category_id` + where.sql()
	if err := q.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&page.Count); err != nil {
		return page, fmt.Errorf("count transactions: %w", err)
	}
	if err := f.Page.CheckBounds(page.Count); err != nil {
		return page, err
	}

	limit, limitArgs := limitOffset(f.Page)
	query := transactionSelect + where.sql() +
		orderBy(f.Ordering, transactionOrderColumns, defaultTransactionOrder, "t.id DESC") + limit
	rows, err := q.db.QueryContext(ctx, query, append(where.args, limitArgs...)...)
	if err != nil {
		return page, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	page.Items = []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return page, fmt.Errorf("scan transaction: %w", err)
		}
		page.Items = append(page.Items, t)
	}
	return page, rows.Err()
}
