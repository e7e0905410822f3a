package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// EnsureToken stores key for the user unless one already exists and returns the live key.
func (q *Queries) EnsureToken(ctx context.Context, userID int64, key string) (string, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (token_key, user_id, created) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		key, userID, formatTime(time.Now()))
	if err != nil {
		return "", wrap("ensure token", err)
	}
	var live string
	if err := q.db.QueryRowContext(ctx, `SELECT token_key FROM auth_tokens WHERE user_id = ?`, userID).Scan(&live); err != nil {
		return "", wrap("read token", err)
	}
	return live, nil
}

// ReplaceToken swaps the user's token for key in a single statement, so the
// user never has zero tokens visible to another connection.
func (q *Queries) ReplaceToken(ctx context.Context, userID int64, key string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (token_key, user_id, created) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET token_key = excluded.token_key, created = excluded.created`,
		key, userID, formatTime(time.Now()))
	return wrap("replace token", err)
}

// DeleteToken removes the user's token, core.ErrNotFound when there was none.
func (q *Queries) DeleteToken(ctx context.Context, userID int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return expectRow(res, "delete token")
}

// UserByToken resolves key to its owner.
func (q *Queries) UserByToken(ctx context.Context, key string) (core.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM auth_tokens t JOIN users u ON u.id = t.user_id WHERE t.token_key = ?`, key)
	u, err := scanUser(row)
	return u, wrap("user by token", err)
}
