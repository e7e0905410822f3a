package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name, u.is_active, u.is_staff, u.date_joined`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u             core.User
		active, staff int
		dateJoined    string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &active, &staff, &dateJoined); err != nil {
		return core.User{}, err
	}
	u.IsActive = active != 0
	u.IsStaff = staff != 0
	t, err := parseTime(dateJoined)
	if err != nil {
		return core.User{}, err
	}
	u.DateJoined = t
	return u, nil
}

// CreateUser inserts u and returns it with its id. DateJoined defaults to now.
func (q *Queries) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, first_name, last_name, is_active, is_staff, date_joined)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		boolToInt(u.IsActive), boolToInt(u.IsStaff), formatTime(u.DateJoined))
	if err != nil {
		return core.User{}, wrap("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return u, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id)
	u, err := scanUser(row)
	return u, wrap("get user", err)
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username = ?`, username)
	u, err := scanUser(row)
	return u, wrap("get user by username", err)
}

// GetUserByEmail matches case-insensitively.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = ? COLLATE NOCASE`, strings.TrimSpace(email))
	u, err := scanUser(row)
	return u, wrap("get user by email", err)
}

func (q *Queries) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// EmailTaken reports whether another user than excludeID holds email.
func (q *Queries) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? COLLATE NOCASE AND id != ?)`,
		email, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// UpdateProfile stores first name, last name and email of u.
func (q *Queries) UpdateProfile(ctx context.Context, u core.User) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, email = ? WHERE id = ?`,
		u.FirstName, u.LastName, u.Email, u.ID)
	if err != nil {
		return wrap("update profile", err)
	}
	return expectRow(res, "update profile")
}

func (q *Queries) SetPasswordHash(ctx context.Context, userID int64, hash string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return wrap("set password", err)
	}
	return expectRow(res, "set password")
}

// SetUserActive enables or disables login for username.
func (q *Queries) SetUserActive(ctx context.Context, username string, active bool) error {
	res, err := q.db.ExecContext(ctx, `UPDATE users SET is_active = ? WHERE username = ?`, boolToInt(active), username)
	if err != nil {
		return wrap("set active", err)
	}
	return expectRow(res, "set active")
}

// ListUsersWithoutToken returns users that hold no auth token, by id.
func (q *Queries) ListUsersWithoutToken(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 LEFT JOIN auth_tokens t ON t.user_id = u.id
		 WHERE t.token_key IS NULL ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("list users without token: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// expectRow turns an update that touched nothing into core.ErrNotFound.
func expectRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
