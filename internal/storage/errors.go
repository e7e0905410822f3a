package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintError reports a violated UNIQUE constraint. It matches core.ErrConflict.
type ConstraintError struct {
	// Columns as reported by SQLite, e.g. "budgets.user_id, budgets.category_id, ...".
	Columns string
	err     error
}

func (e *ConstraintError) Error() string {
	return "unique constraint failed: " + e.Columns
}

func (e *ConstraintError) Unwrap() error { return e.err }

func (e *ConstraintError) Is(target error) bool { return target == core.ErrConflict }

// Touches reports whether the violated constraint covers column (e.g. "users.email").
func (e *ConstraintError) Touches(column string) bool {
	return strings.Contains(e.Columns, column)
}

// translate maps driver errors onto the domain: no rows becomes core.ErrNotFound
// and unique violations become *ConstraintError.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) && isUniqueViolation(se) {
		msg := se.Error()
		cols := msg
		if i := strings.LastIndex(msg, "constraint failed: "); i >= 0 {
			cols = msg[i+len("constraint failed: "):]
			if j := strings.Index(cols, " ("); j >= 0 {
				cols = cols[:j]
			}
		}
		return &ConstraintError{Columns: cols, err: err}
	}
	return err
}

func isUniqueViolation(se *sqlite.Error) bool {
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(se.Error(), "UNIQUE constraint failed")
}

// wrap translates err and prefixes it with op, keeping the error chain intact.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	err = translate(err)
	if errors.Is(err, core.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// likePattern escapes LIKE wildcards so user input matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
