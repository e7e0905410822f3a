package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// RecordActivity appends e to the activity log. Redelivered events are
// ignored; the result reports whether a row was written.
func (q *Queries) RecordActivity(ctx context.Context, e core.ActivityEntry) (bool, error) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO activity_log (user_id, entity, entity_id, action, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Entity, e.EntityID, e.Action, formatTime(e.OccurredAt), formatTime(e.RecordedAt))
	if err != nil {
		return false, fmt.Errorf("record activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record activity: %w", err)
	}
	return n > 0, nil
}

// ListActivity returns the latest entries for userID, newest first.
func (q *Queries) ListActivity(ctx context.Context, userID int64, limit int) ([]core.ActivityEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, entity, entity_id, action, occurred_at, recorded_at
		 FROM activity_log WHERE user_id = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []core.ActivityEntry
	for rows.Next() {
		var (
			e                      core.ActivityEntry
			occurredAt, recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Entity, &e.EntityID, &e.Action, &occurredAt, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		if e.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
