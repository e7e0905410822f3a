package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var (
	knownEntities = map[string]bool{
		amqp.EntityCategory:    true,
		amqp.EntityTransaction: true,
		amqp.EntityBudget:      true,
	}
	knownActions = map[string]bool{
		amqp.ActionCreated: true,
		amqp.ActionUpdated: true,
		amqp.ActionDeleted: true,
	}
)

// ActivityWorker records consumed ledger events in the activity log.
type ActivityWorker struct {
	storage  *storage.SQLiteRepository
	now      func() time.Time
	recorded atomic.Int64
	skipped  atomic.Int64
}

func NewActivityWorker(storage *storage.SQLiteRepository) *ActivityWorker {
	return &ActivityWorker{storage: storage, now: time.Now}
}

// HandleEvent stores one event. Redeliveries and unknown kinds are skipped
// without error so they are acknowledged rather than requeued.
func (w *ActivityWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if !knownEntities[event.Entity] || !knownActions[event.Action] {
		slog.WarnContext(ctx, "Skipping unknown ledger event", "routing_key", event.RoutingKey())
		w.skipped.Add(1)
		return nil
	}

	occurred := event.Timestamp
	if occurred.IsZero() {
		occurred = w.now()
	}

	written, err := w.storage.Queries().RecordActivity(ctx, core.ActivityEntry{
		UserID:     event.UserID,
		Entity:     event.Entity,
		EntityID:   event.EntityID,
		Action:     event.Action,
		OccurredAt: occurred,
		RecordedAt: w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("record %s: %w", event.RoutingKey(), err)
	}

	if !written {
		slog.DebugContext(ctx, "Duplicate ledger event ignored",
			"routing_key", event.RoutingKey(),
			"entity_id", event.EntityID)
		w.skipped.Add(1)
		return nil
	}

	w.recorded.Add(1)
	slog.InfoContext(ctx, "Activity recorded",
		"routing_key", event.RoutingKey(),
		"entity_id", event.EntityID,
		"user_id", event.UserID)
	return nil
}

// Stats returns how many events were recorded and skipped so far.
func (w *ActivityWorker) Stats() (recorded, skipped int64) {
	return w.recorded.Load(), w.skipped.Load()
}
