package services

import (
	"context"
	"log/slog"

	"fintrack/internal/amqp"
)

// EventPublisher delivers ledger events once a write has committed.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.LedgerEvent) error
}

type events struct {
	pub EventPublisher
}

// publish announces a committed change. Failures are logged and never
// reach the caller: the row is already stored.
func (e events) publish(ctx context.Context, entity, action string, entityID, userID int64) {
	if e.pub == nil {
		return
	}
	// The request may finish before the broker answers.
	ctx = context.WithoutCancel(ctx)
	if err := e.pub.Publish(ctx, amqp.NewLedgerEvent(entity, action, entityID, userID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"entity", entity,
			"action", action,
			"entity_id", entityID,
			"user_id", userID,
			"error", err)
	}
}
