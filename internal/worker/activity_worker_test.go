package worker

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*storage.SQLiteRepository, core.User) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	u, err := repo.Queries().CreateUser(context.Background(), core.User{
		Username: "alice", Email: "alice@example.com", PasswordHash: "x", IsActive: true,
	})
	require.NoError(t, err)
	return repo, u
}

func TestActivityWorker_HandleEvent(t *testing.T) {
	ctx := context.Background()
	repo, alice := setup(t)
	w := NewActivityWorker(repo)

	event := &amqp.LedgerEvent{
		Entity:    amqp.EntityBudget,
		Action:    amqp.ActionCreated,
		EntityID:  11,
		UserID:    alice.ID,
		Timestamp: time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC),
	}

	require.NoError(t, w.HandleEvent(ctx, event))
	require.NoError(t, w.HandleEvent(ctx, event), "redelivery is acknowledged")

	entries, err := repo.Queries().ListActivity(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "budget", entries[0].Entity)
	assert.Equal(t, "created", entries[0].Action)
	assert.Equal(t, int64(11), entries[0].EntityID)
	assert.True(t, entries[0].OccurredAt.Equal(event.Timestamp))

	recorded, skipped := w.Stats()
	assert.Equal(t, int64(1), recorded)
	assert.Equal(t, int64(1), skipped)
}

func TestActivityWorker_SkipsUnknownEvents(t *testing.T) {
	ctx := context.Background()
	repo, alice := setup(t)
	w := NewActivityWorker(repo)

	tests := []struct {
		name   string
		entity string
		action string
	}{
		{"unknown entity", "invoice", amqp.ActionCreated},
		{"unknown action", amqp.EntityCategory, "archived"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.HandleEvent(ctx, &amqp.LedgerEvent{
				Entity: tt.entity, Action: tt.action, EntityID: 1, UserID: alice.ID, Timestamp: time.Now(),
			})
			assert.NoError(t, err)
		})
	}

	entries, err := repo.Queries().ListActivity(ctx, alice.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestActivityWorker_DefaultsMissingTimestamp(t *testing.T) {
	ctx := context.Background()
	repo, alice := setup(t)
	w := NewActivityWorker(repo)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.HandleEvent(ctx, &amqp.LedgerEvent{
		Entity: amqp.EntityTransaction, Action: amqp.ActionDeleted, EntityID: 3, UserID: alice.ID,
	}))

	entries, err := repo.Queries().ListActivity(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].OccurredAt.Equal(fixed))
}
