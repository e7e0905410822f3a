package services

import (
	"context"
	"sync"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.RoutingKey())
	}
	return out
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestIdentity(repo *storage.SQLiteRepository) *IdentityService {
	return NewIdentityService(repo, bcrypt.MinCost)
}

func mustUser(t *testing.T, repo *storage.SQLiteRepository, username string) core.User {
	t.Helper()
	u, err := repo.Queries().CreateUser(context.Background(), core.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	})
	require.NoError(t, err)
	return u
}

func mustCategory(t *testing.T, repo *storage.SQLiteRepository, userID int64, name string) core.Category {
	t.Helper()
	c, err := repo.Queries().CreateCategory(context.Background(), userID, name)
	require.NoError(t, err)
	return c
}

func assertFieldError(t *testing.T, err error, field, msg string) {
	t.Helper()
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	if field == core.NonFieldKey {
		assert.Contains(t, verr.NonField, msg)
		return
	}
	assert.Contains(t, verr.Fields[field], msg, "errors: %v", verr.Map())
}

func ptr[T any](v T) *T { return &v }

func money(t *testing.T, s string) *core.Money {
	t.Helper()
	m, err := core.ParseMoney(s)
	require.NoError(t, err)
	return &m
}

func date(t *testing.T, s string) *core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return &d
}
