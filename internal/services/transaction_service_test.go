package services

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionService_Create(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	pub := &recordingPublisher{}
	s := NewTransactionService(repo, pub)
	alice := mustUser(t, repo, "alice")
	bob := mustUser(t, repo, "bob")
	food := mustCategory(t, repo, alice.ID, "Food")
	bobs := mustCategory(t, repo, bob.ID, "Boats")

	t.Run("with own category", func(t *testing.T) {
		tx, err := s.Create(ctx, alice.ID, core.TransactionInput{
			CategorySet: true,
			CategoryID:  &food.ID,
			Amount:      money(t, "42.50"),
			Description: ptr("  Weekly shop "),
			Date:        date(t, "2024-05-03"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4250), tx.Amount.Cents)
		assert.Equal(t, "Weekly shop", tx.Description)
		assert.Equal(t, core.TransactionExpense, tx.Type)
		require.NotNil(t, tx.Category)
		assert.Equal(t, core.CategoryRef{ID: food.ID, Name: "Food"}, *tx.Category)
		assert.Equal(t, []string{"transaction.created"}, pub.keys())
	})

	t.Run("without category", func(t *testing.T) {
		income := core.TransactionIncome
		tx, err := s.Create(ctx, alice.ID, core.TransactionInput{
			Amount:      money(t, "1000"),
			Description: ptr("Salary"),
			Date:        date(t, "2024-05-01"),
			Type:        &income,
		})
		require.NoError(t, err)
		assert.Nil(t, tx.CategoryID)
		assert.Nil(t, tx.Category)
		assert.Equal(t, core.TransactionIncome, tx.Type)
	})

	tests := []struct {
		name  string
		in    core.TransactionInput
		field string
		msg   string
	}{
		{
			name: "foreign category",
			in: core.TransactionInput{CategorySet: true, CategoryID: &bobs.ID,
				Amount: money(t, "1"), Description: ptr("Sneaky"), Date: date(t, "2024-05-01")},
			field: "category",
			msg:   core.MsgForeignCategory,
		},
		{
			name: "unknown category",
			in: core.TransactionInput{CategorySet: true, CategoryID: ptr(int64(9999)),
				Amount: money(t, "1"), Description: ptr("Ghost"), Date: date(t, "2024-05-01")},
			field: "category",
			msg:   core.MsgForeignCategory,
		},
		{
			name:  "zero amount",
			in:    core.TransactionInput{Amount: money(t, "0"), Description: ptr("Free"), Date: date(t, "2024-05-01")},
			field: "amount",
			msg:   "Amount must be greater than zero.",
		},
		{
			name:  "short description",
			in:    core.TransactionInput{Amount: money(t, "3"), Description: ptr(" a "), Date: date(t, "2024-05-01")},
			field: "description",
			msg:   "Description must be at least 2 characters long.",
		},
		{
			name:  "missing date",
			in:    core.TransactionInput{Amount: money(t, "3"), Description: ptr("Coffee")},
			field: "date",
			msg:   core.MsgRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, alice.ID, tt.in)
			assertFieldError(t, err, tt.field, tt.msg)
		})
	}
}

func TestTransactionService_Update(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	s := NewTransactionService(repo, nil)
	alice := mustUser(t, repo, "alice")
	bob := mustUser(t, repo, "bob")
	food := mustCategory(t, repo, alice.ID, "Food")

	created, err := s.Create(ctx, alice.ID, core.TransactionInput{
		CategorySet: true,
		CategoryID:  &food.ID,
		Amount:      money(t, "10.00"),
		Description: ptr("Lunch"),
		Date:        date(t, "2024-05-02"),
	})
	require.NoError(t, err)

	put := core.TransactionInput{
		CategorySet: true,
		CategoryID:  &food.ID,
		Amount:      money(t, "12.30"),
		Description: ptr("Lunch out"),
		Date:        date(t, "2024-05-02"),
	}

	t.Run("put is idempotent", func(t *testing.T) {
		first, err := s.Update(ctx, alice.ID, created.ID, put, true)
		require.NoError(t, err)
		second, err := s.Update(ctx, alice.ID, created.ID, put, true)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, int64(1230), second.Amount.Cents)
	})

	t.Run("put requires amount description and date", func(t *testing.T) {
		_, err := s.Update(ctx, alice.ID, created.ID, core.TransactionInput{}, true)
		assertFieldError(t, err, "amount", core.MsgRequired)
		assertFieldError(t, err, "description", core.MsgRequired)
		assertFieldError(t, err, "date", core.MsgRequired)
	})

	t.Run("patch merges", func(t *testing.T) {
		tx, err := s.Update(ctx, alice.ID, created.ID, core.TransactionInput{Amount: money(t, "99")}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(9900), tx.Amount.Cents)
		assert.Equal(t, "Lunch out", tx.Description)
		require.NotNil(t, tx.CategoryID)
		assert.Equal(t, food.ID, *tx.CategoryID)
	})

	t.Run("patch null category clears it", func(t *testing.T) {
		tx, err := s.Update(ctx, alice.ID, created.ID, core.TransactionInput{CategorySet: true}, false)
		require.NoError(t, err)
		assert.Nil(t, tx.CategoryID)
		assert.Nil(t, tx.Category)
	})

	t.Run("other user sees not found", func(t *testing.T) {
		_, err := s.Update(ctx, bob.ID, created.ID, put, true)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, bob.ID, created.ID), core.ErrNotFound)
	})
}

func TestTransactionService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := NewTransactionService(repo, pub)
	alice := mustUser(t, repo, "alice")

	tx, err := s.Create(ctx, alice.ID, core.TransactionInput{
		Amount: money(t, "5"), Description: ptr("Snacks"), Date: date(t, "2024-05-05"),
	})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, alice.ID, tx.ID))
	assert.Equal(t, []string{"transaction.created", "transaction.deleted"}, pub.keys())

	_, err = s.Get(ctx, alice.ID, tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
