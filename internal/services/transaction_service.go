package services

import (
	"context"
	"errors"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// TransactionService records the caller's income, expenses and transfers.
type TransactionService struct {
	repo *storage.SQLiteRepository
	events
}

func NewTransactionService(repo *storage.SQLiteRepository, pub EventPublisher) *TransactionService {
	return &TransactionService{repo: repo, events: events{pub: pub}}
}

func (s *TransactionService) List(ctx context.Context, userID int64, f core.TransactionFilter) (core.Page[core.Transaction], error) {
	return s.repo.Queries().ListTransactions(ctx, userID, f)
}

func (s *TransactionService) Get(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.repo.Queries().GetTransaction(ctx, userID, id)
}

// Create stores a new transaction. The type defaults to EXPENSE.
func (s *TransactionService) Create(ctx context.Context, userID int64, in core.TransactionInput) (core.Transaction, error) {
	t := core.Transaction{UserID: userID, Type: core.TransactionExpense}
	verr := core.NewValidationError()
	in.Apply(&t, true, verr)
	t.Validate(verr)

	var saved core.Transaction
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := checkTransactionCategory(ctx, q, verr, &t); err != nil {
			return err
		}
		var err error
		saved, err = q.CreateTransaction(ctx, t)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, amqp.EntityTransaction, amqp.ActionCreated, saved.ID, userID)
	return saved, nil
}

// Update merges in onto the stored row. With full set, amount, description
// and date must be supplied.
func (s *TransactionService) Update(ctx context.Context, userID, id int64, in core.TransactionInput, full bool) (core.Transaction, error) {
	var saved core.Transaction
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}

		verr := core.NewValidationError()
		in.Apply(&t, full, verr)
		t.Validate(verr)
		if err := checkTransactionCategory(ctx, q, verr, &t); err != nil {
			return err
		}

		saved, err = q.UpdateTransaction(ctx, t)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, amqp.EntityTransaction, amqp.ActionUpdated, saved.ID, userID)
	return saved, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.Queries().DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityTransaction, amqp.ActionDeleted, id, userID)
	return nil
}

// checkTransactionCategory reports a category the caller does not own and
// returns everything collected in verr.
func checkTransactionCategory(ctx context.Context, q *storage.Queries, verr *core.ValidationError, t *core.Transaction) error {
	if t.CategoryID != nil && !verr.Has("category") {
		if _, err := q.GetCategory(ctx, t.UserID, *t.CategoryID); err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}
			verr.Add("category", core.MsgForeignCategory)
		}
	}
	return verr.Err()
}
