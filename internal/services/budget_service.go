package services

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// BudgetService plans monthly spending limits per category. A user holds at
// most one budget per category, month and year.
type BudgetService struct {
	repo *storage.SQLiteRepository
	now  func() time.Time
	events
}

func NewBudgetService(repo *storage.SQLiteRepository, pub EventPublisher) *BudgetService {
	return &BudgetService{repo: repo, now: time.Now, events: events{pub: pub}}
}

func (s *BudgetService) List(ctx context.Context, userID int64, f core.BudgetFilter) (core.Page[core.Budget], error) {
	return s.repo.Queries().ListBudgets(ctx, userID, f)
}

func (s *BudgetService) Get(ctx context.Context, userID, id int64) (core.Budget, error) {
	return s.repo.Queries().GetBudget(ctx, userID, id)
}

func (s *BudgetService) Create(ctx context.Context, userID int64, in core.BudgetInput) (core.Budget, error) {
	b := core.Budget{UserID: userID}
	verr := core.NewValidationError()
	in.Apply(&b, true, verr)
	b.Validate(verr, s.now(), in.Year != nil)

	var saved core.Budget
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := checkBudget(ctx, q, verr, &b); err != nil {
			return err
		}
		var err error
		saved, err = q.CreateBudget(ctx, b)
		return budgetConstraintError(err)
	})
	if err != nil {
		return core.Budget{}, err
	}

	s.publish(ctx, amqp.EntityBudget, amqp.ActionCreated, saved.ID, userID)
	return saved, nil
}

// Update merges in onto the stored budget and re-checks uniqueness against
// the merged values, ignoring the budget itself. The year window applies
// only when a year is supplied.
func (s *BudgetService) Update(ctx context.Context, userID, id int64, in core.BudgetInput, full bool) (core.Budget, error) {
	var saved core.Budget
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		b, err := q.GetBudget(ctx, userID, id)
		if err != nil {
			return err
		}

		verr := core.NewValidationError()
		in.Apply(&b, full, verr)
		b.Validate(verr, s.now(), in.Year != nil)
		if err := checkBudget(ctx, q, verr, &b); err != nil {
			return err
		}

		saved, err = q.UpdateBudget(ctx, b)
		return budgetConstraintError(err)
	})
	if err != nil {
		return core.Budget{}, err
	}

	s.publish(ctx, amqp.EntityBudget, amqp.ActionUpdated, saved.ID, userID)
	return saved, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.Queries().DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityBudget, amqp.ActionDeleted, id, userID)
	return nil
}

// checkBudget verifies category ownership and, once every field is valid,
// the one-budget-per-period rule. b.ID is excluded, zero for new budgets.
func checkBudget(ctx context.Context, q *storage.Queries, verr *core.ValidationError, b *core.Budget) error {
	if !verr.Has("category") {
		c, err := q.GetCategory(ctx, b.UserID, b.CategoryID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			verr.Add("category", core.MsgForeignCategory)
		case err != nil:
			return err
		default:
			b.Category = c.Ref()
		}
	}
	if err := verr.Err(); err != nil {
		return err
	}

	exists, err := q.BudgetExists(ctx, b.UserID, b.CategoryID, b.Month, b.Year, b.ID)
	if err != nil {
		return err
	}
	if exists {
		return core.NonFieldError(core.MsgDuplicateBudget)
	}
	return nil
}

func budgetConstraintError(err error) error {
	var ce *storage.ConstraintError
	if errors.As(err, &ce) {
		return core.NonFieldError(core.MsgDuplicateBudget)
	}
	return err
}
