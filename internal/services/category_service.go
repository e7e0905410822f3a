package services

import (
	"context"
	"errors"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// CategoryService manages the caller's categories. Every operation is
// scoped to userID; rows of other users behave as missing.
type CategoryService struct {
	repo *storage.SQLiteRepository
	events
}

func NewCategoryService(repo *storage.SQLiteRepository, pub EventPublisher) *CategoryService {
	return &CategoryService{repo: repo, events: events{pub: pub}}
}

func (s *CategoryService) List(ctx context.Context, userID int64, f core.CategoryFilter) (core.Page[core.Category], error) {
	return s.repo.Queries().ListCategories(ctx, userID, f)
}

func (s *CategoryService) Get(ctx context.Context, userID, id int64) (core.Category, error) {
	return s.repo.Queries().GetCategory(ctx, userID, id)
}

func (s *CategoryService) Create(ctx context.Context, userID int64, name string) (core.Category, error) {
	name, verr := core.NormalizeCategoryName(name)

	var c core.Category
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := s.checkName(ctx, q, verr, userID, name, 0); err != nil {
			return err
		}
		var err error
		c, err = q.CreateCategory(ctx, userID, name)
		return categoryConstraintError(err)
	})
	if err != nil {
		return core.Category{}, err
	}

	s.publish(ctx, amqp.EntityCategory, amqp.ActionCreated, c.ID, userID)
	return c, nil
}

// Update renames the category. A nil name leaves it unchanged unless full
// is set, in which case the name is required.
func (s *CategoryService) Update(ctx context.Context, userID, id int64, name *string, full bool) (core.Category, error) {
	verr := core.NewValidationError()
	var newName string
	if name != nil {
		newName, verr = core.NormalizeCategoryName(*name)
	} else if full {
		verr.Add("name", core.MsgRequired)
	}

	var c core.Category
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		var err error
		if c, err = q.GetCategory(ctx, userID, id); err != nil {
			return err
		}
		if name == nil {
			return verr.Err()
		}
		if err := s.checkName(ctx, q, verr, userID, newName, id); err != nil {
			return err
		}
		if err := q.RenameCategory(ctx, userID, id, newName); err != nil {
			return categoryConstraintError(err)
		}
		c.Name = newName
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}

	if name != nil {
		s.publish(ctx, amqp.EntityCategory, amqp.ActionUpdated, c.ID, userID)
	}
	return c, nil
}

// Delete removes the category; its budgets go with it and its transactions
// become uncategorized.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.Queries().DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityCategory, amqp.ActionDeleted, id, userID)
	return nil
}

func (s *CategoryService) checkName(ctx context.Context, q *storage.Queries, verr *core.ValidationError, userID int64, name string, excludeID int64) error {
	if !verr.Has("name") {
		taken, err := q.CategoryNameTaken(ctx, userID, name, excludeID)
		if err != nil {
			return err
		}
		if taken {
			verr.Add("name", core.MsgDuplicateName)
		}
	}
	return verr.Err()
}

func categoryConstraintError(err error) error {
	var ce *storage.ConstraintError
	if errors.As(err, &ce) {
		return core.FieldError("name", core.MsgDuplicateName)
	}
	return err
}
