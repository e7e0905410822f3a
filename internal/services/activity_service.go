package services

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const maxActivityLimit = 100

// ActivityService reads the audit trail the worker writes.
type ActivityService struct {
	repo *storage.SQLiteRepository
}

func NewActivityService(repo *storage.SQLiteRepository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Recent returns up to limit entries for userID, newest first.
func (s *ActivityService) Recent(ctx context.Context, userID int64, limit int) ([]core.ActivityEntry, error) {
	if limit <= 0 || limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	entries, err := s.repo.Queries().ListActivity(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []core.ActivityEntry{}
	}
	return entries, nil
}
