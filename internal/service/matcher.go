package service

import (
	"context"

	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/repository"
)

// WatchlistMatcher performs exact, case-preserving lookups against active
// watchlist entries. It never mutates the entry it returns.
type WatchlistMatcher struct {
	repo *repository.LPRRepository
}

func NewWatchlistMatcher(repo *repository.LPRRepository) *WatchlistMatcher {
	return &WatchlistMatcher{repo: repo}
}

func (m *WatchlistMatcher) Check(ctx context.Context, plate string) (bool, *lpr.WatchlistEntry, error) {
	entry, err := m.repo.FindActiveWatchlistEntry(ctx, plate)
	if err != nil {
		return false, nil, storageError("watchlist lookup", err)
	}
	if entry == nil {
		return false, nil, nil
	}
	return true, entry, nil
}
