package service

import (
	"context"
	"time"

	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/repository"
)

const defaultAlertType = "warning"

// AlertEmitter writes the alert for a watchlist match and updates the
// entry's statistics. Callers bind it to a transaction so both writes
// commit or roll back together.
type AlertEmitter struct {
	repo *repository.LPRRepository
}

func NewAlertEmitter(repo *repository.LPRRepository) *AlertEmitter {
	return &AlertEmitter{repo: repo}
}

func (e *AlertEmitter) Emit(ctx context.Context, plate string, entry *lpr.WatchlistEntry, eventID int64, at time.Time) (int64, error) {
	alertType := entry.AlertType
	if alertType == "" {
		alertType = defaultAlertType
	}

	alert := lpr.Alert{
		Plate:     plate,
		Timestamp: at,
		AlertType: alertType,
		Message:   alertMessage(entry),
	}
	if eventID > 0 {
		alert.EventID = &eventID
	}
	if err := e.repo.CreateAlert(ctx, &alert); err != nil {
		return 0, storageError("create alert", err)
	}
	if err := e.repo.TouchWatchlistEntry(ctx, entry.ID, at); err != nil {
		return 0, storageError("update watchlist entry", err)
	}
	return alert.ID, nil
}

func alertMessage(entry *lpr.WatchlistEntry) string {
	if entry.Reason == "" {
		return "Watchlist plate detected"
	}
	return "Watchlist plate detected: " + entry.Reason
}
