package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"lpr-service/internal/domain/lpr"
)

// CreateWatchlistEntry inserts an active entry. The partial unique index on
// active plates rejects a second active entry with ErrDuplicate.
func (r *LPRRepository) CreateWatchlistEntry(ctx context.Context, entry *lpr.WatchlistEntry) error {
	row := WatchlistEntry{
		Plate:     entry.Plate,
		Reason:    entry.Reason,
		AlertType: entry.AlertType,
		AddedAt:   utc(entry.AddedAt),
		Active:    true,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	entry.ID = row.ID
	entry.Active = true
	return nil
}

// FindActiveWatchlistEntry returns nil without error when no active entry
// exists for plate.
func (r *LPRRepository) FindActiveWatchlistEntry(ctx context.Context, plate string) (*lpr.WatchlistEntry, error) {
	var row WatchlistEntry
	err := r.db.WithContext(ctx).
		Where("plate = ? AND active = ?", plate, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := row.toDomain()
	return &entry, nil
}

func (r *LPRRepository) ListWatchlist(ctx context.Context, activeOnly bool) ([]lpr.WatchlistEntry, error) {
	query := r.db.WithContext(ctx).Model(&WatchlistEntry{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var rows []WatchlistEntry
	if err := query.Order("added_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]lpr.WatchlistEntry, 0, len(rows))
	for _, w := range rows {
		result = append(result, w.toDomain())
	}
	return result, nil
}

// DeleteWatchlistEntries hard-removes every entry for plate, active or not.
func (r *LPRRepository) DeleteWatchlistEntries(ctx context.Context, plate string) (int64, error) {
	res := r.db.WithContext(ctx).Where("plate = ?", plate).Delete(&WatchlistEntry{})
	return res.RowsAffected, res.Error
}

func (r *LPRRepository) DeactivateWatchlistEntry(ctx context.Context, plate string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&WatchlistEntry{}).
		Where("plate = ? AND active = ?", plate, true).
		Update("active", false)
	return res.RowsAffected, res.Error
}

// TouchWatchlistEntry records a match: last_seen moves to seenAt and the
// detection count grows by one. Inactive entries are left untouched.
func (r *LPRRepository) TouchWatchlistEntry(ctx context.Context, id int64, seenAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&WatchlistEntry{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"last_seen":       utc(seenAt),
			"detection_count": gorm.Expr("detection_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LPRRepository) CountActiveWatchlist(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&WatchlistEntry{}).Where("active = ?", true).Count(&n).Error
	return n, err
}
