package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"lpr-service/internal/domain/lpr"
)

const maxPageSize = 100

func (r *LPRRepository) CreateEvent(ctx context.Context, event *lpr.DetectionEvent) error {
	row := DetectionEvent{
		Plate:          event.Plate,
		EventTime:      utc(event.Timestamp),
		FrameIndex:     event.FrameIndex,
		Confidence:     event.Confidence,
		ImagePath:      event.ImagePath,
		Source:         event.Source,
		IsWatchlist:    event.Watchlisted,
		AlertTriggered: event.AlertTriggered,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	event.ID = row.ID
	return nil
}

func (r *LPRRepository) GetEvent(ctx context.Context, id int64) (lpr.DetectionEvent, error) {
	var row DetectionEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return lpr.DetectionEvent{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (r *LPRRepository) DeleteEvent(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&DetectionEvent{})
	return res.RowsAffected, res.Error
}

// FindEvents returns a page of events, newest first.
func (r *LPRRepository) FindEvents(ctx context.Context, limit, offset int) ([]lpr.DetectionEvent, error) {
	query := r.db.WithContext(ctx).Model(&DetectionEvent{}).Order("event_time DESC, id DESC")

	if limit > 0 {
		if limit > maxPageSize {
			limit = maxPageSize
		}
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []DetectionEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return eventsToDomain(rows), nil
}

func (r *LPRRepository) CountEvents(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&DetectionEvent{}).Count(&total).Error
	return total, err
}

// SearchEvents matches plate text containing substring literally, ignoring
// case on every driver.
func (r *LPRRepository) SearchEvents(ctx context.Context, substring string) ([]lpr.DetectionEvent, error) {
	var rows []DetectionEvent
	err := r.db.WithContext(ctx).
		Where(`LOWER(plate) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(substring))+"%").
		Order("event_time DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return eventsToDomain(rows), nil
}

// EventsBetween returns events with from <= event_time < to, newest first.
func (r *LPRRepository) EventsBetween(ctx context.Context, from, to time.Time) ([]lpr.DetectionEvent, error) {
	var rows []DetectionEvent
	err := r.db.WithContext(ctx).
		Where("event_time >= ? AND event_time < ?", utc(from), utc(to)).
		Order("event_time DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return eventsToDomain(rows), nil
}

func (r *LPRRepository) CountEventsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&DetectionEvent{}).
		Where("event_time >= ? AND event_time < ?", utc(from), utc(to)).
		Count(&n).Error
	return n, err
}

// DistinctPlates lists every recorded plate text in order of first insertion.
func (r *LPRRepository) DistinctPlates(ctx context.Context) ([]string, error) {
	var plates []string
	err := r.db.WithContext(ctx).
		Model(&DetectionEvent{}).
		Select("plate").
		Group("plate").
		Order("MIN(id)").
		Pluck("plate", &plates).Error
	return plates, err
}

// DeleteEventsByPlate removes events for plate. With keepLatest the event
// with the greatest event_time (highest id on ties) survives.
func (r *LPRRepository) DeleteEventsByPlate(ctx context.Context, plate string, keepLatest bool) (int64, error) {
	var deleted int64
	err := r.Transaction(ctx, func(tx *LPRRepository) error {
		query := tx.db.WithContext(ctx).Where("plate = ?", plate)
		if keepLatest {
			var latest DetectionEvent
			err := tx.db.WithContext(ctx).
				Where("plate = ?", plate).
				Order("event_time DESC, id DESC").
				First(&latest).Error
			if err != nil {
				return notFound(err)
			}
			query = query.Where("id <> ?", latest.ID)
		}
		res := query.Delete(&DetectionEvent{})
		deleted = res.RowsAffected
		return res.Error
	})
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return deleted, err
}

func (r *LPRRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("event_time < ?", utc(cutoff)).Delete(&DetectionEvent{})
	return res.RowsAffected, res.Error
}

func (r *LPRRepository) DeleteEventsBelowConfidence(ctx context.Context, threshold float64) (int64, error) {
	res := r.db.WithContext(ctx).Where("confidence < ?", threshold).Delete(&DetectionEvent{})
	return res.RowsAffected, res.Error
}

func (r *LPRRepository) DeleteAllEvents(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("1 = 1").Delete(&DetectionEvent{})
	return res.RowsAffected, res.Error
}

func (r *LPRRepository) ImagePaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).
		Model(&DetectionEvent{}).
		Where("image_path IS NOT NULL AND image_path <> ''").
		Pluck("image_path", &paths).Error
	return paths, err
}

// PlateSightingsSince returns plate and event_time for events at or after
// since, oldest first.
func (r *LPRRepository) PlateSightingsSince(ctx context.Context, since time.Time) ([]lpr.DetectionEvent, error) {
	var rows []DetectionEvent
	err := r.db.WithContext(ctx).
		Select("id", "plate", "event_time").
		Where("event_time >= ?", utc(since)).
		Order("event_time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return eventsToDomain(rows), nil
}

func (r *LPRRepository) TopPlates(ctx context.Context, limit int) ([]lpr.PlateCount, error) {
	top := make([]lpr.PlateCount, 0, limit)
	err := r.db.WithContext(ctx).
		Model(&DetectionEvent{}).
		Select("plate, COUNT(*) AS count").
		Group("plate").
		Order("count DESC, plate ASC").
		Limit(limit).
		Scan(&top).Error
	return top, err
}

func (r *LPRRepository) CountDistinctPlates(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&DetectionEvent{}).
		Distinct("plate").
		Count(&n).Error
	return n, err
}

func eventsToDomain(rows []DetectionEvent) []lpr.DetectionEvent {
	result := make([]lpr.DetectionEvent, 0, len(rows))
	for _, e := range rows {
		result = append(result, e.toDomain())
	}
	return result
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
