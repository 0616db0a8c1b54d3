package repository

import (
	"context"

	"gorm.io/datatypes"

	"lpr-service/internal/domain/lpr"
)

func (r *LPRRepository) CreateTombstone(ctx context.Context, tomb *lpr.Tombstone, snapshot []byte) error {
	row := DeletedEvent{
		OriginalID:    tomb.OriginalID,
		Plate:         tomb.Plate,
		EventTime:     utc(tomb.Timestamp),
		DeletedAt:     utc(tomb.DeletedAt),
		DeletedReason: tomb.DeletedReason,
		Snapshot:      datatypes.JSON(snapshot),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	tomb.ID = row.ID
	return nil
}

func (r *LPRRepository) GetTombstone(ctx context.Context, id int64) (lpr.Tombstone, error) {
	var row DeletedEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return lpr.Tombstone{}, notFound(err)
	}
	return row.toDomain(), nil
}

func (r *LPRRepository) DeleteTombstone(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&DeletedEvent{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LPRRepository) ListTombstones(ctx context.Context, limit int) ([]lpr.Tombstone, error) {
	query := r.db.WithContext(ctx).Model(&DeletedEvent{}).Order("deleted_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []DeletedEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]lpr.Tombstone, 0, len(rows))
	for _, d := range rows {
		result = append(result, d.toDomain())
	}
	return result, nil
}
