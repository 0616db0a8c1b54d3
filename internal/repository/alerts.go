package repository

import (
	"context"

	"lpr-service/internal/domain/lpr"
)

const maxAlertHistory = 100

func (r *LPRRepository) CreateAlert(ctx context.Context, alert *lpr.Alert) error {
	row := Alert{
		EventID:   alert.EventID,
		Plate:     alert.Plate,
		AlertTime: utc(alert.Timestamp),
		AlertType: alert.AlertType,
		Message:   alert.Message,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	alert.ID = row.ID
	return nil
}

// ListAlerts returns alerts newest first. The full history is capped at the
// most recent hundred; unresolved alerts are always returned in full.
func (r *LPRRepository) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]lpr.Alert, error) {
	query := r.db.WithContext(ctx).Model(&Alert{}).Order("alert_time DESC, id DESC")
	if unresolvedOnly {
		query = query.Where("resolved = ?", false)
	} else {
		query = query.Limit(maxAlertHistory)
	}

	var rows []Alert
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]lpr.Alert, 0, len(rows))
	for _, a := range rows {
		result = append(result, a.toDomain())
	}
	return result, nil
}

func (r *LPRRepository) ResolveAlert(ctx context.Context, id int64) error {
	var row Alert
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return notFound(err)
	}
	return r.db.WithContext(ctx).
		Model(&Alert{}).
		Where("id = ?", id).
		Update("resolved", true).Error
}

func (r *LPRRepository) CountUnresolvedAlerts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Alert{}).Where("resolved = ?", false).Count(&n).Error
	return n, err
}
