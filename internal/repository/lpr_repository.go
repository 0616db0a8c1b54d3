package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lpr-service/internal/domain/lpr"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type LPRRepository struct {
	db *gorm.DB
}

func NewLPRRepository(db *gorm.DB) *LPRRepository {
	return &LPRRepository{db: db}
}

// Transaction runs fn against a repository bound to a single database
// transaction. Any error returned by fn rolls the transaction back.
func (r *LPRRepository) Transaction(ctx context.Context, fn func(tx *LPRRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LPRRepository{db: tx})
	})
}

type DetectionEvent struct {
	ID             int64     `gorm:"primaryKey"`
	Plate          string    `gorm:"not null"`
	EventTime      time.Time `gorm:"not null"`
	FrameIndex     int64
	Confidence     float64
	ImagePath      *string
	Source         string
	IsWatchlist    bool
	AlertTriggered bool
	CreatedAt      time.Time
}

func (DetectionEvent) TableName() string { return "detection_events" }

func (e DetectionEvent) toDomain() lpr.DetectionEvent {
	return lpr.DetectionEvent{
		ID:             e.ID,
		Plate:          e.Plate,
		Timestamp:      e.EventTime,
		FrameIndex:     e.FrameIndex,
		Confidence:     e.Confidence,
		ImagePath:      e.ImagePath,
		Source:         e.Source,
		Watchlisted:    e.IsWatchlist,
		AlertTriggered: e.AlertTriggered,
	}
}

type WatchlistEntry struct {
	ID             int64     `gorm:"primaryKey"`
	Plate          string    `gorm:"not null"`
	Reason         string
	AlertType      string
	AddedAt        time.Time `gorm:"not null"`
	LastSeen       *time.Time
	DetectionCount int64
	Active         bool
}

func (WatchlistEntry) TableName() string { return "watchlist" }

func (w WatchlistEntry) toDomain() lpr.WatchlistEntry {
	return lpr.WatchlistEntry{
		ID:             w.ID,
		Plate:          w.Plate,
		Reason:         w.Reason,
		AlertType:      w.AlertType,
		AddedAt:        w.AddedAt,
		LastSeen:       w.LastSeen,
		DetectionCount: w.DetectionCount,
		Active:         w.Active,
	}
}

type Alert struct {
	ID        int64 `gorm:"primaryKey"`
	EventID   *int64
	Plate     string    `gorm:"not null"`
	AlertTime time.Time `gorm:"not null"`
	AlertType string
	Message   string
	Resolved  bool
}

func (Alert) TableName() string { return "alerts" }

func (a Alert) toDomain() lpr.Alert {
	return lpr.Alert{
		ID:        a.ID,
		EventID:   a.EventID,
		Plate:     a.Plate,
		Timestamp: a.AlertTime,
		AlertType: a.AlertType,
		Message:   a.Message,
		Resolved:  a.Resolved,
	}
}

type DeletedEvent struct {
	ID            int64     `gorm:"primaryKey"`
	OriginalID    int64     `gorm:"not null"`
	Plate         string    `gorm:"not null"`
	EventTime     time.Time `gorm:"not null"`
	DeletedAt     time.Time `gorm:"not null"`
	DeletedReason string
	Snapshot      datatypes.JSON
}

func (DeletedEvent) TableName() string { return "deleted_events" }

func (d DeletedEvent) toDomain() lpr.Tombstone {
	return lpr.Tombstone{
		ID:            d.ID,
		OriginalID:    d.OriginalID,
		Plate:         d.Plate,
		Timestamp:     d.EventTime,
		DeletedAt:     d.DeletedAt,
		DeletedReason: d.DeletedReason,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// utc normalizes bound timestamps so they compare consistently on stores
// that keep them as text.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
