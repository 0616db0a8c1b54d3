package lpr

import (
	"time"
)

// Observation is a single plate reading emitted by the upstream recognizer.
type Observation struct {
	Plate      string    `json:"plate"`
	FrameIndex int64     `json:"frame_index"`
	Confidence float64   `json:"confidence"`
	ImagePath  string    `json:"image_path,omitempty"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

type RecordResult struct {
	EventID        int64 `json:"event_id,omitempty"`
	Accepted       bool  `json:"accepted"`
	AlertTriggered bool  `json:"alert_triggered"`
	AlertID        int64 `json:"alert_id,omitempty"`
}

type DetectionEvent struct {
	ID             int64     `json:"id"`
	Plate          string    `json:"plate"`
	Timestamp      time.Time `json:"timestamp"`
	FrameIndex     int64     `json:"frame_index"`
	Confidence     float64   `json:"confidence"`
	ImagePath      *string   `json:"image_path,omitempty"`
	Source         string    `json:"source"`
	Watchlisted    bool      `json:"is_watchlist"`
	AlertTriggered bool      `json:"alert_triggered"`
}

type WatchlistEntry struct {
	ID             int64      `json:"id"`
	Plate          string     `json:"plate"`
	Reason         string     `json:"reason"`
	AlertType      string     `json:"alert_type"`
	AddedAt        time.Time  `json:"added_at"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	DetectionCount int64      `json:"detection_count"`
	Active         bool       `json:"active"`
}

type Alert struct {
	ID        int64     `json:"id"`
	EventID   *int64    `json:"event_id,omitempty"`
	Plate     string    `json:"plate"`
	Timestamp time.Time `json:"timestamp"`
	AlertType string    `json:"alert_type"`
	Message   string    `json:"message"`
	Resolved  bool      `json:"resolved"`
}

type Tombstone struct {
	ID            int64     `json:"id"`
	OriginalID    int64     `json:"original_id"`
	Plate         string    `json:"plate"`
	Timestamp     time.Time `json:"timestamp"`
	DeletedAt     time.Time `json:"deleted_at"`
	DeletedReason string    `json:"deleted_reason"`
}

type SimilarPlate struct {
	Plate      string  `json:"plate"`
	Similarity float64 `json:"similarity"`
}

type DuplicateGroup struct {
	Plate     string    `json:"plate"`
	Count     int64     `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type PlateCount struct {
	Plate string `json:"plate"`
	Count int64  `json:"count"`
}

type Statistics struct {
	Total            int64        `json:"total"`
	UniquePlates     int64        `json:"unique_plates"`
	WatchlistActive  int64        `json:"watchlist_count"`
	UnresolvedAlerts int64        `json:"alerts_pending"`
	Today            int64        `json:"today"`
	TopPlates        []PlateCount `json:"top_plates"`
}

// Purge selects one of the bulk deletion policies. Exactly one of the
// criteria must be set.
type Purge struct {
	Plate           string   `json:"plate,omitempty"`
	KeepLatest      bool     `json:"keep_latest,omitempty"`
	OlderThanDays   *int     `json:"older_than_days,omitempty"`
	BelowConfidence *float64 `json:"below_confidence,omitempty"`
}
