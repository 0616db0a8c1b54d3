package db

import (
	"fmt"

	"gorm.io/gorm"
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS detection_events (
		id              BIGSERIAL PRIMARY KEY,
		plate           TEXT NOT NULL,
		event_time      TIMESTAMPTZ NOT NULL,
		frame_index     BIGINT NOT NULL DEFAULT 0,
		confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
		image_path      TEXT,
		source          TEXT NOT NULL DEFAULT '',
		is_watchlist    BOOLEAN NOT NULL DEFAULT FALSE,
		alert_triggered BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_plate ON detection_events(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_event_time ON detection_events(event_time);`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		id              BIGSERIAL PRIMARY KEY,
		plate           TEXT NOT NULL,
		reason          TEXT NOT NULL DEFAULT '',
		alert_type      TEXT NOT NULL DEFAULT 'warning',
		added_at        TIMESTAMPTZ NOT NULL,
		last_seen       TIMESTAMPTZ,
		detection_count BIGINT NOT NULL DEFAULT 0,
		active          BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_watchlist_active_plate ON watchlist(plate) WHERE active;`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id          BIGSERIAL PRIMARY KEY,
		event_id    BIGINT,
		plate       TEXT NOT NULL,
		alert_time  TIMESTAMPTZ NOT NULL,
		alert_type  TEXT NOT NULL DEFAULT 'warning',
		message     TEXT NOT NULL DEFAULT '',
		resolved    BOOLEAN NOT NULL DEFAULT FALSE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON alerts(resolved);`,
	`CREATE TABLE IF NOT EXISTS deleted_events (
		id             BIGSERIAL PRIMARY KEY,
		original_id    BIGINT NOT NULL,
		plate          TEXT NOT NULL,
		event_time     TIMESTAMPTZ NOT NULL,
		deleted_at     TIMESTAMPTZ NOT NULL,
		deleted_reason TEXT NOT NULL DEFAULT '',
		snapshot       JSONB
	);`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS detection_events (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		plate           TEXT NOT NULL,
		event_time      DATETIME NOT NULL,
		frame_index     INTEGER NOT NULL DEFAULT 0,
		confidence      REAL NOT NULL DEFAULT 0,
		image_path      TEXT,
		source          TEXT NOT NULL DEFAULT '',
		is_watchlist    BOOLEAN NOT NULL DEFAULT 0,
		alert_triggered BOOLEAN NOT NULL DEFAULT 0,
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_plate ON detection_events(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_event_time ON detection_events(event_time);`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		plate           TEXT NOT NULL,
		reason          TEXT NOT NULL DEFAULT '',
		alert_type      TEXT NOT NULL DEFAULT 'warning',
		added_at        DATETIME NOT NULL,
		last_seen       DATETIME,
		detection_count INTEGER NOT NULL DEFAULT 0,
		active          BOOLEAN NOT NULL DEFAULT 1
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_watchlist_active_plate ON watchlist(plate) WHERE active = 1;`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id    INTEGER,
		plate       TEXT NOT NULL,
		alert_time  DATETIME NOT NULL,
		alert_type  TEXT NOT NULL DEFAULT 'warning',
		message     TEXT NOT NULL DEFAULT '',
		resolved    BOOLEAN NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON alerts(resolved);`,
	`CREATE TABLE IF NOT EXISTS deleted_events (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		original_id    INTEGER NOT NULL,
		plate          TEXT NOT NULL,
		event_time     DATETIME NOT NULL,
		deleted_at     DATETIME NOT NULL,
		deleted_reason TEXT NOT NULL DEFAULT '',
		snapshot       TEXT
	);`,
}

// Migrate creates the schema for the dialect behind db. Statements are
// idempotent, so it is safe to run on every start.
func Migrate(db *gorm.DB) error {
	stmts := sqliteMigrations
	if db.Dialector.Name() == "postgres" {
		stmts = postgresMigrations
	}
	return runMigrations(db, stmts)
}

// runMigrations applies stmts in one transaction; a failing statement leaves
// the schema untouched.
func runMigrations(db *gorm.DB, stmts []string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for i, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
		}
		return nil
	})
}
