package db

import (
	"path/filepath"
	"testing"

	"lpr-service/internal/config"
)

func TestOpenAndMigrateIsIdempotent(t *testing.T) {
	cfg := config.DBConfig{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "lpr.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite",
	}
	gdb, err := OpenAndMigrate(cfg)
	if err != nil {
		t.Fatalf("open and migrate: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	for _, table := range []string{"detection_events", "watchlist", "alerts", "deleted_events"} {
		if !gdb.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}

func TestActivePlateUniqueness(t *testing.T) {
	cfg := config.DBConfig{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "lpr.db") + "?_time_format=sqlite",
	}
	gdb, err := OpenAndMigrate(cfg)
	if err != nil {
		t.Fatalf("open and migrate: %v", err)
	}

	insert := `INSERT INTO watchlist (plate, added_at, active) VALUES (?, CURRENT_TIMESTAMP, ?)`
	if err := gdb.Exec(insert, "51F99999", true).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := gdb.Exec(insert, "51F99999", true).Error; err == nil {
		t.Fatalf("expected unique violation for second active entry")
	}
	if err := gdb.Exec(insert, "51F99999", false).Error; err != nil {
		t.Fatalf("inactive duplicate should be allowed: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(config.DBConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	gdb, err := Open(config.DBConfig{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "lpr.db") + "?_time_format=sqlite",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	stmts := []string{
		`CREATE TABLE cameras (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE broken (`,
	}
	if err := runMigrations(gdb, stmts); err == nil {
		t.Fatalf("expected migration error")
	}
	if gdb.Migrator().HasTable("cameras") {
		t.Fatalf("statements before the failure should be rolled back")
	}
}
