package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dedup.CooldownFrames != 30 {
		t.Fatalf("expected cooldown 30, got %d", cfg.Dedup.CooldownFrames)
	}
	if cfg.Admin.ConfirmDeleteToken != "YES_DELETE_ALL" {
		t.Fatalf("unexpected confirm token %q", cfg.Admin.ConfirmDeleteToken)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Fatalf("unexpected driver %q", cfg.DB.Driver)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("db:\n  driver: postgres\n  dsn: postgres://localhost/lpr\ndedup:\n  cooldown_frames: 45\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LPR_DEDUP_COOLDOWN_FRAMES", "60")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.DSN != "postgres://localhost/lpr" {
		t.Fatalf("file values not applied: %+v", cfg.DB)
	}
	if cfg.Dedup.CooldownFrames != 60 {
		t.Fatalf("env override not applied, got %d", cfg.Dedup.CooldownFrames)
	}
}

func TestValidateRejectsAuthWithoutSecret(t *testing.T) {
	t.Setenv("LPR_AUTH_ENABLED", "true")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error when auth enabled without secret")
	}
}
