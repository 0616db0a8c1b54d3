package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"lpr-service/internal/artifacts"
	"lpr-service/internal/config"
	"lpr-service/internal/db"
	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/repository"
)

const testConfirmToken = "YES_DELETE_ALL"

type testEnv struct {
	svc      *LPRService
	recorder *Recorder
	repo     *repository.LPRRepository
	db       *gorm.DB
	fs       afero.Fs
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb, err := db.OpenAndMigrate(config.DBConfig{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "lpr_service.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := repository.NewLPRRepository(gdb)
	log := zerolog.Nop()
	recorder := NewRecorder(repo, RecorderConfig{CooldownFrames: 30, MaxEntries: 1000, EvictAfterWindows: 10}, log)
	recorder.now = clock

	mem := afero.NewMemMapFs()
	svc := NewLPRService(repo, recorder, artifacts.NewStore(mem), testConfirmToken, log)
	svc.now = clock

	return &testEnv{svc: svc, recorder: recorder, repo: repo, db: gdb, fs: mem, now: now}
}

func (e *testEnv) record(t *testing.T, plate string, frame int64) lpr.RecordResult {
	t.Helper()
	res, err := e.svc.RecordObservation(context.Background(), lpr.Observation{
		Plate:      plate,
		FrameIndex: frame,
		Confidence: 0.9,
		Source:     "cam-1",
	})
	if err != nil {
		t.Fatalf("record %s@%d: %v", plate, frame, err)
	}
	return res
}

func (e *testEnv) recordAt(t *testing.T, plate string, frame int64, at time.Time, confidence float64) lpr.RecordResult {
	t.Helper()
	res, err := e.svc.RecordObservation(context.Background(), lpr.Observation{
		Plate:      plate,
		FrameIndex: frame,
		Confidence: confidence,
		Source:     "cam-1",
		ObservedAt: at,
	})
	if err != nil {
		t.Fatalf("record %s@%d: %v", plate, frame, err)
	}
	return res
}
