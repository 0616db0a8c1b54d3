package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"lpr-service/internal/artifacts"
	"lpr-service/internal/config"
	"lpr-service/internal/db"
	"lpr-service/internal/logger"
	"lpr-service/internal/repository"
	"lpr-service/internal/service"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *gorm.DB
	recorder *service.Recorder
	svc      *service.LPRService
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	gdb, err := db.OpenAndMigrate(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := artifacts.NewOSStore()
	if err := store.EnsureDir(cfg.Storage.ImageDir); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Storage.ImageDir).Msg("failed to create image directory")
	}

	repo := repository.NewLPRRepository(gdb)
	recorder := service.NewRecorder(repo, service.RecorderConfig{
		CooldownFrames:    cfg.Dedup.CooldownFrames,
		MaxEntries:        cfg.Dedup.MaxEntries,
		EvictAfterWindows: cfg.Dedup.EvictAfterWindows,
		DefaultSource:     cfg.Ingest.Source,
		MaxSources:        cfg.Dedup.MaxSources,
	}, log)
	svc := service.NewLPRService(repo, recorder, store, cfg.Admin.ConfirmDeleteToken, log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       gdb,
		recorder: recorder,
		svc:      svc,
	}, nil
}

func (a *app) Close() {
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close database")
	}
}
