package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"lpr-service/internal/artifacts"
	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/repository"
)

const (
	defaultRecentLimit = 10
	defaultPageSize    = 20
	maxPageSize        = 100
)

// LPRService exposes the pipeline and its persistence operations to the API
// and command-line layers. Listing and reporting methods degrade to empty
// results on storage failure; mutating methods return precise errors.
type LPRService struct {
	repo         *repository.LPRRepository
	recorder     *Recorder
	artifacts    *artifacts.Store
	confirmToken string
	log          zerolog.Logger
	now          func() time.Time
}

func NewLPRService(
	repo *repository.LPRRepository,
	recorder *Recorder,
	store *artifacts.Store,
	confirmToken string,
	log zerolog.Logger,
) *LPRService {
	return &LPRService{
		repo:         repo,
		recorder:     recorder,
		artifacts:    store,
		confirmToken: confirmToken,
		log:          log,
		now:          time.Now,
	}
}

func (s *LPRService) RecordObservation(ctx context.Context, obs lpr.Observation) (lpr.RecordResult, error) {
	return s.recorder.Record(ctx, obs)
}

func (s *LPRService) GetEvent(ctx context.Context, id int64) (lpr.DetectionEvent, error) {
	event, err := s.repo.GetEvent(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return lpr.DetectionEvent{}, fmt.Errorf("%w: event %d", ErrNotFound, id)
	}
	if err != nil {
		return lpr.DetectionEvent{}, storageError("get event", err)
	}
	return event, nil
}

// OpenEventImage opens the stored crop for an event. The caller closes the
// file.
func (s *LPRService) OpenEventImage(ctx context.Context, id int64) (afero.File, error) {
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.ImagePath == nil || !s.artifacts.Exists(*event.ImagePath) {
		return nil, fmt.Errorf("%w: image for event %d", ErrNotFound, id)
	}
	f, err := s.artifacts.Open(*event.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("open image for event %d: %w", id, err)
	}
	return f, nil
}

type EventPage struct {
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Events []lpr.DetectionEvent `json:"events"`
}

func (s *LPRService) FindEvents(ctx context.Context, limit, offset int) EventPage {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	page := EventPage{Limit: limit, Offset: offset, Events: []lpr.DetectionEvent{}}

	total, err := s.repo.CountEvents(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count events")
		return page
	}
	events, err := s.repo.FindEvents(ctx, limit, offset)
	if err != nil {
		s.log.Error().Err(err).Int("limit", limit).Int("offset", offset).Msg("failed to find events")
		return page
	}
	page.Total = total
	page.Events = events
	return page
}

func (s *LPRService) RecentEvents(ctx context.Context, limit int) []lpr.DetectionEvent {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	events, err := s.repo.FindEvents(ctx, limit, 0)
	if err != nil {
		s.log.Error().Err(err).Int("limit", limit).Msg("failed to load recent events")
		return []lpr.DetectionEvent{}
	}
	return events
}

func (s *LPRService) SearchEvents(ctx context.Context, substring string) ([]lpr.DetectionEvent, error) {
	substring = strings.TrimSpace(substring)
	if substring == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", ErrInvalidInput)
	}
	events, err := s.repo.SearchEvents(ctx, substring)
	if err != nil {
		s.log.Error().Err(err).Str("query", substring).Msg("failed to search events")
		return []lpr.DetectionEvent{}, nil
	}
	return events, nil
}

// EventsOnDate returns the events recorded on the calendar day of date,
// interpreted in date's location.
func (s *LPRService) EventsOnDate(ctx context.Context, date time.Time) []lpr.DetectionEvent {
	from, to := dayBounds(date)
	events, err := s.repo.EventsBetween(ctx, from, to)
	if err != nil {
		s.log.Error().Err(err).Time("date", from).Msg("failed to load events for date")
		return []lpr.DetectionEvent{}
	}
	return events
}

func (s *LPRService) AddWatchlistEntry(ctx context.Context, plate, reason, alertType string) (lpr.WatchlistEntry, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return lpr.WatchlistEntry{}, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	alertType = strings.TrimSpace(alertType)
	if alertType == "" {
		alertType = defaultAlertType
	}

	entry := lpr.WatchlistEntry{
		Plate:     plate,
		Reason:    strings.TrimSpace(reason),
		AlertType: alertType,
		AddedAt:   s.now().UTC().Truncate(time.Second),
	}
	if err := s.repo.CreateWatchlistEntry(ctx, &entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return lpr.WatchlistEntry{}, fmt.Errorf("%w: plate %s is already on the watchlist", ErrAlreadyExists, plate)
		}
		s.log.Error().Err(err).Str("plate", plate).Msg("failed to add watchlist entry")
		return lpr.WatchlistEntry{}, storageError("add watchlist entry", err)
	}

	s.log.Info().
		Int64("watchlist_id", entry.ID).
		Str("plate", plate).
		Str("alert_type", alertType).
		Msg("added plate to watchlist")
	return entry, nil
}

// RemoveWatchlistEntry hard-deletes every watchlist row for plate.
func (s *LPRService) RemoveWatchlistEntry(ctx context.Context, plate string) error {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	n, err := s.repo.DeleteWatchlistEntries(ctx, plate)
	if err != nil {
		return storageError("remove watchlist entry", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: plate %s is not on the watchlist", ErrNotFound, plate)
	}
	s.log.Info().Str("plate", plate).Int64("rows", n).Msg("removed plate from watchlist")
	return nil
}

// DeactivateWatchlistEntry keeps the entry and its statistics but stops
// matching it.
func (s *LPRService) DeactivateWatchlistEntry(ctx context.Context, plate string) error {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	n, err := s.repo.DeactivateWatchlistEntry(ctx, plate)
	if err != nil {
		return storageError("deactivate watchlist entry", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no active watchlist entry for %s", ErrNotFound, plate)
	}
	s.log.Info().Str("plate", plate).Msg("deactivated watchlist entry")
	return nil
}

func (s *LPRService) ListWatchlist(ctx context.Context, activeOnly bool) []lpr.WatchlistEntry {
	entries, err := s.repo.ListWatchlist(ctx, activeOnly)
	if err != nil {
		s.log.Error().Err(err).Bool("active_only", activeOnly).Msg("failed to list watchlist")
		return []lpr.WatchlistEntry{}
	}
	return entries
}

func (s *LPRService) ListAlerts(ctx context.Context, unresolvedOnly bool) []lpr.Alert {
	alerts, err := s.repo.ListAlerts(ctx, unresolvedOnly)
	if err != nil {
		s.log.Error().Err(err).Bool("unresolved_only", unresolvedOnly).Msg("failed to list alerts")
		return []lpr.Alert{}
	}
	return alerts
}

func (s *LPRService) ResolveAlert(ctx context.Context, id int64) error {
	err := s.repo.ResolveAlert(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: alert %d", ErrNotFound, id)
	}
	if err != nil {
		return storageError("resolve alert", err)
	}
	s.log.Info().Int64("alert_id", id).Msg("alert resolved")
	return nil
}

func dayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return from, from.AddDate(0, 0, 1)
}
