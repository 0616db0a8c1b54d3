package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/metrics"
	"lpr-service/internal/repository"
)

const restoredSource = "restored"

// DeleteEvent moves an event to the tombstone table. The saved crop is
// removed after the transaction commits; failing to remove it does not undo
// the deletion.
func (s *LPRService) DeleteEvent(ctx context.Context, id int64, reason string) (lpr.Tombstone, error) {
	var (
		tomb  lpr.Tombstone
		image *string
	)
	err := s.repo.Transaction(ctx, func(tx *repository.LPRRepository) error {
		event, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := json.Marshal(event)
		if err != nil {
			return err
		}

		tomb = lpr.Tombstone{
			OriginalID:    event.ID,
			Plate:         event.Plate,
			Timestamp:     event.Timestamp,
			DeletedAt:     s.now().UTC().Truncate(time.Second),
			DeletedReason: strings.TrimSpace(reason),
		}
		if err := tx.CreateTombstone(ctx, &tomb, snapshot); err != nil {
			return err
		}
		if _, err := tx.DeleteEvent(ctx, id); err != nil {
			return err
		}
		image = event.ImagePath
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return lpr.Tombstone{}, fmt.Errorf("%w: event %d", ErrNotFound, id)
	}
	if err != nil {
		s.log.Error().Err(err).Int64("event_id", id).Msg("failed to delete event")
		return lpr.Tombstone{}, storageError("delete event", err)
	}

	if image != nil {
		if err := s.artifacts.Remove(*image); err != nil {
			s.log.Warn().Err(err).Int64("event_id", id).Str("image_path", *image).Msg("failed to remove event image")
		}
	}
	metrics.EventsDeleted.WithLabelValues("single").Inc()
	s.log.Info().
		Int64("event_id", id).
		Int64("tombstone_id", tomb.ID).
		Str("plate", tomb.Plate).
		Str("reason", tomb.DeletedReason).
		Msg("deleted detection event")
	return tomb, nil
}

// Restore recreates an event from a tombstone. Frame index, confidence,
// source and image are not recoverable; the new event gets 0, 0.0,
// "restored" and no image, plus a fresh id.
func (s *LPRService) Restore(ctx context.Context, tombstoneID int64) (int64, error) {
	var eventID int64
	err := s.repo.Transaction(ctx, func(tx *repository.LPRRepository) error {
		tomb, err := tx.GetTombstone(ctx, tombstoneID)
		if err != nil {
			return err
		}
		event := lpr.DetectionEvent{
			Plate:      tomb.Plate,
			Timestamp:  tomb.Timestamp,
			FrameIndex: 0,
			Confidence: 0.0,
			Source:     restoredSource,
		}
		if err := tx.CreateEvent(ctx, &event); err != nil {
			return err
		}
		if err := tx.DeleteTombstone(ctx, tombstoneID); err != nil {
			return err
		}
		eventID = event.ID
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("%w: tombstone %d", ErrNotFound, tombstoneID)
	}
	if err != nil {
		s.log.Error().Err(err).Int64("tombstone_id", tombstoneID).Msg("failed to restore event")
		return 0, storageError("restore event", err)
	}

	s.log.Info().Int64("tombstone_id", tombstoneID).Int64("event_id", eventID).Msg("restored detection event")
	return eventID, nil
}

func (s *LPRService) ListTombstones(ctx context.Context, limit int) []lpr.Tombstone {
	if limit <= 0 {
		limit = maxPageSize
	}
	tombs, err := s.repo.ListTombstones(ctx, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list tombstones")
		return []lpr.Tombstone{}
	}
	return tombs
}

// DeleteByPlate removes events for plate without tombstones. With keepLatest
// the most recent event survives.
func (s *LPRService) DeleteByPlate(ctx context.Context, plate string, keepLatest bool) (int64, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return 0, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	n, err := s.repo.DeleteEventsByPlate(ctx, plate, keepLatest)
	if err != nil {
		return 0, storageError("delete events by plate", err)
	}
	s.logPurge("plate", n, func(e *zerolog.Event) { e.Str("plate", plate).Bool("keep_latest", keepLatest) })
	return n, nil
}

// DeleteOlderThan removes events older than now minus days, without
// tombstones.
func (s *LPRService) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("%w: days must not be negative", ErrInvalidInput)
	}
	cutoff := s.now().UTC().Truncate(time.Second).AddDate(0, 0, -days)
	n, err := s.repo.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, storageError("delete old events", err)
	}
	s.logPurge("age", n, func(e *zerolog.Event) { e.Int("days", days) })
	return n, nil
}

// DeleteBelowConfidence removes events with confidence strictly below
// threshold, without tombstones.
func (s *LPRService) DeleteBelowConfidence(ctx context.Context, threshold float64) (int64, error) {
	if math.IsNaN(threshold) {
		return 0, fmt.Errorf("%w: threshold must be a number", ErrInvalidInput)
	}
	n, err := s.repo.DeleteEventsBelowConfidence(ctx, threshold)
	if err != nil {
		return 0, storageError("delete low-confidence events", err)
	}
	s.logPurge("confidence", n, func(e *zerolog.Event) { e.Float64("threshold", threshold) })
	return n, nil
}

// Purge dispatches to one bulk deletion policy. Exactly one criterion must
// be set.
func (s *LPRService) Purge(ctx context.Context, p lpr.Purge) (int64, error) {
	set := 0
	if strings.TrimSpace(p.Plate) != "" {
		set++
	}
	if p.OlderThanDays != nil {
		set++
	}
	if p.BelowConfidence != nil {
		set++
	}
	if set != 1 {
		return 0, fmt.Errorf("%w: exactly one of plate, older_than_days, below_confidence is required", ErrInvalidInput)
	}

	switch {
	case p.OlderThanDays != nil:
		return s.DeleteOlderThan(ctx, *p.OlderThanDays)
	case p.BelowConfidence != nil:
		return s.DeleteBelowConfidence(ctx, *p.BelowConfidence)
	default:
		return s.DeleteByPlate(ctx, p.Plate, p.KeepLatest)
	}
}

// DeleteAllEvents wipes the events table. The caller must echo the
// configured confirmation token.
func (s *LPRService) DeleteAllEvents(ctx context.Context, token string) (int64, error) {
	if token == "" || token != s.confirmToken {
		return 0, fmt.Errorf("%w: confirmation token required to delete all events", ErrInvalidInput)
	}

	var (
		paths []string
		n     int64
	)
	err := s.repo.Transaction(ctx, func(tx *repository.LPRRepository) error {
		var err error
		if paths, err = tx.ImagePaths(ctx); err != nil {
			return fmt.Errorf("list event images: %w", err)
		}
		n, err = tx.DeleteAllEvents(ctx)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to delete all events")
		return 0, storageError("delete all events", err)
	}
	if failed := s.artifacts.RemoveAll(paths); len(failed) > 0 {
		s.log.Warn().Int("failed", len(failed)).Msg("some event images could not be removed")
	}
	s.logPurge("all", n, nil)
	return n, nil
}

func (s *LPRService) logPurge(policy string, n int64, fields func(*zerolog.Event)) {
	metrics.EventsDeleted.WithLabelValues(policy).Add(float64(n))
	e := s.log.Info().Str("policy", policy).Int64("deleted_count", n)
	if fields != nil {
		fields(e)
	}
	e.Msg("purged detection events")
}
