package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lpr-service/internal/dedup"
	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/metrics"
	"lpr-service/internal/repository"
)

const (
	defaultMaxSources = 64
	maxSourceLen      = 64
	invalidSource     = "invalid"
)

type RecorderConfig struct {
	CooldownFrames    int64
	MaxEntries        int
	EvictAfterWindows int64
	DefaultSource     string
	// MaxSources caps the distinct source labels, and with them the gates
	// and metric series kept in memory.
	MaxSources int
}

// Recorder is the single entry point for upstream producers. Frame counters
// are per stream, so each source label gets its own cooldown gate.
type Recorder struct {
	repo *repository.LPRRepository
	cfg  RecorderConfig
	log  zerolog.Logger
	now  func() time.Time

	mu    sync.Mutex
	gates map[string]*dedup.Gate
}

func NewRecorder(repo *repository.LPRRepository, cfg RecorderConfig, log zerolog.Logger) *Recorder {
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = "webcam"
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = defaultMaxSources
	}
	return &Recorder{
		repo:  repo,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		gates: make(map[string]*dedup.Gate),
	}
}

func (r *Recorder) gate(source string) (*dedup.Gate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[source]
	if !ok {
		if len(r.gates) >= r.cfg.MaxSources {
			return nil, fmt.Errorf("%w: source limit of %d reached, %q not accepted", ErrInvalidInput, r.cfg.MaxSources, source)
		}
		g = dedup.NewGate(r.cfg.CooldownFrames, dedup.WithEviction(r.cfg.MaxEntries, r.cfg.EvictAfterWindows))
		r.gates[source] = g
	}
	return g, nil
}

func (r *Recorder) Record(ctx context.Context, obs lpr.Observation) (lpr.RecordResult, error) {
	plate := strings.TrimSpace(obs.Plate)
	source := strings.TrimSpace(obs.Source)
	if source == "" {
		source = r.cfg.DefaultSource
	}

	if !validSource(source) {
		metrics.RecordObservation(invalidSource, "rejected")
		return lpr.RecordResult{}, fmt.Errorf("%w: source must be 1-%d characters of letters, digits, '.', '_', ':' or '-'", ErrInvalidInput, maxSourceLen)
	}
	if err := validateObservation(plate, obs); err != nil {
		metrics.RecordObservation(source, "rejected")
		return lpr.RecordResult{}, err
	}

	g, err := r.gate(source)
	if err != nil {
		metrics.RecordObservation(invalidSource, "rejected")
		return lpr.RecordResult{}, err
	}
	if !g.Accept(plate, obs.FrameIndex) {
		metrics.RecordObservation(source, "suppressed")
		r.log.Debug().
			Str("plate", plate).
			Str("source", source).
			Int64("frame", obs.FrameIndex).
			Msg("observation suppressed by cooldown")
		return lpr.RecordResult{}, nil
	}
	metrics.DedupEntries.WithLabelValues(source).Set(float64(g.Len()))

	at := obs.ObservedAt
	if at.IsZero() {
		at = r.now()
	}
	at = at.UTC().Truncate(time.Second)

	event := lpr.DetectionEvent{
		Plate:      plate,
		Timestamp:  at,
		FrameIndex: obs.FrameIndex,
		Confidence: obs.Confidence,
		Source:     source,
	}
	if obs.ImagePath != "" {
		img := obs.ImagePath
		event.ImagePath = &img
	}

	var (
		result lpr.RecordResult
		entry  *lpr.WatchlistEntry
	)
	started := time.Now()
	err = r.repo.Transaction(ctx, func(tx *repository.LPRRepository) error {
		matched, found, err := NewWatchlistMatcher(tx).Check(ctx, plate)
		if err != nil {
			return err
		}
		event.Watchlisted = matched
		event.AlertTriggered = matched

		if err := tx.CreateEvent(ctx, &event); err != nil {
			return storageError("create event", err)
		}
		result = lpr.RecordResult{EventID: event.ID, Accepted: true}

		if !matched {
			return nil
		}
		alertID, err := NewAlertEmitter(tx).Emit(ctx, plate, found, event.ID, at)
		if err != nil {
			return err
		}
		entry = found
		result.AlertTriggered = true
		result.AlertID = alertID
		return nil
	})
	metrics.RecordDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		g.Forget(plate, obs.FrameIndex)
		metrics.RecordObservation(source, "failed")
		r.log.Error().
			Err(err).
			Str("plate", plate).
			Str("source", source).
			Int64("frame", obs.FrameIndex).
			Msg("failed to record observation")
		return lpr.RecordResult{}, fmt.Errorf("failed to record observation: %w", err)
	}

	metrics.RecordObservation(source, "accepted")
	r.log.Info().
		Int64("event_id", result.EventID).
		Str("plate", plate).
		Str("source", source).
		Int64("frame", obs.FrameIndex).
		Float64("confidence", obs.Confidence).
		Bool("watchlist", result.AlertTriggered).
		Msg("saved detection event")

	if entry != nil {
		metrics.AlertsTotal.WithLabelValues(entry.AlertType).Inc()
		r.log.Warn().
			Int64("alert_id", result.AlertID).
			Int64("event_id", result.EventID).
			Str("plate", plate).
			Str("alert_type", entry.AlertType).
			Str("reason", entry.Reason).
			Msg("watchlist plate detected")
	}
	return result, nil
}

func validSource(source string) bool {
	if source == "" || len(source) > maxSourceLen {
		return false
	}
	for _, ch := range source {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '.', ch == '_', ch == ':', ch == '-':
		default:
			return false
		}
	}
	return true
}

func validateObservation(plate string, obs lpr.Observation) error {
	if plate == "" {
		return fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if obs.FrameIndex < 0 {
		return fmt.Errorf("%w: frame_index must not be negative", ErrInvalidInput)
	}
	if obs.Confidence < 0 || math.IsNaN(obs.Confidence) {
		return fmt.Errorf("%w: confidence must not be negative", ErrInvalidInput)
	}
	return nil
}
