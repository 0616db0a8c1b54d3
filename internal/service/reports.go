package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/similarity"
)

const (
	DefaultSimilarityThreshold = 0.8
	DefaultDuplicateWindow     = 5
	topPlatesLimit             = 5
)

// FindSimilar scores every distinct recorded plate against plate and returns
// those at or above threshold, best first. The query text itself is
// excluded even when it has been recorded.
func (s *LPRService) FindSimilar(ctx context.Context, plate string, threshold float64) ([]lpr.SimilarPlate, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}

	plates, err := s.repo.DistinctPlates(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("plate", plate).Msg("failed to load plates for similarity search")
		return []lpr.SimilarPlate{}, nil
	}

	result := make([]lpr.SimilarPlate, 0)
	for _, existing := range plates {
		if existing == plate {
			continue
		}
		score := similarity.Ratio(plate, existing)
		if score >= threshold {
			result = append(result, lpr.SimilarPlate{Plate: existing, Similarity: score})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Similarity > result[j].Similarity
	})
	return result, nil
}

// FindDuplicates groups the events of the trailing window by plate and keeps
// plates seen more than once, most frequent first.
func (s *LPRService) FindDuplicates(ctx context.Context, windowMinutes int) ([]lpr.DuplicateGroup, error) {
	if windowMinutes <= 0 {
		return nil, fmt.Errorf("%w: window must be positive", ErrInvalidInput)
	}
	since := s.now().UTC().Truncate(time.Second).Add(-time.Duration(windowMinutes) * time.Minute)

	sightings, err := s.repo.PlateSightingsSince(ctx, since)
	if err != nil {
		s.log.Error().Err(err).Int("window_minutes", windowMinutes).Msg("failed to load recent sightings")
		return []lpr.DuplicateGroup{}, nil
	}

	index := make(map[string]int)
	groups := make([]lpr.DuplicateGroup, 0)
	for _, ev := range sightings {
		i, ok := index[ev.Plate]
		if !ok {
			index[ev.Plate] = len(groups)
			groups = append(groups, lpr.DuplicateGroup{Plate: ev.Plate, Count: 1, FirstSeen: ev.Timestamp, LastSeen: ev.Timestamp})
			continue
		}
		g := &groups[i]
		g.Count++
		if ev.Timestamp.Before(g.FirstSeen) {
			g.FirstSeen = ev.Timestamp
		}
		if ev.Timestamp.After(g.LastSeen) {
			g.LastSeen = ev.Timestamp
		}
	}

	result := make([]lpr.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		if g.Count > 1 {
			result = append(result, g)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	return result, nil
}

// Statistics aggregates dashboard counters. Any storage failure yields the
// zero value.
func (s *LPRService) Statistics(ctx context.Context) lpr.Statistics {
	empty := lpr.Statistics{TopPlates: []lpr.PlateCount{}}
	var stats lpr.Statistics
	var err error

	if stats.Total, err = s.repo.CountEvents(ctx); err != nil {
		return s.statsFailed(err, empty)
	}
	if stats.UniquePlates, err = s.repo.CountDistinctPlates(ctx); err != nil {
		return s.statsFailed(err, empty)
	}
	if stats.WatchlistActive, err = s.repo.CountActiveWatchlist(ctx); err != nil {
		return s.statsFailed(err, empty)
	}
	if stats.UnresolvedAlerts, err = s.repo.CountUnresolvedAlerts(ctx); err != nil {
		return s.statsFailed(err, empty)
	}
	from, to := dayBounds(s.now())
	if stats.Today, err = s.repo.CountEventsBetween(ctx, from, to); err != nil {
		return s.statsFailed(err, empty)
	}
	if stats.TopPlates, err = s.repo.TopPlates(ctx, topPlatesLimit); err != nil {
		return s.statsFailed(err, empty)
	}
	if stats.TopPlates == nil {
		stats.TopPlates = []lpr.PlateCount{}
	}
	return stats
}

func (s *LPRService) statsFailed(err error, empty lpr.Statistics) lpr.Statistics {
	s.log.Error().Err(err).Msg("failed to compute statistics")
	return empty
}
