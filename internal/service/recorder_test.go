package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"lpr-service/internal/db"
	"lpr-service/internal/domain/lpr"
)

func TestRecordWatchlistScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.AddWatchlistEntry(ctx, "51F99999", "stolen", "warning"); err != nil {
		t.Fatalf("add watchlist: %v", err)
	}

	var accepted []lpr.RecordResult
	for _, frame := range []int64{1, 5, 40} {
		res := env.record(t, "51F99999", frame)
		if res.Accepted {
			accepted = append(accepted, res)
		}
	}

	if len(accepted) != 2 {
		t.Fatalf("expected 2 accepted events, got %d", len(accepted))
	}
	for _, res := range accepted {
		if !res.AlertTriggered || res.AlertID == 0 {
			t.Fatalf("expected alert for every accepted watched event: %+v", res)
		}
		ev, err := env.svc.GetEvent(ctx, res.EventID)
		if err != nil {
			t.Fatalf("get event: %v", err)
		}
		if !ev.Watchlisted || !ev.AlertTriggered {
			t.Fatalf("event flags not set: %+v", ev)
		}
	}

	alerts := env.svc.ListAlerts(ctx, true)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	for _, a := range alerts {
		if a.AlertType != "warning" || a.Message != "Watchlist plate detected: stolen" || a.EventID == nil {
			t.Fatalf("unexpected alert: %+v", a)
		}
	}

	entries := env.svc.ListWatchlist(ctx, true)
	if len(entries) != 1 || entries[0].DetectionCount != 2 || entries[0].LastSeen == nil {
		t.Fatalf("unexpected watchlist state: %+v", entries)
	}
}

func TestRecordUnwatchedPlateRaisesNoAlert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.record(t, "29A12345", 1)
	if !res.Accepted || res.AlertTriggered || res.EventID == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	ev, _ := env.svc.GetEvent(ctx, res.EventID)
	if ev.Watchlisted || ev.AlertTriggered {
		t.Fatalf("unwatched event must not be flagged: %+v", ev)
	}
	if alerts := env.svc.ListAlerts(ctx, false); len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %d", len(alerts))
	}
}

func TestRecordSuppressedMintsNoID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.record(t, "29A12345", 100)
	second := env.record(t, "29A12345", 110)
	if second.Accepted || second.EventID != 0 {
		t.Fatalf("repeat inside cooldown must be suppressed: %+v", second)
	}
	third := env.record(t, "29A12345", 131)
	if !third.Accepted || third.EventID <= first.EventID {
		t.Fatalf("expected new monotonic id after cooldown: %+v", third)
	}
	if stats := env.svc.Statistics(ctx); stats.Total != 2 {
		t.Fatalf("expected 2 stored events, got %d", stats.Total)
	}
}

func TestRecordCooldownIsPerSource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.svc.RecordObservation(ctx, lpr.Observation{Plate: "A1", FrameIndex: 10, Source: "cam-1"})
	if err != nil || !a.Accepted {
		t.Fatalf("cam-1: %+v %v", a, err)
	}
	b, err := env.svc.RecordObservation(ctx, lpr.Observation{Plate: "A1", FrameIndex: 10, Source: "cam-2"})
	if err != nil || !b.Accepted {
		t.Fatalf("cam-2 has its own frame counter: %+v %v", b, err)
	}
}

func TestRecordBoundsSourceLabels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	recorder := NewRecorder(env.repo, RecorderConfig{CooldownFrames: 30, MaxSources: 2}, zerolog.Nop())

	for _, source := range []string{"cam-1", "cam-2"} {
		if _, err := recorder.Record(ctx, lpr.Observation{Plate: "A1", FrameIndex: 1, Source: source}); err != nil {
			t.Fatalf("record from %s: %v", source, err)
		}
	}
	if _, err := recorder.Record(ctx, lpr.Observation{Plate: "A1", FrameIndex: 1, Source: "cam-3"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected source limit to reject cam-3, got %v", err)
	}
	if res, err := recorder.Record(ctx, lpr.Observation{Plate: "B2", FrameIndex: 1, Source: "cam-1"}); err != nil || !res.Accepted {
		t.Fatalf("known source must keep working: %+v %v", res, err)
	}

	for _, source := range []string{"cam 1", "cam/1", strings.Repeat("x", 65)} {
		if _, err := recorder.Record(ctx, lpr.Observation{Plate: "A1", FrameIndex: 100, Source: source}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected malformed source %q to be rejected, got %v", source, err)
		}
	}
	if len(recorder.gates) != 2 {
		t.Fatalf("rejected sources must not allocate gates, got %d", len(recorder.gates))
	}
}

func TestRecordValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []lpr.Observation{
		{Plate: "   ", FrameIndex: 1},
		{Plate: "A1", FrameIndex: -1},
		{Plate: "A1", FrameIndex: 1, Confidence: -0.1},
	}
	for _, obs := range cases {
		if _, err := env.svc.RecordObservation(ctx, obs); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", obs, err)
		}
	}
}

func TestRecordStorageFailureLeavesNoPartialWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.AddWatchlistEntry(ctx, "51F99999", "stolen", "warning"); err != nil {
		t.Fatalf("add watchlist: %v", err)
	}
	if err := env.db.Exec("DROP TABLE alerts").Error; err != nil {
		t.Fatalf("drop alerts: %v", err)
	}

	_, err := env.svc.RecordObservation(ctx, lpr.Observation{Plate: "51F99999", FrameIndex: 1, Source: "cam-1"})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if total, _ := env.repo.CountEvents(ctx); total != 0 {
		t.Fatalf("event insert must be rolled back, found %d", total)
	}
	entries := env.svc.ListWatchlist(ctx, true)
	if len(entries) != 1 || entries[0].DetectionCount != 0 {
		t.Fatalf("watchlist must be untouched: %+v", entries)
	}

	if err := db.Migrate(env.db); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
	res := env.record(t, "51F99999", 2)
	if !res.Accepted || !res.AlertTriggered {
		t.Fatalf("failed write must not arm the cooldown: %+v", res)
	}
}
