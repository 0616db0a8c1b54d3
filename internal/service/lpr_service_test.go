package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAddWatchlistEntryRejectsActiveDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.svc.AddWatchlistEntry(ctx, "51F99999", "stolen", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if entry.ID == 0 || entry.AlertType != "warning" || !entry.Active {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, err := env.svc.AddWatchlistEntry(ctx, "51F99999", "again", "critical"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if entries := env.svc.ListWatchlist(ctx, true); len(entries) != 1 {
		t.Fatalf("expected exactly one active entry, got %d", len(entries))
	}
	if _, err := env.svc.AddWatchlistEntry(ctx, "  ", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank plate, got %v", err)
	}
}

func TestRemoveAndDeactivateWatchlistEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.RemoveWatchlistEntry(ctx, "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := env.svc.AddWatchlistEntry(ctx, "51F99999", "stolen", "warning"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := env.svc.DeactivateWatchlistEntry(ctx, "51F99999"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if res := env.record(t, "51F99999", 1); res.AlertTriggered {
		t.Fatalf("inactive entries must not raise alerts")
	}
	if got := env.svc.ListWatchlist(ctx, false); len(got) != 1 || got[0].Active {
		t.Fatalf("expected one inactive entry, got %+v", got)
	}
	if err := env.svc.DeactivateWatchlistEntry(ctx, "51F99999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second deactivate, got %v", err)
	}
	if err := env.svc.RemoveWatchlistEntry(ctx, "51F99999"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := env.svc.ListWatchlist(ctx, false); len(got) != 0 {
		t.Fatalf("expected empty watchlist, got %+v", got)
	}
}

func TestResolveAlert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.AddWatchlistEntry(ctx, "W1", "wanted", "critical"); err != nil {
		t.Fatalf("add: %v", err)
	}
	res := env.record(t, "W1", 1)
	if err := env.svc.ResolveAlert(ctx, res.AlertID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pending := env.svc.ListAlerts(ctx, true); len(pending) != 0 {
		t.Fatalf("expected no unresolved alerts, got %d", len(pending))
	}
	all := env.svc.ListAlerts(ctx, false)
	if len(all) != 1 || !all[0].Resolved || all[0].AlertType != "critical" {
		t.Fatalf("unexpected alerts: %+v", all)
	}
	if err := env.svc.ResolveAlert(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.recordAt(t, "29A12345", 1, env.now.Add(-2*time.Hour), 0.9)
	env.recordAt(t, "29A99999", 1, env.now.Add(-time.Hour), 0.9)
	env.recordAt(t, "51F11111", 1, env.now.AddDate(0, 0, -1), 0.9)

	recent := env.svc.RecentEvents(ctx, 2)
	if len(recent) != 2 || recent[0].Plate != "29A99999" || recent[1].Plate != "29A12345" {
		t.Fatalf("unexpected recent events: %+v", recent)
	}

	found, err := env.svc.SearchEvents(ctx, "29A")
	if err != nil || len(found) != 2 {
		t.Fatalf("search: %d (%v)", len(found), err)
	}
	if _, err := env.svc.SearchEvents(ctx, " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank query, got %v", err)
	}

	yesterday := env.svc.EventsOnDate(ctx, env.now.AddDate(0, 0, -1))
	if len(yesterday) != 1 || yesterday[0].Plate != "51F11111" {
		t.Fatalf("unexpected events for yesterday: %+v", yesterday)
	}

	page := env.svc.FindEvents(ctx, 2, 2)
	if page.Total != 3 || len(page.Events) != 1 || page.Events[0].Plate != "51F11111" {
		t.Fatalf("unexpected page: %+v", page)
	}
}
