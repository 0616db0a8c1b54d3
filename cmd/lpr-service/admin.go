package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"lpr-service/internal/domain/lpr"
)

func watchlistCommand() *cli.Command {
	return &cli.Command{
		Name:  "watchlist",
		Usage: "Manage the plate watchlist",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a plate to the watchlist",
				Flags: []cli.Flag{
					plateFlag(),
					&cli.StringFlag{Name: "reason", Usage: "why the plate is watched"},
					&cli.StringFlag{Name: "alert-type", Value: "warning", Usage: "alert category"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					entry, err := a.svc.AddWatchlistEntry(ctx, c.String("plate"), c.String("reason"), c.String("alert-type"))
					if err != nil {
						return err
					}
					return printJSON(entry)
				}),
			},
			{
				Name:  "remove",
				Usage: "Delete every watchlist entry for a plate",
				Flags: []cli.Flag{plateFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if err := a.svc.RemoveWatchlistEntry(ctx, c.String("plate")); err != nil {
						return err
					}
					fmt.Printf("removed %s\n", c.String("plate"))
					return nil
				}),
			},
			{
				Name:  "deactivate",
				Usage: "Stop matching a plate but keep its history",
				Flags: []cli.Flag{plateFlag()},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					if err := a.svc.DeactivateWatchlistEntry(ctx, c.String("plate")); err != nil {
						return err
					}
					fmt.Printf("deactivated %s\n", c.String("plate"))
					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "List watchlist entries",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "all", Usage: "include inactive entries"}},
				Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
					return printJSON(a.svc.ListWatchlist(ctx, !c.Bool("all")))
				}),
			},
		},
	}
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Bulk delete events by plate, age or confidence, or wipe all events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "plate", Usage: "delete events for this plate"},
			&cli.BoolFlag{Name: "keep-latest", Usage: "with --plate, keep the most recent event"},
			&cli.IntFlag{Name: "older-than-days", Usage: "delete events older than N days"},
			&cli.FloatFlag{Name: "below-confidence", Usage: "delete events with confidence below the threshold"},
			&cli.BoolFlag{Name: "all", Usage: "delete every event; requires --confirm"},
			&cli.StringFlag{Name: "confirm", Usage: "confirmation token for --all"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			var (
				n   int64
				err error
			)
			if c.Bool("all") {
				n, err = a.svc.DeleteAllEvents(ctx, c.String("confirm"))
			} else {
				p := lpr.Purge{Plate: c.String("plate"), KeepLatest: c.Bool("keep-latest")}
				if c.IsSet("older-than-days") {
					days := c.Int("older-than-days")
					p.OlderThanDays = &days
				}
				if c.IsSet("below-confidence") {
					threshold := c.Float("below-confidence")
					p.BelowConfidence = &threshold
				}
				n, err = a.svc.Purge(ctx, p)
			}
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d events\n", n)
			return nil
		}),
	}
}

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Restore a deleted event from its tombstone, or list tombstones",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "id", Usage: "tombstone id to restore"},
			&cli.BoolFlag{Name: "list", Usage: "list tombstones instead"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			if c.Bool("list") {
				return printJSON(a.svc.ListTombstones(ctx, 0))
			}
			if !c.IsSet("id") {
				return errors.New("--id or --list is required")
			}
			eventID, err := a.svc.Restore(ctx, c.Int64("id"))
			if err != nil {
				return err
			}
			fmt.Printf("restored as event %d\n", eventID)
			return nil
		}),
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print detection statistics",
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			return printJSON(a.svc.Statistics(ctx))
		}),
	}
}

func plateFlag() cli.Flag {
	return &cli.StringFlag{Name: "plate", Required: true, Usage: "plate text"}
}

func withApp(fn func(ctx context.Context, c *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		a, err := newApp(c.String("config"))
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, c, a)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
