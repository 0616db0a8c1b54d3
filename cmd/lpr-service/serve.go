package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	lprhttp "lpr-service/internal/http"
	"lpr-service/internal/ingest"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the optional Kafka observation consumer",
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServe(ctx, c.String("config"))
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := lprhttp.NewRouter(lprhttp.NewHandler(a.svc, a.log), a.cfg, a.log)
	srv := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 2)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("db_driver", a.cfg.DB.Driver).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	consumerDone := make(chan struct{})
	if a.cfg.Ingest.Kafka.Enabled {
		kcfg := a.cfg.Ingest.Kafka
		consumer := ingest.NewConsumer(ingest.NewKafkaReader(kcfg), a.svc, a.cfg.Ingest.Source, a.log)
		go func() {
			defer close(consumerDone)
			a.log.Info().Strs("brokers", kcfg.Brokers).Str("topic", kcfg.Topic).Msg("kafka consumer started")
			if err := consumer.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	} else {
		close(consumerDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("shutting down after failure")
			runErr = err
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	<-consumerDone
	return runErr
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := newApp(c.String("config"))
			if err != nil {
				return err
			}
			defer a.Close()
			a.log.Info().Str("db_driver", a.cfg.DB.Driver).Msg("migrations applied")
			return nil
		},
	}
}
