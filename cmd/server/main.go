package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"notesync/internal/notes"
	"notesync/internal/platform/config"
	"notesync/internal/platform/httpserver"
	"notesync/internal/platform/logger"
	"notesync/internal/platform/metrics"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/notes.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("notesync exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	noteStore, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	feed, err := buildFeed(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	// Closing the feed ends open subscriptions, which releases hijacked connections.
	defer feed.Close()

	svc := notes.NewService(noteStore, feed, log, m)
	h := notes.NewHandler(svc, log, m, cfg.WebSocket)

	r := chi.NewRouter()
	r.Get("/healthz", healthz(svc, log))
	r.Handle("/metrics", promhttp.Handler())
	h.Register(r)

	srv := httpserver.New(cfg.Addr, r, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feed.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting notesync",
			"addr", cfg.Addr,
			"store", cfg.Store,
			"feed", cfg.Feed,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
