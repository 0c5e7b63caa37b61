package main

import (
	"context"
	"fmt"
	"log/slog"

	"notesync/internal/notes/changefeed"
	"notesync/internal/notes/service"
	"notesync/internal/notes/store"
	"notesync/internal/platform/config"
	"notesync/internal/platform/database"
	"notesync/internal/platform/metrics"
	"notesync/internal/platform/redis"
)

func buildStore(ctx context.Context, cfg config.Server) (service.NoteStore, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewInMemory(), func() {}, nil
	case config.StorePostgres:
		db, err := database.OpenPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewPostgres(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return st, func() { _ = db.Close() }, nil
	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewSQLite(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return st, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown NOTES_STORE %q", cfg.Store)
	}
}

// feedBackend is what the server needs from a change feed.
type feedBackend interface {
	service.ChangeFeed
	Run(ctx context.Context) error
	Close() error
}

func buildFeed(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics) (feedBackend, error) {
	opts := []changefeed.Option{changefeed.WithLogger(log), changefeed.WithMetrics(m)}
	switch cfg.Feed {
	case config.FeedLocal:
		return changefeed.NewLocal(), nil
	case config.FeedRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		f, err := changefeed.NewRedis(client.Client, cfg.Redis.Channel, opts...)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &closingFeed{feedBackend: f, close: client.Close}, nil
	case config.FeedKafka:
		return changefeed.NewKafka(ctx, cfg.Kafka, opts...)
	default:
		return nil, fmt.Errorf("unknown NOTES_FEED %q", cfg.Feed)
	}
}

// closingFeed releases the Redis connection pool with the feed.
type closingFeed struct {
	feedBackend
	close func() error
}

func (f *closingFeed) Close() error {
	if err := f.feedBackend.Close(); err != nil {
		return err
	}
	return f.close()
}
