package changefeed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"notesync/internal/notes/models"
	"notesync/pkg/platform/sentinel"
)

const backendRedis = "redis"

// Redis shares changes between replicas over a pub/sub channel. A replica
// receives its own publications back, so Publish does not touch the hub.
type Redis struct {
	*Hub
	client  redis.UniversalClient
	channel string
	ready   chan struct{}
	opts    options
}

// NewRedis constructs a feed on the given pub/sub channel.
func NewRedis(client redis.UniversalClient, channel string, opts ...Option) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis feed: client is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("redis feed: channel is required")
	}
	return &Redis{
		Hub:     NewHub(),
		client:  client,
		channel: channel,
		ready:   make(chan struct{}),
		opts:    newOptions(opts),
	}, nil
}

func (r *Redis) Publish(ctx context.Context, change models.Change) error {
	if r.Closed() {
		return ErrClosed
	}
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.opts.metrics.IncrementFeedErrors(backendRedis)
		return fmt.Errorf("redis feed: publish: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Ready is closed once the channel subscription is confirmed by the server.
func (r *Redis) Ready() <-chan struct{} {
	return r.ready
}

func (r *Redis) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		r.opts.metrics.IncrementFeedErrors(backendRedis)
		return fmt.Errorf("redis feed: subscribe %s: %w", r.channel, err)
	}
	close(r.ready)
	r.opts.logger.InfoContext(ctx, "change feed subscribed", "backend", backendRedis, "channel", r.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			change, err := decodeChange([]byte(msg.Payload))
			if err != nil {
				r.opts.metrics.IncrementFeedErrors(backendRedis)
				r.opts.logger.WarnContext(ctx, "dropping malformed change", "backend", backendRedis, "error", err)
				continue
			}
			r.Broadcast(change)
		}
	}
}

func (r *Redis) Close() error {
	r.Hub.Close()
	return nil
}
