package changefeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"notesync/internal/notes/models"
	"notesync/internal/platform/config"
	"notesync/pkg/platform/sentinel"
)

const backendKafka = "kafka"

// Kafka shares changes between replicas over a topic. Each replica consumes
// in its own group from the end of the log, so it sees every change written
// after it started and none of the history.
type Kafka struct {
	*Hub
	client *kgo.Client
	topic  string
	opts   options
}

// NewKafka connects to the brokers and creates the topic when missing.
func NewKafka(ctx context.Context, cfg config.KafkaConfig, opts ...Option) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka feed: KAFKA_BROKERS is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka feed: topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka feed: new client: %w", err)
	}

	if err := ensureTopic(ctx, kadm.NewClient(client), cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Kafka{
		Hub:    NewHub(),
		client: client,
		topic:  cfg.Topic,
		opts:   newOptions(opts),
	}, nil
}

func ensureTopic(ctx context.Context, admin *kadm.Client, topic string) error {
	resp, err := admin.CreateTopics(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("kafka feed: create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka feed: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (k *Kafka) Publish(ctx context.Context, change models.Change) error {
	if k.Closed() {
		return ErrClosed
	}
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	record := &kgo.Record{Key: []byte(change.NoteID), Value: payload}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		k.opts.metrics.IncrementFeedErrors(backendKafka)
		return fmt.Errorf("kafka feed: produce: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (k *Kafka) Run(ctx context.Context) error {
	k.opts.logger.InfoContext(ctx, "change feed consuming", "backend", backendKafka, "topic", k.topic)
	for {
		fetches := k.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			k.opts.metrics.IncrementFeedErrors(backendKafka)
			k.opts.logger.WarnContext(ctx, "kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			change, err := decodeChange(record.Value)
			if err != nil {
				k.opts.metrics.IncrementFeedErrors(backendKafka)
				k.opts.logger.WarnContext(ctx, "dropping malformed change",
					"backend", backendKafka,
					"offset", record.Offset,
					"error", err,
				)
				return
			}
			k.Broadcast(change)
		})
	}
}

func (k *Kafka) Close() error {
	k.client.Close()
	k.Hub.Close()
	return nil
}
