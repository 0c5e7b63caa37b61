//go:build integration

package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"notesync/internal/notes/models"
	"notesync/internal/platform/config"
	"notesync/pkg/testutil/containers"
)

type KafkaFeedSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaFeedSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaFeedSuite))
}

func (s *KafkaFeedSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaFeedSuite) TestCreatesTopicAndDeliversChanges() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.KafkaConfig{
		Brokers: s.redpanda.Brokers,
		Topic:   "notes.changes." + uuid.NewString(),
		Group:   "notesync-test-" + uuid.NewString(),
	}
	feed, err := NewKafka(ctx, cfg)
	s.Require().NoError(err)
	defer feed.Close()

	go func() { _ = feed.Run(ctx) }()
	sub := feed.Subscribe()

	// The group starts at the log end once partitions are assigned, so keep
	// publishing until the consumer has joined.
	noteID := uuid.NewString()
	s.Require().Eventually(func() bool {
		if err := feed.Publish(ctx, models.Change{Kind: models.ChangeUpdated, NoteID: noteID, At: 3}); err != nil {
			return false
		}
		select {
		case got := <-sub.C():
			return got.NoteID == noteID
		case <-time.After(500 * time.Millisecond):
			return false
		}
	}, 30*time.Second, 100*time.Millisecond)
}

func (s *KafkaFeedSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()
	cfg := config.KafkaConfig{
		Brokers: s.redpanda.Brokers,
		Topic:   "notes.changes." + uuid.NewString(),
		Group:   "notesync-test-" + uuid.NewString(),
	}

	first, err := NewKafka(ctx, cfg)
	s.Require().NoError(err)
	defer first.Close()

	second, err := NewKafka(ctx, cfg)
	s.Require().NoError(err)
	defer second.Close()
}

func (s *KafkaFeedSuite) TestRequiresBrokers() {
	_, err := NewKafka(context.Background(), config.KafkaConfig{Topic: "t"})
	s.Error(err)
}
