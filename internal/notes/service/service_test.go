package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"notesync/internal/notes/changefeed"
	"notesync/internal/notes/models"
	"notesync/internal/notes/service/mocks"
	"notesync/internal/notes/store"
	"notesync/internal/platform/metrics"
	"notesync/internal/render"
	dErrors "notesync/pkg/domain-errors"
	"notesync/pkg/requestcontext"
)

// fakeClock hands out strictly increasing instants one millisecond apart.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	feed    *changefeed.Local
	metrics *metrics.Metrics
	clock   *fakeClock
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.feed = changefeed.NewLocal()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.clock = &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s.service = New(s.store, s.feed,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithRenderer(render.NewRenderer()),
		WithClock(s.clock.Now),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.Require().NoError(s.feed.Close())
}

func (s *ServiceSuite) TestCreate() {
	sub := s.feed.Subscribe()
	defer sub.Close()

	note, err := s.service.Create(s.ctx)
	s.Require().NoError(err)
	s.NotEmpty(note.ID)
	s.Equal(models.DefaultBody, note.Body)
	s.Equal(note.CreatedAt, note.UpdatedAt)

	stored, err := s.store.FindByID(s.ctx, note.ID)
	s.Require().NoError(err)
	s.Equal(note, stored)

	change := <-sub.C()
	s.Equal(models.ChangeCreated, change.Kind)
	s.Equal(note.ID, change.NoteID)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.NotesWritten.WithLabelValues("created")))
}

func (s *ServiceSuite) TestUsesRequestTimeWithoutClock() {
	svc := New(s.store, s.feed, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	pinned := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, pinned)

	note, err := svc.Create(ctx)
	s.Require().NoError(err)
	s.Equal(pinned.UnixMilli(), note.CreatedAt)

	updated, err := svc.UpdateBody(requestcontext.WithTime(s.ctx, pinned.Add(time.Minute)), note.ID, "# Later")
	s.Require().NoError(err)
	s.Equal(pinned.Add(time.Minute).UnixMilli(), updated.UpdatedAt)
	s.Equal(pinned.UnixMilli(), updated.CreatedAt)
}

func (s *ServiceSuite) TestGet() {
	s.Run("returns stored note", func() {
		created, err := s.service.Create(s.ctx)
		s.Require().NoError(err)

		got, err := s.service.Get(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(created, got)
	})

	s.Run("missing note is not_found", func() {
		_, err := s.service.Get(s.ctx, "missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("blank id is bad_request", func() {
		_, err := s.service.Get(s.ctx, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestListOrdersAndNumbersSnapshots() {
	first, err := s.service.Create(s.ctx)
	s.Require().NoError(err)
	second, err := s.service.Create(s.ctx)
	s.Require().NoError(err)

	snap, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(snap.Notes, 2)
	s.Equal(second.ID, snap.Notes[0].ID)
	s.Equal(first.ID, snap.Notes[1].ID)

	// Editing the older note moves it to the top.
	_, err = s.service.UpdateBody(s.ctx, first.ID, "# edited")
	s.Require().NoError(err)

	next, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.ID, next.Notes[0].ID)
	s.Greater(next.Rev, snap.Rev)
}

func (s *ServiceSuite) TestUpdateBody() {
	s.Run("merges body and bumps updatedAt", func() {
		created, err := s.service.Create(s.ctx)
		s.Require().NoError(err)

		updated, err := s.service.UpdateBody(s.ctx, created.ID, "# Groceries\n- milk")
		s.Require().NoError(err)
		s.Equal("# Groceries\n- milk", updated.Body)
		s.Equal(created.CreatedAt, updated.CreatedAt)
		s.Greater(updated.UpdatedAt, created.UpdatedAt)
		s.Equal("Groceries", updated.Title())
	})

	s.Run("creates a missing note", func() {
		updated, err := s.service.UpdateBody(s.ctx, "fresh-id", "hello")
		s.Require().NoError(err)
		s.Equal(updated.CreatedAt, updated.UpdatedAt)
	})

	s.Run("rejects oversized body", func() {
		big := make([]byte, models.MaxBodyBytes+1)
		for i := range big {
			big[i] = 'a'
		}
		_, err := s.service.UpdateBody(s.ctx, "id", string(big))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects invalid utf-8", func() {
		_, err := s.service.UpdateBody(s.ctx, "id", string([]byte{0xff, 0xfe}))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestDelete() {
	s.Run("removes note and publishes", func() {
		created, err := s.service.Create(s.ctx)
		s.Require().NoError(err)

		sub := s.feed.Subscribe()
		defer sub.Close()

		s.Require().NoError(s.service.Delete(s.ctx, created.ID))
		_, err = s.service.Get(s.ctx, created.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		change := <-sub.C()
		s.Equal(models.ChangeDeleted, change.Kind)
	})

	s.Run("missing note succeeds without publishing", func() {
		sub := s.feed.Subscribe()
		defer sub.Close()

		s.Require().NoError(s.service.Delete(s.ctx, "never-existed"))
		select {
		case c := <-sub.C():
			s.Failf("unexpected change", "%+v", c)
		default:
		}
	})
}

func (s *ServiceSuite) TestPreview() {
	created, err := s.service.Create(s.ctx)
	s.Require().NoError(err)
	_, err = s.service.UpdateBody(s.ctx, created.ID, "# Plans\n\n- [ ] write tests")
	s.Require().NoError(err)

	page, err := s.service.Preview(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Contains(page, "<title>Plans</title>")
	s.Contains(page, `<h1 id="plans">Plans</h1>`)

	_, err = s.service.Preview(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCount() {
	_, err := s.service.Create(s.ctx)
	s.Require().NoError(err)
	n, err := s.service.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestSubscribe() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	snaps, err := s.service.Subscribe(ctx)
	s.Require().NoError(err)

	first := s.nextSnapshot(snaps)
	s.Empty(first.Notes)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.LiveSubscribers))

	created, err := s.service.Create(s.ctx)
	s.Require().NoError(err)

	second := s.nextSnapshot(snaps)
	s.Require().Len(second.Notes, 1)
	s.Equal(created.ID, second.Notes[0].ID)
	s.Greater(second.Rev, first.Rev)

	cancel()
	s.Eventually(func() bool {
		_, open := <-snaps
		return !open
	}, time.Second, 10*time.Millisecond)
	s.Eventually(func() bool {
		return testutil.ToFloat64(s.metrics.LiveSubscribers) == 0
	}, time.Second, 10*time.Millisecond)
}

// A reader that falls behind sees the latest state, not every intermediate one.
func (s *ServiceSuite) TestSubscribeCoalescesBursts() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	snaps, err := s.service.Subscribe(ctx)
	s.Require().NoError(err)
	s.nextSnapshot(snaps)

	for i := 0; i < 10; i++ {
		_, err := s.service.Create(s.ctx)
		s.Require().NoError(err)
	}

	s.Eventually(func() bool {
		select {
		case snap := <-snaps:
			return len(snap.Notes) == 10
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestSubscribeEndsWhenFeedCloses() {
	snaps, err := s.service.Subscribe(s.ctx)
	s.Require().NoError(err)
	s.nextSnapshot(snaps)

	s.Require().NoError(s.feed.Close())
	s.Eventually(func() bool {
		_, open := <-snaps
		return !open
	}, time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) nextSnapshot(snaps <-chan *models.Snapshot) *models.Snapshot {
	select {
	case snap, ok := <-snaps:
		s.Require().True(ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for snapshot")
		return nil
	}
}

type ServiceFailureSuite struct {
	suite.Suite
	ctx   context.Context
	store *mocks.MockNoteStore
	feed  *mocks.MockChangeFeed
	svc   *Service
}

func TestServiceFailureSuite(t *testing.T) {
	suite.Run(t, new(ServiceFailureSuite))
}

func (s *ServiceFailureSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.store = mocks.NewMockNoteStore(ctrl)
	s.feed = mocks.NewMockChangeFeed(ctrl)
	s.svc = New(s.store, s.feed, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *ServiceFailureSuite) TestStoreErrorsBecomeInternal() {
	boom := errors.New("connection reset")

	s.Run("create", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(boom)
		_, err := s.svc.Create(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorIs(err, boom)
	})

	s.Run("list", func() {
		s.store.EXPECT().List(gomock.Any()).Return(nil, boom)
		_, err := s.svc.List(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("merge", func() {
		s.store.EXPECT().MergeBody(gomock.Any(), "n1", "body", gomock.Any()).Return(nil, boom)
		_, err := s.svc.UpdateBody(s.ctx, "n1", "body")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("delete", func() {
		s.store.EXPECT().Delete(gomock.Any(), "n1").Return(false, boom)
		err := s.svc.Delete(s.ctx, "n1")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("find", func() {
		s.store.EXPECT().FindByID(gomock.Any(), "n1").Return(nil, boom)
		_, err := s.svc.Get(s.ctx, "n1")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceFailureSuite) TestUnavailableStore() {
	lost := fmt.Errorf("merge note body: %w", store.ErrUnavailable)
	s.store.EXPECT().MergeBody(gomock.Any(), "n1", "body", gomock.Any()).Return(nil, lost)

	_, err := s.svc.UpdateBody(s.ctx, "n1", "body")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.ErrorIs(err, store.ErrUnavailable)
}

func (s *ServiceFailureSuite) TestConflictOnCreate() {
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(store.ErrConflict)
	_, err := s.svc.Create(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceFailureSuite) TestPublishFailureKeepsWrite() {
	note := &models.Note{ID: "n1", Body: "x", CreatedAt: 1, UpdatedAt: 2}
	s.store.EXPECT().MergeBody(gomock.Any(), "n1", "x", gomock.Any()).Return(note, nil)
	s.feed.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	got, err := s.svc.UpdateBody(s.ctx, "n1", "x")
	s.Require().NoError(err)
	s.Equal(note, got)
}

func (s *ServiceFailureSuite) TestSubscribeFailsWhenFirstSnapshotFails() {
	hub := changefeed.NewHub()
	sub := hub.Subscribe()
	s.feed.EXPECT().Subscribe().Return(sub)
	s.store.EXPECT().List(gomock.Any()).Return(nil, errors.New("timeout"))

	_, err := s.svc.Subscribe(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(0, hub.Len())
}

func (s *ServiceFailureSuite) TestPreviewWithoutRenderer() {
	_, err := s.svc.Preview(s.ctx, "n1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
