package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"notesync/internal/notes/models"
	"notesync/pkg/platform/sentinel"
)

type noteStore interface {
	Create(ctx context.Context, note *models.Note) error
	FindByID(ctx context.Context, id string) (*models.Note, error)
	List(ctx context.Context) ([]*models.Note, error)
	MergeBody(ctx context.Context, id, body string, updatedAt int64) (*models.Note, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// storeContractSuite runs the behavior every backend must share. Embedding
// suites set newStore in SetupTest.
type storeContractSuite struct {
	suite.Suite
	ctx   context.Context
	store noteStore
}

func (s *storeContractSuite) note(body string, at int64) *models.Note {
	return &models.Note{ID: uuid.NewString(), Body: body, CreatedAt: at, UpdatedAt: at}
}

func (s *storeContractSuite) TestCreateAndFind() {
	s.Run("creates and finds note by id", func() {
		n := s.note("# hello", 1000)
		s.Require().NoError(s.store.Create(s.ctx, n))

		found, err := s.store.FindByID(s.ctx, n.ID)
		s.Require().NoError(err)
		s.Equal(n, found)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, uuid.NewString())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate id", func() {
		n := s.note("first", 1000)
		s.Require().NoError(s.store.Create(s.ctx, n))

		dup := *n
		dup.Body = "second"
		s.ErrorIs(s.store.Create(s.ctx, &dup), sentinel.ErrConflict)

		found, err := s.store.FindByID(s.ctx, n.ID)
		s.Require().NoError(err)
		s.Equal("first", found.Body)
	})
}

func (s *storeContractSuite) TestListOrder() {
	older := s.note("older", 1000)
	newer := s.note("newer", 2000)
	tieA := s.note("tie a", 1500)
	tieB := s.note("tie b", 1500)
	tieA.ID = "00000000-0000-4000-8000-00000000000a"
	tieB.ID = "00000000-0000-4000-8000-00000000000b"
	for _, n := range []*models.Note{older, tieB, newer, tieA} {
		s.Require().NoError(s.store.Create(s.ctx, n))
	}

	notes, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(notes, 4)
	s.Equal([]string{newer.ID, tieA.ID, tieB.ID, older.ID},
		[]string{notes[0].ID, notes[1].ID, notes[2].ID, notes[3].ID})
}

func (s *storeContractSuite) TestListEmpty() {
	notes, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.NotNil(notes)
	s.Empty(notes)
}

func (s *storeContractSuite) TestMergeBody() {
	s.Run("updates body and updatedAt, keeps createdAt", func() {
		n := s.note("before", 1000)
		s.Require().NoError(s.store.Create(s.ctx, n))

		merged, err := s.store.MergeBody(s.ctx, n.ID, "after", 5000)
		s.Require().NoError(err)
		s.Equal("after", merged.Body)
		s.Equal(int64(1000), merged.CreatedAt)
		s.Equal(int64(5000), merged.UpdatedAt)

		found, err := s.store.FindByID(s.ctx, n.ID)
		s.Require().NoError(err)
		s.Equal(merged, found)
	})

	s.Run("creates missing note with createdAt equal to updatedAt", func() {
		id := uuid.NewString()
		merged, err := s.store.MergeBody(s.ctx, id, "fresh", 7000)
		s.Require().NoError(err)
		s.Equal(id, merged.ID)
		s.Equal(int64(7000), merged.CreatedAt)
		s.Equal(int64(7000), merged.UpdatedAt)
	})

	s.Run("never moves updatedAt backwards", func() {
		n := s.note("v1", 9000)
		s.Require().NoError(s.store.Create(s.ctx, n))

		merged, err := s.store.MergeBody(s.ctx, n.ID, "v2", 8000)
		s.Require().NoError(err)
		s.Equal("v2", merged.Body)
		s.Equal(int64(9000), merged.UpdatedAt)
	})
}

func (s *storeContractSuite) TestDelete() {
	s.Run("removes existing note", func() {
		n := s.note("bye", 1000)
		s.Require().NoError(s.store.Create(s.ctx, n))

		deleted, err := s.store.Delete(s.ctx, n.ID)
		s.Require().NoError(err)
		s.True(deleted)

		_, err = s.store.FindByID(s.ctx, n.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("missing note is not an error", func() {
		deleted, err := s.store.Delete(s.ctx, uuid.NewString())
		s.Require().NoError(err)
		s.False(deleted)
	})
}

func (s *storeContractSuite) TestCount() {
	before, err := s.store.Count(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Create(s.ctx, s.note("a", 1)))
	s.Require().NoError(s.store.Create(s.ctx, s.note("b", 2)))

	after, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(before+2, after)
}

func (s *storeContractSuite) TestConcurrentMerges() {
	n := s.note("start", 1)
	s.Require().NoError(s.store.Create(s.ctx, n))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.MergeBody(s.ctx, n.ID, "edit", int64(100+i))
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	found, err := s.store.FindByID(s.ctx, n.ID)
	s.Require().NoError(err)
	s.Equal("edit", found.Body)
	s.Equal(int64(119), found.UpdatedAt)
	s.Equal(int64(1), found.CreatedAt)
}
