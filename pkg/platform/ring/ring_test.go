package ring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type item struct {
	at time.Time
	n  int
}

func stamp(n int) func(time.Time) item {
	return func(at time.Time) item { return item{at: at, n: n} }
}

func numbers(items []item) []int {
	out := make([]int, 0, len(items))
	for _, it := range items {
		out = append(out, it.n)
	}
	return out
}

type RingSuite struct {
	suite.Suite
	ring *Ring[item]
	base time.Time
}

func TestRingSuite(t *testing.T) {
	suite.Run(t, new(RingSuite))
}

func (s *RingSuite) SetupTest() {
	s.ring = New[item](5)
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RingSuite) fill(count int) {
	for i := range count {
		s.ring.Append(s.base.Add(time.Duration(i)*time.Minute), stamp(i))
	}
}

func (s *RingSuite) TestAppend() {
	s.Run("keeps insertion order", func() {
		s.fill(3)
		s.Equal([]int{0, 1, 2}, numbers(s.ring.Snapshot()))
		s.Equal(3, s.ring.Len())
	})

	s.Run("drops oldest when full", func() {
		s.SetupTest()
		s.fill(7)
		s.Equal([]int{2, 3, 4, 5, 6}, numbers(s.ring.Snapshot()))
		s.Equal(int64(2), s.ring.Dropped())
	})

	s.Run("clamps stamps that go backwards", func() {
		s.SetupTest()
		s.ring.Append(s.base, stamp(0))
		got := s.ring.Append(s.base.Add(-time.Hour), stamp(1))
		s.Equal(s.base, got.at)

		all := s.ring.Snapshot()
		for i := 1; i < len(all); i++ {
			s.False(all[i].at.Before(all[i-1].at))
		}
	})
}

func (s *RingSuite) TestUpdatePassesPrevious() {
	first := s.ring.Update(s.base, func(at time.Time, prev *item) item {
		s.Nil(prev)
		return item{at: at, n: 1}
	})
	s.ring.Update(s.base, func(at time.Time, prev *item) item {
		s.Require().NotNil(prev)
		s.Equal(first, *prev)
		return item{at: at, n: prev.n + 1}
	})
	s.Equal([]int{1, 2}, numbers(s.ring.Snapshot()))
}

func (s *RingSuite) TestQueries() {
	s.fill(5)

	s.Run("since is inclusive", func() {
		s.Equal([]int{2, 3, 4}, numbers(s.ring.Since(s.base.Add(2*time.Minute))))
	})

	s.Run("since after newest is empty", func() {
		got := s.ring.Since(s.base.Add(time.Hour))
		s.NotNil(got)
		s.Empty(got)
	})

	s.Run("between is inclusive on both ends", func() {
		got := s.ring.Between(s.base.Add(time.Minute), s.base.Add(3*time.Minute))
		s.Equal([]int{1, 2, 3}, numbers(got))
	})

	s.Run("between with open ends", func() {
		s.Equal([]int{0, 1}, numbers(s.ring.Between(time.Time{}, s.base.Add(time.Minute))))
		s.Equal([]int{3, 4}, numbers(s.ring.Between(s.base.Add(3*time.Minute), time.Time{})))
	})

	s.Run("newest filters and limits", func() {
		even := func(it item) bool { return it.n%2 == 0 }
		s.Equal([]int{4, 2}, numbers(s.ring.Newest(2, even)))
		s.Equal([]int{4, 3, 2, 1, 0}, numbers(s.ring.Newest(50, nil)))
		s.Empty(s.ring.Newest(0, nil))
	})

	s.Run("snapshot is a copy", func() {
		snap := s.ring.Snapshot()
		snap[0].n = 99
		s.Equal(0, s.ring.Snapshot()[0].n)
	})
}

func (s *RingSuite) TestEvictBefore() {
	s.fill(5)

	evicted := s.ring.EvictBefore(s.base.Add(2 * time.Minute))
	s.Equal(2, evicted)
	s.Equal([]int{2, 3, 4}, numbers(s.ring.Snapshot()))

	s.Equal(0, s.ring.EvictBefore(s.base), "nothing older left")
	s.Equal(3, s.ring.EvictBefore(s.base.Add(time.Hour)))
	s.Equal(0, s.ring.Len())
}

func TestRing_ConcurrentAppendAndEvict(t *testing.T) {
	r := New[item](1000)
	now := time.Now()
	var wg sync.WaitGroup

	for i := range 200 {
		wg.Go(func() {
			r.Append(now, stamp(i))
		})
	}
	for range 20 {
		wg.Go(func() {
			r.EvictBefore(now.Add(-time.Hour))
			_ = r.Since(now.Add(-time.Minute))
		})
	}
	wg.Wait()

	require.Equal(t, 200, r.Len(), "eviction must not remove fresh entries")
	assert.Equal(t, int64(0), r.Dropped())
}

func TestNew_DefaultCapacity(t *testing.T) {
	r := New[item](0)
	assert.Equal(t, DefaultCapacity, r.capacity)
}
