package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/domain"
)

func newSession(id, user string, state domain.State, updated time.Time) *domain.Session {
	return &domain.Session{
		ID:        id,
		Flow:      domain.FlowQuick,
		UserID:    user,
		State:     state,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestStore_CreateSupersedesSameUser(t *testing.T) {
	s := NewStore(domain.FlowQuick)
	now := time.Now()

	s.Create(newSession("a", "U1", domain.StateWaitingTitle, now))
	s.Create(newSession("b", "U2", domain.StateWaitingTitle, now))
	s.Create(newSession("c", "U1", domain.StateWaitingTitle, now))

	assert.Equal(t, 2, s.Len())
	_, err := s.Get("a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	got, ok := s.ActiveByUser("U1", nil)
	require.True(t, ok)
	assert.Equal(t, "c", got.ID)
}

func TestStore_ActiveByUserPicksMostRecent(t *testing.T) {
	s := NewStore(domain.FlowPhoto)
	now := time.Now()
	s.sessions["old"] = newSession("old", "U1", domain.StateQuestioning, now.Add(-time.Hour))
	s.sessions["new"] = newSession("new", "U1", domain.StateQuestioning, now)
	s.sessions["done"] = newSession("done", "U1", domain.StateCompleted, now.Add(time.Minute))

	active := func(sess *domain.Session) bool { return sess.State != domain.StateCompleted }
	got, ok := s.ActiveByUser("U1", active)
	require.True(t, ok)
	assert.Equal(t, "new", got.ID)

	_, ok = s.ActiveByUser("U2", active)
	assert.False(t, ok)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(domain.FlowProfile)
	sess := newSession("a", "U1", domain.StateCollectingTimeline, time.Now())
	sess.Data.Timeline = []domain.TimelineEntry{{Year: 1985, Title: "誕生"}}
	s.Create(sess)

	got, err := s.Get("a")
	require.NoError(t, err)
	got.Data.Timeline[0].Title = "changed"
	got.State = domain.StateCompleted

	again, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "誕生", again.Data.Timeline[0].Title)
	assert.Equal(t, domain.StateCollectingTimeline, again.State)
}

func TestStore_Update(t *testing.T) {
	s := NewStore(domain.FlowQuick)
	s.Create(newSession("a", "U1", domain.StateWaitingTitle, time.Now()))

	got, err := s.Update("a", func(sess *domain.Session) error {
		sess.Data.Title = "私の人生"
		sess.State = domain.StateWaitingCover
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaitingCover, got.State)

	boom := errors.New("boom")
	_, err = s.Update("a", func(*domain.Session) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = s.Update("missing", func(*domain.Session) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStore_Delete(t *testing.T) {
	s := NewStore(domain.FlowMedia)
	s.Create(newSession("a", "U1", domain.StateCollecting, time.Now()))

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_TTL(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := NewStore(domain.FlowQuick, WithTTL(time.Hour), WithClock(clock))

	s.Create(newSession("stale", "U1", domain.StateWaitingCover, now.Add(-2*time.Hour)))
	s.Create(newSession("fresh", "U2", domain.StateWaitingCover, now.Add(-10*time.Minute)))

	_, err := s.Get("stale")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, ok := s.ActiveByUser("U1", nil)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Count(nil))

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestStore_ZeroTTLNeverExpires(t *testing.T) {
	s := NewStore(domain.FlowQuick)
	s.Create(newSession("a", "U1", domain.StateWaitingCover, time.Now().Add(-1000*time.Hour)))

	_, err := s.Get("a")
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Sweep())
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore(domain.FlowPhoto)
	s.Create(newSession("a", "U1", domain.StateCollectingPhotos, time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update("a", func(sess *domain.Session) error {
				sess.Photos = append(sess.Photos, domain.PhotoItem{ID: "p"})
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Len(t, got.Photos, 50)
}
