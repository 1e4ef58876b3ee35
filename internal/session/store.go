package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/set-night/memoirbot/internal/domain"
)

// Store keeps the in-memory sessions of one flow type.
// Callers only ever see copies; mutation goes through Update.
type Store struct {
	flow domain.FlowType
	ttl  time.Duration
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

type Option func(*Store)

// WithTTL hides and sweeps sessions idle for longer than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(flow domain.FlowType, opts ...Option) *Store {
	s := &Store{
		flow:     flow,
		now:      time.Now,
		sessions: make(map[string]*domain.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Flow() domain.FlowType { return s.flow }

// Create stores sess and drops every other session the same user holds in this store.
func (s *Store) Create(sess *domain.Session) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.sessions {
		if existing.UserID == sess.UserID && id != sess.ID {
			delete(s.sessions, id)
		}
	}
	stored := sess.Clone()
	s.sessions[stored.ID] = stored
	return stored.Clone()
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return nil, fmt.Errorf("%s session %s: %w", s.flow, id, domain.ErrSessionNotFound)
	}
	return sess.Clone(), nil
}

// ActiveByUser returns the most recently updated session of userID for which
// active reports true.
func (s *Store) ActiveByUser(userID string, active func(*domain.Session) bool) (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Session
	for _, sess := range s.sessions {
		if sess.UserID != userID || s.expired(sess) {
			continue
		}
		if active != nil && !active(sess) {
			continue
		}
		if best == nil || sess.UpdatedAt.After(best.UpdatedAt) {
			best = sess
		}
	}
	if best == nil {
		return nil, false
	}
	return best.Clone(), true
}

// Update runs fn against the stored session under the write lock and returns
// a copy of the result. An error from fn is returned as is; the session keeps
// whatever fn already changed.
func (s *Store) Update(id string, fn func(*domain.Session) error) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return nil, fmt.Errorf("%s session %s: %w", s.flow, id, domain.ErrSessionNotFound)
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Count returns how many live sessions satisfy pred.
func (s *Store) Count(pred func(*domain.Session) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sess := range s.sessions {
		if !s.expired(sess) && (pred == nil || pred(sess)) {
			n++
		}
	}
	return n
}

// Sweep deletes expired sessions and reports how many were removed.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Store) expired(sess *domain.Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl
}
