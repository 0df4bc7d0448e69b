package memory

import (
	"context"
	"sort"
	"sync"

	"inkwell/internal/domain"
)

// SessionStore is an arena keyed by session id. Every Get and Put
// moves a deep copy across the boundary, so callers never alias the
// stored aggregate.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return &domain.ValidationError{Msg: "session already exists: " + string(session.ID)}
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) Put(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		return &domain.NotFoundError{Kind: "session", ID: string(session.ID)}
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "session", ID: string(id)}
	}
	return sess.Clone(), nil
}

func (s *SessionStore) ListByStory(ctx context.Context, storyID domain.StoryID) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.StoryID == storyID {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
