package user

import (
	"context"
	"sync"
	"time"
)

var _ SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps sessions in memory. Sessions are lost on restart and not shared between instances.
type MemoryStore struct {
	sessions map[string]memorySession
	mux      sync.Mutex
	now      func() time.Time
}

type memorySession struct {
	data    SessionData
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, id string, data SessionData, expires time.Time) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.prune()
	s.sessions[id] = memorySession{data: data, expires: expires}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*SessionData, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.prune()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &session.data, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.sessions, id)
	return nil
}

// Count returns the number of sessions that haven't expired.
func (s *MemoryStore) Count() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.prune()
	return len(s.sessions)
}

func (s *MemoryStore) prune() {
	now := s.now()
	for id, session := range s.sessions {
		if session.expires.Before(now) {
			delete(s.sessions, id)
		}
	}
}
