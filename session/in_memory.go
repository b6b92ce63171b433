package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/brightmesh/core"
)

// InMemoryService is a volatile core.SessionService storing sessions in a
// process local map. It is safe for concurrent access. Returned sessions are
// clones, so callers never observe or cause concurrent mutation of stored
// state.
type InMemoryService struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

var _ core.SessionService = (*InMemoryService)(nil)

// NewInMemoryService constructs an empty in-memory session service.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{sessions: make(map[string]*core.Session)}
}

// Create allocates a session with a generated id and a copy of state.
func (s *InMemoryService) Create(_ context.Context, appName, userID string, state map[string]any) (*core.Session, error) {
	sess := core.NewSession(core.NewID(), appName, userID)
	for k, v := range state {
		sess.State[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess.Clone(), nil
}

// Get returns a snapshot of an existing session.
func (s *InMemoryService) Get(_ context.Context, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return sess.Clone(), nil
}

// AppendEvent adds an event to an existing session.
func (s *InMemoryService) AppendEvent(_ context.Context, sessionID string, ev core.Event) error {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	sess.AddEvent(ev)
	return nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *InMemoryService) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of live sessions.
func (s *InMemoryService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
