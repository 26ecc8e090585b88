package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local SessionStore. Sessions do not survive a
// restart; use Postgres for anything beyond local runs.
type Memory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
	results  map[uuid.UUID]Result
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]Session),
		results:  make(map[uuid.UUID]Result),
	}
}

func (m *Memory) CreateSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, id uuid.UUID, status, errorDetail string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Status = status
	s.ErrorDetail = errorDetail
	s.UpdatedAt = time.Now().UTC()
	if !expiresAt.IsZero() {
		s.ExpiresAt = expiresAt
	}
	m.sessions[id] = s
	return nil
}

func (m *Memory) SaveResult(ctx context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.SessionID] = r
	return nil
}

func (m *Memory) GetResult(ctx context.Context, id uuid.UUID) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return Result{}, ErrResultNotFound
	}
	return r, nil
}

func (m *Memory) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, s := range m.sessions {
		if s.ExpiresAt.IsZero() || !s.ExpiresAt.Before(now) {
			continue
		}
		delete(m.sessions, id)
		delete(m.results, id)
		deleted++
	}
	return deleted, nil
}

func (m *Memory) Close() {}
