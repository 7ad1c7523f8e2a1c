package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
)

// Memory is an in-process Sessions backed by a map. State is lost on
// restart; use it for development and tests.
type Memory struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]questionnaire.Session
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[uuid.UUID]questionnaire.Session)}
}

func (m *Memory) Create(_ context.Context, s questionnaire.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrExists
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (questionnaire.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return questionnaire.Session{}, ErrNotFound
	}
	return clone(s), nil
}

// Update holds the store lock while fn runs. fn must not call back into the
// store.
func (m *Memory) Update(_ context.Context, id uuid.UUID, fn UpdateFunc) (questionnaire.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return questionnaire.Session{}, ErrNotFound
	}
	s = clone(s)
	if err := fn(&s); err != nil {
		return questionnaire.Session{}, err
	}
	m.sessions[id] = clone(s)
	return s, nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Memory) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
