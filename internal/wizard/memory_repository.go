package wizard

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemoryRepository builds an in-memory session store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{sessions: make(map[string]Session)}
}

func (r *memoryRepository) Save(_ context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.sessions[s.RequestID]; ok {
		s.CreatedAt = existing.CreatedAt
	} else {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	r.sessions[s.RequestID] = s
	return nil
}

func (r *memoryRepository) Get(_ context.Context, requestID string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[requestID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryRepository) Delete(_ context.Context, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, requestID)
	return nil
}

func (r *memoryRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// age backdates a session's updated_at for reaper tests.
func (r *memoryRepository) age(requestID string, updatedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[requestID]; ok {
		s.UpdatedAt = updatedAt
		r.sessions[requestID] = s
	}
}
