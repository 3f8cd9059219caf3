package memory

import (
	"context"
	"sync"

	"agent-backoffice/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore.
// Attempts are copied on the way in and out.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.Attempt),
	}
}

func (s *AttemptStore) Save(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = attempt.Clone()
	return nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt.Clone(), nil
}

func (s *AttemptStore) Delete(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, attemptID)
	return nil
}

// Len reports how many attempts are held.
func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}
