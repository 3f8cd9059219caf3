package memory

import (
	"context"
	"sync"

	"agent-backoffice/internal/domain"
)

// ResultLog keeps submitted attempts in memory.
type ResultLog struct {
	mu      sync.Mutex
	results []domain.CompletedAttempt
}

func NewResultLog() *ResultLog {
	return &ResultLog{}
}

func (l *ResultLog) RecordResult(_ context.Context, completed domain.CompletedAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, completed)
	return nil
}

// Results returns a copy of everything recorded so far.
func (l *ResultLog) Results() []domain.CompletedAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.CompletedAttempt(nil), l.results...)
}

// UserResults returns the attempts one user recorded for an assessment.
func (l *ResultLog) UserResults(_ context.Context, assessmentID, userID string) ([]domain.CompletedAttempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []domain.CompletedAttempt{}
	for _, c := range l.results {
		if c.AssessmentID == assessmentID && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}
