package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agent-backoffice/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AttemptStore keeps in-flight attempts in Redis so any instance can serve
// the next message of an attempt. Each save refreshes the TTL; an attempt
// left idle past the TTL is treated as abandoned.
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl}
}

func (s *AttemptStore) Save(ctx context.Context, attempt domain.Attempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	return s.client.Set(ctx, s.key(attempt.ID), raw, s.ttl).Err()
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	raw, err := s.client.Get(ctx, s.key(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal attempt: %w", err)
	}
	if attempt.Responses == nil {
		attempt.Responses = domain.Responses{}
	}
	return attempt, nil
}

func (s *AttemptStore) Delete(ctx context.Context, attemptID string) error {
	return s.client.Del(ctx, s.key(attemptID)).Err()
}

func (s *AttemptStore) key(attemptID string) string {
	return "assessment:attempt:" + attemptID
}
