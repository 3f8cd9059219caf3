package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"agent-backoffice/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"go.uber.org/zap"
)

// AssessmentLoader fetches assessment definitions from a backing store (e.g., Postgres).
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
}

// AssessmentRepository caches assessment definitions in Redis and falls back
// to a loader on cache miss.
// Definitions are stored as: SET assessment:{id} {json} EX {ttl}
type AssessmentRepository struct {
	client *redis.Client
	loader AssessmentLoader
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewAssessmentRepository(client *redis.Client, loader AssessmentLoader, ttl time.Duration, logger *zap.Logger) *AssessmentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	if a, ok := r.fromCache(ctx, assessmentID); ok {
		return a, nil
	}

	result, err, _ := r.sf.Do(assessmentID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if a, ok := r.fromCache(ctx, assessmentID); ok {
			return a, nil
		}

		a, err := r.loader.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return domain.Assessment{}, err
		}

		raw, err := json.Marshal(a)
		if err != nil {
			return domain.Assessment{}, fmt.Errorf("marshal assessment: %w", err)
		}
		if err := r.client.Set(ctx, r.key(assessmentID), raw, r.ttlWithJitter()).Err(); err != nil {
			// the loaded definition is still good; the next call will retry the write
			r.logger.Warn("cache assessment failed", zap.String("assessment_id", assessmentID), zap.Error(err))
		}
		return a, nil
	})
	if err != nil {
		return domain.Assessment{}, err
	}
	return result.(domain.Assessment), nil
}

// Invalidate drops a cached definition so the next read hits the loader.
func (r *AssessmentRepository) Invalidate(ctx context.Context, assessmentID string) error {
	return r.client.Del(ctx, r.key(assessmentID)).Err()
}

func (r *AssessmentRepository) fromCache(ctx context.Context, assessmentID string) (domain.Assessment, bool) {
	raw, err := r.client.Get(ctx, r.key(assessmentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("read cached assessment failed", zap.String("assessment_id", assessmentID), zap.Error(err))
		}
		return domain.Assessment{}, false
	}
	var a domain.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		r.logger.Warn("decode cached assessment failed", zap.String("assessment_id", assessmentID), zap.Error(err))
		return domain.Assessment{}, false
	}
	return a, true
}

func (r *AssessmentRepository) key(assessmentID string) string {
	return "assessment:" + assessmentID
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
