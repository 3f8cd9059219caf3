package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"agent-backoffice/internal/domain"
	"golang.org/x/sync/singleflight"
)

// AssessmentLoader fetches assessment definitions from a backing store (e.g., Postgres).
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
}

// AssessmentRepository caches assessments with TTL to avoid repeated DB hits.
type AssessmentRepository struct {
	loader AssessmentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedAssessment
}

type cachedAssessment struct {
	assessment domain.Assessment
	expiresAt  time.Time
}

func NewAssessmentRepository(loader AssessmentLoader, ttl time.Duration) *AssessmentRepository {
	return &AssessmentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedAssessment),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	if a, ok := r.cached(assessmentID, r.clock()); ok {
		return a, nil
	}

	result, err, _ := r.sf.Do(assessmentID, func() (interface{}, error) {
		now := r.clock()
		if a, ok := r.cached(assessmentID, now); ok {
			return a, nil
		}

		a, err := r.loader.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return domain.Assessment{}, err
		}

		r.mu.Lock()
		r.cache[assessmentID] = cachedAssessment{
			assessment: a,
			expiresAt:  now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return domain.Assessment{}, err
	}
	return result.(domain.Assessment), nil
}

func (r *AssessmentRepository) cached(assessmentID string, now time.Time) (domain.Assessment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[assessmentID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Assessment{}, false
	}
	return entry.assessment, true
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticAssessmentLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticAssessmentLoader struct {
	assessments map[string]domain.Assessment
}

func NewStaticAssessmentLoader(assessments map[string]domain.Assessment) *StaticAssessmentLoader {
	return &StaticAssessmentLoader{assessments: assessments}
}

func (l *StaticAssessmentLoader) LoadAssessment(_ context.Context, assessmentID string) (domain.Assessment, error) {
	if a, ok := l.assessments[assessmentID]; ok {
		return a, nil
	}
	return domain.Assessment{}, domain.ErrAssessmentNotFound
}
