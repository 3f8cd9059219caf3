package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"agent-backoffice/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AssessmentRepository loads assessment definitions (from cache/backing store).
type AssessmentRepository interface {
	GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
}

// AttemptStore abstracts where in-flight attempts live (in-memory, Redis, etc).
type AttemptStore interface {
	Save(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	Delete(ctx context.Context, attemptID string) error
}

// ResultRecorder receives every submitted attempt for reporting.
type ResultRecorder interface {
	RecordResult(ctx context.Context, completed domain.CompletedAttempt) error
}

// AttemptHistory is implemented by recorders that can list a user's earlier
// attempts. Start uses it to continue numbering across sessions.
type AttemptHistory interface {
	UserResults(ctx context.Context, assessmentID, userID string) ([]domain.CompletedAttempt, error)
}

// AssessmentService runs assessment attempts: start, answer, submit, retry.
type AssessmentService struct {
	assessments AssessmentRepository
	attempts    AttemptStore
	results     ResultRecorder
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// AssessmentOption customizes an AssessmentService.
type AssessmentOption func(*AssessmentService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) AssessmentOption {
	return func(s *AssessmentService) { s.now = now }
}

// WithRand injects the shuffle source so presentation order is reproducible.
func WithRand(rnd *rand.Rand) AssessmentOption {
	return func(s *AssessmentService) { s.rnd = rnd }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) AssessmentOption {
	return func(s *AssessmentService) { s.logger = logger }
}

func NewAssessmentService(assessments AssessmentRepository, attempts AttemptStore, results ResultRecorder, opts ...AssessmentOption) *AssessmentService {
	s := &AssessmentService{
		assessments: assessments,
		attempts:    attempts,
		results:     results,
		logger:      zap.NewNop(),
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(s.now().UnixNano()))
	}
	return s
}

// Assessment returns the definition behind an attempt.
func (s *AssessmentService) Assessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	return s.assessments.GetAssessment(ctx, assessmentID)
}

// Attempt returns the current state of an attempt.
func (s *AssessmentService) Attempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return s.attempts.Get(ctx, attemptID)
}

// Start begins the user's next attempt. Numbering continues from recorded
// history, so a fresh session cannot reset maxAttempts.
func (s *AssessmentService) Start(ctx context.Context, assessmentID, userID string) (domain.Attempt, error) {
	a, err := s.assessments.GetAssessment(ctx, assessmentID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if err := ValidateAssessment(a); err != nil {
		return domain.Attempt{}, fmt.Errorf("assessment %s: %w", assessmentID, err)
	}
	number, err := s.nextAttemptNumber(ctx, a, userID)
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt := s.newAttempt(a, userID, number)
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	s.logger.Info("attempt started",
		zap.String("attempt_id", attempt.ID),
		zap.String("assessment_id", assessmentID),
		zap.String("user_id", userID))
	return attempt, nil
}

// Select records an option click on an in-progress attempt.
func (s *AssessmentService) Select(ctx context.Context, attemptID, questionID, optionID string) (domain.Attempt, error) {
	attempt, a, err := s.load(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.State != domain.AttemptInProgress {
		return domain.Attempt{}, domain.ErrAttemptClosed
	}
	q, ok := a.Question(questionID)
	if !ok {
		return domain.Attempt{}, domain.ErrQuestionNotFound
	}
	responses, err := RecordSelection(attempt.Responses, q, optionID)
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt.Responses = responses
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	return attempt, nil
}

// Navigate moves the attempt to the question at index.
func (s *AssessmentService) Navigate(ctx context.Context, attemptID string, index int) (domain.Attempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.State != domain.AttemptInProgress {
		return domain.Attempt{}, domain.ErrAttemptClosed
	}
	if index < 0 || index >= len(attempt.Order) {
		return domain.Attempt{}, domain.ErrQuestionIndexOutOfRange
	}
	attempt.QuestionIndex = index
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	return attempt, nil
}

// Submit scores the attempt and forwards the result to the recorder. The
// attempt stays submitted even if recording fails; the result is then returned
// together with an error wrapping domain.ErrResultNotRecorded.
func (s *AssessmentService) Submit(ctx context.Context, attemptID string) (domain.AssessmentResult, error) {
	attempt, a, err := s.load(ctx, attemptID)
	if err != nil {
		return domain.AssessmentResult{}, err
	}
	if attempt.State != domain.AttemptInProgress {
		return domain.AssessmentResult{}, domain.ErrAttemptClosed
	}

	presented, err := orderedQuestions(a, attempt.Order)
	if err != nil {
		return domain.AssessmentResult{}, err
	}
	now := s.now()
	result, err := Score(a, presented, attempt.Responses, attempt.StartedAt, now)
	if err != nil {
		return domain.AssessmentResult{}, err
	}

	attempt.State = domain.AttemptSubmitted
	attempt.Result = &result
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return domain.AssessmentResult{}, fmt.Errorf("save attempt: %w", err)
	}

	s.logger.Info("attempt submitted",
		zap.String("attempt_id", attempt.ID),
		zap.String("assessment_id", attempt.AssessmentID),
		zap.Int("number", attempt.Number),
		zap.Int("score", result.Score),
		zap.Bool("passed", result.Passed),
		zap.Bool("auto_failed", result.AutoFailed))

	if s.results != nil {
		completed := domain.CompletedAttempt{
			AttemptID:    attempt.ID,
			AssessmentID: attempt.AssessmentID,
			UserID:       attempt.UserID,
			Number:       attempt.Number,
			SubmittedAt:  now,
			Result:       result,
		}
		if err := s.results.RecordResult(ctx, completed); err != nil {
			s.logger.Error("record result failed", zap.String("attempt_id", attempt.ID), zap.Error(err))
			return result, fmt.Errorf("%w: %v", domain.ErrResultNotRecorded, err)
		}
	}
	return result, nil
}

// Retry replaces a failed, submitted attempt with the next one. It is refused
// once the assessment is passed or maxAttempts is reached.
func (s *AssessmentService) Retry(ctx context.Context, attemptID string) (domain.Attempt, error) {
	attempt, a, err := s.load(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.State != domain.AttemptSubmitted || attempt.Result == nil {
		return domain.Attempt{}, domain.ErrAttemptNotSubmitted
	}
	if attempt.Result.Passed {
		return domain.Attempt{}, domain.ErrAlreadyPassed
	}
	if attempt.Number >= a.MaxAttempts {
		return domain.Attempt{}, domain.ErrAttemptsExhausted
	}

	next := s.newAttempt(a, attempt.UserID, attempt.Number+1)
	if err := s.attempts.Save(ctx, next); err != nil {
		return domain.Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	if err := s.attempts.Delete(ctx, attempt.ID); err != nil {
		s.logger.Warn("delete previous attempt failed", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
	return next, nil
}

// Abandon discards an attempt, e.g. when the learner closes the dialog.
func (s *AssessmentService) Abandon(ctx context.Context, attemptID string) {
	if err := s.attempts.Delete(ctx, attemptID); err != nil {
		s.logger.Warn("abandon attempt failed", zap.String("attempt_id", attemptID), zap.Error(err))
	}
}

func (s *AssessmentService) nextAttemptNumber(ctx context.Context, a domain.Assessment, userID string) (int, error) {
	history, ok := s.results.(AttemptHistory)
	if !ok {
		return 1, nil
	}
	past, err := history.UserResults(ctx, a.ID, userID)
	if err != nil {
		return 0, fmt.Errorf("attempt history: %w", err)
	}
	last := 0
	for _, c := range past {
		if c.Result.Passed {
			return 0, domain.ErrAlreadyPassed
		}
		if c.Number > last {
			last = c.Number
		}
	}
	if last >= a.MaxAttempts {
		return 0, domain.ErrAttemptsExhausted
	}
	return last + 1, nil
}

func (s *AssessmentService) load(ctx context.Context, attemptID string) (domain.Attempt, domain.Assessment, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, domain.Assessment{}, err
	}
	a, err := s.assessments.GetAssessment(ctx, attempt.AssessmentID)
	if err != nil {
		return domain.Attempt{}, domain.Assessment{}, err
	}
	return attempt, a, nil
}

func (s *AssessmentService) newAttempt(a domain.Assessment, userID string, number int) domain.Attempt {
	s.rndMu.Lock()
	presented := PresentQuestions(a, s.rnd)
	s.rndMu.Unlock()

	order := make([]string, len(presented))
	responses := make(domain.Responses, len(presented))
	for i, q := range presented {
		order[i] = q.ID
		responses[q.ID] = domain.QuestionResponse{QuestionID: q.ID, SelectedOptionIDs: []string{}}
	}
	return domain.Attempt{
		ID:           s.newID(),
		AssessmentID: a.ID,
		UserID:       userID,
		Number:       number,
		State:        domain.AttemptInProgress,
		Order:        order,
		Responses:    responses,
		StartedAt:    s.now(),
	}
}

// orderedQuestions resolves an attempt's stored order against the definition.
func orderedQuestions(a domain.Assessment, order []string) ([]domain.Question, error) {
	if len(order) == 0 {
		return a.Questions, nil
	}
	out := make([]domain.Question, 0, len(order))
	for _, id := range order {
		q, ok := a.Question(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, id)
		}
		out = append(out, q)
	}
	return out, nil
}

// OrderedQuestions returns the questions of an attempt in presentation order.
func OrderedQuestions(a domain.Assessment, attempt domain.Attempt) ([]domain.Question, error) {
	return orderedQuestions(a, attempt.Order)
}
