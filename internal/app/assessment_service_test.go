package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"agent-backoffice/internal/app"
	"agent-backoffice/internal/domain"
	"agent-backoffice/internal/infra/memory"
)

type fixture struct {
	service  *app.AssessmentService
	attempts *memory.AttemptStore
	results  *memory.ResultLog
	now      time.Time
}

func newFixture(t *testing.T, a domain.Assessment) *fixture {
	t.Helper()
	f := &fixture{
		attempts: memory.NewAttemptStore(),
		results:  memory.NewResultLog(),
		now:      time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
	repo := memory.NewAssessmentRepository(memory.NewStaticAssessmentLoader(map[string]domain.Assessment{
		a.ID: a,
	}), 5*time.Minute)
	f.service = app.NewAssessmentService(repo, f.attempts, f.results,
		app.WithClock(func() time.Time { return f.now }),
		app.WithRand(rand.New(rand.NewSource(1))),
	)
	return f
}

func complianceAssessment() domain.Assessment {
	return domain.Assessment{
		ID:                "compliance-1",
		Title:             "Suitability and Disclosure",
		ShuffleQuestions:  true,
		PassingScore:      50,
		MaxAttempts:       2,
		AutoFailQuestions: []string{"q-suitability"},
		Questions: []domain.Question{
			{
				ID:   "q-suitability",
				Type: domain.Scenario,
				Text: "What comes first?",
				Options: []domain.Option{
					{ID: "sell", Text: "Quote the cheapest policy"},
					{ID: "needs", Text: "Needs analysis", IsCorrect: true},
				},
			},
			{
				ID:   "q-disclosure",
				Type: domain.SelectAll,
				Text: "Which must be disclosed?",
				Options: []domain.Option{
					{ID: "fees", Text: "Surrender charges", IsCorrect: true},
					{ID: "commission", Text: "Commission on request", IsCorrect: true},
					{ID: "weather", Text: "The weather"},
				},
			},
		},
	}
}

func TestAttemptPassFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, complianceAssessment())

	attempt, err := f.service.Start(ctx, "compliance-1", "agent-7")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if attempt.Number != 1 || attempt.State != domain.AttemptInProgress || len(attempt.Order) != 2 {
		t.Fatalf("unexpected attempt %+v", attempt)
	}
	for _, resp := range attempt.Responses {
		if resp.Answered() {
			t.Fatalf("expected empty responses at start, got %+v", resp)
		}
	}

	steps := [][2]string{
		{"q-suitability", "needs"},
		{"q-disclosure", "fees"},
		{"q-disclosure", "weather"},
		{"q-disclosure", "commission"},
		{"q-disclosure", "weather"}, // toggle back off
	}
	for _, s := range steps {
		if _, err := f.service.Select(ctx, attempt.ID, s[0], s[1]); err != nil {
			t.Fatalf("select %v: %v", s, err)
		}
	}

	if _, err := f.service.Navigate(ctx, attempt.ID, 1); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if _, err := f.service.Navigate(ctx, attempt.ID, 2); !errors.Is(err, domain.ErrQuestionIndexOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}

	f.now = f.now.Add(12 * time.Minute)
	result, err := f.service.Submit(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 100 || !result.Passed || result.TimeSpentMinutes != 12 {
		t.Fatalf("expected full marks in 12 minutes, got %+v", result)
	}

	recorded := f.results.Results()
	if len(recorded) != 1 || recorded[0].AttemptID != attempt.ID || recorded[0].UserID != "agent-7" {
		t.Fatalf("expected result forwarded to recorder, got %+v", recorded)
	}

	if _, err := f.service.Select(ctx, attempt.ID, "q-suitability", "sell"); !errors.Is(err, domain.ErrAttemptClosed) {
		t.Fatalf("expected closed attempt, got %v", err)
	}
	if _, err := f.service.Submit(ctx, attempt.ID); !errors.Is(err, domain.ErrAttemptClosed) {
		t.Fatalf("expected double submit rejected, got %v", err)
	}
	if _, err := f.service.Retry(ctx, attempt.ID); !errors.Is(err, domain.ErrAlreadyPassed) {
		t.Fatalf("expected retry refused after pass, got %v", err)
	}
}

func TestAttemptAutoFailAndRetryUntilExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, complianceAssessment())

	attempt, err := f.service.Start(ctx, "compliance-1", "agent-7")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.service.Retry(ctx, attempt.ID); !errors.Is(err, domain.ErrAttemptNotSubmitted) {
		t.Fatalf("expected retry refused while in progress, got %v", err)
	}

	_, _ = f.service.Select(ctx, attempt.ID, "q-suitability", "sell")
	_, _ = f.service.Select(ctx, attempt.ID, "q-disclosure", "fees")
	_, _ = f.service.Select(ctx, attempt.ID, "q-disclosure", "commission")

	result, err := f.service.Submit(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 50 || result.Passed || !result.AutoFailed || result.AutoFailQuestion != "q-suitability" {
		t.Fatalf("expected auto-fail despite meeting threshold, got %+v", result)
	}

	second, err := f.service.Retry(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if second.Number != 2 || second.ID == attempt.ID || second.QuestionIndex != 0 {
		t.Fatalf("unexpected retry attempt %+v", second)
	}
	for _, resp := range second.Responses {
		if resp.Answered() {
			t.Fatalf("expected responses reset on retry, got %+v", resp)
		}
	}
	if _, err := f.service.Attempt(ctx, attempt.ID); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected previous attempt discarded, got %v", err)
	}

	if _, err := f.service.Submit(ctx, second.ID); err != nil {
		t.Fatalf("submit second: %v", err)
	}
	if _, err := f.service.Retry(ctx, second.ID); !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected attempts exhausted, got %v", err)
	}
	if got := len(f.results.Results()); got != 2 {
		t.Fatalf("expected two recorded results, got %d", got)
	}

	// a new session must not reset the attempt count
	if _, err := f.service.Start(ctx, "compliance-1", "agent-7"); !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected restart refused once attempts are used, got %v", err)
	}
	if other, err := f.service.Start(ctx, "compliance-1", "agent-8"); err != nil || other.Number != 1 {
		t.Fatalf("expected a fresh first attempt for another user, got %+v, %v", other, err)
	}
}

func TestStartContinuesNumberingFromHistory(t *testing.T) {
	ctx := context.Background()
	a := complianceAssessment()
	a.MaxAttempts = 3
	f := newFixture(t, a)

	first, _ := f.service.Start(ctx, "compliance-1", "agent-7")
	if _, err := f.service.Submit(ctx, first.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.service.Abandon(ctx, first.ID)

	resumed, err := f.service.Start(ctx, "compliance-1", "agent-7")
	if err != nil {
		t.Fatalf("start after reconnect: %v", err)
	}
	if resumed.Number != 2 {
		t.Fatalf("expected attempt 2 after reconnect, got %d", resumed.Number)
	}
}

func TestStartRefusedAfterPass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, complianceAssessment())

	attempt, _ := f.service.Start(ctx, "compliance-1", "agent-7")
	_, _ = f.service.Select(ctx, attempt.ID, "q-suitability", "needs")
	_, _ = f.service.Select(ctx, attempt.ID, "q-disclosure", "fees")
	_, _ = f.service.Select(ctx, attempt.ID, "q-disclosure", "commission")
	if res, err := f.service.Submit(ctx, attempt.ID); err != nil || !res.Passed {
		t.Fatalf("expected pass, got %+v, %v", res, err)
	}

	if _, err := f.service.Start(ctx, "compliance-1", "agent-7"); !errors.Is(err, domain.ErrAlreadyPassed) {
		t.Fatalf("expected start refused after pass, got %v", err)
	}
}

func TestStartWithoutHistoryBeginsAtOne(t *testing.T) {
	ctx := context.Background()
	a := complianceAssessment()
	repo := memory.NewAssessmentRepository(memory.NewStaticAssessmentLoader(map[string]domain.Assessment{a.ID: a}), time.Minute)
	service := app.NewAssessmentService(repo, memory.NewAttemptStore(), failingRecorder{})

	for i := 0; i < 3; i++ {
		attempt, err := service.Start(ctx, a.ID, "agent-7")
		if err != nil || attempt.Number != 1 {
			t.Fatalf("expected attempt 1 without history, got %+v, %v", attempt, err)
		}
	}
}

func TestSelectRejectsUnknownQuestionAndOption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, complianceAssessment())
	attempt, _ := f.service.Start(ctx, "compliance-1", "agent-7")

	if _, err := f.service.Select(ctx, attempt.ID, "q-missing", "x"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := f.service.Select(ctx, attempt.ID, "q-suitability", "x"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}
	if _, err := f.service.Select(ctx, "missing", "q-suitability", "needs"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt not found, got %v", err)
	}
}

func TestStartRejectsUnknownAndMalformedAssessments(t *testing.T) {
	ctx := context.Background()
	broken := complianceAssessment()
	broken.Questions[0].Options[1].IsCorrect = false
	f := newFixture(t, broken)

	if _, err := f.service.Start(ctx, "nope", "agent-7"); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.service.Start(ctx, "compliance-1", "agent-7"); !errors.Is(err, domain.ErrNoCorrectOption) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if f.attempts.Len() != 0 {
		t.Fatalf("expected no attempts stored")
	}
}

func TestAbandonDiscardsAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, complianceAssessment())
	attempt, _ := f.service.Start(ctx, "compliance-1", "agent-7")

	f.service.Abandon(ctx, attempt.ID)
	if f.attempts.Len() != 0 {
		t.Fatalf("expected attempt discarded")
	}
}

func TestSubmitReportsRecorderFailure(t *testing.T) {
	ctx := context.Background()
	a := complianceAssessment()
	repo := memory.NewAssessmentRepository(memory.NewStaticAssessmentLoader(map[string]domain.Assessment{a.ID: a}), time.Minute)
	attempts := memory.NewAttemptStore()
	service := app.NewAssessmentService(repo, attempts, failingRecorder{})

	attempt, _ := service.Start(ctx, a.ID, "agent-7")
	result, err := service.Submit(ctx, attempt.ID)
	if !errors.Is(err, domain.ErrResultNotRecorded) {
		t.Fatalf("expected recorder failure, got %v", err)
	}
	if result.TotalQuestions != 2 {
		t.Fatalf("expected scored result alongside error, got %+v", result)
	}
	stored, _ := service.Attempt(ctx, attempt.ID)
	if stored.State != domain.AttemptSubmitted {
		t.Fatalf("expected attempt submitted, got %s", stored.State)
	}
}

func TestShuffleIsReproducibleWithSeed(t *testing.T) {
	ctx := context.Background()
	first := newFixture(t, complianceAssessment())
	second := newFixture(t, complianceAssessment())

	a1, _ := first.service.Start(ctx, "compliance-1", "agent-7")
	a2, _ := second.service.Start(ctx, "compliance-1", "agent-7")
	if a1.Order[0] != a2.Order[0] || a1.Order[1] != a2.Order[1] {
		t.Fatalf("expected same order for same seed: %v vs %v", a1.Order, a2.Order)
	}
}

type failingRecorder struct{}

func (failingRecorder) RecordResult(context.Context, domain.CompletedAttempt) error {
	return errors.New("database unavailable")
}
