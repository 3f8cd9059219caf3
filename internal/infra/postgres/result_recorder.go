package postgres

import (
	"context"
	"fmt"
	"time"

	"agent-backoffice/internal/domain"
	"github.com/uptrace/bun"
)

type resultRow struct {
	bun.BaseModel `bun:"table:assessment_results"`

	AttemptID        string                `bun:"attempt_id,pk"`
	AssessmentID     string                `bun:"assessment_id,notnull"`
	UserID           string                `bun:"user_id,notnull"`
	AttemptNumber    int                   `bun:"attempt_number,notnull"`
	Score            int                   `bun:"score,notnull"`
	Passed           bool                  `bun:"passed,notnull"`
	CorrectAnswers   int                   `bun:"correct_answers,notnull"`
	TotalQuestions   int                   `bun:"total_questions,notnull"`
	AutoFailed       bool                  `bun:"auto_failed,notnull"`
	AutoFailQuestion string                `bun:"auto_fail_question,nullzero"`
	TimeSpentMinutes int                   `bun:"time_spent_minutes,notnull"`
	Answers          []domain.AnswerRecord `bun:"answers,type:jsonb"`
	SubmittedAt      time.Time             `bun:"submitted_at,notnull"`
}

// ResultRecorder persists submitted attempts to assessment_results.
type ResultRecorder struct {
	db *bun.DB
}

func NewResultRecorder(db *bun.DB) *ResultRecorder {
	return &ResultRecorder{db: db}
}

// RecordResult inserts the attempt; re-recording the same attempt is a no-op.
func (r *ResultRecorder) RecordResult(ctx context.Context, completed domain.CompletedAttempt) error {
	row := resultRow{
		AttemptID:        completed.AttemptID,
		AssessmentID:     completed.AssessmentID,
		UserID:           completed.UserID,
		AttemptNumber:    completed.Number,
		Score:            completed.Result.Score,
		Passed:           completed.Result.Passed,
		CorrectAnswers:   completed.Result.CorrectAnswers,
		TotalQuestions:   completed.Result.TotalQuestions,
		AutoFailed:       completed.Result.AutoFailed,
		AutoFailQuestion: completed.Result.AutoFailQuestion,
		TimeSpentMinutes: completed.Result.TimeSpentMinutes,
		Answers:          completed.Result.Answers,
		SubmittedAt:      completed.SubmittedAt,
	}
	if _, err := r.db.NewInsert().Model(&row).On("CONFLICT (attempt_id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ListResults returns every recorded attempt for an assessment, oldest first.
func (r *ResultRecorder) ListResults(ctx context.Context, assessmentID string) ([]domain.CompletedAttempt, error) {
	var rows []resultRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("assessment_id = ?", assessmentID).
		OrderExpr("submitted_at ASC, attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return completedAttempts(rows), nil
}

// UserResults returns one user's recorded attempts for an assessment.
func (r *ResultRecorder) UserResults(ctx context.Context, assessmentID, userID string) ([]domain.CompletedAttempt, error) {
	var rows []resultRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("assessment_id = ?", assessmentID).
		Where("user_id = ?", userID).
		OrderExpr("attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("user results: %w", err)
	}
	return completedAttempts(rows), nil
}

func completedAttempts(rows []resultRow) []domain.CompletedAttempt {
	out := make([]domain.CompletedAttempt, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CompletedAttempt{
			AttemptID:    row.AttemptID,
			AssessmentID: row.AssessmentID,
			UserID:       row.UserID,
			Number:       row.AttemptNumber,
			SubmittedAt:  row.SubmittedAt,
			Result: domain.AssessmentResult{
				Score:            row.Score,
				Passed:           row.Passed,
				CorrectAnswers:   row.CorrectAnswers,
				TotalQuestions:   row.TotalQuestions,
				AutoFailed:       row.AutoFailed,
				AutoFailQuestion: row.AutoFailQuestion,
				TimeSpentMinutes: row.TimeSpentMinutes,
				Answers:          row.Answers,
			},
		})
	}
	return out
}
