package app

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"agent-backoffice/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateAssessment rejects definitions that cannot be scored.
func ValidateAssessment(a domain.Assessment) error {
	if len(a.Questions) == 0 {
		return domain.ErrNoQuestions
	}
	if err := validate.Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %s", domain.ErrInvalidAssessment, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidAssessment, err)
	}

	seen := make(map[string]struct{}, len(a.Questions))
	for _, q := range a.Questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}

		options := make(map[string]struct{}, len(q.Options))
		for _, opt := range q.Options {
			if _, dup := options[opt.ID]; dup {
				return fmt.Errorf("%w: %s on %s", domain.ErrDuplicateOption, opt.ID, q.ID)
			}
			options[opt.ID] = struct{}{}
		}

		correct := len(q.CorrectOptionIDs())
		switch q.Type {
		case domain.SingleChoice, domain.Scenario:
			if correct > 1 {
				return fmt.Errorf("%w: %s", domain.ErrMultipleCorrectOptions, q.ID)
			}
		case domain.SelectAll:
		default:
			return fmt.Errorf("%w: %q on %s", domain.ErrInvalidQuestionType, q.Type, q.ID)
		}
		if correct == 0 {
			return fmt.Errorf("%w: %s", domain.ErrNoCorrectOption, q.ID)
		}
	}
	return nil
}

// PresentQuestions returns the questions in presentation order. When the
// assessment shuffles, the order is a uniform permutation drawn from rng.
// The assessment itself is never reordered.
func PresentQuestions(a domain.Assessment, rng *rand.Rand) []domain.Question {
	out := append([]domain.Question(nil), a.Questions...)
	if !a.ShuffleQuestions || len(out) < 2 {
		return out
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// RecordSelection applies one option click and returns the updated responses.
// Single-answer questions replace the selection; select-all questions toggle.
func RecordSelection(responses domain.Responses, q domain.Question, optionID string) (domain.Responses, error) {
	if !q.HasOption(optionID) {
		return responses, domain.ErrOptionNotFound
	}

	out := responses.Clone()
	current := out[q.ID]
	current.QuestionID = q.ID

	if !q.Type.MultiSelect() {
		current.SelectedOptionIDs = []string{optionID}
		out[q.ID] = current
		return out, nil
	}

	selected := make([]string, 0, len(current.SelectedOptionIDs)+1)
	removed := false
	for _, id := range current.SelectedOptionIDs {
		if id == optionID {
			removed = true
			continue
		}
		selected = append(selected, id)
	}
	if !removed {
		selected = append(selected, optionID)
	}
	current.SelectedOptionIDs = selected
	out[q.ID] = current
	return out, nil
}

// Score grades responses against the assessment. presented is the order the
// learner saw; nil means the assessment's own order.
//
// An incorrect answer to an auto-fail question fails the attempt regardless
// of score. When several are missed only the last one in presentation order is
// reported in AutoFailQuestion.
func Score(a domain.Assessment, presented []domain.Question, responses domain.Responses, startedAt, now time.Time) (domain.AssessmentResult, error) {
	if err := ValidateAssessment(a); err != nil {
		return domain.AssessmentResult{}, err
	}
	if presented == nil {
		presented = a.Questions
	}

	result := domain.AssessmentResult{
		TotalQuestions: len(presented),
		Answers:        make([]domain.AnswerRecord, 0, len(presented)),
	}
	for _, q := range presented {
		selected := append([]string{}, responses[q.ID].SelectedOptionIDs...)
		correct := isCorrect(q, selected)
		if correct {
			result.CorrectAnswers++
		} else if a.IsAutoFail(q) {
			result.AutoFailed = true
			result.AutoFailQuestion = q.ID
		}
		result.Answers = append(result.Answers, domain.AnswerRecord{
			QuestionID:        q.ID,
			SelectedOptionIDs: selected,
			Correct:           correct,
		})
	}

	if result.TotalQuestions == 0 {
		return domain.AssessmentResult{}, domain.ErrNoQuestions
	}
	result.Score = int(math.Round(float64(result.CorrectAnswers) / float64(result.TotalQuestions) * 100))
	result.Passed = !result.AutoFailed && result.Score >= a.PassingScore
	result.TimeSpentMinutes = int(math.Round(now.Sub(startedAt).Minutes()))
	return result, nil
}

func isCorrect(q domain.Question, selected []string) bool {
	want := q.CorrectOptionIDs()
	if !q.Type.MultiSelect() {
		return len(selected) == 1 && len(want) == 1 && selected[0] == want[0]
	}
	if len(selected) != len(want) {
		return false
	}
	wantSet := make(map[string]struct{}, len(want))
	for _, id := range want {
		wantSet[id] = struct{}{}
	}
	for _, id := range selected {
		if _, ok := wantSet[id]; !ok {
			return false
		}
		delete(wantSet, id)
	}
	return len(wantSet) == 0
}

// ReviewAnswers exposes correct answers for a scored attempt, or nil when the
// assessment hides them.
func ReviewAnswers(a domain.Assessment, result domain.AssessmentResult) []domain.AnswerReview {
	if !a.ShowCorrectAnswers {
		return nil
	}
	reviews := make([]domain.AnswerReview, 0, len(result.Answers))
	for _, ans := range result.Answers {
		q, ok := a.Question(ans.QuestionID)
		if !ok {
			continue
		}
		review := domain.AnswerReview{
			QuestionID:       q.ID,
			Correct:          ans.Correct,
			CorrectOptionIDs: q.CorrectOptionIDs(),
		}
		if !ans.Correct {
			review.IncorrectFeedback = q.IncorrectFeedback
		}
		reviews = append(reviews, review)
	}
	return reviews
}
